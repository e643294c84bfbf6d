// Package jid provides parsing and comparison of XMPP-style addresses.
package jid

import (
	"fmt"
	"strings"
)

// JID is a parsed address of the form node@domain/resource.
// The zero value means "no address".
//
// Two granularities matter for archive filtering: the bare JID
// (node@domain) identifies a user or a room, while the full JID adds a
// resource: a connection for users, a nickname for room occupants.
type JID struct {
	Node     string
	Domain   string
	Resource string
}

// Parse parses s into a JID. The node and resource parts are optional.
// Returns an error for an empty string or a missing domain.
func Parse(s string) (JID, error) {
	var j JID

	if s == "" {
		return j, fmt.Errorf("empty jid")
	}
	if strings.ContainsAny(s, " \t\r\n") {
		return j, fmt.Errorf("jid %q: contains whitespace", s)
	}

	rest := s
	if idx := strings.Index(rest, "/"); idx != -1 {
		j.Resource = rest[idx+1:]
		rest = rest[:idx]
	}
	if idx := strings.Index(rest, "@"); idx != -1 {
		j.Node = rest[:idx]
		rest = rest[idx+1:]
	}
	if rest == "" {
		return JID{}, fmt.Errorf("jid %q: missing domain", s)
	}
	j.Domain = rest

	return j, nil
}

// MustParse parses s and panics on error. For tests and constants only.
func MustParse(s string) JID {
	j, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return j
}

// IsZero reports whether the JID is the zero value.
func (j JID) IsZero() bool {
	return j.Node == "" && j.Domain == "" && j.Resource == ""
}

// IsFull reports whether the JID carries a resource part.
func (j JID) IsFull() bool {
	return j.Resource != ""
}

// Bare returns the JID with the resource part stripped.
func (j JID) Bare() JID {
	j.Resource = ""
	return j
}

// String renders the JID in node@domain/resource form.
func (j JID) String() string {
	var b strings.Builder
	if j.Node != "" {
		b.WriteString(j.Node)
		b.WriteString("@")
	}
	b.WriteString(j.Domain)
	if j.Resource != "" {
		b.WriteString("/")
		b.WriteString(j.Resource)
	}
	return b.String()
}

// Equal reports whether two JIDs are identical at full granularity.
// Comparison is case-insensitive for node and domain, case-sensitive
// for the resource (nicknames and connection ids are case-sensitive).
func (j JID) Equal(other JID) bool {
	return j.EqualBare(other) && j.Resource == other.Resource
}

// EqualBare reports whether two JIDs share the same bare identity,
// ignoring resources on both sides.
func (j JID) EqualBare(other JID) bool {
	return strings.EqualFold(j.Node, other.Node) &&
		strings.EqualFold(j.Domain, other.Domain)
}
