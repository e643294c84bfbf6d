// Package archive defines the data model shared by the store, the query
// engine, and the conversation tracker: archived messages, conversation
// rollups, query criteria, and result pages.
package archive

import (
	"time"

	"github.com/mamvault/mamvault/internal/jid"
)

// Direction indicates whether a message was sent or received relative
// to the archive owner.
type Direction int

const (
	DirectionSent Direction = iota
	DirectionReceived
)

func (d Direction) String() string {
	switch d {
	case DirectionSent:
		return "sent"
	case DirectionReceived:
		return "received"
	default:
		return "unknown"
	}
}

// AnonymityMode is a room-level policy controlling whether occupants'
// real JIDs may ever be disclosed, and to whom.
type AnonymityMode int

const (
	// ModeNone marks records outside any room context.
	ModeNone AnonymityMode = iota
	// NonAnonymous rooms disclose real JIDs to every caller.
	NonAnonymous
	// SemiAnonymous rooms disclose real JIDs to privileged callers only.
	SemiAnonymous
	// FullyAnonymous rooms never disclose real JIDs.
	FullyAnonymous
)

func (m AnonymityMode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case NonAnonymous:
		return "non-anonymous"
	case SemiAnonymous:
		return "semi-anonymous"
	case FullyAnonymous:
		return "fully-anonymous"
	default:
		return "unknown"
	}
}

// Privilege is the caller's privilege level with respect to the archive
// being queried. Room owners and moderators are privileged.
type Privilege int

const (
	Regular Privilege = iota
	Privileged
)

// Message is one archived stanza. Records are immutable after
// persistence; ID is 0 until the store assigns it.
//
// ID is unique and totally ordered within one archive, and id order
// equals chronological order; all paging is anchored on it.
type Message struct {
	ID        int64
	Owner     jid.JID // bare jid of the archive (user or room)
	Time      time.Time
	Direction Direction
	Body      string // may be empty (e.g. chat-state stanzas)
	Stanza    string // serialized original; empty for legacy records
	StableID  string // externally stable paging token; optional

	// Peer is the conversation counterpart from the owner's point of
	// view: a real user JID for direct exchanges, an occupant JID
	// (room@service/nick) for in-room private messages. Zero for room
	// broadcast records, where no single peer applies.
	Peer jid.JID

	// Room context. Room is the bare room JID when the exchange
	// happened inside a room (broadcast or private); zero otherwise.
	// RoomMode is the room's anonymity mode recorded at persistence
	// time, so personal-archive reads can honor the policy of the room
	// the message occurred in.
	Room     jid.JID
	Nick     string  // sender's occupant nickname within Room
	RealJID  jid.JID // real bare JID behind Nick, if known to the archiver
	Private  bool    // occupant-to-occupant private message
	RoomMode AnonymityMode
}

// InRoom reports whether the message carries room context.
func (m *Message) InRoom() bool {
	return !m.Room.IsZero()
}

// Conversation is a rollup of one logical exchange between an owner and
// a peer (or a room).
type Conversation struct {
	ID           int64
	Owner        jid.JID
	Peer         jid.JID // other party, or bare room JID for group chats
	External     bool    // archived outside the home domain
	Start        time.Time
	LastActivity time.Time
	End          *time.Time // nil while the conversation is active
	MessageCount int64
	Participants []Participant // ordered by join time
}

// Participant is one occupant's span of presence in a conversation.
// Spans are append-only: a JID that leaves and returns gets a new span.
type Participant struct {
	ID             int64
	ConversationID int64
	JID            jid.JID
	Start          time.Time
	End            *time.Time // nil while present
}

// Criteria is a caller-supplied, immutable query request.
type Criteria struct {
	Owner       jid.JID // archive being queried (bare)
	RoomArchive bool    // Owner is a room, not a user

	// With narrows results to one counterpart. Bare JIDs match at
	// coarse granularity, full JIDs at fine granularity (see the
	// visibility filter for the exact rules). Zero means no filter.
	With jid.JID

	Start *time.Time // inclusive lower bound
	End   *time.Time // exclusive upper bound
	Text  string     // full-text filter; requires the search capability

	UseStableID bool // paging tokens refer to StableID instead of ID

	Privilege Privilege
	RoomMode  AnonymityMode // anonymity mode of Owner when RoomArchive

	Paging PageRequest
}

// PageRequest carries the cursor-protocol paging directives.
type PageRequest struct {
	After  string // exclusive lower-bound token; "" means unset
	Before string // exclusive upper-bound token; "" means unset
	Max    *int   // page size cap; nil or negative means "system default"
	Index  *int   // absolute offset alternative to After/Before
}

// Backward reports whether the request selects from the end of the
// matching set (Before present without After).
func (p PageRequest) Backward() bool {
	return p.Before != "" && p.After == ""
}

// ResultPage is one page of a query result. Messages are always in
// ascending chronological order regardless of paging direction.
type ResultPage struct {
	Messages []Message

	// Disclosed[i] reports whether Messages[i]'s real sender identity
	// may be shown to the caller. When false the protocol layer must
	// omit the real-JID annotation.
	Disclosed []bool

	First    string // token of the first message; "" when page is empty
	Last     string // token of the last message; "" when page is empty
	Total    int    // size of the full matching set, pre-paging
	Complete bool   // page touches the end of the set in paging direction
}
