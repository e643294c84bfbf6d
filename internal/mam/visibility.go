package mam

import (
	"github.com/mamvault/mamvault/internal/archive"
)

// Visible decides whether a candidate message belongs in the result set
// for the given criteria. Pure function of the message and criteria; the
// date range and text filter are applied upstream by the engine.
//
// Identity classes are never conflated: an occupant JID (room + nick)
// only ever matches occupant-addressed traffic, and a real user JID only
// ever matches directly addressed traffic. Real-JID filters against
// anonymous rooms are rejected before the scan (see checkCriteria), so
// by the time Visible runs they are only legal in non-anonymous rooms or
// for privileged callers.
func Visible(m archive.Message, c archive.Criteria) bool {
	if c.RoomArchive {
		return visibleInRoom(m, c)
	}
	return visibleInPersonal(m, c)
}

// visibleInRoom filters a room archive: only traffic broadcast to the
// whole room is ever served. Private occupant-to-occupant messages are
// excluded unconditionally; a peer filter narrows the public set, it
// never widens into private traffic.
func visibleInRoom(m archive.Message, c archive.Criteria) bool {
	if m.Private {
		return false
	}
	if c.With.IsZero() {
		return true
	}

	if c.With.EqualBare(c.Owner) {
		// Occupant-class filter. A bare room JID matches everything
		// public; a full one pins a specific occupant's messages.
		if !c.With.IsFull() {
			return true
		}
		return m.Nick == c.With.Resource
	}

	// Real-identity filter: match the recorded real bare JID. Legal
	// only when checkCriteria allowed it for this room mode and caller.
	return !m.RealJID.IsZero() && m.RealJID.EqualBare(c.With)
}

// visibleInPersonal filters a personal archive: directly addressed
// one-to-one messages plus private in-room messages the owner exchanged.
// Room-public records never surface here regardless of filter.
func visibleInPersonal(m archive.Message, c archive.Criteria) bool {
	if m.InRoom() && !m.Private {
		return false
	}
	if c.With.IsZero() {
		return true
	}
	if m.Peer.IsZero() {
		return false
	}

	if m.Private {
		// The counterpart is an occupant identity. A bare filter equal
		// to the room matches all private traffic through that room; a
		// full filter matches exactly one occupant identity. A real
		// user JID never matches here, even if it is the identity
		// behind the nickname.
		if c.With.IsFull() {
			return m.Peer.Equal(c.With)
		}
		return m.Peer.EqualBare(c.With)
	}

	// Direct exchange: the counterpart is a real user JID. Bare filters
	// match any of the peer's connections; full filters pin one.
	if c.With.IsFull() {
		return m.Peer.Equal(c.With)
	}
	return m.Peer.EqualBare(c.With)
}

// DisclosureAllowed decides whether the sender's real identity may be
// attached to an included message. For personal archives the anonymity
// mode recorded on the message (the mode of the room the exchange
// happened in) governs, not the mode of the archive being read.
func DisclosureAllowed(m archive.Message, c archive.Criteria) bool {
	mode := c.RoomMode
	if !c.RoomArchive {
		if !m.InRoom() {
			return true
		}
		mode = m.RoomMode
	}

	switch mode {
	case archive.FullyAnonymous:
		return false
	case archive.SemiAnonymous:
		return c.Privilege == archive.Privileged
	default:
		// Non-anonymous rooms and non-room records disclose freely.
		return true
	}
}

// realIdentityFilter reports whether the criteria's peer filter names a
// real identity rather than an occupant of the queried room.
func realIdentityFilter(c archive.Criteria) bool {
	return c.RoomArchive && !c.With.IsZero() && !c.With.EqualBare(c.Owner)
}

// forbiddenFilter reports whether the peer filter must be rejected: a
// real-JID filter against a room whose anonymity mode forbids revealing,
// even indirectly, that the identity maps to an occupant. Returning an
// empty page instead would itself confirm or deny the mapping.
func forbiddenFilter(c archive.Criteria) bool {
	if !realIdentityFilter(c) {
		return false
	}
	switch c.RoomMode {
	case archive.FullyAnonymous:
		// Never disclosable, for any privilege level.
		return true
	case archive.SemiAnonymous:
		return c.Privilege != archive.Privileged
	default:
		return false
	}
}
