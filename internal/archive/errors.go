package archive

import "github.com/rotisserie/eris"

// Error taxonomy for archive queries. Callers classify with errors.Is;
// engine code attaches context with eris.Wrap so the root cause stays
// matchable.
var (
	// ErrNotFound means the query targets something that cannot exist
	// by construction, e.g. an unknown conversation id. An empty
	// ResultPage is not an error.
	ErrNotFound = eris.New("archive: not found")

	// ErrForbidden means the query would require disclosing an identity
	// the room's anonymity mode forbids revealing, even indirectly.
	// Returned instead of an empty page so the caller cannot probe
	// whether a real JID maps to an occupant.
	ErrForbidden = eris.New("archive: forbidden")

	// ErrInvalidQuery covers malformed criteria: end before start, or a
	// text filter without a configured search capability.
	ErrInvalidQuery = eris.New("archive: invalid query")

	// ErrInvalidMessage covers write-path rejects: a record whose shape
	// contradicts the data model, e.g. a private flag outside a room.
	ErrInvalidMessage = eris.New("archive: invalid message")

	// ErrStoreUnavailable and ErrIndexUnavailable surface transient
	// backend failures. The engine does not retry; policy is the
	// caller's.
	ErrStoreUnavailable = eris.New("archive: store unavailable")
	ErrIndexUnavailable = eris.New("archive: index unavailable")
)
