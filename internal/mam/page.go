package mam

import (
	"strconv"

	"github.com/mamvault/mamvault/internal/archive"
)

// tokenFunc extracts the paging token from a message.
type tokenFunc func(archive.Message) string

// tokenFor returns the token extractor selected by the criteria: the
// externally stable id, or the internal numeric id rendered as decimal.
// Both order identically because ids are assigned in chronological order.
func tokenFor(c archive.Criteria) tokenFunc {
	if c.UseStableID {
		return func(m archive.Message) string { return m.StableID }
	}
	return func(m archive.Message) string { return strconv.FormatInt(m.ID, 10) }
}

// paginator applies the cursor protocol to a matching sequence fed to
// it one message at a time, in ascending order. It keeps at most one
// page of messages in memory regardless of archive size.
//
// Tokens that never appear in the sequence are treated as "no bound"
// rather than an error; stale cursors survive retention pruning.
type paginator struct {
	max      int  // resolved page size; 0 is a legal explicit cap
	maxZero  bool // caller explicitly asked for max=0
	backward bool
	after    string
	before   string
	skip     int // remaining items to skip in index mode; -1 when unused
	tokenOf  tokenFunc

	total int // all matches seen, independent of paging bounds

	// forward state
	sel      []archive.Message
	overflow int  // selectable matches beyond the window
	upperHit bool // forward scan passed the before anchor

	// backward state
	ring   []archive.Message // last max matches before the anchor
	pre    int               // matches before the anchor
	frozen bool              // anchor seen, ring is final
}

// newPaginator resolves the page request against the engine defaults.
// An unset or negative Max defers to the default; an explicit zero is a
// count-only request. After takes precedence over Index; backward
// paging ignores Index.
func newPaginator(req archive.PageRequest, c archive.Criteria, defaultMax, maxMax int) *paginator {
	max := defaultMax
	if req.Max != nil && *req.Max >= 0 {
		max = *req.Max
	}
	if maxMax > 0 && max > maxMax {
		max = maxMax
	}

	p := &paginator{
		max:      max,
		maxZero:  req.Max != nil && *req.Max == 0,
		backward: req.Backward(),
		after:    req.After,
		before:   req.Before,
		skip:     -1,
		tokenOf:  tokenFor(c),
	}
	if !p.backward && p.after == "" && req.Index != nil && *req.Index > 0 {
		p.skip = *req.Index
	}
	return p
}

// feed advances the state machine with the next matching message.
func (p *paginator) feed(m archive.Message) {
	t := p.tokenOf(m)
	p.total++

	if p.backward {
		if p.frozen {
			return
		}
		if t == p.before {
			p.frozen = true
			return
		}
		p.pre++
		if p.max > 0 {
			p.ring = append(p.ring, m)
			if len(p.ring) > p.max {
				p.ring = p.ring[1:]
			}
		}
		return
	}

	// Forward. The after anchor resets the window: everything selected
	// so far preceded the anchor and must not be returned.
	if p.after != "" && t == p.after {
		p.sel = p.sel[:0]
		p.overflow = 0
		return
	}
	if p.upperHit {
		return
	}
	if p.before != "" && p.after != "" && t == p.before {
		p.upperHit = true
		return
	}
	if p.skip > 0 {
		p.skip--
		return
	}
	if len(p.sel) < p.max {
		p.sel = append(p.sel, m)
	} else {
		p.overflow++
	}
}

// page assembles the final result. Page content is always in ascending
// chronological order; only the selection is anchored from the end for
// backward paging.
func (p *paginator) page() archive.ResultPage {
	var msgs []archive.Message
	var complete bool

	switch {
	case p.maxZero:
		// Empty page by construction; completeness reflects whether the
		// matching set itself is empty, and the true total still reports.
		complete = p.total == 0
	case p.backward:
		msgs = p.ring
		complete = p.pre-len(msgs) == 0
	default:
		msgs = p.sel
		complete = p.overflow == 0
	}

	rp := archive.ResultPage{
		Messages: msgs,
		Total:    p.total,
		Complete: complete,
	}
	if len(msgs) > 0 {
		rp.First = p.tokenOf(msgs[0])
		rp.Last = p.tokenOf(msgs[len(msgs)-1])
	}
	return rp
}
