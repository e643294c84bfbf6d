// Package mam implements the archive query engine: criteria validation,
// privacy-aware visibility filtering, and cursor-based pagination over
// the append-only message store.
package mam

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mamvault/mamvault/internal/archive"
	"github.com/mamvault/mamvault/internal/jid"
	"github.com/mamvault/mamvault/internal/store"
)

// Options tunes the engine's paging behavior.
type Options struct {
	// DefaultPageSize applies when a request leaves Max unset.
	DefaultPageSize int
	// MaxPageSize caps any requested page size; 0 disables the cap.
	MaxPageSize int
}

// Engine answers archive queries. It is safe for concurrent use; each
// query runs one lazy ascending scan and keeps at most a page of
// messages in memory.
type Engine struct {
	store  *store.Store
	logger *slog.Logger

	defaultPageSize int
	maxPageSize     int
}

// NewEngine creates a query engine over the given store.
func NewEngine(st *store.Store, logger *slog.Logger, opts Options) *Engine {
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = 50
	}
	return &Engine{
		store:           st,
		logger:          logger,
		defaultPageSize: opts.DefaultPageSize,
		maxPageSize:     opts.MaxPageSize,
	}
}

// Query runs one archive query and returns a single result page.
//
// The scan is restartable and side-effect free: issuing the same
// criteria again replays against whatever the archive holds then.
// Real sender identities are stripped from returned messages whenever
// the room's anonymity mode forbids disclosing them to this caller.
func (e *Engine) Query(ctx context.Context, c archive.Criteria) (*archive.ResultPage, error) {
	if err := e.checkCriteria(c); err != nil {
		return nil, err
	}
	if forbiddenFilter(c) {
		return nil, fmt.Errorf("%w: real-JID filter against %s room", archive.ErrForbidden, c.RoomMode)
	}

	// Resolve the text filter to an id set up front; the scan below
	// intersects against it.
	var textIDs map[int64]struct{}
	if c.Text != "" {
		ids, err := e.store.SearchMessageIDs(ctx, c.Text, c.Owner)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", archive.ErrIndexUnavailable, err)
		}
		textIDs = ids
	}

	sc, err := e.store.RangeScan(ctx, c.Owner, c.Start, c.End)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", archive.ErrStoreUnavailable, err)
	}
	defer sc.Close()

	p := newPaginator(c.Paging, c, e.defaultPageSize, e.maxPageSize)
	for sc.Next() {
		m := sc.Message()
		if textIDs != nil {
			if _, ok := textIDs[m.ID]; !ok {
				continue
			}
		}
		if !Visible(m, c) {
			continue
		}
		p.feed(m)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", archive.ErrStoreUnavailable, err)
	}

	page := p.page()
	page.Disclosed = make([]bool, len(page.Messages))
	for i := range page.Messages {
		page.Disclosed[i] = DisclosureAllowed(page.Messages[i], c)
		if !page.Disclosed[i] {
			// The identity must not leave the engine at all; a flag the
			// caller might ignore is not enough.
			page.Messages[i].RealJID = jid.JID{}
		}
	}

	e.logger.Debug("archive query",
		"owner", c.Owner.String(),
		"room", c.RoomArchive,
		"total", page.Total,
		"returned", len(page.Messages),
		"complete", page.Complete)
	return &page, nil
}

// Get fetches a single message from an archive by internal id.
func (e *Engine) Get(ctx context.Context, owner jid.JID, id int64) (*archive.Message, error) {
	m, err := e.store.GetMessage(ctx, owner, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: message %d in %s", archive.ErrNotFound, id, owner)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", archive.ErrStoreUnavailable, err)
	}
	return m, nil
}

// SearchAvailable reports whether text-filtered queries can be served.
func (e *Engine) SearchAvailable() bool {
	return e.store.FTSAvailable()
}

func (e *Engine) checkCriteria(c archive.Criteria) error {
	if c.Owner.IsZero() {
		return fmt.Errorf("%w: missing archive owner", archive.ErrInvalidQuery)
	}
	if c.Start != nil && c.End != nil && c.End.Before(*c.Start) {
		return fmt.Errorf("%w: end %s before start %s", archive.ErrInvalidQuery,
			c.End.Format(time.RFC3339), c.Start.Format(time.RFC3339))
	}
	if c.Text != "" && !e.store.FTSAvailable() {
		return fmt.Errorf("%w: text filter without a search index", archive.ErrInvalidQuery)
	}
	return nil
}
