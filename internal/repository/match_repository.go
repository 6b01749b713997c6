// Package repository assembles the full match set of a bracket from the
// ledger's paginated feed.
package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"golang.org/x/time/rate"
)

const DefaultPageSize = 50

var ErrFetchFailed = errors.New("fetch matches")

// MatchQuery returns up to limit matches of a bracket with a match number
// strictly greater than after, ordered by match number. A nil after starts
// from the beginning.
type MatchQuery interface {
	GetPage(ctx context.Context, bracketID string, after *int, limit int) ([]bracket.Match, error)
}

type MatchRepository struct {
	query     MatchQuery
	bracketID string
	pageSize  int
	limiter   *rate.Limiter
	logger    *slog.Logger
	onChange  func([]bracket.Match)

	// serialises page requests so the chain never runs twice at once
	fetchMu sync.Mutex

	mu       sync.Mutex
	matches  []bracket.Match
	seen     map[int]struct{}
	cursor   *int
	done     bool
	requests int
}

type Option func(*MatchRepository)

func WithPageSize(n int) Option {
	return func(r *MatchRepository) {
		if n > 0 {
			r.pageSize = n
		}
	}
}

// WithLimiter throttles page requests against the ledger.
func WithLimiter(l *rate.Limiter) Option {
	return func(r *MatchRepository) { r.limiter = l }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *MatchRepository) { r.logger = l }
}

// WithOnChange registers a callback invoked with a copy of the match set
// every time it changes.
func WithOnChange(fn func([]bracket.Match)) Option {
	return func(r *MatchRepository) { r.onChange = fn }
}

func NewMatchRepository(query MatchQuery, bracketID string, opts ...Option) *MatchRepository {
	r := &MatchRepository{
		query:     query,
		bracketID: bracketID,
		pageSize:  DefaultPageSize,
		logger:    slog.Default(),
		seen:      make(map[int]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FetchNext requests the page after the last match seen so far. more is
// false once a short page has marked the feed as complete.
func (r *MatchRepository) FetchNext(ctx context.Context) (more bool, err error) {
	r.fetchMu.Lock()
	defer r.fetchMu.Unlock()

	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		return false, nil
	}
	cursor := r.cursor
	r.mu.Unlock()

	page, err := r.fetchPage(ctx, cursor)
	if err != nil {
		return false, err
	}

	r.mu.Lock()
	added := r.merge(page)
	if len(page) > 0 {
		last := page[len(page)-1].MatchNumber
		r.cursor = &last
	}
	r.done = len(page) < r.pageSize
	more = !r.done
	snapshot := slices.Clone(r.matches)
	r.mu.Unlock()

	r.logger.Debug("fetched match page",
		"bracket_id", r.bracketID,
		"page_len", len(page),
		"added", added,
		"done", !more,
	)
	if r.onChange != nil {
		r.onChange(snapshot)
	}
	return more, nil
}

// FetchAll drives FetchNext until the feed completes or a page fails.
// Pages fetched before a failure are kept.
func (r *MatchRepository) FetchAll(ctx context.Context) error {
	for {
		more, err := r.FetchNext(ctx)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}

// Refresh re-reads the whole feed into a fresh buffer and replaces the
// current match set only once every page has arrived. On failure the
// previous set stays in place.
func (r *MatchRepository) Refresh(ctx context.Context) error {
	r.fetchMu.Lock()
	defer r.fetchMu.Unlock()

	var (
		matches []bracket.Match
		seen    = make(map[int]struct{})
		cursor  *int
	)
	for {
		page, err := r.fetchPage(ctx, cursor)
		if err != nil {
			r.logger.Warn("refresh failed, keeping previous matches", "bracket_id", r.bracketID, "error", err)
			return err
		}
		for _, m := range page {
			if _, dup := seen[m.MatchNumber]; dup {
				continue
			}
			seen[m.MatchNumber] = struct{}{}
			matches = append(matches, m)
		}
		if len(page) > 0 {
			last := page[len(page)-1].MatchNumber
			cursor = &last
		}
		if len(page) < r.pageSize {
			break
		}
	}

	r.mu.Lock()
	r.matches = matches
	r.seen = seen
	r.cursor = cursor
	r.done = true
	snapshot := slices.Clone(matches)
	r.mu.Unlock()

	if r.onChange != nil {
		r.onChange(snapshot)
	}
	return nil
}

// Matches returns a copy of the accumulated match set in arrival order.
func (r *MatchRepository) Matches() []bracket.Match {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.matches)
}

func (r *MatchRepository) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// Requests is the number of page requests issued so far.
func (r *MatchRepository) Requests() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requests
}

func (r *MatchRepository) fetchPage(ctx context.Context, after *int) ([]bracket.Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	r.mu.Lock()
	r.requests++
	r.mu.Unlock()

	page, err := r.query.GetPage(ctx, r.bracketID, after, r.pageSize)
	if ctxErr := ctx.Err(); ctxErr != nil {
		// the caller has gone away; whatever came back is stale
		return nil, ctxErr
	}
	if err != nil {
		return nil, fmt.Errorf("%w: bracket %s: %w", ErrFetchFailed, r.bracketID, err)
	}
	return page, nil
}

// merge appends matches not seen before and reports how many were added.
// Callers hold r.mu.
func (r *MatchRepository) merge(page []bracket.Match) int {
	added := 0
	for _, m := range page {
		if _, dup := r.seen[m.MatchNumber]; dup {
			r.logger.Debug("skipping duplicate match", "bracket_id", r.bracketID, "match_number", m.MatchNumber)
			continue
		}
		r.seen[m.MatchNumber] = struct{}{}
		r.matches = append(r.matches, m)
		added++
	}
	return added
}
