// Package view composes the engine for one viewer of one bracket: its own
// match repository, its own pending overlay, the layout and the submission
// coordinator. Views never share mutable state.
package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/AdamBeresnev/bracket-engine/internal/graph"
	"github.com/AdamBeresnev/bracket-engine/internal/layout"
	"github.com/AdamBeresnev/bracket-engine/internal/pending"
	"github.com/AdamBeresnev/bracket-engine/internal/repository"
	"github.com/AdamBeresnev/bracket-engine/internal/submission"
	"golang.org/x/time/rate"
)

var (
	ErrUnknownMatch = errors.New("unknown match")
	ErrClosed       = errors.New("view closed")
)

// Snapshot is a consistent, read-only picture of the view.
type Snapshot struct {
	Matches  []bracket.Match
	Graph    *graph.Graph
	Layout   *layout.Result
	Pending  []bracket.ResultEntry
	Done     bool
	Dangling []graph.Edge
	// Err is the most recent fetch or layout failure
	Err error
}

// PendingResult returns the proposed result for a match, if any.
func (s Snapshot) PendingResult(matchNumber int) (bracket.Result, bool) {
	for _, e := range s.Pending {
		if e.MatchNumber == matchNumber {
			return e.Result, true
		}
	}
	return "", false
}

type View struct {
	bracketID string
	repo      *repository.MatchRepository
	pending   *pending.Store
	engine    *layout.Engine
	coord     *submission.Coordinator
	logger    *slog.Logger

	// cancel funcs of operations in progress, fired by Close
	runMu   sync.Mutex
	running map[int]context.CancelFunc
	nextRun int
	closed  bool

	mu   sync.RWMutex
	snap Snapshot
}

type options struct {
	pageSize int
	limiter  *rate.Limiter
	engine   *layout.Engine
	notifier submission.Notifier
	logger   *slog.Logger
}

type Option func(*options)

func WithPageSize(n int) Option {
	return func(o *options) { o.pageSize = n }
}

func WithLimiter(l *rate.Limiter) Option {
	return func(o *options) { o.limiter = l }
}

func WithLayoutEngine(e *layout.Engine) Option {
	return func(o *options) { o.engine = e }
}

func WithNotifier(n submission.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func New(bracketID string, query repository.MatchQuery, submitter submission.Submitter, opts ...Option) *View {
	o := options{
		pageSize: repository.DefaultPageSize,
		engine:   layout.NewEngine(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	v := &View{
		bracketID: bracketID,
		pending:   pending.New(),
		engine:    o.engine,
		logger:    o.logger.With("bracket_id", bracketID),
		running:   make(map[int]context.CancelFunc),
	}

	repoOpts := []repository.Option{
		repository.WithPageSize(o.pageSize),
		repository.WithLogger(v.logger),
		repository.WithOnChange(v.recompute),
	}
	if o.limiter != nil {
		repoOpts = append(repoOpts, repository.WithLimiter(o.limiter))
	}
	v.repo = repository.NewMatchRepository(query, bracketID, repoOpts...)

	coordOpts := []submission.Option{
		submission.WithRefresher(v.repo),
		submission.WithConfirmed(v.repo.Matches),
		submission.WithLogger(v.logger),
	}
	if o.notifier != nil {
		coordOpts = append(coordOpts, submission.WithNotifier(o.notifier))
	}
	v.coord = submission.New(bracketID, v.pending, submitter, coordOpts...)

	v.snap.Graph = graph.Build(nil)
	return v
}

func (v *View) BracketID() string {
	return v.bracketID
}

// Load runs the fetch chain to completion. The snapshot is recomputed after
// every page, so callers may render while Load is still running.
func (v *View) Load(ctx context.Context) error {
	ctx, cancel := v.bind(ctx)
	defer cancel()

	err := v.repo.FetchAll(ctx)
	if err != nil {
		v.setErr(err)
	}
	return err
}

// Propose records a pending result locally. Nothing is sent to the ledger.
func (v *View) Propose(matchNumber int, result bracket.Result) error {
	if !result.Valid() {
		return fmt.Errorf("match %d: %w", matchNumber, bracket.ErrInvalidResult)
	}
	v.mu.RLock()
	known := v.snap.Graph.Has(matchNumber)
	v.mu.RUnlock()
	if !known {
		return fmt.Errorf("%w: %d", ErrUnknownMatch, matchNumber)
	}

	v.pending.Add(matchNumber, result)
	return nil
}

func (v *View) Withdraw(matchNumber int) {
	v.pending.Remove(matchNumber)
}

// Submit sends the whole overlay as one batch; see submission.Coordinator.
func (v *View) Submit(ctx context.Context) (*submission.Report, error) {
	if v.isClosed() {
		return nil, ErrClosed
	}
	ctx, cancel := v.bind(ctx)
	defer cancel()
	return v.coord.Submit(ctx)
}

// ExternalModified drops the overlay and re-reads the bracket after someone
// else changed it.
func (v *View) ExternalModified(ctx context.Context) error {
	v.pending.Clear()
	ctx, cancel := v.bind(ctx)
	defer cancel()

	if err := v.repo.Refresh(ctx); err != nil {
		v.setErr(err)
		return err
	}
	return nil
}

func (v *View) Snapshot() Snapshot {
	v.mu.RLock()
	s := v.snap
	v.mu.RUnlock()

	s.Matches = slices.Clone(s.Matches)
	s.Dangling = slices.Clone(s.Dangling)
	s.Pending = v.pending.Snapshot()
	return s
}

// Close cancels any fetch in progress; no further pages are requested.
// By the time Close returns every running operation sees a cancelled context.
func (v *View) Close() {
	v.runMu.Lock()
	defer v.runMu.Unlock()
	v.closed = true
	for _, cancel := range v.running {
		cancel()
	}
	clear(v.running)
}

func (v *View) isClosed() bool {
	v.runMu.Lock()
	defer v.runMu.Unlock()
	return v.closed
}

// bind returns a context that ends with either ctx or the view itself.
func (v *View) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)

	v.runMu.Lock()
	defer v.runMu.Unlock()
	if v.closed {
		cancel()
		return ctx, cancel
	}
	id := v.nextRun
	v.nextRun++
	v.running[id] = cancel

	return ctx, func() {
		v.runMu.Lock()
		delete(v.running, id)
		v.runMu.Unlock()
		cancel()
	}
}

func (v *View) setErr(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.snap.Err = err
}

// recompute rebuilds graph and layout from a complete copy of the match set.
func (v *View) recompute(matches []bracket.Match) {
	g := graph.Build(matches)
	done := v.repo.Done()

	next := Snapshot{
		Matches: matches,
		Graph:   g,
		Done:    done,
	}
	if err := g.Validate(); err != nil {
		v.logger.Error("bracket graph is invalid", "error", err)
		next.Err = err
	} else if res, err := v.engine.Layout(g); err != nil {
		v.logger.Error("layout failed", "error", err)
		next.Err = err
	} else {
		next.Layout = res
	}

	if done {
		next.Dangling = g.Dangling()
		for _, e := range next.Dangling {
			v.logger.Warn("match points at a missing match", "source", e.Source, "target", e.Target, "kind", e.Kind)
		}
	}

	v.mu.Lock()
	v.snap = next
	v.mu.Unlock()
}
