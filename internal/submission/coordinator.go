// Package submission turns a viewer's pending overlay into one atomic batch
// against the ledger and reconciles afterwards.
package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/AdamBeresnev/bracket-engine/internal/pending"
)

var (
	ErrEmptySubmission    = errors.New("nothing to submit")
	ErrInvalidEntry       = errors.New("invalid pending result")
	ErrSubmissionFailed   = errors.New("submit results")
	ErrSubmissionInFlight = errors.New("a submission is already in flight")
)

// Submitter records a batch of results atomically: either every entry is
// applied or none is.
type Submitter interface {
	SubmitResults(ctx context.Context, bracketID string, entries []bracket.ResultEntry) (*bracket.Outcome, error)
}

// Notifier receives the signals a successful submission produced.
type Notifier interface {
	Notify(ctx context.Context, bracketID string, signals []bracket.Signal)
}

type Refresher interface {
	Refresh(ctx context.Context) error
}

type EntryProblem struct {
	MatchNumber int
	Reason      string
}

// ValidationError lists every entry that would be rejected.
type ValidationError struct {
	Problems []EntryProblem
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, fmt.Sprintf("match %d: %s", p.MatchNumber, p.Reason))
	}
	return fmt.Sprintf("%s: %s", ErrInvalidEntry, strings.Join(parts, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidEntry
}

type Report struct {
	Submitted []bracket.ResultEntry
	Signals   []bracket.Signal
	// RefreshErr is set when the batch was recorded but re-reading the
	// bracket afterwards failed.
	RefreshErr error
}

type Coordinator struct {
	bracketID string
	store     *pending.Store
	submitter Submitter
	refresher Refresher
	notifier  Notifier
	confirmed func() []bracket.Match
	logger    *slog.Logger

	inFlight atomic.Bool
}

type Option func(*Coordinator)

func WithRefresher(r Refresher) Option {
	return func(c *Coordinator) { c.refresher = r }
}

func WithNotifier(n Notifier) Option {
	return func(c *Coordinator) { c.notifier = n }
}

// WithConfirmed supplies the confirmed match set entries are validated against.
func WithConfirmed(fn func() []bracket.Match) Option {
	return func(c *Coordinator) { c.confirmed = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

func New(bracketID string, store *pending.Store, submitter Submitter, opts ...Option) *Coordinator {
	c := &Coordinator{
		bracketID: bracketID,
		store:     store,
		submitter: submitter,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit sends every pending result in a single call. On failure the overlay
// is left exactly as it was and nothing is retried. On success the submitted
// entries leave the overlay and the bracket is re-read once.
func (c *Coordinator) Submit(ctx context.Context) (*Report, error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		return nil, ErrSubmissionInFlight
	}
	defer c.inFlight.Store(false)

	entries := c.store.Snapshot()
	if len(entries) == 0 {
		return nil, ErrEmptySubmission
	}
	if err := c.validate(entries); err != nil {
		return nil, err
	}

	// once dispatched the batch runs to completion even if the viewer leaves
	outcome, err := c.submitter.SubmitResults(context.WithoutCancel(ctx), c.bracketID, entries)
	if err != nil {
		c.logger.Error("submission rejected", "bracket_id", c.bracketID, "entries", len(entries), "error", err)
		return nil, fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}

	c.store.Discard(entries)
	report := &Report{Submitted: entries}
	if outcome != nil {
		report.Signals = outcome.Signals
	}
	c.logger.Info("results submitted", "bracket_id", c.bracketID, "entries", len(entries), "signals", len(report.Signals))

	if c.notifier != nil && len(report.Signals) > 0 {
		c.notifier.Notify(ctx, c.bracketID, report.Signals)
	}
	if c.refresher != nil {
		if err := c.refresher.Refresh(ctx); err != nil {
			c.logger.Warn("refresh after submit failed", "bracket_id", c.bracketID, "error", err)
			report.RefreshErr = err
		}
	}
	return report, nil
}

func (c *Coordinator) validate(entries []bracket.ResultEntry) error {
	var known map[int]bracket.Match
	if c.confirmed != nil {
		matches := c.confirmed()
		known = make(map[int]bracket.Match, len(matches))
		for _, m := range matches {
			known[m.MatchNumber] = m
		}
	}

	var problems []EntryProblem
	for _, e := range entries {
		if reason := check(e, known); reason != "" {
			problems = append(problems, EntryProblem{MatchNumber: e.MatchNumber, Reason: reason})
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func check(e bracket.ResultEntry, known map[int]bracket.Match) string {
	if e.MatchNumber <= 0 {
		return "match number must be positive"
	}
	if !e.Result.Valid() {
		return fmt.Sprintf("unknown result %q", e.Result)
	}
	if known == nil {
		return ""
	}
	m, ok := known[e.MatchNumber]
	switch {
	case !ok:
		return "match is not part of this bracket"
	case m.Decided():
		return "match already has a result"
	case !m.Ready():
		return "match is still waiting for a participant"
	}
	return ""
}
