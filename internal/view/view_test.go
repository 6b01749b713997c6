package view

import (
	"context"
	"slices"
	"sync"
	"testing"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/AdamBeresnev/bracket-engine/internal/graph"
	"github.com/AdamBeresnev/bracket-engine/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLedger serves matches page by page and records submissions.
type fakeLedger struct {
	mu       sync.Mutex
	matches  []bracket.Match
	requests int
	batches  [][]bracket.ResultEntry
	onPage   func(call int)
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{matches: []bracket.Match{
		{MatchNumber: 1, Team1: utils.Ptr("A"), Team2: utils.Ptr("B"), NextMatchWinner: utils.Ptr(3), NextMatchLoser: utils.Ptr(4)},
		{MatchNumber: 2, Team1: utils.Ptr("C"), Team2: utils.Ptr("D"), NextMatchWinner: utils.Ptr(3), NextMatchLoser: utils.Ptr(4)},
		{MatchNumber: 3},
		{MatchNumber: 4, IsLosersBracket: true},
	}}
}

func (l *fakeLedger) GetPage(_ context.Context, _ string, after *int, limit int) ([]bracket.Match, error) {
	l.mu.Lock()
	l.requests++
	call := l.requests
	hook := l.onPage
	var page []bracket.Match
	for _, m := range l.matches {
		if m.MatchNumber > utils.OrZero(after) && len(page) < limit {
			page = append(page, m)
		}
	}
	l.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	return page, nil
}

func (l *fakeLedger) SubmitResults(_ context.Context, _ string, entries []bracket.ResultEntry) (*bracket.Outcome, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.batches = append(l.batches, slices.Clone(entries))
	for _, e := range entries {
		for i := range l.matches {
			if l.matches[i].MatchNumber == e.MatchNumber {
				l.matches[i].Result = utils.Ptr(e.Result)
			}
		}
	}
	return &bracket.Outcome{}, nil
}

func (l *fakeLedger) Requests() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.requests
}

func loadedView(t *testing.T, l *fakeLedger, opts ...Option) *View {
	t.Helper()
	v := New("b1", l, l, append([]Option{WithPageSize(2)}, opts...)...)
	t.Cleanup(v.Close)
	require.NoError(t, v.Load(context.Background()))
	return v
}

func TestLoadBuildsGraphAndLayout(t *testing.T) {
	v := loadedView(t, newFakeLedger())

	snap := v.Snapshot()
	require.NoError(t, snap.Err)
	assert.True(t, snap.Done)
	assert.Equal(t, 4, snap.Graph.Len())
	require.NotNil(t, snap.Layout)
	assert.Len(t, snap.Layout.Nodes, 4)
	assert.Empty(t, snap.Dangling)
}

func TestViewsKeepSeparateOverlays(t *testing.T) {
	l := newFakeLedger()
	a := loadedView(t, l)
	b := loadedView(t, l)

	require.NoError(t, a.Propose(1, bracket.ResultTeam1))

	assert.Len(t, a.Snapshot().Pending, 1)
	assert.Empty(t, b.Snapshot().Pending)
}

func TestPendingEditsDoNotChangeLayout(t *testing.T) {
	l := newFakeLedger()
	v := loadedView(t, l)
	before := v.Snapshot()
	requests := l.Requests()

	require.NoError(t, v.Propose(1, bracket.ResultTeam1))
	require.NoError(t, v.Propose(2, bracket.ResultTeam2))
	v.Withdraw(1)
	require.NoError(t, v.Propose(1, bracket.ResultTeam2))

	after := v.Snapshot()
	assert.Len(t, after.Pending, 2)
	assert.Equal(t, before.Layout, after.Layout)
	assert.Equal(t, before.Graph.Edges(), after.Graph.Edges())
	assert.Equal(t, before.Matches, after.Matches)
	assert.Equal(t, requests, l.Requests(), "pending edits never reach the ledger")
}

func TestProposeRejectsBadInput(t *testing.T) {
	v := loadedView(t, newFakeLedger())

	assert.ErrorIs(t, v.Propose(9, bracket.ResultTeam1), ErrUnknownMatch)
	assert.ErrorIs(t, v.Propose(1, "draw"), bracket.ErrInvalidResult)

	require.NoError(t, v.Propose(1, bracket.ResultTeam2))
	v.Withdraw(1)
	_, ok := v.Snapshot().PendingResult(1)
	assert.False(t, ok)
}

func TestSubmitTriggersExactlyOneRefetch(t *testing.T) {
	l := newFakeLedger()
	v := loadedView(t, l)
	require.Equal(t, 3, l.Requests(), "pages of 2, 2 and an empty one")

	require.NoError(t, v.Propose(1, bracket.ResultTeam1))
	require.NoError(t, v.Propose(2, bracket.ResultTeam2))

	report, err := v.Submit(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.Submitted, 2)

	require.Len(t, l.batches, 1)
	assert.Len(t, l.batches[0], 2)
	assert.Equal(t, 6, l.Requests(), "one full chain after the submit")

	snap := v.Snapshot()
	assert.Empty(t, snap.Pending)
	m, ok := snap.Graph.Node(1)
	require.True(t, ok)
	assert.Equal(t, bracket.ResultTeam1, *m.Result)
}

func TestExternalModifiedClearsOverlay(t *testing.T) {
	l := newFakeLedger()
	v := loadedView(t, l)
	require.NoError(t, v.Propose(1, bracket.ResultTeam1))

	l.mu.Lock()
	l.matches[1].Result = utils.Ptr(bracket.ResultTeam1)
	l.mu.Unlock()

	require.NoError(t, v.ExternalModified(context.Background()))

	snap := v.Snapshot()
	assert.Empty(t, snap.Pending)
	m, _ := snap.Graph.Node(2)
	assert.NotNil(t, m.Result)
}

func TestCloseStopsFetching(t *testing.T) {
	l := newFakeLedger()
	v := New("b1", l, l, WithPageSize(1))
	l.onPage = func(call int) {
		if call == 1 {
			v.Close()
		}
	}

	err := v.Load(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, l.Requests())
	assert.Equal(t, 0, v.Snapshot().Graph.Len())

	_, err = v.Submit(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestDanglingEdgesAreExposed(t *testing.T) {
	l := newFakeLedger()
	l.matches[3].NextMatchWinner = utils.Ptr(99)
	v := loadedView(t, l)

	snap := v.Snapshot()
	assert.NoError(t, snap.Err)
	assert.Equal(t, []graph.Edge{{Source: 4, Target: 99, Kind: graph.EdgeRedemption}}, snap.Dangling)
	assert.Len(t, snap.Layout.Edges, 5)
}

func TestShareQueryRoundTrip(t *testing.T) {
	testCases := []struct {
		state ShareState
		query string
	}{
		{ShareState{}, ""},
		{ShareState{FullBracket: true}, "view=full"},
		{ShareState{FullBracket: true, Highlight: 3}, "match=3&view=full"},
		{ShareState{Highlight: 7}, "match=7"},
	}
	for _, tc := range testCases {
		t.Run(tc.query, func(t *testing.T) {
			assert.Equal(t, tc.query, ShareQuery(tc.state))
			assert.Equal(t, tc.state, ParseShareQuery(tc.query))
		})
	}

	assert.Equal(t, ShareState{}, ParseShareQuery("view=compact&match=-2"))
	assert.Equal(t, ShareState{}, ParseShareQuery("%zz"))
}
