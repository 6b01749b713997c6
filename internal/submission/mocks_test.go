package submission

import (
	"context"
	"slices"
	"sync"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
)

// MockSubmitter records every batch it receives
type MockSubmitter struct {
	mu      sync.Mutex
	Batches [][]bracket.ResultEntry
	Outcome *bracket.Outcome
	Err     error

	// When set, SubmitResults signals Started and waits for Release
	Started chan struct{}
	Release chan struct{}
}

func (m *MockSubmitter) SubmitResults(ctx context.Context, bracketID string, entries []bracket.ResultEntry) (*bracket.Outcome, error) {
	m.mu.Lock()
	m.Batches = append(m.Batches, slices.Clone(entries))
	m.mu.Unlock()

	if m.Started != nil {
		close(m.Started)
		<-m.Release
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Outcome, nil
}

func (m *MockSubmitter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Batches)
}

type MockRefresher struct {
	Calls int
	Err   error
}

func (m *MockRefresher) Refresh(ctx context.Context) error {
	m.Calls++
	return m.Err
}

type MockNotifier struct {
	BracketID string
	Signals   []bracket.Signal
}

func (m *MockNotifier) Notify(ctx context.Context, bracketID string, signals []bracket.Signal) {
	m.BracketID = bracketID
	m.Signals = append(m.Signals, signals...)
}
