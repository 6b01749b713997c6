package pending

import (
	"sync"
	"testing"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/stretchr/testify/assert"
)

func TestAddOverwritesAndRemove(t *testing.T) {
	s := New()
	s.Add(3, bracket.ResultTeam1)
	s.Add(3, bracket.ResultTeam2)

	r, ok := s.Get(3)
	assert.True(t, ok)
	assert.Equal(t, bracket.ResultTeam2, r)
	assert.Equal(t, 1, s.Len())

	s.Remove(3)
	s.Remove(42)
	_, ok = s.Get(3)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestSnapshotIsSortedCopy(t *testing.T) {
	s := New()
	s.Add(7, bracket.ResultTeam1)
	s.Add(2, bracket.ResultTeam2)
	s.Add(5, bracket.ResultTeam1)

	snap := s.Snapshot()
	assert.Equal(t, []bracket.ResultEntry{
		{MatchNumber: 2, Result: bracket.ResultTeam2},
		{MatchNumber: 5, Result: bracket.ResultTeam1},
		{MatchNumber: 7, Result: bracket.ResultTeam1},
	}, snap)

	snap[0].Result = bracket.ResultTeam1
	r, _ := s.Get(2)
	assert.Equal(t, bracket.ResultTeam2, r)
}

func TestDiscardKeepsLaterEdits(t *testing.T) {
	s := New()
	s.Add(1, bracket.ResultTeam1)
	s.Add(2, bracket.ResultTeam1)
	snap := s.Snapshot()

	s.Add(2, bracket.ResultTeam2)
	s.Add(3, bracket.ResultTeam1)
	s.Discard(snap)

	assert.Equal(t, []bracket.ResultEntry{
		{MatchNumber: 2, Result: bracket.ResultTeam2},
		{MatchNumber: 3, Result: bracket.ResultTeam1},
	}, s.Snapshot())
}

func TestClear(t *testing.T) {
	s := New()
	s.Add(1, bracket.ResultTeam1)
	s.Clear()
	assert.Empty(t, s.Snapshot())
}

func TestStoresAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.Add(1, bracket.ResultTeam1)

	assert.Equal(t, 1, a.Len())
	assert.Equal(t, 0, b.Len())
}

func TestConcurrentAccess(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Add(i%10+1, bracket.ResultTeam1)
			_ = s.Snapshot()
			s.Remove(i%10 + 1)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, s.Len(), 10)
}
