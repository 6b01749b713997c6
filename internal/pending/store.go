// Package pending holds results a viewer has proposed but not yet submitted.
// It is purely local state and never talks to the ledger.
package pending

import (
	"maps"
	"slices"
	"sync"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
)

type Store struct {
	mu      sync.RWMutex
	entries map[int]bracket.Result
}

func New() *Store {
	return &Store{entries: make(map[int]bracket.Result)}
}

// Add records a proposal, replacing any earlier one for the same match.
func (s *Store) Add(matchNumber int, result bracket.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[matchNumber] = result
}

func (s *Store) Remove(matchNumber int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, matchNumber)
}

func (s *Store) Get(matchNumber int) (bracket.Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.entries[matchNumber]
	return r, ok
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.entries)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Snapshot returns a copy of the overlay ordered by match number.
func (s *Store) Snapshot() []bracket.ResultEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]bracket.ResultEntry, 0, len(s.entries))
	for _, n := range slices.Sorted(maps.Keys(s.entries)) {
		out = append(out, bracket.ResultEntry{MatchNumber: n, Result: s.entries[n]})
	}
	return out
}

// Discard drops the given entries, but only where the overlay still holds
// the same result. Proposals changed after the snapshot was taken survive.
func (s *Store) Discard(entries []bracket.ResultEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if cur, ok := s.entries[e.MatchNumber]; ok && cur == e.Result {
			delete(s.entries, e.MatchNumber)
		}
	}
}
