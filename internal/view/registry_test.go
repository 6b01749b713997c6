package view

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRegistryIsolatesViewers(t *testing.T) {
	l := newFakeLedger()
	r := NewRegistry(func(bracketID string) *View { return New(bracketID, l, l) })

	a, created := r.Get("alice", "b1")
	assert.True(t, created)
	again, created := r.Get("alice", "b1")
	assert.False(t, created)
	assert.Same(t, a, again)

	b, _ := r.Get("bob", "b1")
	assert.NotSame(t, a, b)
	r.Get("bob", "b2")

	count := 0
	r.Each("b1", func(*View) { count++ })
	assert.Equal(t, 2, count)
	assert.Equal(t, 3, r.Len())
}

func TestRegistrySweepClosesIdleViews(t *testing.T) {
	l := newFakeLedger()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r := NewRegistry(func(bracketID string) *View { return New(bracketID, l, l) })
	r.now = func() time.Time { return now }

	idle, _ := r.Get("alice", "b1")
	now = now.Add(time.Hour)
	r.Get("bob", "b1")

	assert.Equal(t, 1, r.Sweep(30*time.Minute))
	assert.Equal(t, 1, r.Len())
	assert.True(t, idle.isClosed())
}
