package view

import (
	"context"
	"sync"
	"time"
)

// Factory builds a fresh, unloaded view for a bracket.
type Factory func(bracketID string) *View

type registryKey struct {
	viewer  string
	bracket string
}

type registryEntry struct {
	view     *View
	lastUsed time.Time
}

// Registry hands every (viewer, bracket) pair its own View.
type Registry struct {
	factory Factory
	now     func() time.Time

	mu    sync.Mutex
	views map[registryKey]*registryEntry
}

func NewRegistry(factory Factory) *Registry {
	return &Registry{
		factory: factory,
		now:     time.Now,
		views:   make(map[registryKey]*registryEntry),
	}
}

// Get returns the viewer's view of a bracket, creating it on first use.
// created is true when the caller should start loading it.
func (r *Registry) Get(viewerID, bracketID string) (v *View, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := registryKey{viewer: viewerID, bracket: bracketID}
	if e, ok := r.views[key]; ok {
		e.lastUsed = r.now()
		return e.view, false
	}
	v = r.factory(bracketID)
	r.views[key] = &registryEntry{view: v, lastUsed: r.now()}
	return v, true
}

// Each calls fn for every view of a bracket, whoever owns it.
func (r *Registry) Each(bracketID string, fn func(*View)) {
	r.mu.Lock()
	var views []*View
	for key, e := range r.views {
		if key.bracket == bracketID {
			views = append(views, e.view)
		}
	}
	r.mu.Unlock()

	for _, v := range views {
		fn(v)
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

// Sweep closes and forgets views unused for longer than maxIdle.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-maxIdle)
	swept := 0
	for key, e := range r.views {
		if e.lastUsed.Before(cutoff) {
			e.view.Close()
			delete(r.views, key)
			swept++
		}
	}
	return swept
}

func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, e := range r.views {
		e.view.Close()
		delete(r.views, key)
	}
}

// RunSweeper sweeps every interval until ctx is done, then closes every view.
func (r *Registry) RunSweeper(ctx context.Context, interval, maxIdle time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.Sweep(maxIdle)
		case <-ctx.Done():
			r.CloseAll()
			return nil
		}
	}
}
