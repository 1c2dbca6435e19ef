// Package loading tracks outstanding requests so a surface can show a
// loading indicator exactly while at least one request is in flight.
package loading

import "sync"

// Registry counts start/finish pairs per key. Visibility is the union over
// all keys: visible while any key has more starts than finishes. Finishes
// may arrive in any order relative to other keys' starts; only the pairing
// per key matters.
type Registry struct {
	mu       sync.Mutex
	pending  map[string]int
	watchers []func(visible bool)
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{pending: make(map[string]int)}
}

// Start records an outstanding request under key.
func (r *Registry) Start(key string) {
	r.mu.Lock()
	wasVisible := len(r.pending) > 0
	r.pending[key]++
	r.notifyLocked(wasVisible)
	r.mu.Unlock()
}

// Finish records the completion of a request under key. An unmatched finish
// is ignored.
func (r *Registry) Finish(key string) {
	r.mu.Lock()
	wasVisible := len(r.pending) > 0
	if n, ok := r.pending[key]; ok {
		if n <= 1 {
			delete(r.pending, key)
		} else {
			r.pending[key] = n - 1
		}
	}
	r.notifyLocked(wasVisible)
	r.mu.Unlock()
}

// Visible reports whether any request is outstanding.
func (r *Registry) Visible() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending) > 0
}

// Pending returns the number of outstanding requests for key.
func (r *Registry) Pending(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending[key]
}

// Watch registers fn to run whenever overall visibility flips. It is called
// with the registry lock held; watchers must not call back into the
// registry.
func (r *Registry) Watch(fn func(visible bool)) {
	r.mu.Lock()
	r.watchers = append(r.watchers, fn)
	r.mu.Unlock()
}

func (r *Registry) notifyLocked(wasVisible bool) {
	nowVisible := len(r.pending) > 0
	if nowVisible == wasVisible {
		return
	}
	for _, fn := range r.watchers {
		fn(nowVisible)
	}
}
