package engine

import (
	"sync"

	"github.com/roach88/tuplespace/internal/term"
)

// Installs is the process-wide registry of standing continuations.
// Entries are added by Install and replayed in registration order after
// every reset. Removal exists only to roll back a reservation whose store
// write failed; a successfully registered install stays for the life of
// the process.
//
// The registry is an explicitly owned component of the engine, not a
// hidden global - construct one per engine.
type Installs struct {
	mu     sync.RWMutex
	order  []term.Install
	groups map[string]struct{}
}

// NewInstalls creates an empty registry.
func NewInstalls() *Installs {
	return &Installs{groups: make(map[string]struct{})}
}

// Add registers an install. At most one install per channel group; a second
// registration for the same group reports ok=false.
func (r *Installs) Add(ins term.Install) (ok bool) {
	key := term.GroupKey(ins.Channels)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.groups[key]; exists {
		return false
	}
	r.groups[key] = struct{}{}
	r.order = append(r.order, ins)
	return true
}

// Remove drops the install registered for the exact ordered channel group.
// Used only to undo a reservation after a failed store write.
func (r *Installs) Remove(group []term.Channel) {
	key := term.GroupKey(group)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.groups[key]; !exists {
		return
	}
	delete(r.groups, key)
	for i, ins := range r.order {
		if term.GroupKey(ins.Channels) == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Has reports whether the exact ordered channel group already has an
// install.
func (r *Installs) Has(group []term.Channel) bool {
	key := term.GroupKey(group)

	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.groups[key]
	return exists
}

// All returns the installs in registration order. The slice is a copy.
func (r *Installs) All() []term.Install {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]term.Install, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered installs.
func (r *Installs) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
