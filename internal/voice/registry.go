package voice

import "sync"

// Registry is the in-memory channel -> owner map, the fast path for
// authorization checks. It is rebuilt from the store at startup and kept in
// sync on every mutating operation; the store remains the source of truth.
type Registry struct {
	mu     sync.RWMutex
	owners map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{owners: make(map[string]string)}
}

// Owner returns the recorded owner of a channel, if the channel is managed.
func (r *Registry) Owner(channelID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	owner, ok := r.owners[channelID]
	return owner, ok
}

// Set records or replaces the owner of a channel.
func (r *Registry) Set(channelID, ownerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.owners[channelID] = ownerID
}

// Remove forgets a channel.
func (r *Registry) Remove(channelID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.owners, channelID)
}

// Len returns the number of managed channels.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.owners)
}

// Snapshot returns a copy of the channel -> owner map.
func (r *Registry) Snapshot() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.owners))
	for ch, owner := range r.owners {
		out[ch] = owner
	}
	return out
}
