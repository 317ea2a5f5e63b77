package events

import (
	"sync"

	"github.com/jask/routesync/core/route"
)

// Registry maps live route ids to their channels.
type Registry struct {
	mu       sync.RWMutex
	channels map[route.ID]*Channel
}

func NewRegistry() *Registry {
	return &Registry{channels: make(map[route.ID]*Channel)}
}

// Open returns the channel for id, creating it if needed.
func (r *Registry) Open(id route.ID) *Channel {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ch, ok := r.channels[id]; ok {
		return ch
	}
	ch := NewChannel(id)
	r.channels[id] = ch
	return ch
}

// Lookup returns the channel for id if the route is still live.
func (r *Registry) Lookup(id route.ID) (*Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[id]
	return ch, ok
}

// Close closes and forgets the channel for id.
func (r *Registry) Close(id route.ID) {
	r.mu.Lock()
	ch, ok := r.channels[id]
	delete(r.channels, id)
	r.mu.Unlock()
	if ok {
		ch.Close()
	}
}

// CloseAll closes every channel.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	chans := r.channels
	r.channels = make(map[route.ID]*Channel)
	r.mu.Unlock()
	for _, ch := range chans {
		ch.Close()
	}
}

// Len returns the number of live channels.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}
