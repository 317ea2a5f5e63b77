package bridge

import (
	"sync"

	"github.com/jask/routesync/core/route"
)

// Registration is a one-shot waiter for a route-registered ack.
type Registration struct {
	ID         route.ID
	Generation uint64

	done chan struct{}
	once sync.Once
}

// Done is closed when the ack arrives.
func (r *Registration) Done() <-chan struct{} { return r.done }

func (r *Registration) resolve() { r.once.Do(func() { close(r.done) }) }

// AwaitRegistration registers interest in the ack for id. It must be called
// before the record is mounted; an ack that still arrives first is honoured.
func (b *Bridge) AwaitRegistration(id route.ID, gen uint64) *Registration {
	reg := &Registration{ID: id, Generation: gen, done: make(chan struct{})}
	if b.early.Remove(id) {
		reg.resolve()
		return reg
	}
	b.mu.Lock()
	b.waiters[id] = reg
	b.mu.Unlock()
	return reg
}

// CancelRegistration forgets reg; a later ack for it is ignored.
func (b *Bridge) CancelRegistration(reg *Registration) {
	if reg == nil {
		return
	}
	b.mu.Lock()
	if cur, ok := b.waiters[reg.ID]; ok && cur == reg {
		delete(b.waiters, reg.ID)
	}
	b.mu.Unlock()
}

// OnRouteRegistered resolves the waiter for id at most once.
func (b *Bridge) OnRouteRegistered(h route.Handle, id route.ID) {
	if !b.accept(h, "route-registered") {
		return
	}
	b.mu.Lock()
	reg, ok := b.waiters[id]
	delete(b.waiters, id)
	b.mu.Unlock()

	if !ok {
		if b.removed.Contains(id) {
			b.log.Debug("bridge: late registration ack ignored", "route", id.Short())
			return
		}
		if b.resolved.Contains(id) {
			b.log.Debug("bridge: repeated registration ack ignored", "route", id.Short())
			return
		}
		b.early.Add(id, struct{}{})
		return
	}
	b.resolved.Add(id, struct{}{})
	b.log.Debug("bridge: route registered", "route", id.Short(), "generation", reg.Generation)
	reg.resolve()
}

// Waiting returns the number of outstanding registration waiters.
func (b *Bridge) Waiting() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.waiters)
}
