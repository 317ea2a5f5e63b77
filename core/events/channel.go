package events

import (
	"context"
	"sync"

	"github.com/jask/routesync/core/route"
)

// Handler receives events synchronously, in subscription order.
type Handler func(Event)

type subscription struct {
	id   uint64
	kind Kind
	fn   Handler
}

// Channel is the event surface of one route (or of the navigator itself).
// Emit after Close is a no-op.
type Channel struct {
	owner route.ID

	mu     sync.Mutex
	nextID uint64
	subs   []subscription
	closed bool
	done   chan struct{}
}

// NewChannel returns an open channel owned by id.
func NewChannel(id route.ID) *Channel {
	return &Channel{owner: id, done: make(chan struct{})}
}

// Owner returns the route the channel belongs to.
func (c *Channel) Owner() route.ID { return c.owner }

// Subscribe registers fn for kind and returns a function that removes it.
func (c *Channel) Subscribe(kind Kind, fn Handler) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || fn == nil {
		return func() {}
	}
	c.nextID++
	id := c.nextID
	c.subs = append(c.subs, subscription{id: id, kind: kind, fn: fn})
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.subs {
			if s.id == id {
				c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

// Emit delivers an event of kind to every subscriber of that kind and
// reports whether the channel was still open.
func (c *Channel) Emit(kind Kind, payload any) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	targets := make([]Handler, 0, len(c.subs))
	for _, s := range c.subs {
		if s.kind == kind {
			targets = append(targets, s.fn)
		}
	}
	c.mu.Unlock()

	ev := Event{Kind: kind, RouteID: c.owner, Payload: payload}
	for _, fn := range targets {
		fn(ev)
	}
	return true
}

// Next blocks until an event of kind is emitted, the channel closes or ctx
// ends.
func (c *Channel) Next(ctx context.Context, kind Kind) (Event, error) {
	got := make(chan Event, 1)
	unsubscribe := c.Subscribe(kind, func(ev Event) {
		select {
		case got <- ev:
		default:
		}
	})
	defer unsubscribe()

	select {
	case ev := <-got:
		return ev, nil
	case <-c.done:
		return Event{}, route.NewError(route.CodeLibraryError, "next event", nil, "channel for route %s closed", c.owner.Short())
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

// Close drops all subscribers. It is safe to call more than once.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.subs = nil
	close(c.done)
}

// Done is closed when the channel is closed.
func (c *Channel) Done() <-chan struct{} { return c.done }

// Closed reports whether Close has been called.
func (c *Channel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
