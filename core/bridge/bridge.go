// Package bridge turns peer notifications into store mutations and per-route
// event deliveries.
package bridge

import (
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/jask/routesync/core/events"
	"github.com/jask/routesync/core/peer"
	"github.com/jask/routesync/core/route"
	"github.com/jask/routesync/core/stack"
)

const (
	DefaultRemovedTTL  = 2 * time.Second
	DefaultRemovedSize = 256
)

// Config tunes de-duplication.
type Config struct {
	Handle      route.Handle
	RemovedTTL  time.Duration
	RemovedSize int
	Logger      *slog.Logger
}

// Bridge implements peer.Listener for one navigator handle. Events addressed
// to another handle are dropped.
type Bridge struct {
	handle route.Handle
	store  *stack.Store
	routes *events.Registry
	nav    *events.Channel
	log    *slog.Logger

	mu            sync.Mutex
	dedupMu       sync.Mutex
	waiters       map[route.ID]*Registration
	constants     peer.Constants
	haveConstants bool

	// ids whose store removal is done or already requested
	removed *expirable.LRU[route.ID, struct{}]
	// ids whose did-pop was already delivered
	popped *expirable.LRU[route.ID, struct{}]
	// acks that arrived before anyone waited for them
	early *expirable.LRU[route.ID, struct{}]
	// ids whose waiter was already resolved
	resolved *expirable.LRU[route.ID, struct{}]
}

var _ peer.Listener = (*Bridge)(nil)

// New wires a bridge to the store it may remove from, the route channel
// registry and the navigator-level channel.
func New(cfg Config, store *stack.Store, routes *events.Registry, nav *events.Channel) *Bridge {
	if cfg.RemovedTTL <= 0 {
		cfg.RemovedTTL = DefaultRemovedTTL
	}
	if cfg.RemovedSize <= 0 {
		cfg.RemovedSize = DefaultRemovedSize
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Bridge{
		handle:  cfg.Handle,
		store:   store,
		routes:  routes,
		nav:     nav,
		log:     log.With("handle", cfg.Handle.String()),
		waiters: make(map[route.ID]*Registration),
		removed: expirable.NewLRU[route.ID, struct{}](cfg.RemovedSize, nil, cfg.RemovedTTL),
		popped:  expirable.NewLRU[route.ID, struct{}](cfg.RemovedSize, nil, cfg.RemovedTTL),
		early:   expirable.NewLRU[route.ID, struct{}](cfg.RemovedSize, nil, cfg.RemovedTTL),

		resolved: expirable.NewLRU[route.ID, struct{}](cfg.RemovedSize, nil, cfg.RemovedTTL),
	}
}

// Handle returns the navigator handle the bridge answers to.
func (b *Bridge) Handle() route.Handle { return b.handle }

func (b *Bridge) accept(h route.Handle, what string) bool {
	if h == b.handle {
		return true
	}
	b.log.Debug("bridge: dropping event for foreign handle", "event", what, "target", h.String())
	return false
}

// ExpectRemoval marks id as being removed by a local command, so a
// user-initiated pop racing with it does not queue a second removal.
func (b *Bridge) ExpectRemoval(id route.ID) {
	b.removed.Add(id, struct{}{})
}

// ForgetRemoval undoes ExpectRemoval after the local command failed.
func (b *Bridge) ForgetRemoval(id route.ID) {
	b.removed.Remove(id)
}

// MarkRemoved records ids that left the store.
func (b *Bridge) MarkRemoved(ids ...route.ID) {
	for _, id := range ids {
		b.removed.Add(id, struct{}{})
	}
}

// OnRouteWillPop forwards a will-pop to the route's channel.
func (b *Bridge) OnRouteWillPop(h route.Handle, ev peer.PopEvent) {
	if !b.accept(h, "will-pop") {
		return
	}
	id, ok := b.resolve(ev)
	if !ok {
		return
	}
	b.emit(id, events.RouteWillPop, popPayload(ev))
}

// OnRouteDidPop delivers did-pop at most once per route and, when the user
// triggered the pop on the peer side, removes the record from the store
// without going through the dispatcher.
func (b *Bridge) OnRouteDidPop(h route.Handle, ev peer.PopEvent) {
	if !b.accept(h, "did-pop") {
		return
	}
	id, ok := b.resolve(ev)
	if !ok {
		b.log.Debug("bridge: did-pop for unknown route", "key", ev.RouteKey, "index", ev.RouteIndex)
		return
	}

	if b.firstTime(b.popped, id) {
		b.emit(id, events.RouteDidPop, popPayload(ev))
	}

	if !ev.UserInitiated {
		return
	}
	if !b.firstTime(b.removed, id) {
		b.log.Debug("bridge: user pop already handled", "route", id.Short())
		return
	}
	b.log.Info("bridge: peer-initiated pop", "route", id.Short(), "key", ev.RouteKey, "index", ev.RouteIndex)
	b.store.Remove(route.Match{ID: id, Key: ev.RouteKey, Index: route.At(ev.RouteIndex)})
}

// OnRouteEvent fans a lifecycle or UI event out to the route's channel.
func (b *Bridge) OnRouteEvent(h route.Handle, id route.ID, kind events.Kind, payload any) {
	if !b.accept(h, kind.String()) {
		return
	}
	switch kind {
	case events.RouteWillPop, events.RouteDidPop:
		p, _ := payload.(events.PopPayload)
		ev := peer.PopEvent{ID: id, RouteKey: p.RouteKey, RouteIndex: p.RouteIndex, UserInitiated: p.UserInitiated}
		if kind == events.RouteWillPop {
			b.OnRouteWillPop(h, ev)
		} else {
			b.OnRouteDidPop(h, ev)
		}
		return
	}
	if !kind.IsRouteKind() {
		b.log.Warn("bridge: navigator event sent as route event", "kind", kind.String())
		return
	}
	b.emit(id, kind, payload)
}

// OnPressNavBarLeftItem forwards a left bar item press.
func (b *Bridge) OnPressNavBarLeftItem(h route.Handle, id route.ID, p events.PressPayload) {
	b.OnRouteEvent(h, id, events.PressNavBarLeftItem, p)
}

// OnPressNavBarRightItem forwards a right bar item press.
func (b *Bridge) OnPressNavBarRightItem(h route.Handle, id route.ID, p events.PressPayload) {
	b.OnRouteEvent(h, id, events.PressNavBarRightItem, p)
}

func (b *Bridge) OnNavigatorWillShow(h route.Handle, ev events.ShowPayload) {
	if b.accept(h, "will-show") {
		b.nav.Emit(events.NavigatorWillShowRoute, ev)
	}
}

func (b *Bridge) OnNavigatorDidShow(h route.Handle, ev events.ShowPayload) {
	if b.accept(h, "did-show") {
		b.nav.Emit(events.NavigatorDidShowRoute, ev)
	}
}

// OnUIConstantsChanged caches c for Constants and notifies the navigator.
func (b *Bridge) OnUIConstantsChanged(h route.Handle, c peer.Constants) {
	if !b.accept(h, "constants-changed") {
		return
	}
	b.SetConstants(c)
	b.nav.Emit(events.NavigatorConstantsChanged, c)
}

func (b *Bridge) OnCustomCommand(h route.Handle, key string, data map[string]any) {
	if b.accept(h, "custom-command") {
		b.nav.Emit(events.NavigatorCustomCommand, events.CustomCommandPayload{CommandKey: key, Data: data})
	}
}

// Constants returns the last constants reported by the peer.
func (b *Bridge) Constants() (peer.Constants, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.constants, b.haveConstants
}

// SetConstants stores c as the current constants.
func (b *Bridge) SetConstants(c peer.Constants) {
	b.mu.Lock()
	b.constants, b.haveConstants = c, true
	b.mu.Unlock()
}

func (b *Bridge) resolve(ev peer.PopEvent) (route.ID, bool) {
	if ev.ID != "" {
		return ev.ID, true
	}
	rec, ok := b.store.FindMatching(route.Match{Key: ev.RouteKey, Index: route.At(ev.RouteIndex)})
	if !ok {
		return "", false
	}
	return rec.ID, true
}

func (b *Bridge) emit(id route.ID, kind events.Kind, payload any) {
	ch, ok := b.routes.Lookup(id)
	if !ok {
		return
	}
	ch.Emit(kind, payload)
}

// firstTime adds id to set and reports whether it was absent.
func (b *Bridge) firstTime(set *expirable.LRU[route.ID, struct{}], id route.ID) bool {
	b.dedupMu.Lock()
	defer b.dedupMu.Unlock()
	if set.Contains(id) {
		return false
	}
	set.Add(id, struct{}{})
	return true
}

func popPayload(ev peer.PopEvent) events.PopPayload {
	return events.PopPayload{RouteKey: ev.RouteKey, RouteIndex: ev.RouteIndex, UserInitiated: ev.UserInitiated}
}
