// Package navigator is the upstream surface: one Navigator per native stack,
// composing the store, the bridge, the dispatcher and the diff engine behind
// a single handle.
package navigator

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jask/routesync/core/bridge"
	"github.com/jask/routesync/core/diff"
	"github.com/jask/routesync/core/dispatch"
	"github.com/jask/routesync/core/events"
	"github.com/jask/routesync/core/peer"
	"github.com/jask/routesync/core/route"
	"github.com/jask/routesync/core/stack"
)

// Hooks expose internal counters to metrics. All are optional.
type Hooks struct {
	StackDepth    func(depth int)
	Drained       func(criteria, removed int)
	OptionsUpdate func(sent bool)
}

// Config collects the per-component settings.
type Config struct {
	Dispatch       dispatch.Config
	Store          stack.Config
	Bridge         bridge.Config
	DiffProperties diff.PropertyMap
	DiffStrict     bool
	Observers      []dispatch.Observer
	Hooks          Hooks
	Logger         *slog.Logger
}

// Navigator keeps one application-side stack in sync with one peer stack.
type Navigator struct {
	h         route.Handle
	cfg       Config
	log       *slog.Logger
	templates route.Templates
	peer      peer.Peer
	renderer  peer.Renderer

	store    *stack.Store
	routes   *events.Registry
	nav      *events.Channel
	bridge   *bridge.Bridge
	dispatch *dispatch.Dispatcher
	diff     *diff.Engine

	mu      sync.Mutex
	started bool
	closed  bool
}

// New wires a navigator for templates against p and r. If p accepts a
// listener at runtime the navigator's bridge is attached to it.
func New(cfg Config, templates route.Templates, p peer.Peer, r peer.Renderer) *Navigator {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	n := &Navigator{
		h:         route.NewHandle(),
		cfg:       cfg,
		templates: templates,
		peer:      p,
		renderer:  r,
		routes:    events.NewRegistry(),
		nav:       events.NewChannel(""),
	}
	n.log = log.With("handle", n.h.String())

	storeCfg := cfg.Store
	storeCfg.Logger = n.log
	n.store = stack.New(storeCfg, stack.Hooks{
		Added:   n.recordAdded,
		Removed: n.recordsRemoved,
		Drained: cfg.Hooks.Drained,
	})

	bridgeCfg := cfg.Bridge
	bridgeCfg.Handle = n.h
	bridgeCfg.Logger = n.log
	n.bridge = bridge.New(bridgeCfg, n.store, n.routes, n.nav)

	dispatchCfg := cfg.Dispatch
	dispatchCfg.Logger = n.log
	n.dispatch = dispatch.New(dispatchCfg, dispatch.Deps{
		Handle:    n.h,
		Store:     n.store,
		Bridge:    n.bridge,
		Peer:      p,
		Renderer:  r,
		Templates: templates,
		Observers: cfg.Observers,
	})

	n.diff = diff.New(cfg.DiffProperties, diff.WithStrict(cfg.DiffStrict), diff.WithLogger(n.log))

	if a, ok := p.(peer.Attacher); ok {
		a.Attach(n.bridge)
	}
	return n
}

func (n *Navigator) recordAdded(rec route.Record) {
	n.routes.Open(rec.ID)
	n.depthChanged()
}

func (n *Navigator) recordsRemoved(recs []route.Record) {
	for _, rec := range recs {
		n.bridge.MarkRemoved(rec.ID)
		n.routes.Close(rec.ID)
		if !rec.NativeOwned && n.renderer != nil {
			n.renderer.Unmount(n.h, rec.ID)
		}
	}
	n.depthChanged()
}

func (n *Navigator) depthChanged() {
	if n.cfg.Hooks.StackDepth != nil {
		n.cfg.Hooks.StackDepth(n.store.Len())
	}
}

// Start mounts the initial routes, waits for each to register and hands the
// peer its first stack.
func (n *Navigator) Start(ctx context.Context, initial []route.Item, opts ...peer.Option) ([]route.Record, error) {
	if len(initial) == 0 {
		return nil, route.NewError(route.CodeInvalidArguments, "start", nil, "no initial routes")
	}
	n.mu.Lock()
	switch {
	case n.closed:
		n.mu.Unlock()
		return nil, route.NewError(route.CodeClosed, "start", nil, "navigator closed")
	case n.started:
		n.mu.Unlock()
		return nil, route.NewError(route.CodeLibraryError, "start", nil, "navigator already started")
	}
	n.started = true
	n.mu.Unlock()

	seed := make([]route.Record, len(initial))
	for i, item := range initial {
		seed[i] = route.Record{Key: item.Key, Props: item.Props, Options: item.Options}
	}
	recs, err := n.dispatch.SetRoutes(ctx, func([]route.Record) []route.Record { return seed }, opts...)
	if err != nil {
		n.mu.Lock()
		n.started = false
		n.mu.Unlock()
		return nil, err
	}

	if c, err := n.fetchConstants(ctx); err != nil {
		n.log.Warn("navigator: constants unavailable at start", "err", err)
	} else {
		n.bridge.SetConstants(c)
	}
	n.log.Info("navigator: started", "routes", len(recs))
	return recs, nil
}

// Close shuts the navigator down. Channels are closed and pending commands
// fail with Closed.
func (n *Navigator) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	n.mu.Unlock()

	n.dispatch.Close()
	n.store.Close()
	n.routes.CloseAll()
	n.nav.Close()
	n.log.Info("navigator: closed")
}

// Handle returns the opaque identity threaded through peer calls.
func (n *Navigator) Handle() route.Handle { return n.h }

// Bridge returns the listener the peer must deliver events to.
func (n *Navigator) Bridge() *bridge.Bridge { return n.bridge }

// Templates returns the registered route templates.
func (n *Navigator) Templates() route.Templates { return n.templates }

// Status returns the dispatcher status.
func (n *Navigator) Status() dispatch.Status { return n.dispatch.Status() }

// Stale returns the number of late peer results discarded so far.
func (n *Navigator) Stale() int64 { return n.dispatch.Stale() }

// Events returns the channel of a live route.
func (n *Navigator) Events(id route.ID) (*events.Channel, bool) { return n.routes.Lookup(id) }

// NavigatorEvents returns the channel for show, constants and custom command
// events.
func (n *Navigator) NavigatorEvents() *events.Channel { return n.nav }

// ActiveRoutes returns the current stack, bottom first.
func (n *Navigator) ActiveRoutes() []route.Record { return n.store.Snapshot() }

// FindMatching returns the first record matching every field set on m.
func (n *Navigator) FindMatching(m route.Match) (route.Record, bool) {
	return n.store.FindMatching(m)
}

// GetMatchingRouteStackItem is FindMatching returning the caller-facing item.
func (n *Navigator) GetMatchingRouteStackItem(m route.Match) (route.Item, bool) {
	rec, ok := n.store.FindMatching(m)
	if !ok {
		return route.Item{}, false
	}
	return rec.Item(), true
}

func (n *Navigator) Push(ctx context.Context, item route.Item, opts ...peer.Option) (route.Record, error) {
	return n.dispatch.Push(ctx, item, opts...)
}

func (n *Navigator) Pop(ctx context.Context, opts ...peer.Option) error {
	return n.dispatch.Pop(ctx, opts...)
}

func (n *Navigator) PopToRoot(ctx context.Context, opts ...peer.Option) error {
	return n.dispatch.PopToRoot(ctx, opts...)
}

func (n *Navigator) RemoveRoute(ctx context.Context, index int, opts ...peer.Option) error {
	return n.dispatch.RemoveRoute(ctx, index, opts...)
}

func (n *Navigator) RemoveRoutes(ctx context.Context, indices []int, opts ...peer.Option) error {
	return n.dispatch.RemoveRoutes(ctx, indices, opts...)
}

func (n *Navigator) ReplaceRoute(ctx context.Context, index int, item route.Item, opts ...peer.Option) (route.Record, error) {
	return n.dispatch.ReplaceRoute(ctx, index, item, opts...)
}

func (n *Navigator) InsertRoute(ctx context.Context, item route.Item, index int, opts ...peer.Option) (route.Record, error) {
	return n.dispatch.InsertRoute(ctx, item, index, opts...)
}

func (n *Navigator) SetRoutes(ctx context.Context, transform dispatch.Transform, opts ...peer.Option) ([]route.Record, error) {
	return n.dispatch.SetRoutes(ctx, transform, opts...)
}

func (n *Navigator) ReplaceCurrentRoute(ctx context.Context, item route.Item, opts ...peer.Option) (route.Record, error) {
	return n.dispatch.ReplaceCurrentRoute(ctx, item, opts...)
}

func (n *Navigator) ReplacePreviousRoute(ctx context.Context, item route.Item, opts ...peer.Option) (route.Record, error) {
	return n.dispatch.ReplacePreviousRoute(ctx, item, opts...)
}

func (n *Navigator) RemovePreviousRoute(ctx context.Context, opts ...peer.Option) error {
	return n.dispatch.RemovePreviousRoute(ctx, opts...)
}

func (n *Navigator) RemoveAllPrevRoutes(ctx context.Context, opts ...peer.Option) error {
	return n.dispatch.RemoveAllPrevRoutes(ctx, opts...)
}
