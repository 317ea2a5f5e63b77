// Package peer specifies the boundary with the rendering layer that owns the
// real navigation stack. Implementations live outside this module; sim holds
// an in-memory one.
package peer

import (
	"context"
	"time"

	"github.com/jask/routesync/core/route"
)

// Peer is the command surface the native stack exposes. Every call may block
// until the peer acknowledges; callers bound it with ctx.
type Peer interface {
	Push(ctx context.Context, h route.Handle, id route.ID, opts Options) error
	Pop(ctx context.Context, h route.Handle, opts Options) (PopResult, error)
	PopToRoot(ctx context.Context, h route.Handle, opts Options) error
	RemoveRoute(ctx context.Context, h route.Handle, target Target, opts Options) error
	RemoveRoutes(ctx context.Context, h route.Handle, targets []Target, opts Options) error
	ReplaceRoute(ctx context.Context, h route.Handle, index int, id route.ID, opts Options) error
	InsertRoute(ctx context.Context, h route.Handle, index int, id route.ID, opts Options) error
	SetRoutes(ctx context.Context, h route.Handle, plan Plan, opts Options) error
	SetRouteOptions(ctx context.Context, h route.Handle, id route.ID, opts route.Options) error
	SetNavigationBarHidden(ctx context.Context, h route.Handle, hidden, animated bool) error
	SendCustomCommand(ctx context.Context, h route.Handle, key string, data map[string]any) (map[string]any, error)
	Constants(ctx context.Context, h route.Handle) (Constants, error)
}

// Renderer receives route content. Once the peer has attached the content to
// a native view it answers with Listener.OnRouteRegistered.
type Renderer interface {
	Mount(ctx context.Context, h route.Handle, rec route.Record, content any) error
	Unmount(h route.Handle, id route.ID)
}

// PopResult identifies the record the peer removed.
type PopResult struct {
	RouteKey   string
	RouteIndex int
}

// Target addresses one record for removal.
type Target struct {
	ID    route.ID
	Index int
}

// Constants are the layout metrics the peer reports.
type Constants struct {
	NavBarHeight    float64
	StatusBarHeight float64
	SafeAreaTop     float64
	SafeAreaBottom  float64
}

// Transition describes a push or pop animation.
type Transition struct {
	Type     string
	Duration time.Duration
}

// Options are the per-command knobs.
type Options struct {
	Animated   bool
	Transition *Transition
}

// Option mutates Options.
type Option func(*Options)

// Animated toggles the transition animation (on by default).
func Animated(on bool) Option {
	return func(o *Options) { o.Animated = on }
}

// WithTransition sets a custom transition.
func WithTransition(t Transition) Option {
	return func(o *Options) { o.Transition = &t }
}

// Build applies opts over the defaults.
func Build(opts ...Option) Options {
	o := Options{Animated: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
