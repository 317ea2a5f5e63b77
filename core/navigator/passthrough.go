package navigator

import (
	"context"

	"github.com/jask/routesync/core/dispatch"
	"github.com/jask/routesync/core/peer"
	"github.com/jask/routesync/core/route"
)

// UpdateRouteOptions merges opts over the route's template defaults and sends
// them to the peer only when the diff engine finds a change. The update is
// queued behind in-flight commands. It reports whether anything was sent.
func (n *Navigator) UpdateRouteOptions(ctx context.Context, id route.ID, opts route.Options) (bool, error) {
	sent, err := n.dispatch.UpdateRouteOptions(ctx, id, opts, n.diff.Compare)
	if err != nil {
		return false, err
	}
	n.optionsUpdate(sent)
	return sent, nil
}

func (n *Navigator) optionsUpdate(sent bool) {
	if n.cfg.Hooks.OptionsUpdate != nil {
		n.cfg.Hooks.OptionsUpdate(sent)
	}
}

// SendCustomCommand forwards an application-defined command to the peer.
func (n *Navigator) SendCustomCommand(ctx context.Context, key string, data map[string]any) (map[string]any, error) {
	var out map[string]any
	err := n.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		out, err = n.peer.SendCustomCommand(ctx, n.h, key, data)
		return err
	})
	if err != nil {
		return nil, route.NewError(route.CodeCommandFailed, "custom command", err, "%q", key)
	}
	return out, nil
}

func (n *Navigator) SetNavigationBarHidden(ctx context.Context, hidden, animated bool) error {
	err := n.withTimeout(ctx, func(ctx context.Context) error {
		return n.peer.SetNavigationBarHidden(ctx, n.h, hidden, animated)
	})
	if err != nil {
		return route.NewError(route.CodeCommandFailed, "set navigation bar hidden", err, "")
	}
	return nil
}

// Constants returns the cached layout metrics, asking the peer when nothing
// has been reported yet.
func (n *Navigator) Constants(ctx context.Context) (peer.Constants, error) {
	if c, ok := n.bridge.Constants(); ok {
		return c, nil
	}
	c, err := n.fetchConstants(ctx)
	if err != nil {
		return peer.Constants{}, route.NewError(route.CodeCommandFailed, "constants", err, "")
	}
	n.bridge.SetConstants(c)
	return c, nil
}

func (n *Navigator) fetchConstants(ctx context.Context) (peer.Constants, error) {
	var c peer.Constants
	err := n.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		c, err = n.peer.Constants(ctx, n.h)
		return err
	})
	return c, err
}

func (n *Navigator) withTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	timeout := n.cfg.Dispatch.CommandTimeout
	if timeout <= 0 {
		timeout = dispatch.DefaultCommandTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}
