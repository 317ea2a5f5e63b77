package dispatch

import (
	"context"
	"time"

	"github.com/jask/routesync/core/route"
)

// call runs fn with a deadline. When the deadline passes first the result is
// abandoned: fn keeps running, and whatever it returns later is discarded as
// stale for generation gen.
func (d *Dispatcher) call(ctx context.Context, op Op, gen uint64, timeout time.Duration, fn func(ctx context.Context) error) error {
	return d.callOrUndo(ctx, op, gen, timeout, fn, nil)
}

// callOrUndo is call for commands that add a route to the peer. The store has
// already been rolled back when the call timed out, so a result that still
// succeeds later is reverted on the peer with undo.
func (d *Dispatcher) callOrUndo(ctx context.Context, op Op, gen uint64, timeout time.Duration, fn, undo func(ctx context.Context) error) error {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	res := make(chan error, 1)
	go func() { res <- fn(cctx) }()

	select {
	case err := <-res:
		cancel()
		return err
	case <-cctx.Done():
		err := cctx.Err()
		go func() {
			defer cancel()
			late := <-res
			d.stale.Inc()
			d.log.Warn("dispatch: discarding stale peer result",
				"op", string(op), "generation", gen, "current", d.gen.Load(), "err", late)
			d.observers.Stale(op, gen)
			if late == nil && undo != nil {
				d.compensate(op, gen, undo)
			}
		}()
		return err
	}
}

// compensate queues undo behind whatever the worker is running. It bypasses
// the busy policy; a full queue or a closed dispatcher leaves the peer as is.
func (d *Dispatcher) compensate(op Op, gen uint64, undo func(ctx context.Context) error) {
	j := &job{op: OpCompensate, ctx: context.Background(), done: make(chan error, 1)}
	j.run = func(ctx context.Context, cur uint64) error {
		err := d.call(ctx, OpCompensate, cur, d.cfg.CommandTimeout, undo)
		if err != nil {
			return route.NewError(route.CodeCommandFailed, string(OpCompensate), err, "reverting %s of generation %d", op, gen)
		}
		d.log.Info("dispatch: reverted late peer result", "op", string(op), "generation", gen)
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		d.log.Warn("dispatch: closed, peer keeps late result", "op", string(op), "generation", gen)
		return
	}
	select {
	case d.queue <- j:
		d.active++
	default:
		d.log.Warn("dispatch: queue full, peer keeps late result", "op", string(op), "generation", gen)
	}
}

// mount hands the record's content to the renderer and waits for the peer to
// register it. Native-owned records are registered by the peer itself.
func (d *Dispatcher) mount(ctx context.Context, op Op, gen uint64, rec route.Record) error {
	if rec.NativeOwned {
		return nil
	}
	tmpl, err := d.templates.Lookup(rec.Key)
	if err != nil {
		return err
	}

	var content any
	if tmpl.Content != nil {
		content, err = tmpl.Content(route.NewContext(ctx, rec), rec)
		if err != nil {
			return route.NewError(route.CodeLibraryError, string(op), err, "building content for %q", rec.Key)
		}
	}

	reg := d.bridge.AwaitRegistration(rec.ID, gen)
	if err := d.renderer.Mount(ctx, d.h, rec, content); err != nil {
		d.bridge.CancelRegistration(reg)
		return route.NewError(route.CodeAddRouteTimeout, string(op), err, "mounting %q", rec.Key)
	}

	t := time.NewTimer(d.cfg.RegistrationTimeout)
	defer t.Stop()
	select {
	case <-reg.Done():
		return nil
	case <-t.C:
		d.bridge.CancelRegistration(reg)
		return route.NewError(route.CodeAddRouteTimeout, string(op), nil,
			"route %q (%s) not registered within %s", rec.Key, rec.ID.Short(), d.cfg.RegistrationTimeout)
	case <-ctx.Done():
		d.bridge.CancelRegistration(reg)
		return route.NewError(route.CodeAddRouteTimeout, string(op), ctx.Err(), "waiting for %q", rec.Key)
	}
}
