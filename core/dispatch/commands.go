package dispatch

import (
	"context"
	"errors"
	"slices"

	"github.com/jask/routesync/core/peer"
	"github.com/jask/routesync/core/route"
)

// Push appends a route for item and pushes it on the peer.
func (d *Dispatcher) Push(ctx context.Context, item route.Item, opts ...peer.Option) (route.Record, error) {
	rec, err := d.templates.Resolve(item)
	if err != nil {
		return route.Record{}, withOp(err, OpPush)
	}
	o := peer.Build(opts...)

	var out route.Record
	err = d.submit(ctx, OpPush, func(ctx context.Context, gen uint64) error {
		tx := d.store.Begin()
		r := tx.Append(rec)
		if err := d.mount(ctx, OpPush, gen, r); err != nil {
			tx.Rollback()
			return err
		}
		err := d.callOrUndo(ctx, OpPush, gen, d.cfg.PushTimeout, func(ctx context.Context) error {
			return d.peer.Push(ctx, d.h, r.ID, o)
		}, d.undoAdd(r.ID))
		if err != nil {
			tx.Rollback()
			return route.NewError(route.CodePushFailed, string(OpPush), err, "route %q", r.Key)
		}
		tx.Commit()
		out = r
		return nil
	})
	return out, err
}

// Pop removes the top route. Popping the root is a no-op.
func (d *Dispatcher) Pop(ctx context.Context, opts ...peer.Option) error {
	o := peer.Build(opts...)
	return d.submit(ctx, OpPop, func(ctx context.Context, gen uint64) error {
		top, ok := d.store.Top()
		if !ok || d.store.Len() < 2 {
			return nil
		}

		d.bridge.ExpectRemoval(top.ID)
		var res peer.PopResult
		err := d.call(ctx, OpPop, gen, d.cfg.CommandTimeout, func(ctx context.Context) error {
			r, err := d.peer.Pop(ctx, d.h, o)
			res = r
			return err
		})
		if err != nil {
			d.bridge.ForgetRemoval(top.ID)
			return route.NewError(route.CodePopFailed, string(OpPop), err, "route %q", top.Key)
		}
		if res.RouteKey != top.Key || res.RouteIndex != top.Index {
			d.log.Warn("dispatch: peer popped a different route than expected",
				"want_key", top.Key, "want_index", top.Index, "got_key", res.RouteKey, "got_index", res.RouteIndex)
		}
		d.removeNow(route.Match{ID: top.ID, Key: res.RouteKey, Index: route.At(res.RouteIndex)})
		return nil
	})
}

// PopToRoot keeps only the first route.
func (d *Dispatcher) PopToRoot(ctx context.Context, opts ...peer.Option) error {
	o := peer.Build(opts...)
	return d.submit(ctx, OpPopToRoot, func(ctx context.Context, gen uint64) error {
		snap := d.store.Snapshot()
		if len(snap) < 2 {
			return nil
		}
		for _, r := range snap[1:] {
			d.bridge.ExpectRemoval(r.ID)
		}
		err := d.call(ctx, OpPopToRoot, gen, d.cfg.CommandTimeout, func(ctx context.Context) error {
			return d.peer.PopToRoot(ctx, d.h, o)
		})
		if err != nil {
			for _, r := range snap[1:] {
				d.bridge.ForgetRemoval(r.ID)
			}
			return route.NewError(route.CodePopFailed, string(OpPopToRoot), err, "")
		}
		tx := d.store.Begin()
		tx.Truncate(1)
		tx.Commit()
		return nil
	})
}

// RemoveRoute removes the route at index.
func (d *Dispatcher) RemoveRoute(ctx context.Context, index int, opts ...peer.Option) error {
	return d.remove(ctx, OpRemoveRoute, func(int) []int { return []int{index} }, opts)
}

// RemoveRoutes removes the routes at indices in one peer call.
func (d *Dispatcher) RemoveRoutes(ctx context.Context, indices []int, opts ...peer.Option) error {
	indices = slices.Clone(indices)
	return d.remove(ctx, OpRemoveRoutes, func(int) []int { return indices }, opts)
}

// RemovePreviousRoute removes the route below the top.
func (d *Dispatcher) RemovePreviousRoute(ctx context.Context, opts ...peer.Option) error {
	return d.remove(ctx, OpRemoveRoute, func(n int) []int { return []int{n - 2} }, opts)
}

// RemoveAllPrevRoutes removes everything below the top.
func (d *Dispatcher) RemoveAllPrevRoutes(ctx context.Context, opts ...peer.Option) error {
	return d.remove(ctx, OpRemoveRoutes, func(n int) []int {
		out := make([]int, 0, n)
		for i := 0; i < n-1; i++ {
			out = append(out, i)
		}
		return out
	}, opts)
}

func (d *Dispatcher) remove(ctx context.Context, op Op, pick func(n int) []int, opts []peer.Option) error {
	o := peer.Build(opts...)
	return d.submit(ctx, op, func(ctx context.Context, gen uint64) error {
		snap := d.store.Snapshot()
		indices := pick(len(snap))
		if len(indices) == 0 {
			return nil
		}
		seen := make(map[int]bool, len(indices))
		var targets []peer.Target
		var recs []route.Record
		for _, i := range indices {
			if i < 0 || i >= len(snap) {
				return route.NewError(route.CodeRouteOutOfBounds, string(op), nil, "index %d not in [0, %d)", i, len(snap))
			}
			if seen[i] {
				continue
			}
			seen[i] = true
			targets = append(targets, peer.Target{ID: snap[i].ID, Index: i})
			recs = append(recs, snap[i])
		}
		if len(recs) >= len(snap) {
			return route.NewError(route.CodeInvalidArguments, string(op), nil, "cannot remove all %d routes", len(snap))
		}

		err := d.call(ctx, op, gen, d.cfg.CommandTimeout, func(ctx context.Context) error {
			if len(targets) == 1 && op == OpRemoveRoute {
				return d.peer.RemoveRoute(ctx, d.h, targets[0], o)
			}
			return d.peer.RemoveRoutes(ctx, d.h, targets, o)
		})
		if err != nil {
			return route.NewError(route.CodeCommandFailed, string(op), err, "removing %d route(s)", len(targets))
		}
		matches := make([]route.Match, len(recs))
		for i, r := range recs {
			matches[i] = route.Match{ID: r.ID, Key: r.Key, Index: route.At(r.Index)}
		}
		d.removeNow(matches...)
		return nil
	})
}

// ReplaceRoute swaps the route at index for item.
func (d *Dispatcher) ReplaceRoute(ctx context.Context, index int, item route.Item, opts ...peer.Option) (route.Record, error) {
	return d.replace(ctx, func(int) int { return index }, item, opts)
}

// ReplaceCurrentRoute swaps the top route for item.
func (d *Dispatcher) ReplaceCurrentRoute(ctx context.Context, item route.Item, opts ...peer.Option) (route.Record, error) {
	return d.replace(ctx, func(n int) int { return n - 1 }, item, opts)
}

// ReplacePreviousRoute swaps the route below the top for item.
func (d *Dispatcher) ReplacePreviousRoute(ctx context.Context, item route.Item, opts ...peer.Option) (route.Record, error) {
	return d.replace(ctx, func(n int) int { return n - 2 }, item, opts)
}

func (d *Dispatcher) replace(ctx context.Context, pick func(n int) int, item route.Item, opts []peer.Option) (route.Record, error) {
	rec, err := d.templates.Resolve(item)
	if err != nil {
		return route.Record{}, withOp(err, OpReplaceRoute)
	}
	o := peer.Build(opts...)

	var out route.Record
	err = d.submit(ctx, OpReplaceRoute, func(ctx context.Context, gen uint64) error {
		tx := d.store.Begin()
		index := pick(d.store.Len())
		r, err := tx.Replace(index, rec)
		if err != nil {
			return withOp(err, OpReplaceRoute)
		}
		if err := d.mount(ctx, OpReplaceRoute, gen, r); err != nil {
			tx.Rollback()
			return err
		}
		prev := tx.Snapshot()[index]
		err = d.callOrUndo(ctx, OpReplaceRoute, gen, d.cfg.CommandTimeout, func(ctx context.Context) error {
			return d.peer.ReplaceRoute(ctx, d.h, index, r.ID, o)
		}, func(ctx context.Context) error {
			d.bridge.ExpectRemoval(r.ID)
			return d.peer.ReplaceRoute(ctx, d.h, index, prev.ID, peer.Build(peer.Animated(false)))
		})
		if err != nil {
			tx.Rollback()
			return route.NewError(route.CodeCommandFailed, string(OpReplaceRoute), err, "index %d", index)
		}
		tx.Commit()
		out = r
		return nil
	})
	return out, err
}

// InsertRoute places item at index, which may equal the stack length.
func (d *Dispatcher) InsertRoute(ctx context.Context, item route.Item, index int, opts ...peer.Option) (route.Record, error) {
	rec, err := d.templates.Resolve(item)
	if err != nil {
		return route.Record{}, withOp(err, OpInsertRoute)
	}
	o := peer.Build(opts...)

	var out route.Record
	err = d.submit(ctx, OpInsertRoute, func(ctx context.Context, gen uint64) error {
		tx := d.store.Begin()
		r, err := tx.Insert(index, rec)
		if err != nil {
			return withOp(err, OpInsertRoute)
		}
		if err := d.mount(ctx, OpInsertRoute, gen, r); err != nil {
			tx.Rollback()
			return err
		}
		err = d.callOrUndo(ctx, OpInsertRoute, gen, d.cfg.CommandTimeout, func(ctx context.Context) error {
			return d.peer.InsertRoute(ctx, d.h, index, r.ID, o)
		}, d.undoAdd(r.ID))
		if err != nil {
			tx.Rollback()
			return route.NewError(route.CodeCommandFailed, string(OpInsertRoute), err, "index %d", index)
		}
		tx.Commit()
		out = r
		return nil
	})
	return out, err
}

// Transform maps the current stack to the desired one. Entries keep their ID
// to refer to a live route (its stored fields win); entries without an ID are
// new routes built from their key, props and options.
type Transform func(current []route.Record) []route.Record

// SetRoutes reorders the stack to whatever transform returns.
func (d *Dispatcher) SetRoutes(ctx context.Context, transform Transform, opts ...peer.Option) ([]route.Record, error) {
	if transform == nil {
		return nil, route.NewError(route.CodeInvalidArguments, string(OpSetRoutes), nil, "nil transform")
	}
	o := peer.Build(opts...)

	var out []route.Record
	err := d.submit(ctx, OpSetRoutes, func(ctx context.Context, gen uint64) error {
		before := d.store.Snapshot()
		next := transform(d.store.Snapshot())
		for i, r := range next {
			if r.ID != "" {
				continue
			}
			resolved, err := d.templates.Resolve(r.Item())
			if err != nil {
				return withOp(err, OpSetRoutes)
			}
			next[i] = resolved
		}

		tx := d.store.Begin()
		created, err := tx.Reorder(next)
		if err != nil {
			return err
		}
		for _, r := range created {
			if err := d.mount(ctx, OpSetRoutes, gen, r); err != nil {
				tx.Rollback()
				return err
			}
		}

		after := d.store.Snapshot()
		plan := peer.Diff(route.IDs(before), route.IDs(after))
		if len(plan.Edits) > 0 {
			err = d.call(ctx, OpSetRoutes, gen, d.cfg.CommandTimeout, func(ctx context.Context) error {
				return d.peer.SetRoutes(ctx, d.h, plan, o)
			})
			if err != nil {
				tx.Rollback()
				return route.NewError(route.CodeCommandFailed, string(OpSetRoutes), err, "")
			}
			removes, moves, inserts := plan.Counts()
			d.log.Debug("dispatch: set routes", "removes", removes, "moves", moves, "inserts", inserts)
		}
		tx.Commit()
		out = after
		return nil
	})
	return out, err
}

// undoAdd removes a route the store no longer holds from the peer.
func (d *Dispatcher) undoAdd(id route.ID) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		d.bridge.ExpectRemoval(id)
		return d.peer.RemoveRoute(ctx, d.h, peer.Target{ID: id, Index: -1}, peer.Build(peer.Animated(false)))
	}
}

// removeNow queues removals and applies them as one batch. The command is
// still Busy, so no drain competes with it.
func (d *Dispatcher) removeNow(ms ...route.Match) {
	done := make([]<-chan struct{}, len(ms))
	for i, m := range ms {
		done[i] = d.store.Remove(m)
	}
	d.store.Flush()
	for _, ch := range done {
		<-ch
	}
}

func withOp(err error, op Op) error {
	var e *route.Error
	if errors.As(err, &e) {
		c := *e
		c.Op = string(op)
		return &c
	}
	return err
}
