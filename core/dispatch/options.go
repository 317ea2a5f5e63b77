package dispatch

import (
	"context"

	"github.com/jask/routesync/core/route"
)

// UpdateRouteOptions merges opts over the template defaults of route id and
// sends the result to the peer unless same reports no change. It runs on the
// worker like every other command, so no transaction is open while the store
// takes the new options. It reports whether anything was sent.
func (d *Dispatcher) UpdateRouteOptions(ctx context.Context, id route.ID, opts route.Options, same func(old, next route.Options) (bool, error)) (bool, error) {
	var sent bool
	err := d.submit(ctx, OpRouteOptions, func(ctx context.Context, gen uint64) error {
		rec, ok := d.store.FindMatching(route.Match{ID: id})
		if !ok {
			return route.NewError(route.CodeInvalidArguments, string(OpRouteOptions), nil, "route %s is not in the stack", id.Short())
		}
		tmpl, err := d.templates.Lookup(rec.Key)
		if err != nil {
			return withOp(err, OpRouteOptions)
		}
		merged := route.Merge(tmpl.DefaultOptions, opts)

		if same != nil {
			equal, err := same(rec.Options, merged)
			if err != nil {
				return err
			}
			if equal {
				return nil
			}
		}

		err = d.call(ctx, OpRouteOptions, gen, d.cfg.CommandTimeout, func(ctx context.Context) error {
			return d.peer.SetRouteOptions(ctx, d.h, id, merged)
		})
		if err != nil {
			return route.NewError(route.CodeCommandFailed, string(OpRouteOptions), err, "route %s", id.Short())
		}
		d.store.UpdateOptions(id, merged)
		sent = true
		return nil
	})
	return sent, err
}
