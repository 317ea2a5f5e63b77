package route

import "context"

type ctxKey struct{}

// NewContext returns a context that carries rec. Content factories receive
// such a context when their record is mounted.
func NewContext(ctx context.Context, rec Record) context.Context {
	return context.WithValue(ctx, ctxKey{}, rec)
}

// FromContext returns the record attached by NewContext. Reading it outside an
// active route is a library misuse.
func FromContext(ctx context.Context) (Record, error) {
	rec, ok := ctx.Value(ctxKey{}).(Record)
	if !ok {
		return Record{}, NewError(CodeLibraryError, "route context", nil, "no active route in context")
	}
	return rec, nil
}
