package route

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/atomic"
)

// ID identifies one route record for the lifetime of the process. It is the
// only key that stays stable across the boundary; keys and indices may shift.
type ID string

// NewID returns a fresh random route identifier.
func NewID() ID {
	return ID(uuid.NewString())
}

func (id ID) String() string { return string(id) }

// Short returns the first eight characters, for logs and the inspector.
func (id ID) Short() string {
	if len(id) <= 8 {
		return string(id)
	}
	return string(id[:8])
}

// Handle is the opaque identity of one navigator on the peer side. It is
// minted by the synchronization layer and threaded through every peer call
// and event instead of being rediscovered from the view hierarchy.
type Handle struct {
	n uint64
}

var handleSeq atomic.Uint64

// NewHandle mints a handle that is unique within the process.
func NewHandle() Handle {
	return Handle{n: handleSeq.Inc()}
}

// IsZero reports whether h was never minted.
func (h Handle) IsZero() bool { return h.n == 0 }

func (h Handle) String() string { return fmt.Sprintf("nav#%d", h.n) }
