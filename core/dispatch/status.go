package dispatch

import "fmt"

// Op names a dispatcher command.
type Op string

const (
	OpPush         Op = "push"
	OpPop          Op = "pop"
	OpPopToRoot    Op = "pop-to-root"
	OpRemoveRoute  Op = "remove-route"
	OpRemoveRoutes Op = "remove-routes"
	OpReplaceRoute Op = "replace-route"
	OpInsertRoute  Op = "insert-route"
	OpSetRoutes    Op = "set-routes"
	OpRouteOptions Op = "route-options"
	// OpCompensate reverts a peer call that succeeded after its command gave up.
	OpCompensate Op = "compensate"
)

// State is the coarse dispatcher state.
type State int

const (
	Idle State = iota
	Busy
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Busy:
		return "busy"
	case Failed:
		return "error"
	}
	return "unknown"
}

// Status is Idle, Busy with the pending op and its generation, or Failed with
// the last failure.
type Status struct {
	State      State
	Op         Op
	Generation uint64
	Err        error
}

func (s Status) String() string {
	switch s.State {
	case Busy:
		return fmt.Sprintf("busy(%s, gen %d)", s.Op, s.Generation)
	case Failed:
		return fmt.Sprintf("error(%v)", s.Err)
	}
	return s.State.String()
}

// Policy decides what happens to commands issued while one is in flight.
type Policy string

const (
	// PolicyQueue runs them in arrival order from a bounded queue.
	PolicyQueue Policy = "queue"
	// PolicyDrop fails them with CommandDropped.
	PolicyDrop Policy = "drop"
)

// ParsePolicy accepts "queue" and "drop"; empty means queue.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyQueue:
		return PolicyQueue, nil
	case PolicyDrop:
		return PolicyDrop, nil
	}
	return "", fmt.Errorf("unknown busy policy %q", s)
}
