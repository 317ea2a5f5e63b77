package dispatch

import (
	"time"

	"github.com/jask/routesync/core/route"
)

// Result describes one finished command.
type Result struct {
	Op         Op
	Generation uint64
	Err        error
	Code       route.Code
	Started    time.Time
	Duration   time.Duration
	// Stack is the store content after the command settled.
	Stack []route.Record
}

// Observer is notified of command outcomes. Calls come from the worker
// goroutine (Finished, Stale) or the submitting goroutine (Dropped) and must
// not block.
type Observer interface {
	Finished(Result)
	Dropped(op Op, reason string)
	Stale(op Op, generation uint64)
}

type observers []Observer

func (o observers) Finished(r Result) {
	for _, x := range o {
		x.Finished(r)
	}
}

func (o observers) Dropped(op Op, reason string) {
	for _, x := range o {
		x.Dropped(op, reason)
	}
}

func (o observers) Stale(op Op, gen uint64) {
	for _, x := range o {
		x.Stale(op, gen)
	}
}
