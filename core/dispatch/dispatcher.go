// Package dispatch serializes navigation commands against the peer. Each
// command mutates the store optimistically inside a transaction, issues the
// peer call, waits for bounded acknowledgement and rolls back on failure.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/jask/routesync/core/bridge"
	"github.com/jask/routesync/core/peer"
	"github.com/jask/routesync/core/route"
	"github.com/jask/routesync/core/stack"
)

const (
	DefaultQueueSize           = 16
	DefaultRegistrationTimeout = 500 * time.Millisecond
	DefaultCommandTimeout      = 1000 * time.Millisecond
	DefaultPushTimeout         = 1000 * time.Millisecond
)

// Config tunes queueing and timeouts.
type Config struct {
	BusyPolicy          Policy
	QueueSize           int
	RegistrationTimeout time.Duration
	CommandTimeout      time.Duration
	PushTimeout         time.Duration
	Logger              *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.BusyPolicy == "" {
		c.BusyPolicy = PolicyQueue
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.RegistrationTimeout <= 0 {
		c.RegistrationTimeout = DefaultRegistrationTimeout
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = DefaultCommandTimeout
	}
	if c.PushTimeout <= 0 {
		c.PushTimeout = DefaultPushTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Deps are the collaborators of a dispatcher.
type Deps struct {
	Handle    route.Handle
	Store     *stack.Store
	Bridge    *bridge.Bridge
	Peer      peer.Peer
	Renderer  peer.Renderer
	Templates route.Templates
	Observers []Observer
}

type job struct {
	op   Op
	ctx  context.Context
	run  func(ctx context.Context, gen uint64) error
	done chan error
}

// Dispatcher owns the single worker that executes commands.
type Dispatcher struct {
	cfg       Config
	h         route.Handle
	store     *stack.Store
	bridge    *bridge.Bridge
	peer      peer.Peer
	renderer  peer.Renderer
	templates route.Templates
	observers observers
	log       *slog.Logger

	gen   atomic.Uint64
	stale atomic.Int64

	mu     sync.Mutex
	status Status
	active int
	closed bool

	queue chan *job
	stop  chan struct{}
	wg    sync.WaitGroup
}

// New starts the worker goroutine and installs the store's drain gate.
func New(cfg Config, deps Deps) *Dispatcher {
	cfg = cfg.withDefaults()
	d := &Dispatcher{
		cfg:       cfg,
		h:         deps.Handle,
		store:     deps.Store,
		bridge:    deps.Bridge,
		peer:      deps.Peer,
		renderer:  deps.Renderer,
		templates: deps.Templates,
		observers: observers(deps.Observers),
		log:       cfg.Logger.With("handle", deps.Handle.String()),
		queue:     make(chan *job, cfg.QueueSize),
		stop:      make(chan struct{}),
	}
	d.store.SetGate(d.idle)
	d.wg.Add(1)
	go d.loop()
	return d
}

// Status returns the current dispatcher status.
func (d *Dispatcher) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// Generation returns the generation of the most recent command.
func (d *Dispatcher) Generation() uint64 { return d.gen.Load() }

// Stale returns how many peer results arrived after their command gave up.
func (d *Dispatcher) Stale() int64 { return d.stale.Load() }

// Close stops the worker. Queued commands fail with Closed; the command in
// flight runs to completion first.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.stop)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) idle() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status.State != Busy
}

// submit hands run to the worker and blocks until it settles.
func (d *Dispatcher) submit(ctx context.Context, op Op, run func(ctx context.Context, gen uint64) error) error {
	j := &job{op: op, ctx: ctx, run: run, done: make(chan error, 1)}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return closedError(op)
	}
	if d.cfg.BusyPolicy == PolicyDrop && d.active > 0 {
		d.mu.Unlock()
		d.log.Warn("dispatch: dropping command issued while busy", "op", string(op))
		d.observers.Dropped(op, "busy")
		return route.NewError(route.CodeCommandDropped, string(op), nil, "another command is in flight")
	}
	select {
	case d.queue <- j:
		d.active++
	default:
		d.mu.Unlock()
		d.log.Warn("dispatch: queue full, dropping command", "op", string(op), "size", d.cfg.QueueSize)
		d.observers.Dropped(op, "queue full")
		return route.NewError(route.CodeCommandDropped, string(op), nil, "command queue full (%d)", d.cfg.QueueSize)
	}
	d.mu.Unlock()

	return <-j.done
}

func (d *Dispatcher) loop() {
	defer d.wg.Done()
	for {
		select {
		case j := <-d.queue:
			// select picks at random when both are ready
			select {
			case <-d.stop:
				d.finish(j, closedError(j.op))
				d.drain()
				return
			default:
			}
			d.run(j)
		case <-d.stop:
			d.drain()
			return
		}
	}
}

// drain fails every queued command with Closed.
func (d *Dispatcher) drain() {
	for {
		select {
		case j := <-d.queue:
			d.finish(j, closedError(j.op))
		default:
			return
		}
	}
}

func closedError(op Op) error {
	return route.NewError(route.CodeClosed, string(op), nil, "navigator closed")
}

func (d *Dispatcher) finish(j *job, err error) {
	d.mu.Lock()
	d.active--
	d.mu.Unlock()
	j.done <- err
}

func (d *Dispatcher) run(j *job) {
	if err := j.ctx.Err(); err != nil {
		d.finish(j, err)
		return
	}

	gen := d.gen.Inc()
	d.setStatus(Status{State: Busy, Op: j.op, Generation: gen})
	// Busy closes the drain gate, so nothing interleaves with the command
	// once pending removals are applied here.
	d.store.Flush()

	started := time.Now()
	err := j.run(j.ctx, gen)
	elapsed := time.Since(started)

	switch {
	case err == nil:
		d.setStatus(Status{State: Idle})
		d.log.Debug("dispatch: command done", "op", string(j.op), "generation", gen, "took", elapsed)
	case isValidation(err):
		d.setStatus(Status{State: Idle})
		d.log.Info("dispatch: command rejected", "op", string(j.op), "generation", gen, "err", err)
	default:
		d.setStatus(Status{State: Failed, Op: j.op, Generation: gen, Err: err})
		d.log.Error("dispatch: command failed", "op", string(j.op), "generation", gen, "err", err)
	}
	d.store.Kick()

	res := Result{
		Op:         j.op,
		Generation: gen,
		Err:        err,
		Started:    started,
		Duration:   elapsed,
		Stack:      d.store.Snapshot(),
	}
	if err != nil {
		res.Code = route.CodeOf(err)
	}
	d.observers.Finished(res)
	d.finish(j, err)
}

func (d *Dispatcher) setStatus(s Status) {
	d.mu.Lock()
	d.status = s
	d.mu.Unlock()
}

func isValidation(err error) bool {
	switch route.CodeOf(err) {
	case route.CodeInvalidRouteKey, route.CodeInvalidArguments, route.CodeRouteOutOfBounds:
		return true
	}
	return false
}
