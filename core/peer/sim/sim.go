// Package sim is an in-memory peer. It keeps its own stack of route ids,
// answers mounts with registration acks and drives a peer.Listener the way a
// native navigation controller would. Latency, failures, hangs, lost acks and
// user back swipes can be injected.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/jask/routesync/core/events"
	"github.com/jask/routesync/core/peer"
	"github.com/jask/routesync/core/route"
)

// Op names a peer call for injection and counting.
type Op string

const (
	OpPush          Op = "push"
	OpPop           Op = "pop"
	OpPopToRoot     Op = "pop-to-root"
	OpRemoveRoute   Op = "remove-route"
	OpRemoveRoutes  Op = "remove-routes"
	OpReplaceRoute  Op = "replace-route"
	OpInsertRoute   Op = "insert-route"
	OpSetRoutes     Op = "set-routes"
	OpRouteOptions  Op = "set-route-options"
	OpNavBarHidden  Op = "set-nav-bar-hidden"
	OpCustomCommand Op = "custom-command"
	OpConstants     Op = "constants"
)

var allOps = []Op{
	OpPush, OpPop, OpPopToRoot, OpRemoveRoute, OpRemoveRoutes, OpReplaceRoute,
	OpInsertRoute, OpSetRoutes, OpRouteOptions, OpNavBarHidden, OpCustomCommand, OpConstants,
}

// ErrInjected is the default failure used by FailNext.
var ErrInjected = errors.New("sim: injected failure")

// Config tunes timing.
type Config struct {
	// Latency delays every command; ctx cancellation cuts it short.
	Latency time.Duration
	// RegistrationLatency delays the ack sent after Mount.
	RegistrationLatency time.Duration
	Constants           peer.Constants
	Logger              *slog.Logger
}

// CommandFunc answers SendCustomCommand.
type CommandFunc func(key string, data map[string]any) (map[string]any, error)

type entry struct {
	id  route.ID
	key string
}

// Sim implements peer.Peer and peer.Renderer.
type Sim struct {
	cfg Config
	log *slog.Logger

	mu        sync.Mutex
	listener  peer.Listener
	stack     []entry
	mounted   map[route.ID]route.Record
	options   map[route.ID]route.Options
	fail      map[Op]error
	hang      map[Op]time.Duration
	dropAcks  int
	hidden    bool
	constants peer.Constants
	onCommand CommandFunc

	calls    map[Op]*atomic.Int64
	acks     atomic.Int64
	inflight atomic.Int32
}

var (
	_ peer.Peer     = (*Sim)(nil)
	_ peer.Renderer = (*Sim)(nil)
)

// New returns an empty simulated stack.
func New(cfg Config) *Sim {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &Sim{
		cfg:       cfg,
		log:       log,
		mounted:   make(map[route.ID]route.Record),
		options:   make(map[route.ID]route.Options),
		fail:      make(map[Op]error),
		hang:      make(map[Op]time.Duration),
		constants: cfg.Constants,
		calls:     make(map[Op]*atomic.Int64, len(allOps)),
	}
	for _, op := range allOps {
		s.calls[op] = atomic.NewInt64(0)
	}
	return s
}

// Attach sets the listener that receives acks and events.
func (s *Sim) Attach(l peer.Listener) {
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()
}

// FailNext makes the next call of op return err (ErrInjected when nil).
func (s *Sim) FailNext(op Op, err error) {
	if err == nil {
		err = ErrInjected
	}
	s.mu.Lock()
	s.fail[op] = err
	s.mu.Unlock()
}

// HangNext makes the next call of op ignore its context and complete after d.
func (s *Sim) HangNext(op Op, d time.Duration) {
	s.mu.Lock()
	s.hang[op] = d
	s.mu.Unlock()
}

// DropRegistrations swallows the next n registration acks.
func (s *Sim) DropRegistrations(n int) {
	s.mu.Lock()
	s.dropAcks += n
	s.mu.Unlock()
}

// OnCustomCommand installs the answer to SendCustomCommand.
func (s *Sim) OnCustomCommand(fn CommandFunc) {
	s.mu.Lock()
	s.onCommand = fn
	s.mu.Unlock()
}

// IDs returns the peer stack.
func (s *Sim) IDs() []route.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]route.ID, len(s.stack))
	for i, e := range s.stack {
		out[i] = e.id
	}
	return out
}

// Keys returns the route keys of the peer stack.
func (s *Sim) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.stack))
	for i, e := range s.stack {
		out[i] = e.key
	}
	return out
}

// Calls returns how many times op was invoked.
func (s *Sim) Calls(op Op) int64 {
	if c, ok := s.calls[op]; ok {
		return c.Load()
	}
	return 0
}

// Acks returns the number of registration acks sent.
func (s *Sim) Acks() int64 { return s.acks.Load() }

// InFlight returns the number of commands being processed.
func (s *Sim) InFlight() int32 { return s.inflight.Load() }

// Hidden reports the navigation bar state.
func (s *Sim) Hidden() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hidden
}

// RouteOptions returns the options last sent for id.
func (s *Sim) RouteOptions(id route.ID) (route.Options, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.options[id]
	return o.Clone(), ok
}

// Mounted reports whether content for id is attached.
func (s *Sim) Mounted(id route.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.mounted[id]
	return ok
}

// Mount attaches content and answers with a registration ack after
// RegistrationLatency.
func (s *Sim) Mount(ctx context.Context, h route.Handle, rec route.Record, content any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.mounted[rec.ID] = rec
	drop := s.dropAcks > 0
	if drop {
		s.dropAcks--
	}
	s.mu.Unlock()

	if drop {
		s.log.Debug("sim: dropping registration ack", "route", rec.ID.Short())
		return nil
	}
	ack := func() {
		s.acks.Inc()
		if l := s.currentListener(); l != nil {
			l.OnRouteRegistered(h, rec.ID)
		}
	}
	if s.cfg.RegistrationLatency <= 0 {
		go ack()
	} else {
		time.AfterFunc(s.cfg.RegistrationLatency, ack)
	}
	return nil
}

// Unmount detaches content for id.
func (s *Sim) Unmount(h route.Handle, id route.ID) {
	s.mu.Lock()
	delete(s.mounted, id)
	delete(s.options, id)
	s.mu.Unlock()
}

// UserPop simulates a back swipe: the top entry is popped on the peer side
// and the listener learns about it afterwards.
func (s *Sim) UserPop(h route.Handle) bool {
	s.mu.Lock()
	if len(s.stack) < 2 {
		s.mu.Unlock()
		return false
	}
	top := s.stack[len(s.stack)-1]
	index := len(s.stack) - 1
	s.stack = s.stack[:index]
	next := s.stack[index-1]
	s.mu.Unlock()

	ev := peer.PopEvent{ID: top.id, RouteKey: top.key, RouteIndex: index, UserInitiated: true}
	s.notifyPop(h, ev)
	s.notifyFocus(h, next, index-1)
	return true
}

// SetConstants changes the layout metrics and notifies the listener.
func (s *Sim) SetConstants(h route.Handle, c peer.Constants) {
	s.mu.Lock()
	s.constants = c
	s.mu.Unlock()
	if l := s.currentListener(); l != nil {
		l.OnUIConstantsChanged(h, c)
	}
}

// Press simulates a tap on a nav bar item of the top route.
func (s *Sim) Press(h route.Handle, left bool, item events.PressPayload) bool {
	s.mu.Lock()
	if len(s.stack) == 0 {
		s.mu.Unlock()
		return false
	}
	top := s.stack[len(s.stack)-1]
	s.mu.Unlock()

	kind := events.PressNavBarRightItem
	if left {
		kind = events.PressNavBarLeftItem
	}
	if l := s.currentListener(); l != nil {
		l.OnRouteEvent(h, top.id, kind, item)
	}
	return true
}

// SendFromPeer delivers a custom command originating on the peer side.
func (s *Sim) SendFromPeer(h route.Handle, key string, data map[string]any) {
	if l := s.currentListener(); l != nil {
		l.OnCustomCommand(h, key, data)
	}
}

func (s *Sim) currentListener() peer.Listener {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener
}

// begin counts the call, waits out latency (or an injected hang) and returns
// an injected failure if one is armed.
func (s *Sim) begin(ctx context.Context, op Op) error {
	s.calls[op].Inc()
	s.inflight.Inc()
	defer s.inflight.Dec()

	s.mu.Lock()
	hang, hanging := s.hang[op]
	delete(s.hang, op)
	s.mu.Unlock()

	if hanging {
		s.log.Debug("sim: hanging", "op", string(op), "for", hang)
		time.Sleep(hang)
	} else if s.cfg.Latency > 0 {
		t := time.NewTimer(s.cfg.Latency)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	err, failing := s.fail[op]
	delete(s.fail, op)
	s.mu.Unlock()
	if failing {
		return err
	}
	return nil
}

func (s *Sim) keyFor(id route.ID) string {
	if rec, ok := s.mounted[id]; ok {
		return rec.Key
	}
	for _, e := range s.stack {
		if e.id == id {
			return e.key
		}
	}
	return ""
}

func (s *Sim) Push(ctx context.Context, h route.Handle, id route.ID, opts peer.Options) error {
	if err := s.begin(ctx, OpPush); err != nil {
		return err
	}
	s.mu.Lock()
	var prev *entry
	if n := len(s.stack); n > 0 {
		p := s.stack[n-1]
		prev = &p
	}
	e := entry{id: id, key: s.keyFor(id)}
	s.stack = append(s.stack, e)
	index := len(s.stack) - 1
	l := s.listener
	s.mu.Unlock()

	if l == nil {
		return nil
	}
	l.OnRouteEvent(h, id, events.RouteWillPush, nil)
	if prev != nil {
		l.OnRouteEvent(h, prev.id, events.RouteWillBlur, nil)
		l.OnRouteEvent(h, prev.id, events.RouteDidBlur, nil)
	}
	l.OnRouteEvent(h, id, events.RouteDidPush, nil)
	s.notifyFocus(h, e, index)
	return nil
}

func (s *Sim) Pop(ctx context.Context, h route.Handle, opts peer.Options) (peer.PopResult, error) {
	if err := s.begin(ctx, OpPop); err != nil {
		return peer.PopResult{}, err
	}
	s.mu.Lock()
	if len(s.stack) < 2 {
		s.mu.Unlock()
		return peer.PopResult{}, fmt.Errorf("sim: pop: nothing above the root")
	}
	index := len(s.stack) - 1
	top := s.stack[index]
	s.stack = s.stack[:index]
	next := s.stack[index-1]
	s.mu.Unlock()

	s.notifyPop(h, peer.PopEvent{ID: top.id, RouteKey: top.key, RouteIndex: index})
	s.notifyFocus(h, next, index-1)
	return peer.PopResult{RouteKey: top.key, RouteIndex: index}, nil
}

func (s *Sim) PopToRoot(ctx context.Context, h route.Handle, opts peer.Options) error {
	if err := s.begin(ctx, OpPopToRoot); err != nil {
		return err
	}
	s.mu.Lock()
	if len(s.stack) < 2 {
		s.mu.Unlock()
		return nil
	}
	popped := slices.Clone(s.stack[1:])
	s.stack = s.stack[:1]
	root := s.stack[0]
	s.mu.Unlock()

	for i := len(popped) - 1; i >= 0; i-- {
		e := popped[i]
		s.notifyPop(h, peer.PopEvent{ID: e.id, RouteKey: e.key, RouteIndex: i + 1})
	}
	s.notifyFocus(h, root, 0)
	return nil
}

func (s *Sim) RemoveRoute(ctx context.Context, h route.Handle, target peer.Target, opts peer.Options) error {
	return s.remove(ctx, OpRemoveRoute, []peer.Target{target})
}

func (s *Sim) RemoveRoutes(ctx context.Context, h route.Handle, targets []peer.Target, opts peer.Options) error {
	return s.remove(ctx, OpRemoveRoutes, targets)
}

func (s *Sim) remove(ctx context.Context, op Op, targets []peer.Target) error {
	if err := s.begin(ctx, op); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	drop := make(map[route.ID]bool, len(targets))
	for _, t := range targets {
		id := t.ID
		if id == "" {
			if t.Index < 0 || t.Index >= len(s.stack) {
				return fmt.Errorf("sim: %s: index %d out of range", op, t.Index)
			}
			id = s.stack[t.Index].id
		}
		if !slices.ContainsFunc(s.stack, func(e entry) bool { return e.id == id }) {
			return fmt.Errorf("sim: %s: route %s not on the stack", op, id.Short())
		}
		drop[id] = true
	}
	if len(drop) >= len(s.stack) {
		return fmt.Errorf("sim: %s: cannot remove every route", op)
	}
	s.stack = slices.DeleteFunc(s.stack, func(e entry) bool { return drop[e.id] })
	return nil
}

func (s *Sim) ReplaceRoute(ctx context.Context, h route.Handle, index int, id route.ID, opts peer.Options) error {
	if err := s.begin(ctx, OpReplaceRoute); err != nil {
		return err
	}
	s.mu.Lock()
	if index < 0 || index >= len(s.stack) {
		s.mu.Unlock()
		return fmt.Errorf("sim: replace: index %d out of range", index)
	}
	e := entry{id: id, key: s.keyFor(id)}
	s.stack[index] = e
	top := index == len(s.stack)-1
	s.mu.Unlock()

	if top {
		s.notifyFocus(h, e, index)
	}
	return nil
}

func (s *Sim) InsertRoute(ctx context.Context, h route.Handle, index int, id route.ID, opts peer.Options) error {
	if err := s.begin(ctx, OpInsertRoute); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index > len(s.stack) {
		return fmt.Errorf("sim: insert: index %d out of range", index)
	}
	s.stack = slices.Insert(s.stack, index, entry{id: id, key: s.keyFor(id)})
	return nil
}

// SetRoutes replays the edit script on the current stack and checks it lands
// on the announced order.
func (s *Sim) SetRoutes(ctx context.Context, h route.Handle, plan peer.Plan, opts peer.Options) error {
	if err := s.begin(ctx, OpSetRoutes); err != nil {
		return err
	}
	s.mu.Lock()
	cur := make([]route.ID, len(s.stack))
	for i, e := range s.stack {
		cur[i] = e.id
	}
	got := peer.Apply(cur, plan.Edits)
	if !slices.Equal(got, plan.Order) {
		s.mu.Unlock()
		return fmt.Errorf("sim: set routes: edit script does not reach the requested order")
	}
	next := make([]entry, len(got))
	for i, id := range got {
		next[i] = entry{id: id, key: s.keyFor(id)}
	}
	oldTop := route.ID("")
	if len(s.stack) > 0 {
		oldTop = s.stack[len(s.stack)-1].id
	}
	s.stack = next
	top := next[len(next)-1]
	s.mu.Unlock()

	if top.id != oldTop {
		s.notifyFocus(h, top, len(next)-1)
	}
	return nil
}

func (s *Sim) SetRouteOptions(ctx context.Context, h route.Handle, id route.ID, opts route.Options) error {
	if err := s.begin(ctx, OpRouteOptions); err != nil {
		return err
	}
	s.mu.Lock()
	s.options[id] = opts.Clone()
	s.mu.Unlock()
	return nil
}

func (s *Sim) SetNavigationBarHidden(ctx context.Context, h route.Handle, hidden, animated bool) error {
	if err := s.begin(ctx, OpNavBarHidden); err != nil {
		return err
	}
	s.mu.Lock()
	s.hidden = hidden
	s.mu.Unlock()
	return nil
}

func (s *Sim) SendCustomCommand(ctx context.Context, h route.Handle, key string, data map[string]any) (map[string]any, error) {
	if err := s.begin(ctx, OpCustomCommand); err != nil {
		return nil, err
	}
	s.mu.Lock()
	fn := s.onCommand
	s.mu.Unlock()
	if fn == nil {
		return map[string]any{"commandKey": key}, nil
	}
	return fn(key, data)
}

func (s *Sim) Constants(ctx context.Context, h route.Handle) (peer.Constants, error) {
	if err := s.begin(ctx, OpConstants); err != nil {
		return peer.Constants{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.constants, nil
}

func (s *Sim) notifyPop(h route.Handle, ev peer.PopEvent) {
	l := s.currentListener()
	if l == nil {
		return
	}
	l.OnRouteWillPop(h, ev)
	l.OnRouteDidPop(h, ev)
}

func (s *Sim) notifyFocus(h route.Handle, e entry, index int) {
	l := s.currentListener()
	if l == nil {
		return
	}
	show := events.ShowPayload{RouteID: e.id, RouteKey: e.key, RouteIndex: index}
	l.OnNavigatorWillShow(h, show)
	l.OnRouteEvent(h, e.id, events.RouteWillFocus, nil)
	l.OnRouteEvent(h, e.id, events.RouteDidFocus, nil)
	l.OnNavigatorDidShow(h, show)
}
