package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jask/routesync/core/dispatch"
	"github.com/jask/routesync/core/events"
	"github.com/jask/routesync/core/route"
)

// Feed turns dispatcher and navigator notifications into activity lines for
// the inspector. Sends never block; lines beyond the buffer are lost.
type Feed struct {
	lines chan string
}

var _ dispatch.Observer = (*Feed)(nil)

func NewFeed(buffer int) *Feed {
	if buffer <= 0 {
		buffer = 64
	}
	return &Feed{lines: make(chan string, buffer)}
}

func (f *Feed) Finished(r dispatch.Result) {
	if r.Err != nil {
		f.post(fmt.Sprintf("#%d %s failed [%s] %v", r.Generation, r.Op, r.Code, r.Err))
		return
	}
	f.post(fmt.Sprintf("#%d %s ok in %s, depth %d", r.Generation, r.Op, r.Duration.Round(time.Millisecond), len(r.Stack)))
}

func (f *Feed) Dropped(op dispatch.Op, reason string) {
	f.post(fmt.Sprintf("%s dropped: %s", op, reason))
}

func (f *Feed) Stale(op dispatch.Op, gen uint64) {
	f.post(fmt.Sprintf("#%d %s answered late, discarded", gen, op))
}

// Watch posts the navigator-level show events of ch.
func (f *Feed) Watch(ch *events.Channel) (unsubscribe func()) {
	fn := func(e events.Event) {
		if p, ok := e.Payload.(events.ShowPayload); ok {
			f.post(fmt.Sprintf("%s %s@%d", e.Kind, p.RouteKey, p.RouteIndex))
			return
		}
		f.post(e.Kind.String())
	}
	unsubs := []func(){
		ch.Subscribe(events.NavigatorDidShowRoute, fn),
		ch.Subscribe(events.NavigatorConstantsChanged, fn),
		ch.Subscribe(events.NavigatorCustomCommand, fn),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func (f *Feed) post(line string) {
	select {
	case f.lines <- line:
	default:
	}
}

type activityMsg string

// next waits for one line. The inspector re-arms it after every delivery.
func (f *Feed) next() tea.Cmd {
	return func() tea.Msg {
		return activityMsg(<-f.lines)
	}
}

// Content is the inspector's stand-in view for every application-rendered
// route.
func Content(ctx context.Context, rec route.Record) (any, error) {
	got, err := route.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	return fmt.Sprintf("[%s %s]", got.Key, got.ID.Short()), nil
}
