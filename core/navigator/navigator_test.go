package navigator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jask/routesync/core/dispatch"
	"github.com/jask/routesync/core/events"
	"github.com/jask/routesync/core/peer"
	"github.com/jask/routesync/core/peer/sim"
	"github.com/jask/routesync/core/route"
	"github.com/jask/routesync/core/stack"
)

type contentLog struct {
	mu   sync.Mutex
	seen []route.ID
}

func (c *contentLog) content(ctx context.Context, rec route.Record) (any, error) {
	got, err := route.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, got.ID)
	return "view:" + rec.Key, nil
}

func templates(c *contentLog) route.Templates {
	return route.NewTemplates(
		route.Template{Key: "home", DefaultOptions: route.Options{"title": "Home"}, Content: c.content},
		route.Template{Key: "list", DefaultOptions: route.Options{"title": "List", "tintColor": "#00f"}, Content: c.content},
		route.Template{Key: "detail", Content: c.content},
		route.Template{Key: "picker", NativeOwned: true},
	)
}

type fixture struct {
	nav     *Navigator
	peer    *sim.Sim
	content *contentLog

	mu      sync.Mutex
	depths  []int
	updates []bool
}

func newFixture(t *testing.T, initial ...string) *fixture {
	t.Helper()
	f := &fixture{peer: sim.New(sim.Config{Constants: peer.Constants{NavBarHeight: 44}}), content: &contentLog{}}
	f.nav = New(Config{
		Dispatch: dispatch.Config{RegistrationTimeout: 200 * time.Millisecond, CommandTimeout: 200 * time.Millisecond},
		Store:    stack.Config{Debounce: 5 * time.Millisecond},
		Hooks: Hooks{
			StackDepth: func(d int) {
				f.mu.Lock()
				defer f.mu.Unlock()
				f.depths = append(f.depths, d)
			},
			OptionsUpdate: func(sent bool) {
				f.mu.Lock()
				defer f.mu.Unlock()
				f.updates = append(f.updates, sent)
			},
		},
	}, templates(f.content), f.peer, f.peer)
	t.Cleanup(f.nav.Close)

	if len(initial) > 0 {
		items := make([]route.Item, len(initial))
		for i, k := range initial {
			items[i] = route.Item{Key: k}
		}
		_, err := f.nav.Start(context.Background(), items)
		require.NoError(t, err)
	}
	return f
}

func (f *fixture) keys() []string {
	recs := f.nav.ActiveRoutes()
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Key
	}
	return out
}

func TestStartSeedsBothSides(t *testing.T) {
	f := newFixture(t, "home", "list")
	recs := f.nav.ActiveRoutes()
	require.Equal(t, []string{"home", "list"}, f.keys())
	require.Equal(t, route.IDs(recs), f.peer.IDs())
	require.Equal(t, "List", recs[1].Options["title"])

	f.content.mu.Lock()
	require.ElementsMatch(t, route.IDs(recs), f.content.seen)
	f.content.mu.Unlock()

	c, err := f.nav.Constants(context.Background())
	require.NoError(t, err)
	require.Equal(t, 44.0, c.NavBarHeight)
	require.EqualValues(t, 1, f.peer.Calls(sim.OpConstants))
}

func TestStartTwiceFails(t *testing.T) {
	f := newFixture(t, "home")
	_, err := f.nav.Start(context.Background(), []route.Item{{Key: "home"}})
	require.ErrorIs(t, err, route.ErrLibraryError)
}

func TestStartRejectsEmptyAndUnknown(t *testing.T) {
	f := newFixture(t)
	_, err := f.nav.Start(context.Background(), nil)
	require.ErrorIs(t, err, route.ErrInvalidArguments)

	_, err = f.nav.Start(context.Background(), []route.Item{{Key: "hme"}})
	require.ErrorIs(t, err, route.ErrInvalidRouteKey)
	require.Empty(t, f.nav.ActiveRoutes())

	_, err = f.nav.Start(context.Background(), []route.Item{{Key: "home"}})
	require.NoError(t, err)
}

// user back swipe from the top of three routes
func TestUserSwipeBack(t *testing.T) {
	f := newFixture(t, "home", "list", "detail")
	top := f.nav.ActiveRoutes()[2]
	ch, ok := f.nav.Events(top.ID)
	require.True(t, ok)

	var mu sync.Mutex
	didPop := 0
	ch.Subscribe(events.RouteDidPop, func(ev events.Event) {
		mu.Lock()
		defer mu.Unlock()
		didPop++
		require.True(t, ev.Payload.(events.PopPayload).UserInitiated)
	})

	require.True(t, f.peer.UserPop(f.nav.Handle()))
	require.Eventually(t, func() bool { return len(f.nav.ActiveRoutes()) == 2 }, time.Second, 5*time.Millisecond)
	require.Equal(t, []string{"home", "list"}, f.keys())
	for i, r := range f.nav.ActiveRoutes() {
		require.Equal(t, i, r.Index)
	}
	mu.Lock()
	require.Equal(t, 1, didPop)
	mu.Unlock()
	require.Eventually(t, func() bool { return !f.peer.Mounted(top.ID) }, time.Second, 5*time.Millisecond)
}

func TestCommandAfterSwipeSeesRemoval(t *testing.T) {
	f := newFixture(t, "home", "list", "detail")
	require.True(t, f.peer.UserPop(f.nav.Handle()))
	require.NoError(t, f.nav.Pop(context.Background()))
	require.Equal(t, []string{"home"}, f.keys())
	require.Equal(t, route.IDs(f.nav.ActiveRoutes()), f.peer.IDs())
}

func TestUpdateRouteOptionsOnlySendsChanges(t *testing.T) {
	f := newFixture(t, "home", "list")
	list := f.nav.ActiveRoutes()[1]

	sent, err := f.nav.UpdateRouteOptions(context.Background(), list.ID, route.Options{"title": "List"})
	require.NoError(t, err)
	require.False(t, sent)
	require.Zero(t, f.peer.Calls(sim.OpRouteOptions))

	sent, err = f.nav.UpdateRouteOptions(context.Background(), list.ID, route.Options{"title": "Inbox"})
	require.NoError(t, err)
	require.True(t, sent)
	got, ok := f.peer.RouteOptions(list.ID)
	require.True(t, ok)
	require.Equal(t, "Inbox", got["title"])
	require.Equal(t, "#00f", got["tintColor"])

	rec, _ := f.nav.FindMatching(route.Match{ID: list.ID})
	require.Equal(t, "Inbox", rec.Options["title"])

	f.mu.Lock()
	require.Equal(t, []bool{false, true}, f.updates)
	f.mu.Unlock()

	_, err = f.nav.UpdateRouteOptions(context.Background(), route.NewID(), nil)
	require.ErrorIs(t, err, route.ErrInvalidArguments)
}

func TestUpdateRouteOptionsSurvivesFailedPushInFlight(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "home", "list")
	list := f.nav.ActiveRoutes()[1]
	f.peer.HangNext(sim.OpPush, 100*time.Millisecond)
	f.peer.FailNext(sim.OpPush, errors.New("peer rejected push"))

	pushed := make(chan error, 1)
	go func() {
		_, err := f.nav.Push(ctx, route.Item{Key: "detail"})
		pushed <- err
	}()
	require.Eventually(t, func() bool { return f.nav.Status().State == dispatch.Busy }, time.Second, time.Millisecond)

	sent, err := f.nav.UpdateRouteOptions(ctx, list.ID, route.Options{"title": "Inbox"})
	require.NoError(t, err)
	require.True(t, sent)
	require.ErrorIs(t, <-pushed, route.ErrPushFailed)
	require.Equal(t, []string{"home", "list"}, f.keys())

	rec, ok := f.nav.FindMatching(route.Match{ID: list.ID})
	require.True(t, ok)
	require.Equal(t, "Inbox", rec.Options["title"])
	got, _ := f.peer.RouteOptions(list.ID)
	require.Equal(t, "Inbox", got["title"])

	sent, err = f.nav.UpdateRouteOptions(ctx, list.ID, route.Options{"title": "List"})
	require.NoError(t, err)
	require.True(t, sent)
	got, _ = f.peer.RouteOptions(list.ID)
	require.Equal(t, "List", got["title"])
}

func TestUpdateRouteOptionsStrictUnknownKey(t *testing.T) {
	f := &fixture{peer: sim.New(sim.Config{}), content: &contentLog{}}
	f.nav = New(Config{DiffStrict: true, Store: stack.Config{Debounce: time.Millisecond}}, templates(f.content), f.peer, f.peer)
	t.Cleanup(f.nav.Close)
	recs, err := f.nav.Start(context.Background(), []route.Item{{Key: "detail", Options: route.Options{"sparkles": 1}}})
	require.NoError(t, err)

	_, err = f.nav.UpdateRouteOptions(context.Background(), recs[0].ID, route.Options{"sparkles": 2})
	require.ErrorIs(t, err, route.ErrLibraryError)
	require.Zero(t, f.peer.Calls(sim.OpRouteOptions))
}

func TestConstantsFollowPeerChanges(t *testing.T) {
	f := newFixture(t, "home")
	var mu sync.Mutex
	var seen []peer.Constants
	f.nav.NavigatorEvents().Subscribe(events.NavigatorConstantsChanged, func(ev events.Event) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, ev.Payload.(peer.Constants))
	})

	f.peer.SetConstants(f.nav.Handle(), peer.Constants{NavBarHeight: 56})
	c, err := f.nav.Constants(context.Background())
	require.NoError(t, err)
	require.Equal(t, 56.0, c.NavBarHeight)
	mu.Lock()
	require.Len(t, seen, 1)
	mu.Unlock()

	f.peer.SetConstants(route.NewHandle(), peer.Constants{NavBarHeight: 99})
	c, _ = f.nav.Constants(context.Background())
	require.Equal(t, 56.0, c.NavBarHeight)
}

func TestPassthroughCommands(t *testing.T) {
	f := newFixture(t, "home")
	f.peer.OnCustomCommand(func(key string, data map[string]any) (map[string]any, error) {
		if key == "fail" {
			return nil, errors.New("nope")
		}
		return map[string]any{"echo": data["v"]}, nil
	})

	out, err := f.nav.SendCustomCommand(context.Background(), "ping", map[string]any{"v": 7})
	require.NoError(t, err)
	require.Equal(t, 7, out["echo"])
	_, err = f.nav.SendCustomCommand(context.Background(), "fail", nil)
	require.ErrorIs(t, err, route.ErrCommandFailed)

	require.NoError(t, f.nav.SetNavigationBarHidden(context.Background(), true, false))
	require.True(t, f.peer.Hidden())
}

func TestNativeOwnedRouteIsNotMounted(t *testing.T) {
	f := newFixture(t, "home")
	rec, err := f.nav.Push(context.Background(), route.Item{Key: "picker"})
	require.NoError(t, err)
	require.False(t, f.peer.Mounted(rec.ID))
	require.NoError(t, f.nav.Pop(context.Background()))
	require.Equal(t, []string{"home"}, f.keys())
}

func TestMatchingItemAndEvents(t *testing.T) {
	f := newFixture(t, "home", "list")
	item, ok := f.nav.GetMatchingRouteStackItem(route.Match{Key: "list", Index: route.At(1)})
	require.True(t, ok)
	require.Equal(t, "List", item.Options["title"])
	_, ok = f.nav.GetMatchingRouteStackItem(route.Match{Key: "list", Index: route.At(0)})
	require.False(t, ok)

	top := f.nav.ActiveRoutes()[1]
	ch, ok := f.nav.Events(top.ID)
	require.True(t, ok)
	require.NoError(t, f.nav.Pop(context.Background()))
	require.True(t, ch.Closed())
	_, ok = f.nav.Events(top.ID)
	require.False(t, ok)
}

func TestStackDepthHook(t *testing.T) {
	f := newFixture(t, "home")
	_, err := f.nav.Push(context.Background(), route.Item{Key: "detail"})
	require.NoError(t, err)
	require.NoError(t, f.nav.Pop(context.Background()))

	f.mu.Lock()
	defer f.mu.Unlock()
	require.Equal(t, 1, f.depths[len(f.depths)-1])
	require.Contains(t, f.depths, 2)
}

func TestCloseFailsLaterCommands(t *testing.T) {
	f := newFixture(t, "home")
	ch := f.nav.NavigatorEvents()
	f.nav.Close()
	require.True(t, ch.Closed())
	_, err := f.nav.Push(context.Background(), route.Item{Key: "detail"})
	require.ErrorIs(t, err, route.ErrClosed)
}
