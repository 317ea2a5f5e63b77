package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jask/routesync/core/route"
)

func TestChannelDeliversOnlySubscribedKind(t *testing.T) {
	ch := NewChannel("r1")
	var got []Kind
	ch.Subscribe(RouteDidPop, func(ev Event) { got = append(got, ev.Kind) })

	require.True(t, ch.Emit(RouteDidFocus, nil))
	require.True(t, ch.Emit(RouteDidPop, PopPayload{RouteIndex: 2}))
	require.Equal(t, []Kind{RouteDidPop}, got)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	ch := NewChannel("r1")
	hits := 0
	unsubscribe := ch.Subscribe(PressNavBarLeftItem, func(Event) { hits++ })
	ch.Emit(PressNavBarLeftItem, PressPayload{ItemKey: "back"})
	unsubscribe()
	ch.Emit(PressNavBarLeftItem, PressPayload{ItemKey: "back"})
	require.Equal(t, 1, hits)
}

func TestClosedChannelDropsEvents(t *testing.T) {
	ch := NewChannel("r1")
	hits := 0
	ch.Subscribe(RouteDidPop, func(Event) { hits++ })
	ch.Close()
	ch.Close()

	require.False(t, ch.Emit(RouteDidPop, nil))
	require.Zero(t, hits)
	require.True(t, ch.Closed())

	_, err := ch.Next(context.Background(), RouteDidPop)
	require.ErrorIs(t, err, route.ErrLibraryError)
}

func TestNextWaitsForEvent(t *testing.T) {
	ch := NewChannel("r1")
	go func() {
		time.Sleep(10 * time.Millisecond)
		ch.Emit(UpdateSearchResults, SearchPayload{Text: "abc"})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ev, err := ch.Next(ctx, UpdateSearchResults)
	require.NoError(t, err)
	require.Equal(t, route.ID("r1"), ev.RouteID)
	require.Equal(t, SearchPayload{Text: "abc"}, ev.Payload)
}

func TestRegistryLifecycle(t *testing.T) {
	reg := NewRegistry()
	a := reg.Open("a")
	require.Same(t, a, reg.Open("a"))
	reg.Open("b")
	require.Equal(t, 2, reg.Len())

	reg.Close("a")
	_, ok := reg.Lookup("a")
	require.False(t, ok)
	require.True(t, a.Closed())

	reg.CloseAll()
	require.Zero(t, reg.Len())
}

func TestKindClassification(t *testing.T) {
	require.True(t, RouteDidBlur.IsRouteKind())
	require.True(t, SearchControllerDidDismiss.IsRouteKind())
	require.False(t, NavigatorDidShowRoute.IsRouteKind())
	require.Equal(t, "route-did-pop", RouteDidPop.String())
}
