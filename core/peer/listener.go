package peer

import (
	"github.com/jask/routesync/core/events"
	"github.com/jask/routesync/core/route"
)

// PopEvent describes a will/did pop notification. ID may be empty when the
// peer only knows the key and index.
type PopEvent struct {
	ID            route.ID
	RouteKey      string
	RouteIndex    int
	UserInitiated bool
}

// Listener is the event surface the peer drives. The bridge implements it.
type Listener interface {
	OnRouteRegistered(h route.Handle, id route.ID)
	OnRouteWillPop(h route.Handle, ev PopEvent)
	OnRouteDidPop(h route.Handle, ev PopEvent)
	OnRouteEvent(h route.Handle, id route.ID, kind events.Kind, payload any)
	OnNavigatorWillShow(h route.Handle, ev events.ShowPayload)
	OnNavigatorDidShow(h route.Handle, ev events.ShowPayload)
	OnUIConstantsChanged(h route.Handle, c Constants)
	OnCustomCommand(h route.Handle, key string, data map[string]any)
}

// Attacher is implemented by peers that take their listener at runtime.
type Attacher interface {
	Attach(Listener)
}
