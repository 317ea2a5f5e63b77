package events

import "github.com/jask/routesync/core/route"

// Event is one delivery. Payload holds the kind-specific message below.
type Event struct {
	Kind    Kind
	RouteID route.ID
	Payload any
}

// PopPayload accompanies RouteWillPop and RouteDidPop.
type PopPayload struct {
	RouteKey      string
	RouteIndex    int
	UserInitiated bool
}

// PressPayload accompanies the nav bar item press kinds.
type PressPayload struct {
	ItemKey   string
	ItemIndex int
	Item      *route.NavBarItem
}

// SearchPayload accompanies UpdateSearchResults.
type SearchPayload struct {
	Text string
}

// ShowPayload accompanies the navigator will/did show kinds.
type ShowPayload struct {
	RouteID    route.ID
	RouteKey   string
	RouteIndex int
}

// CustomCommandPayload accompanies NavigatorCustomCommand.
type CustomCommandPayload struct {
	CommandKey string
	Data       map[string]any
}
