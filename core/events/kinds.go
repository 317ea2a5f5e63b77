// Package events delivers lifecycle and UI events to the one route they
// concern. Each route record owns a Channel; nothing is broadcast globally.
package events

// Kind enumerates event types. Route kinds are delivered on a route's
// channel, navigator kinds on the navigator channel.
type Kind int

const (
	RouteWillPush Kind = iota + 1
	RouteDidPush
	RouteWillPop
	RouteDidPop
	RouteWillFocus
	RouteDidFocus
	RouteWillBlur
	RouteDidBlur
	PressNavBarLeftItem
	PressNavBarRightItem
	UpdateSearchResults
	SearchBarCancelPressed
	SearchControllerWillPresent
	SearchControllerDidPresent
	SearchControllerWillDismiss
	SearchControllerDidDismiss

	NavigatorWillShowRoute
	NavigatorDidShowRoute
	NavigatorConstantsChanged
	NavigatorCustomCommand
)

var kindNames = map[Kind]string{
	RouteWillPush:               "route-will-push",
	RouteDidPush:                "route-did-push",
	RouteWillPop:                "route-will-pop",
	RouteDidPop:                 "route-did-pop",
	RouteWillFocus:              "route-will-focus",
	RouteDidFocus:               "route-did-focus",
	RouteWillBlur:               "route-will-blur",
	RouteDidBlur:                "route-did-blur",
	PressNavBarLeftItem:         "press-nav-bar-left-item",
	PressNavBarRightItem:        "press-nav-bar-right-item",
	UpdateSearchResults:         "update-search-results",
	SearchBarCancelPressed:      "search-bar-cancel-pressed",
	SearchControllerWillPresent: "search-controller-will-present",
	SearchControllerDidPresent:  "search-controller-did-present",
	SearchControllerWillDismiss: "search-controller-will-dismiss",
	SearchControllerDidDismiss:  "search-controller-did-dismiss",
	NavigatorWillShowRoute:      "navigator-will-show-route",
	NavigatorDidShowRoute:       "navigator-did-show-route",
	NavigatorConstantsChanged:   "navigator-constants-changed",
	NavigatorCustomCommand:      "navigator-custom-command",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// IsRouteKind reports whether k belongs on a per-route channel.
func (k Kind) IsRouteKind() bool {
	return k >= RouteWillPush && k <= SearchControllerDidDismiss
}
