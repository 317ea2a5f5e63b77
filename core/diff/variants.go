package diff

import "github.com/jask/routesync/core/route"

// ColorEqual compares colors given as a plain string, a route.Color or a
// *route.Color.
func ColorEqual(a, b any) bool {
	ca, okA := asColor(a)
	cb, okB := asColor(b)
	if !okA || !okB {
		return false
	}
	if ca.IsDynamic() != cb.IsDynamic() {
		return false
	}
	if ca.IsDynamic() {
		return ca.Light == cb.Light && ca.Dark == cb.Dark
	}
	return ca.Value == cb.Value
}

func asColor(v any) (route.Color, bool) {
	switch c := v.(type) {
	case string:
		return route.Color{Value: c}, true
	case route.Color:
		return c, true
	case *route.Color:
		if c == nil {
			return route.Color{}, false
		}
		return *c, true
	}
	return route.Color{}, false
}

// ImageEqual compares two route.ImageRef values (or pointers) by variant.
func ImageEqual(a, b any) bool {
	ia, okA := asImage(a)
	ib, okB := asImage(b)
	if !okA || !okB || ia.Kind != ib.Kind {
		return false
	}
	switch ia.Kind {
	case route.ImageAsset, route.ImageSystem:
		return ia.Name == ib.Name
	case route.ImageRequire, route.ImageURL:
		return ia.URI == ib.URI && ia.Width == ib.Width && ia.Height == ib.Height
	case route.ImageGradient, route.ImageRect:
		if ia.Width != ib.Width || ia.Height != ib.Height || ia.Radius != ib.Radius {
			return false
		}
		if len(ia.Colors) != len(ib.Colors) {
			return false
		}
		for i := range ia.Colors {
			if !ColorEqual(ia.Colors[i], ib.Colors[i]) {
				return false
			}
		}
		return true
	}
	return false
}

func asImage(v any) (route.ImageRef, bool) {
	switch img := v.(type) {
	case route.ImageRef:
		return img, true
	case *route.ImageRef:
		if img == nil {
			return route.ImageRef{}, false
		}
		return *img, true
	}
	return route.ImageRef{}, false
}

// NavBarItemEqual compares two single nav bar items.
func NavBarItemEqual(a, b any) bool {
	ia, okA := a.(route.NavBarItem)
	ib, okB := b.(route.NavBarItem)
	if !okA || !okB {
		return false
	}
	return navBarItemEqual(ia, ib)
}

// NavBarItemsEqual compares two []route.NavBarItem element by element.
func NavBarItemsEqual(a, b any) bool {
	la, okA := a.([]route.NavBarItem)
	lb, okB := b.([]route.NavBarItem)
	if !okA || !okB || len(la) != len(lb) {
		return false
	}
	for i := range la {
		if !navBarItemEqual(la[i], lb[i]) {
			return false
		}
	}
	return true
}

func navBarItemEqual(a, b route.NavBarItem) bool {
	if a.Kind != b.Kind || a.Key != b.Key || a.Enabled != b.Enabled {
		return false
	}
	if (a.Tint == nil) != (b.Tint == nil) {
		return false
	}
	if a.Tint != nil && !ColorEqual(*a.Tint, *b.Tint) {
		return false
	}
	switch a.Kind {
	case route.NavBarItemText:
		return a.Title == b.Title
	case route.NavBarItemSystem:
		return a.SystemItem == b.SystemItem
	case route.NavBarItemImage:
		return ImageEqual(a.Image, b.Image)
	case route.NavBarItemCustom:
		return a.CustomKey == b.CustomKey
	}
	return false
}

// DefaultProperties is the comparator map for the options a navigator route
// understands.
func DefaultProperties() PropertyMap {
	return PropertyMap{
		"title":                         Shallow,
		"prompt":                        Shallow,
		"largeTitleDisplayMode":         Shallow,
		"statusBarStyle":                Shallow,
		"hidesBackButton":               Shallow,
		"backButtonTitle":               Shallow,
		"backButtonDisplayMode":         Shallow,
		"leftItemsSupplementBackButton": Shallow,
		"allowTouchEventsToPassThroughNavigationBar": Shallow,
		"navBarButtonBackItemConfig":                 Custom(NavBarItemEqual),
		"navBarButtonLeftItemsConfig":                Custom(NavBarItemsEqual),
		"navBarButtonRightItemsConfig":               Custom(NavBarItemsEqual),
		"tintColor":                                  Custom(ColorEqual),
		"barTintColor":                               Custom(ColorEqual),
		"backgroundImage":                            Custom(ImageEqual),
		"titleTextAttributes":                        ShallowObject,
		"largeTitleTextAttributes":                   ShallowObject,
		"routeContainerStyle":                        ShallowObject,
		"transitionConfigPush":                       ShallowObject,
		"transitionConfigPop":                        ShallowObject,
		"navBarItemsOrder":                           ShallowArray,
		"navigationBarConfigOverride":                Deep,
		"navBarAppearanceOverride":                   Deep,
		"searchBarConfig":                            Deep,
	}
}
