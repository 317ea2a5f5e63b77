package route

// Color is either a plain value or a light/dark pair that the peer resolves
// against the current appearance.
type Color struct {
	Value string // plain color, e.g. "#ff0000" or "systemBlue"
	Light string
	Dark  string
}

// IsDynamic reports whether c is a light/dark pair.
func (c Color) IsDynamic() bool { return c.Value == "" && (c.Light != "" || c.Dark != "") }

// ImageKind tags the encoding of an ImageRef.
type ImageKind int

const (
	ImageAsset ImageKind = iota + 1
	ImageSystem
	ImageRequire
	ImageURL
	ImageGradient
	ImageRect
)

// ImageRef is a tagged union of the image encodings the peer understands.
// Only the fields relevant to Kind are meaningful.
type ImageRef struct {
	Kind ImageKind

	Name string // asset or system symbol name
	URI  string // require/url source

	Width  float64
	Height float64

	Colors []Color // gradient stops, or the fill of a rect
	Radius float64
}

// NavBarItemKind tags the variant of a nav bar button.
type NavBarItemKind int

const (
	NavBarItemText NavBarItemKind = iota + 1
	NavBarItemSystem
	NavBarItemImage
	NavBarItemCustom
)

func (k NavBarItemKind) String() string {
	switch k {
	case NavBarItemText:
		return "text"
	case NavBarItemSystem:
		return "system"
	case NavBarItemImage:
		return "image"
	case NavBarItemCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// NavBarItem is one left or right bar button. The variant is explicit so the
// peer never has to check for optional fields.
type NavBarItem struct {
	Kind NavBarItemKind
	Key  string

	Title      string   // text
	SystemItem string   // system
	Image      ImageRef // image
	CustomKey  string   // custom: name of an application-rendered view

	Tint    *Color
	Enabled bool
}
