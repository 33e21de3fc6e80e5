package detection

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// ErrInvalidRegion is returned when a region has a non-positive box extent,
// fewer than three polygon points, or an unknown shape type.
var ErrInvalidRegion = errors.New("invalid region")

// Kind identifies which variant of a Region is active.
type Kind int

const (
	// KindBox is an axis-aligned bounding box.
	KindBox Kind = iota
	// KindPolygon is a closed polygon given by an ordered point list.
	KindPolygon
)

// String returns the wire name of the kind ("rectangle" or "polygon").
func (k Kind) String() string {
	switch k {
	case KindBox:
		return "rectangle"
	case KindPolygon:
		return "polygon"
	default:
		return "unknown"
	}
}

// Box is an axis-aligned rectangle in pixel coordinates.
//
// (X, Y) is the top-left corner (inclusive); the box covers Width columns and
// Height rows.
type Box struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect converts the box to an image.Rectangle. The far edges saturate
// instead of overflowing.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, saturatingAdd(b.X, b.Width), saturatingAdd(b.Y, b.Height))
}

func saturatingAdd(a, b int) int {
	switch {
	case b > 0 && a > math.MaxInt-b:
		return math.MaxInt
	case b < 0 && a < math.MinInt-b:
		return math.MinInt
	}
	return a + b
}

// coordLimit bounds polygon coordinates converted to pixels, so that
// rectangle widths stay representable.
const coordLimit = 1 << 40

func pixelCoord(v float64) int {
	return int(min(max(v, -coordLimit), coordLimit))
}

// Area returns Width × Height.
func (b Box) Area() int {
	return b.Width * b.Height
}

// BoxFromRect converts an image.Rectangle to a Box.
func BoxFromRect(r image.Rectangle) Box {
	return Box{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// Region is a tagged union of a Box or a polygon. Exactly one variant is
// active, selected by Kind.
type Region struct {
	Kind Kind

	// Box is valid when Kind == KindBox.
	Box Box

	// Points is valid when Kind == KindPolygon. The ring is treated as closed;
	// repeating the first point at the end is allowed but not required.
	Points orb.Ring
}

// NewBox returns a box region.
func NewBox(x, y, width, height int) Region {
	return Region{Kind: KindBox, Box: Box{X: x, Y: y, Width: width, Height: height}}
}

// NewPolygon returns a polygon region over the given points.
func NewPolygon(points ...orb.Point) Region {
	ring := make(orb.Ring, len(points))
	copy(ring, points)
	return Region{Kind: KindPolygon, Points: ring}
}

// Validate reports whether the region satisfies its variant's invariant:
// positive width and height for boxes, at least three points for polygons.
func (r Region) Validate() error {
	switch r.Kind {
	case KindBox:
		if r.Box.Width <= 0 || r.Box.Height <= 0 {
			return fmt.Errorf("%w: rectangle extents must be positive, got %dx%d",
				ErrInvalidRegion, r.Box.Width, r.Box.Height)
		}
	case KindPolygon:
		if len(r.Points) < 3 {
			return fmt.Errorf("%w: polygon needs at least 3 points, got %d",
				ErrInvalidRegion, len(r.Points))
		}
		for i, p := range r.Points {
			if !finite(p.X()) || !finite(p.Y()) {
				return fmt.Errorf("%w: polygon point %d is not finite", ErrInvalidRegion, i)
			}
		}
	default:
		return fmt.Errorf("%w: unknown region kind %d", ErrInvalidRegion, r.Kind)
	}
	return nil
}

// Bounds returns the integer bounding rectangle of the region. Polygon bounds
// are expanded outward to whole pixels.
func (r Region) Bounds() image.Rectangle {
	if r.Kind == KindBox {
		return r.Box.Rect()
	}
	if len(r.Points) == 0 {
		return image.Rectangle{}
	}
	b := r.Points.Bound()
	return image.Rect(
		pixelCoord(math.Floor(b.Min.X())), pixelCoord(math.Floor(b.Min.Y())),
		pixelCoord(math.Ceil(b.Max.X())), pixelCoord(math.Ceil(b.Max.Y())),
	)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Area returns the geometric area of the region in square pixels.
func (r Region) Area() float64 {
	if r.Kind == KindBox {
		return float64(r.Box.Area())
	}
	if len(r.Points) < 3 {
		return 0
	}
	return math.Abs(planar.Area(r.Points))
}

// SelectionSet is an ordered list of caller-drawn regions. Order has no
// effect on rendering; it is preserved for diagnostics.
type SelectionSet []Region

// Validate checks every region and reports the first failure with its index.
func (s SelectionSet) Validate() error {
	for i, r := range s {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("selection[%d]: %w", i, err)
		}
	}
	return nil
}

type pointJSON struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type regionJSON struct {
	Type   string      `json:"type"`
	X      int         `json:"x,omitempty"`
	Y      int         `json:"y,omitempty"`
	Width  int         `json:"width,omitempty"`
	Height int         `json:"height,omitempty"`
	Points []pointJSON `json:"points,omitempty"`
}

// MarshalJSON encodes the region as {"type":"rectangle","x":..} or
// {"type":"polygon","points":[{"x":..,"y":..}]}.
func (r Region) MarshalJSON() ([]byte, error) {
	out := regionJSON{Type: r.Kind.String()}
	switch r.Kind {
	case KindBox:
		out.X, out.Y, out.Width, out.Height = r.Box.X, r.Box.Y, r.Box.Width, r.Box.Height
	case KindPolygon:
		out.Points = make([]pointJSON, len(r.Points))
		for i, p := range r.Points {
			out.Points[i] = pointJSON{X: p.X(), Y: p.Y()}
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the shape written by MarshalJSON. An unknown type is
// reported as ErrInvalidRegion; extents are checked later by Validate.
func (r *Region) UnmarshalJSON(data []byte) error {
	var in regionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch in.Type {
	case "rectangle", "box":
		*r = NewBox(in.X, in.Y, in.Width, in.Height)
	case "polygon":
		pts := make([]orb.Point, len(in.Points))
		for i, p := range in.Points {
			pts[i] = orb.Point{p.X, p.Y}
		}
		*r = NewPolygon(pts...)
	default:
		return fmt.Errorf("%w: unknown selection type %q", ErrInvalidRegion, in.Type)
	}
	return nil
}
