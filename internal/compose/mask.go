package compose

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"slices"

	"github.com/disintegration/imaging"
	"github.com/paulmach/orb"

	"github.com/ironsheep/wall-texture-mcp/internal/detection"
)

// DefaultFallbackBand is the fraction of the frame height, measured from the
// top, that is selected when no region sets any pixel.
const DefaultFallbackBand = 0.6

// Mask is a binary selection over a room raster. A pixel is either set (alpha
// 255) or clear (alpha 0).
type Mask struct {
	img      *image.Alpha
	count    int
	fallback bool
}

// NewMask returns an empty mask of the given size.
func NewMask(width, height int) *Mask {
	return &Mask{img: image.NewAlpha(image.Rect(0, 0, width, height))}
}

// Bounds returns the mask rectangle, always anchored at the origin.
func (m *Mask) Bounds() image.Rectangle { return m.img.Rect }

// IsSet reports whether (x, y) is selected. Points outside the mask are not.
func (m *Mask) IsSet(x, y int) bool {
	if !(image.Point{X: x, Y: y}).In(m.img.Rect) {
		return false
	}
	return m.img.Pix[m.img.PixOffset(x, y)] != 0
}

// Set selects (x, y). Points outside the mask are ignored.
func (m *Mask) Set(x, y int) {
	if !(image.Point{X: x, Y: y}).In(m.img.Rect) {
		return
	}
	i := m.img.PixOffset(x, y)
	if m.img.Pix[i] == 0 {
		m.img.Pix[i] = 0xff
		m.count++
	}
}

// Count returns the number of selected pixels.
func (m *Mask) Count() int { return m.count }

// Coverage returns the selected fraction of the frame, in [0,1].
func (m *Mask) Coverage() float64 {
	total := m.img.Rect.Dx() * m.img.Rect.Dy()
	if total == 0 {
		return 0
	}
	return float64(m.count) / float64(total)
}

// UsedFallback reports whether the mask is the top-band fallback rather than
// the union of its regions.
func (m *Mask) UsedFallback() bool { return m.fallback }

// Image returns the mask as an alpha raster. The raster is shared; callers
// must not modify it.
func (m *Mask) Image() *image.Alpha { return m.img }

// FillRect selects every pixel of r that lies inside the mask.
func (m *Mask) FillRect(r image.Rectangle) {
	r = r.Intersect(m.img.Rect)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			m.Set(x, y)
		}
	}
}

// FillPolygon selects the pixels whose centres lie inside ring under the
// even-odd rule. The ring is closed implicitly.
func (m *Mask) FillPolygon(ring orb.Ring) {
	if len(ring) < 3 {
		return
	}

	// Bounds and crossings are clamped to the frame before converting to
	// int; huge coordinates would otherwise overflow.
	w, h := float64(m.img.Rect.Dx()), float64(m.img.Rect.Dy())
	bound := ring.Bound()
	y0 := int(math.Floor(clampf(bound.Min.Y(), 0, h)))
	y1 := int(math.Ceil(clampf(bound.Max.Y(), 0, h)))

	xs := make([]float64, 0, 8)
	for y := y0; y < y1; y++ {
		cy := float64(y) + 0.5
		xs = xs[:0]
		for i := range ring {
			a, b := ring[i], ring[(i+1)%len(ring)]
			if (a.Y() <= cy) == (b.Y() <= cy) {
				continue
			}
			xs = append(xs, a.X()+(cy-a.Y())*(b.X()-a.X())/(b.Y()-a.Y()))
		}
		slices.Sort(xs)

		for i := 0; i+1 < len(xs); i += 2 {
			// pixel x is inside when xs[i] <= x+0.5 < xs[i+1]
			from := int(math.Ceil(clampf(xs[i], 0, w) - 0.5))
			to := int(math.Ceil(clampf(xs[i+1], 0, w) - 0.5))
			for x := from; x < to; x++ {
				m.Set(x, y)
			}
		}
	}
}

func clampf(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// fillBand selects full rows from the top of the mask down to
// floor(fraction·height), and at least one row.
func (m *Mask) fillBand(fraction float64) {
	h := m.img.Rect.Dy()
	rows := max(int(math.Floor(fraction*float64(h))), 1)
	m.FillRect(image.Rect(0, 0, m.img.Rect.Dx(), min(rows, h)))
	m.fallback = true
}

// MaskBuilder rasterizes wall regions into a Mask.
type MaskBuilder struct {
	// FallbackBand is the top fraction of the frame selected when the regions
	// cover no pixel. Values outside (0,1] fall back to DefaultFallbackBand.
	FallbackBand float64
}

// NewMaskBuilder returns a builder with the default fallback band.
func NewMaskBuilder() MaskBuilder {
	return MaskBuilder{FallbackBand: DefaultFallbackBand}
}

// Build rasterizes regions into a width×height mask.
//
// Boxes are filled directly and clipped to the frame. Polygons are scan
// converted with the even-odd rule, sampling at pixel centres. Every region is
// validated first; an invalid one returns an error wrapping
// detection.ErrInvalidRegion and nothing is drawn.
//
// If no pixel ends up selected (no regions, or regions entirely off-frame),
// the top FallbackBand of the frame is selected instead.
func (b MaskBuilder) Build(width, height int, regions []detection.Region) (*Mask, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("mask size must be positive, got %dx%d", width, height)
	}
	if err := detection.SelectionSet(regions).Validate(); err != nil {
		return nil, err
	}

	m := NewMask(width, height)
	for _, r := range regions {
		switch r.Kind {
		case detection.KindBox:
			m.FillRect(r.Box.Rect())
		case detection.KindPolygon:
			m.FillPolygon(r.Points)
		}
	}

	if m.count == 0 {
		band := b.FallbackBand
		if band <= 0 || band > 1 {
			band = DefaultFallbackBand
		}
		m.fillBand(band)
	}
	return m, nil
}

// Overlay returns a copy of img with the selected pixels tinted toward c at
// c's alpha. Used for wall detection previews.
func (m *Mask) Overlay(img *image.NRGBA, c color.NRGBA) *image.NRGBA {
	out := imaging.Clone(img)
	a := float64(c.A) / 255
	for y := 0; y < out.Rect.Dy(); y++ {
		for x := 0; x < out.Rect.Dx(); x++ {
			if !m.IsSet(x, y) {
				continue
			}
			i := out.PixOffset(x, y)
			out.Pix[i] = lerp(out.Pix[i], c.R, a)
			out.Pix[i+1] = lerp(out.Pix[i+1], c.G, a)
			out.Pix[i+2] = lerp(out.Pix[i+2], c.B, a)
		}
	}
	return out
}
