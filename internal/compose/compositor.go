package compose

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/anthonynsimon/bild/blend"
	"github.com/anthonynsimon/bild/parallel"
	"github.com/disintegration/imaging"
)

// Default pass opacities.
const (
	DefaultOpacity         = 0.7
	DefaultLightingOpacity = 0.2
	DefaultFallbackOpacity = 0.5
)

// ErrMaskMismatch is returned when the mask and room sizes differ.
var ErrMaskMismatch = errors.New("mask size does not match room")

// Compositor blends a pattern over the masked pixels of a room raster.
type Compositor struct {
	// LightingOpacity is the strength of the shading pass.
	LightingOpacity float64

	// FallbackOpacity is the strength of the multiply blend used when the
	// primary pass leaves every masked pixel unchanged.
	FallbackOpacity float64
}

// NewCompositor returns a Compositor with the default pass opacities.
func NewCompositor() Compositor {
	return Compositor{
		LightingOpacity: DefaultLightingOpacity,
		FallbackOpacity: DefaultFallbackOpacity,
	}
}

// Composite is the output of one compositing run.
type Composite struct {
	Image *image.NRGBA

	// UsedFallback is true when the primary passes produced no visible change
	// and the multiply fallback was applied instead.
	UsedFallback bool

	// ChangedPixels counts masked pixels that differ from the room.
	ChangedPixels int
}

// Apply composites pattern over room inside mask.
//
// Parameters:
//   - room: Zero-origin room raster. It is not modified.
//   - mask: Selection with the same dimensions as room.
//   - pattern: Repeating texture tile, sampled at each pixel position modulo
//     the tile size.
//   - opacity: Primary overlay strength in [0,1]; it is scaled by the
//     pattern's own alpha.
//   - lighting: Whether to run the shading pass.
//
// # Passes
//
//  1. Primary overlay: out = room·(1-a) + pattern·a with a = opacity·patternA.
//  2. Lighting (optional): the multiply of the result with the original room
//     is mixed back in at LightingOpacity, restoring shadows and highlights.
//  3. Validation: if no masked pixel differs from room, passes 1 and 2 are
//     discarded and the multiply of room with the tiled pattern is mixed in at
//     FallbackOpacity instead.
//
// Pixels outside the mask are copied from room unchanged.
func (c Compositor) Apply(room *image.NRGBA, mask *Mask, pattern *Pattern, opacity float64, lighting bool) (*Composite, error) {
	if mask.Bounds() != room.Rect.Sub(room.Rect.Min) {
		return nil, fmt.Errorf("%w: mask %v, room %v", ErrMaskMismatch, mask.Bounds().Size(), room.Rect.Size())
	}
	if room.Rect.Min != (image.Point{}) {
		room = imaging.Clone(room)
	}
	opacity = clamp01(opacity)

	out := imaging.Clone(room)
	width, height := room.Rect.Dx(), room.Rect.Dy()

	parallel.Line(height, func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < width; x++ {
				if !mask.IsSet(x, y) {
					continue
				}
				p := pattern.At(x, y)
				a := opacity * float64(p.A) / 255
				i := out.PixOffset(x, y)
				out.Pix[i] = lerp(out.Pix[i], p.R, a)
				out.Pix[i+1] = lerp(out.Pix[i+1], p.G, a)
				out.Pix[i+2] = lerp(out.Pix[i+2], p.B, a)
				out.Pix[i+3] = lerp(out.Pix[i+3], 0xff, a)
			}
		}
	})

	if lighting {
		shaded := blend.Multiply(out, room)
		mixMasked(out, shaded, mask, c.LightingOpacity)
	}

	changed := changedPixels(room, out, mask)
	if changed > 0 {
		return &Composite{Image: out, ChangedPixels: changed}, nil
	}

	out = imaging.Clone(room)
	multiplied := blend.Multiply(room, pattern.Canvas(width, height))
	mixMasked(out, multiplied, mask, c.FallbackOpacity)

	return &Composite{
		Image:         out,
		UsedFallback:  true,
		ChangedPixels: changedPixels(room, out, mask),
	}, nil
}

// mixMasked moves every masked pixel of dst toward src by t. src is the
// premultiplied output of a bild blend; it is converted back to straight
// alpha before mixing.
func mixMasked(dst *image.NRGBA, src *image.RGBA, mask *Mask, t float64) {
	t = clamp01(t)
	width := dst.Rect.Dx()
	parallel.Line(dst.Rect.Dy(), func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < width; x++ {
				if !mask.IsSet(x, y) {
					continue
				}
				s := straight(src, x, y)
				i := dst.PixOffset(x, y)
				dst.Pix[i] = lerp(dst.Pix[i], s[0], t)
				dst.Pix[i+1] = lerp(dst.Pix[i+1], s[1], t)
				dst.Pix[i+2] = lerp(dst.Pix[i+2], s[2], t)
				dst.Pix[i+3] = lerp(dst.Pix[i+3], s[3], t)
			}
		}
	})
}

func straight(img *image.RGBA, x, y int) [4]uint8 {
	i := img.PixOffset(x, y)
	r, g, b, a := img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3]
	if a == 0xff || a == 0 {
		return [4]uint8{r, g, b, a}
	}
	un := func(v uint8) uint8 {
		return uint8(min(math.Round(float64(v)*255/float64(a)), 255))
	}
	return [4]uint8{un(r), un(g), un(b), a}
}

func changedPixels(a, b *image.NRGBA, mask *Mask) int {
	rows := make([]int, a.Rect.Dy())
	width := a.Rect.Dx()
	parallel.Line(len(rows), func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < width; x++ {
				if !mask.IsSet(x, y) {
					continue
				}
				i := a.PixOffset(x, y)
				if a.Pix[i] != b.Pix[i] || a.Pix[i+1] != b.Pix[i+1] ||
					a.Pix[i+2] != b.Pix[i+2] || a.Pix[i+3] != b.Pix[i+3] {
					rows[y]++
				}
			}
		}
	})

	n := 0
	for _, c := range rows {
		n += c
	}
	return n
}

func lerp(from, to uint8, t float64) uint8 {
	v := float64(from)*(1-t) + float64(to)*t
	return uint8(math.Max(0, math.Min(255, math.Round(v))))
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
