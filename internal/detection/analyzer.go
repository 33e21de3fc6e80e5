package detection

import (
	"image"

	"gonum.org/v1/gonum/stat"
)

// UniformityScale normalizes block colour variance into a [0,1] uniformity
// score. A block whose summed per-channel variance reaches this value scores 0.
const UniformityScale = 10000.0

// Color is the mean colour of a block together with its mean luminance.
// Components are in the 0-255 range.
type Color struct {
	R         float64 `json:"r"`
	G         float64 `json:"g"`
	B         float64 `json:"b"`
	Luminance float64 `json:"luminance"`
}

// Uniformity scores how flat the colour of the s×s block at (x, y) is.
//
// Parameters:
//   - img: Source raster.
//   - x, y: Top-left corner of the block.
//   - s: Block edge length. Callers clip s so that x+s ≤ width and y+s ≤ height.
//
// Returns a value in [0,1] where 1 means every pixel has the same RGB colour.
//
// # Algorithm
//
// The mean R, G and B of the block are computed, then the squared deviation of
// every pixel from that mean is summed over the three channels and divided by
// the pixel count (the sum of the per-channel population variances). The score
// is 1 - variance/UniformityScale, clamped at 0.
func Uniformity(img *image.NRGBA, x, y, s int) float64 {
	return UniformityRect(img, image.Rect(x, y, x+s, y+s))
}

// Luminance returns the mean ITU-R BT.601 luminance
// (0.299*R + 0.587*G + 0.114*B) of the s×s block at (x, y).
func Luminance(img *image.NRGBA, x, y, s int) float64 {
	return LuminanceRect(img, image.Rect(x, y, x+s, y+s))
}

// AverageColor returns the mean colour and luminance of the s×s block at (x, y).
func AverageColor(img *image.NRGBA, x, y, s int) Color {
	return AverageColorRect(img, image.Rect(x, y, x+s, y+s))
}

// UniformityRect is Uniformity over an arbitrary rectangle. The rectangle is
// clipped to the raster; an empty intersection scores 0.
func UniformityRect(img *image.NRGBA, r image.Rectangle) float64 {
	ch, ok := channels(img, r)
	if !ok {
		return 0
	}
	if len(ch.r) == 1 {
		return 1
	}
	_, vr := stat.PopMeanVariance(ch.r, nil)
	_, vg := stat.PopMeanVariance(ch.g, nil)
	_, vb := stat.PopMeanVariance(ch.b, nil)

	u := 1 - (vr+vg+vb)/UniformityScale
	if u < 0 {
		return 0
	}
	return u
}

// LuminanceRect is Luminance over an arbitrary rectangle, clipped to the raster.
func LuminanceRect(img *image.NRGBA, r image.Rectangle) float64 {
	return AverageColorRect(img, r).Luminance
}

// AverageColorRect is AverageColor over an arbitrary rectangle, clipped to the
// raster. An empty intersection yields the zero Color.
func AverageColorRect(img *image.NRGBA, r image.Rectangle) Color {
	ch, ok := channels(img, r)
	if !ok {
		return Color{}
	}
	return Color{
		R:         stat.Mean(ch.r, nil),
		G:         stat.Mean(ch.g, nil),
		B:         stat.Mean(ch.b, nil),
		Luminance: stat.Mean(ch.lum, nil),
	}
}

// PixelLuminance converts 8-bit RGB to luminance using BT.601 weights.
func PixelLuminance(r, g, b uint8) float64 {
	return 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
}

type blockChannels struct {
	r, g, b, lum []float64
}

// channels splits the pixels of r (clipped to img) into per-channel samples.
func channels(img *image.NRGBA, r image.Rectangle) (blockChannels, bool) {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return blockChannels{}, false
	}

	n := r.Dx() * r.Dy()
	ch := blockChannels{
		r:   make([]float64, 0, n),
		g:   make([]float64, 0, n),
		b:   make([]float64, 0, n),
		lum: make([]float64, 0, n),
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		i := img.PixOffset(r.Min.X, y)
		for x := r.Min.X; x < r.Max.X; x++ {
			pr, pg, pb := img.Pix[i], img.Pix[i+1], img.Pix[i+2]
			ch.r = append(ch.r, float64(pr))
			ch.g = append(ch.g, float64(pg))
			ch.b = append(ch.b, float64(pb))
			ch.lum = append(ch.lum, PixelLuminance(pr, pg, pb))
			i += 4
		}
	}
	return ch, true
}
