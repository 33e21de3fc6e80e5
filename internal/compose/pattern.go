package compose

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// DefaultMaxTileSize bounds the longer side of a pattern tile in pixels.
const DefaultMaxTileSize = 300

// ErrEmptyTexture is returned when the texture has a zero width or height.
var ErrEmptyTexture = errors.New("texture has zero dimension")

// Pattern is a tile that repeats in both axes, without mirroring, to cover a
// canvas of any size.
type Pattern struct {
	Tile *image.NRGBA
}

// Size returns the tile dimensions.
func (p *Pattern) Size() (width, height int) {
	return p.Tile.Rect.Dx(), p.Tile.Rect.Dy()
}

// At samples the repeating pattern at canvas position (x, y).
func (p *Pattern) At(x, y int) color.NRGBA {
	w, h := p.Size()
	tx, ty := x%w, y%h
	if tx < 0 {
		tx += w
	}
	if ty < 0 {
		ty += h
	}
	i := p.Tile.PixOffset(tx, ty)
	s := p.Tile.Pix[i : i+4 : i+4]
	return color.NRGBA{R: s[0], G: s[1], B: s[2], A: s[3]}
}

// Canvas renders the pattern tiled across a width×height raster.
func (p *Pattern) Canvas(width, height int) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, width, height))
	tw, th := p.Size()
	for y := 0; y < height; y++ {
		src := p.Tile.Pix[p.Tile.PixOffset(0, y%th):]
		row := out.Pix[out.PixOffset(0, y) : out.PixOffset(0, y)+width*4]
		for x := 0; x < width; x += tw {
			copy(row[x*4:], src[:tw*4])
		}
	}
	return out
}

// PatternGenerator turns a texture into a bounded repeating tile.
type PatternGenerator struct {
	// MaxTileSize bounds the longer side of the tile. Non-positive values use
	// DefaultMaxTileSize.
	MaxTileSize int
}

// Generate resamples texture into a Pattern.
//
// A texture whose longer side exceeds MaxTileSize is scaled so that side is
// exactly MaxTileSize, using bilinear resampling. The shorter side is
// round(short·MaxTileSize/long), at least 1, so aspect ratio is kept. Smaller
// textures are copied unchanged.
func (g PatternGenerator) Generate(texture image.Image) (*Pattern, error) {
	b := texture.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrEmptyTexture, b.Dx(), b.Dy())
	}

	limit := g.MaxTileSize
	if limit <= 0 {
		limit = DefaultMaxTileSize
	}

	w, h := TileSize(b.Dx(), b.Dy(), limit)
	if w == b.Dx() && h == b.Dy() {
		return &Pattern{Tile: imaging.Clone(texture)}, nil
	}
	return &Pattern{Tile: imaging.Resize(texture, w, h, imaging.Linear)}, nil
}

// TileSize returns the tile dimensions for a width×height texture with its
// longer side capped at limit.
func TileSize(width, height, limit int) (int, int) {
	long := max(width, height)
	if long <= limit {
		return width, height
	}
	scale := func(v int) int {
		return max(int(math.Round(float64(v)*float64(limit)/float64(long))), 1)
	}
	if width >= height {
		return limit, scale(height)
	}
	return scale(width), limit
}
