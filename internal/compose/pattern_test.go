package compose

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(width, height int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestTileSize(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		wantW, wantH  int
	}{
		{"within bound", 50, 50, 50, 50},
		{"exactly at bound", 300, 120, 300, 120},
		{"landscape", 600, 300, 300, 150},
		{"portrait", 300, 600, 150, 300},
		{"rounded", 1000, 333, 300, 100},
		{"thin strip", 1000, 1, 300, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := TileSize(tt.width, tt.height, DefaultMaxTileSize)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}

func TestPatternGenerator_Bounded(t *testing.T) {
	p, err := PatternGenerator{}.Generate(solid(900, 450, color.NRGBA{10, 20, 30, 255}))
	require.NoError(t, err)

	w, h := p.Size()
	assert.Equal(t, 300, w)
	assert.Equal(t, 150, h)
	assert.Equal(t, color.NRGBA{10, 20, 30, 255}, p.At(123, 45))
}

func TestPatternGenerator_SmallTextureCopied(t *testing.T) {
	tex := solid(40, 20, color.NRGBA{200, 0, 0, 255})
	p, err := PatternGenerator{}.Generate(tex)
	require.NoError(t, err)

	assert.Equal(t, tex.Pix, p.Tile.Pix)
	tex.Pix[0] = 0
	assert.Equal(t, uint8(200), p.Tile.Pix[0], "tile must not alias the texture")
}

func TestPatternGenerator_EmptyTexture(t *testing.T) {
	_, err := PatternGenerator{}.Generate(image.NewNRGBA(image.Rect(0, 0, 0, 10)))
	assert.ErrorIs(t, err, ErrEmptyTexture)
}

func TestPattern_RepeatsModuloTile(t *testing.T) {
	tile := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	tile.SetNRGBA(0, 0, color.NRGBA{1, 0, 0, 255})
	tile.SetNRGBA(1, 0, color.NRGBA{2, 0, 0, 255})
	tile.SetNRGBA(0, 1, color.NRGBA{3, 0, 0, 255})
	tile.SetNRGBA(1, 1, color.NRGBA{4, 0, 0, 255})
	p := &Pattern{Tile: tile}

	assert.Equal(t, uint8(2), p.At(3, 2).R)
	assert.Equal(t, uint8(4), p.At(5, 7).R)
	assert.Equal(t, uint8(2), p.At(-1, 0).R)

	canvas := p.Canvas(5, 3)
	assert.Equal(t, image.Rect(0, 0, 5, 3), canvas.Rect)
	for y := 0; y < 3; y++ {
		for x := 0; x < 5; x++ {
			assert.Equal(t, p.At(x, y), canvas.NRGBAAt(x, y), "canvas pixel (%d,%d)", x, y)
		}
	}
}
