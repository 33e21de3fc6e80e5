package detection

import (
	"image"
	"image/color"
	"math"
)

// Strategy names reported in diagnostics.
const (
	StrategyBlockGrowth = "block-growth"
	StrategyFloodFill   = "flood-fill"
	StrategyNone        = "none"
)

// Params holds the thresholds used by both detection strategies.
type Params struct {
	// BlockSize is the grid stride and seed block edge for block-growth, and
	// also the growth step in pixels.
	BlockSize int `yaml:"block_size"`

	// SeedUniformity is the uniformity a block must exceed to seed a wall.
	SeedUniformity float64 `yaml:"seed_uniformity"`

	// MinLuminance and MaxLuminance bound a seed's mean luminance (exclusive).
	MinLuminance float64 `yaml:"min_luminance"`
	MaxLuminance float64 `yaml:"max_luminance"`

	// GrowthRatio times the seed uniformity is the bar a new strip must clear.
	GrowthRatio float64 `yaml:"growth_ratio"`

	// MinWallSize is the minimum width and height of a block-growth region.
	MinWallSize int `yaml:"min_wall_size"`

	// FloodGrid is the sampling stride for flood-fill seeds.
	FloodGrid int `yaml:"flood_grid"`

	// FloodTolerance is the maximum Euclidean RGB distance from the seed colour.
	FloodTolerance float64 `yaml:"flood_tolerance"`

	// MinFloodSize is the minimum width and height of a flood-fill region.
	MinFloodSize int `yaml:"min_flood_size"`

	// NearZeroArea is the fraction of the image below which block-growth output
	// is treated as empty and flood-fill runs instead.
	NearZeroArea float64 `yaml:"near_zero_area"`
}

// DefaultParams returns the standard wall-detection thresholds.
func DefaultParams() Params {
	return Params{
		BlockSize:      20,
		SeedUniformity: 0.85,
		MinLuminance:   80,
		MaxLuminance:   240,
		GrowthRatio:    0.8,
		MinWallSize:    80,
		FloodGrid:      10,
		FloodTolerance: 30,
		MinFloodSize:   50,
		NearZeroArea:   0.005,
	}
}

// Strategy turns a raster into candidate wall regions. Implementations hold no
// state between calls.
type Strategy interface {
	Name() string
	Detect(img *image.NRGBA) []Region
}

// BlockGrowth seeds walls from flat, mid-luminance grid blocks and grows each
// seed outward strip by strip while the colour stays flat.
type BlockGrowth struct {
	Params Params
}

// Name implements Strategy.
func (BlockGrowth) Name() string { return StrategyBlockGrowth }

// Detect scans the raster on a BlockSize grid and returns one box per
// accepted seed, in scan order. Boxes may overlap; use Merge to reduce them.
//
// # Algorithm
//
//  1. For each grid block (clipped at the raster edge), compute uniformity and
//     luminance. A block seeds when uniformity > SeedUniformity and
//     MinLuminance < luminance < MaxLuminance.
//  2. Grow the seed box one BlockSize strip at a time, cycling up, right, down,
//     left. A strip is accepted while its uniformity stays above
//     GrowthRatio × seed uniformity. A direction that fails, or runs off the
//     raster, stops for good.
//  3. Keep the box only if it is at least MinWallSize in both dimensions.
//
// Blocks lying entirely inside an accepted box are not re-seeded.
func (b BlockGrowth) Detect(img *image.NRGBA) []Region {
	p := b.Params
	if p.BlockSize <= 0 {
		p.BlockSize = DefaultParams().BlockSize
	}
	bounds := img.Bounds()

	accepted := make([]image.Rectangle, 0)
	for y := bounds.Min.Y; y < bounds.Max.Y; y += p.BlockSize {
		for x := bounds.Min.X; x < bounds.Max.X; x += p.BlockSize {
			block := image.Rect(x, y, x+p.BlockSize, y+p.BlockSize).Intersect(bounds)
			if containedIn(block, accepted) {
				continue
			}

			u := UniformityRect(img, block)
			if u <= p.SeedUniformity {
				continue
			}
			lum := LuminanceRect(img, block)
			if lum <= p.MinLuminance || lum >= p.MaxLuminance {
				continue
			}

			box := b.grow(img, block, u*p.GrowthRatio, p.BlockSize)
			if box.Dx() < p.MinWallSize || box.Dy() < p.MinWallSize {
				continue
			}
			accepted = append(accepted, box)
		}
	}

	regions := make([]Region, 0, len(accepted))
	for _, r := range accepted {
		regions = append(regions, Region{Kind: KindBox, Box: BoxFromRect(r.Sub(bounds.Min))})
	}
	return regions
}

// growth directions, in the order they are attempted each round
const (
	growUp = iota
	growRight
	growDown
	growLeft
)

func (b BlockGrowth) grow(img *image.NRGBA, box image.Rectangle, limit float64, step int) image.Rectangle {
	bounds := img.Bounds()
	active := [4]bool{true, true, true, true}

	for active[growUp] || active[growRight] || active[growDown] || active[growLeft] {
		for dir := range active {
			if !active[dir] {
				continue
			}
			strip := growthStrip(box, dir, step).Intersect(bounds)
			if strip.Empty() || UniformityRect(img, strip) <= limit {
				active[dir] = false
				continue
			}
			box = box.Union(strip)
		}
	}
	return box
}

// growthStrip returns the step-wide band adjacent to box on the given side.
func growthStrip(box image.Rectangle, dir, step int) image.Rectangle {
	switch dir {
	case growUp:
		return image.Rect(box.Min.X, box.Min.Y-step, box.Max.X, box.Min.Y)
	case growRight:
		return image.Rect(box.Max.X, box.Min.Y, box.Max.X+step, box.Max.Y)
	case growDown:
		return image.Rect(box.Min.X, box.Max.Y, box.Max.X, box.Max.Y+step)
	default:
		return image.Rect(box.Min.X-step, box.Min.Y, box.Min.X, box.Max.Y)
	}
}

func containedIn(r image.Rectangle, boxes []image.Rectangle) bool {
	for _, b := range boxes {
		if r.In(b) {
			return true
		}
	}
	return false
}

// FloodFill groups pixels of similar colour into connected areas and reports
// the bounding box of each large one.
type FloodFill struct {
	Params Params
}

// Name implements Strategy.
func (FloodFill) Name() string { return StrategyFloodFill }

// Detect samples the raster every FloodGrid pixels. Each sample not already
// claimed by an earlier fill seeds a 4-connected flood fill that admits pixels
// within FloodTolerance (Euclidean RGB distance) of the seed colour. Bounding
// boxes narrower or shorter than MinFloodSize are dropped.
func (f FloodFill) Detect(img *image.NRGBA) []Region {
	p := f.Params
	if p.FloodGrid <= 0 {
		p.FloodGrid = DefaultParams().FloodGrid
	}
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	visited := make([]bool, width*height)
	tol2 := int(math.Floor(p.FloodTolerance * p.FloodTolerance))

	regions := make([]Region, 0)
	for y := 0; y < height; y += p.FloodGrid {
		for x := 0; x < width; x += p.FloodGrid {
			if visited[y*width+x] {
				continue
			}
			box := floodFill(img, visited, x, y, tol2, nil)
			if box.Dx() < p.MinFloodSize || box.Dy() < p.MinFloodSize {
				continue
			}
			regions = append(regions, Region{Kind: KindBox, Box: BoxFromRect(box)})
		}
	}
	return regions
}

// floodFill performs an iterative 4-connected flood fill from (startX, startY),
// in coordinates relative to the raster origin.
//
// A pixel is admitted when its squared RGB distance to the seed pixel is at
// most tol2; admitted pixels are marked in visited and passed to visit when it
// is non-nil. Rejected pixels stay unvisited so another seed may claim them.
// Returns the bounding box (exclusive max) of all admitted pixels.
func floodFill(img *image.NRGBA, visited []bool, startX, startY, tol2 int, visit func(image.Point)) image.Rectangle {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	seed := img.NRGBAAt(bounds.Min.X+startX, bounds.Min.Y+startY)

	minX, minY := startX, startY
	maxX, maxY := startX, startY

	stack := []image.Point{{X: startX, Y: startY}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.X < 0 || p.X >= width || p.Y < 0 || p.Y >= height {
			continue
		}
		if visited[p.Y*width+p.X] {
			continue
		}
		c := img.NRGBAAt(bounds.Min.X+p.X, bounds.Min.Y+p.Y)
		if squaredDistance(seed, c) > tol2 {
			continue
		}

		visited[p.Y*width+p.X] = true
		if visit != nil {
			visit(p)
		}

		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)

		stack = append(stack,
			image.Point{X: p.X + 1, Y: p.Y},
			image.Point{X: p.X - 1, Y: p.Y},
			image.Point{X: p.X, Y: p.Y + 1},
			image.Point{X: p.X, Y: p.Y - 1},
		)
	}

	return image.Rect(minX, minY, maxX+1, maxY+1)
}

// ColorDistance returns the Euclidean distance between two colours in 8-bit
// RGB space. Alpha is ignored.
func ColorDistance(a, b color.NRGBA) float64 {
	return math.Sqrt(float64(squaredDistance(a, b)))
}

func squaredDistance(a, b color.NRGBA) int {
	dr := int(a.R) - int(b.R)
	dg := int(a.G) - int(b.G)
	db := int(a.B) - int(b.B)
	return dr*dr + dg*dg + db*db
}

// Detection is the outcome of running a Segmenter over one raster.
type Detection struct {
	// Strategy names the strategy whose output was kept, or StrategyNone.
	Strategy string

	// Candidates are the raw, possibly overlapping, regions it produced.
	Candidates []Region
}

// Segmenter chains a primary and a fallback strategy.
type Segmenter struct {
	Primary  Strategy
	Fallback Strategy

	// NearZeroArea is the covered fraction of the image below which the
	// primary result is discarded in favour of the fallback.
	NearZeroArea float64
}

// NewSegmenter returns block-growth backed by flood-fill, configured by p.
func NewSegmenter(p Params) *Segmenter {
	return &Segmenter{
		Primary:      BlockGrowth{Params: p},
		Fallback:     FloodFill{Params: p},
		NearZeroArea: p.NearZeroArea,
	}
}

// Segment runs the primary strategy and falls through to the fallback when
// the primary finds nothing or only a near-zero area. A near-zero primary
// result is still kept if the fallback finds nothing at all. When neither
// finds anything the Detection has StrategyNone and no candidates; the mask
// builder supplies the final fallback.
func (s *Segmenter) Segment(img *image.NRGBA) Detection {
	total := float64(img.Bounds().Dx() * img.Bounds().Dy())

	var primary []Region
	if s.Primary != nil {
		primary = s.Primary.Detect(img)
		if len(primary) > 0 && total > 0 && coveredArea(Merge(primary))/total >= s.NearZeroArea {
			return Detection{Strategy: s.Primary.Name(), Candidates: primary}
		}
	}

	if s.Fallback != nil {
		if candidates := s.Fallback.Detect(img); len(candidates) > 0 {
			return Detection{Strategy: s.Fallback.Name(), Candidates: candidates}
		}
	}

	if len(primary) > 0 {
		return Detection{Strategy: s.Primary.Name(), Candidates: primary}
	}
	return Detection{Strategy: StrategyNone}
}

// coveredArea sums the areas of disjoint regions.
func coveredArea(regions []Region) float64 {
	var sum float64
	for _, r := range regions {
		sum += r.Area()
	}
	return sum
}
