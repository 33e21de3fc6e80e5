package pipeline

import (
	"context"
	"image"
	"io"
	"log/slog"
	"time"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/wall-texture-mcp/internal/compose"
	"github.com/ironsheep/wall-texture-mcp/internal/detection"
)

// StrategyManual is reported when a wall selection replaced detection.
const StrategyManual = "manual"

// DefaultStepsPerStage is the number of progress updates emitted per stage.
const DefaultStepsPerStage = 20

// Config holds the tunables of a Pipeline. The zero value of each field
// selects its default.
type Config struct {
	Detection detection.Params

	// MaxTileSize bounds the longer side of the texture tile.
	MaxTileSize int

	// FallbackBand is the top fraction of the frame masked when nothing else is.
	FallbackBand float64

	// LightingOpacity and FallbackOpacity set the strength of the shading pass
	// and the no-op fallback blend.
	LightingOpacity float64
	FallbackOpacity float64

	// StepsPerStage progress updates are emitted per stage, StepDelay apart.
	StepsPerStage int
	StepDelay     time.Duration
}

// DefaultConfig returns the standard pipeline configuration with no progress
// delay.
func DefaultConfig() Config {
	return Config{
		Detection:       detection.DefaultParams(),
		MaxTileSize:     compose.DefaultMaxTileSize,
		FallbackBand:    compose.DefaultFallbackBand,
		LightingOpacity: compose.DefaultLightingOpacity,
		FallbackOpacity: compose.DefaultFallbackOpacity,
		StepsPerStage:   DefaultStepsPerStage,
	}
}

// Hooks receive progress notifications. Both are optional and are called
// synchronously on the goroutine running Process.
type Hooks struct {
	// OnStageChange is called as each stage begins.
	OnStageChange func(Stage)

	// OnProgress is called with a non-decreasing percentage in [0,100].
	OnProgress func(float64)
}

func (h Hooks) stage(s Stage) {
	if h.OnStageChange != nil {
		h.OnStageChange(s)
	}
}

func (h Hooks) progress(v float64) {
	if h.OnProgress != nil {
		h.OnProgress(v)
	}
}

// Diagnostics explains how a result was produced.
type Diagnostics struct {
	// Strategy is the detection strategy that fired, "none", or "manual".
	Strategy string `json:"strategy"`

	// RegionCount is the number of regions rasterized into the mask.
	RegionCount int                `json:"region_count"`
	Regions     []detection.Region `json:"regions"`

	// MaskFallback is true when the top-band mask replaced empty regions.
	MaskFallback bool    `json:"mask_fallback"`
	MaskCoverage float64 `json:"mask_coverage"`

	// UsedFallback is true when the multiply fallback blend replaced the
	// primary passes.
	UsedFallback  bool `json:"used_fallback"`
	ChangedPixels int  `json:"changed_pixels"`

	TileWidth  int `json:"tile_width"`
	TileHeight int `json:"tile_height"`
}

// Result is the output of a successful run.
type Result struct {
	// Image has exactly the room's dimensions.
	Image       *image.NRGBA
	Diagnostics Diagnostics
}

// Pipeline detects walls in a room photo and composites a texture onto them.
// A Pipeline holds no per-run state and may be shared between goroutines.
type Pipeline struct {
	cfg        Config
	logger     *slog.Logger
	segmenter  *detection.Segmenter
	masks      compose.MaskBuilder
	patterns   compose.PatternGenerator
	compositor compose.Compositor
}

// New returns a Pipeline. A nil logger discards log output.
func New(cfg Config, logger *slog.Logger) *Pipeline {
	def := DefaultConfig()
	if cfg.Detection == (detection.Params{}) {
		cfg.Detection = def.Detection
	}
	if cfg.MaxTileSize <= 0 {
		cfg.MaxTileSize = def.MaxTileSize
	}
	if cfg.FallbackBand <= 0 || cfg.FallbackBand > 1 {
		cfg.FallbackBand = def.FallbackBand
	}
	if cfg.LightingOpacity <= 0 {
		cfg.LightingOpacity = def.LightingOpacity
	}
	if cfg.FallbackOpacity <= 0 {
		cfg.FallbackOpacity = def.FallbackOpacity
	}
	if cfg.StepsPerStage <= 0 {
		cfg.StepsPerStage = def.StepsPerStage
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Pipeline{
		cfg:        cfg,
		logger:     logger,
		segmenter:  detection.NewSegmenter(cfg.Detection),
		masks:      compose.MaskBuilder{FallbackBand: cfg.FallbackBand},
		patterns:   compose.PatternGenerator{MaxTileSize: cfg.MaxTileSize},
		compositor: compose.Compositor{LightingOpacity: cfg.LightingOpacity, FallbackOpacity: cfg.FallbackOpacity},
	}
}

// Config returns the effective configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// run carries the intermediate products of one Process call between stages.
type run struct {
	opts    Options
	room    *image.NRGBA
	texture *image.NRGBA

	detection detection.Detection
	regions   []detection.Region
	mask      *compose.Mask
	pattern   *compose.Pattern
	composite *compose.Composite
}

// Process applies texture to the walls of room.
//
// Stages run in order: analyzing, detecting, isolating, masking, mapping,
// rendering, complete. Each stage first reports itself to hooks, then plays
// StepsPerStage progress updates toward its target percentage, then does its
// work. The context is checked before every stage and after each progress
// playback; once it is done Process returns an error matching ErrCancelled
// and no result.
//
// When opts.WallSelection is non-empty, detection is skipped and the mask is
// exactly the union of the selection. Otherwise walls are detected and
// merged. An empty mask always falls back to the top 60% band of the frame.
//
// Failures are returned as *Error. Invalid rasters and selections are
// reported from the analyzing stage before any detection work.
func (p *Pipeline) Process(ctx context.Context, room, texture image.Image, opts Options, hooks Hooks) (*Result, error) {
	r := &run{opts: opts.Normalize()}
	start := time.Now()

	prev := 0.0
	for _, st := range Stages() {
		if err := ctx.Err(); err != nil {
			p.logger.Debug("processing cancelled", "stage", st)
			return nil, cancelled(err)
		}

		hooks.stage(st)
		if err := p.playProgress(ctx, prev, st.Target(), hooks); err != nil {
			p.logger.Debug("processing cancelled", "stage", st)
			return nil, cancelled(err)
		}
		prev = st.Target()

		if err := p.runStage(st, r, room, texture); err != nil {
			p.logger.Warn("processing failed", "stage", st, "error", err)
			return nil, err
		}
	}

	res := &Result{
		Image: r.composite.Image,
		Diagnostics: Diagnostics{
			Strategy:      r.detection.Strategy,
			RegionCount:   len(r.regions),
			Regions:       r.regions,
			MaskFallback:  r.mask.UsedFallback(),
			MaskCoverage:  r.mask.Coverage(),
			UsedFallback:  r.composite.UsedFallback,
			ChangedPixels: r.composite.ChangedPixels,
		},
	}
	res.Diagnostics.TileWidth, res.Diagnostics.TileHeight = r.pattern.Size()

	p.logger.Info("processing complete",
		"strategy", res.Diagnostics.Strategy,
		"regions", res.Diagnostics.RegionCount,
		"coverage", res.Diagnostics.MaskCoverage,
		"fallback_blend", res.Diagnostics.UsedFallback,
		"elapsed", time.Since(start))
	return res, nil
}

func (p *Pipeline) runStage(st Stage, r *run, room, texture image.Image) error {
	switch st {
	case StageAnalyzing:
		return p.analyze(r, room, texture)

	case StageDetecting:
		if r.opts.Manual() {
			r.detection = detection.Detection{Strategy: StrategyManual}
			return nil
		}
		r.detection = p.segmenter.Segment(r.room)
		p.logger.Debug("walls detected",
			"strategy", r.detection.Strategy, "candidates", len(r.detection.Candidates))

	case StageIsolating:
		if r.opts.Manual() {
			r.regions = r.opts.WallSelection
			return nil
		}
		r.regions = detection.Merge(r.detection.Candidates)

	case StageMasking:
		b := r.room.Rect
		m, err := p.masks.Build(b.Dx(), b.Dy(), r.regions)
		if err != nil {
			return &Error{Kind: ErrInvalidSelection, Stage: st, Err: err}
		}
		if m.UsedFallback() {
			p.logger.Debug("no wall pixels, using top band", "band", p.cfg.FallbackBand)
		}
		r.mask = m

	case StageMapping:
		pat, err := p.patterns.Generate(r.texture)
		if err != nil {
			return &Error{Kind: ErrPatternGenerationFailed, Stage: st, Err: err}
		}
		r.pattern = pat

	case StageRendering:
		c, err := p.compositor.Apply(r.room, r.mask, r.pattern, r.opts.TextureOpacity, r.opts.LightingMatch)
		if err != nil {
			return &Error{Kind: ErrCompositingFailed, Stage: st, Err: err}
		}
		if c.UsedFallback {
			p.logger.Debug("primary blend changed nothing, used multiply fallback")
		}
		r.composite = c
	}
	return nil
}

func (p *Pipeline) analyze(r *run, room, texture image.Image) error {
	if err := checkRaster("room", room); err != nil {
		return err
	}
	if err := checkRaster("texture", texture); err != nil {
		return err
	}
	if err := r.opts.WallSelection.Validate(); err != nil {
		return &Error{Kind: ErrInvalidSelection, Stage: StageAnalyzing, Err: err}
	}

	r.room = imaging.Clone(room)
	r.texture = imaging.Clone(texture)
	p.logger.Debug("inputs accepted",
		"room", r.room.Rect.Size(), "texture", r.texture.Rect.Size(), "manual", r.opts.Manual())
	return nil
}

func checkRaster(name string, img image.Image) error {
	if img == nil {
		return newError(ErrInvalidInput, StageAnalyzing, "%s raster is missing", name)
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return newError(ErrInvalidInput, StageAnalyzing, "%s raster has zero area (%dx%d)", name, b.Dx(), b.Dy())
	}
	return nil
}

// playProgress emits StepsPerStage evenly spaced values in (from, to],
// waiting StepDelay after each one.
func (p *Pipeline) playProgress(ctx context.Context, from, to float64, hooks Hooks) error {
	n := p.cfg.StepsPerStage
	for i := 1; i <= n; i++ {
		hooks.progress(from + (to-from)*float64(i)/float64(n))
		if p.cfg.StepDelay <= 0 {
			continue
		}
		t := time.NewTimer(p.cfg.StepDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return ctx.Err()
}

// Walls is the outcome of DetectWalls.
type Walls struct {
	// Room is the normalized copy of the input that detection ran on.
	Room     *image.NRGBA
	Strategy string
	Regions  []detection.Region
	Mask     *compose.Mask
}

// DetectWalls runs detection, merging and masking on room without any
// compositing or progress reporting.
func (p *Pipeline) DetectWalls(room image.Image) (*Walls, error) {
	if err := checkRaster("room", room); err != nil {
		return nil, err
	}
	img := imaging.Clone(room)

	det := p.segmenter.Segment(img)
	regions := detection.Merge(det.Candidates)
	mask, err := p.masks.Build(img.Rect.Dx(), img.Rect.Dy(), regions)
	if err != nil {
		return nil, &Error{Kind: ErrInvalidSelection, Stage: StageMasking, Err: err}
	}
	return &Walls{Room: img, Strategy: det.Strategy, Regions: regions, Mask: mask}, nil
}
