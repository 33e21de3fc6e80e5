package pipeline

import (
	"math"

	"github.com/ironsheep/wall-texture-mcp/internal/detection"
)

// Default option values.
const (
	DefaultTextureOpacity = 0.7
	DefaultEdgeSmoothing  = 85
	DefaultOutputQuality  = 95
)

// Options controls a single processing run. Out-of-range values are clamped,
// never rejected.
type Options struct {
	// WallSelection, when non-empty, replaces automatic detection: the mask is
	// exactly the union of these regions.
	WallSelection detection.SelectionSet `json:"wall_selection,omitempty"`

	// TextureOpacity is the primary overlay strength in [0,1].
	TextureOpacity float64 `json:"texture_opacity"`

	// LightingMatch enables the shading pass.
	LightingMatch bool `json:"lighting_match"`

	// PerspectiveCorrection is accepted for compatibility. It only affects
	// EstimateProcessingTime; the texture is never re-projected.
	PerspectiveCorrection bool `json:"perspective_correction"`

	// EdgeSmoothing in [0,100]. Like PerspectiveCorrection it only feeds the
	// time estimate.
	EdgeSmoothing int `json:"edge_smoothing"`

	// OutputQuality in [1,100] is passed to lossy encoders by the host.
	OutputQuality int `json:"output_quality"`
}

// DefaultOptions returns the settings used when a caller supplies none.
func DefaultOptions() Options {
	return Options{
		TextureOpacity:        DefaultTextureOpacity,
		LightingMatch:         true,
		PerspectiveCorrection: true,
		EdgeSmoothing:         DefaultEdgeSmoothing,
		OutputQuality:         DefaultOutputQuality,
	}
}

// Normalize clamps every numeric field into range. A NaN opacity becomes the
// default.
func (o Options) Normalize() Options {
	switch {
	case math.IsNaN(o.TextureOpacity):
		o.TextureOpacity = DefaultTextureOpacity
	case o.TextureOpacity < 0:
		o.TextureOpacity = 0
	case o.TextureOpacity > 1:
		o.TextureOpacity = 1
	}

	o.EdgeSmoothing = min(max(o.EdgeSmoothing, 0), 100)

	o.OutputQuality = min(max(o.OutputQuality, 1), 100)
	return o
}

// Manual reports whether a wall selection overrides detection.
func (o Options) Manual() bool {
	return len(o.WallSelection) > 0
}
