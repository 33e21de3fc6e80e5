package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"os"
	"time"

	"github.com/ironsheep/wall-texture-mcp/internal/detection"
	"github.com/ironsheep/wall-texture-mcp/internal/imaging"
	"github.com/ironsheep/wall-texture-mcp/internal/pipeline"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_load", "wall_detect").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`

	// Meta carries the optional progress token.
	Meta *struct {
		ProgressToken interface{} `json:"progressToken,omitempty"`
	} `json:"_meta,omitempty"`
}

// toolCall is one tool invocation.
type toolCall struct {
	ctx  context.Context
	args json.RawMessage

	// progress reports a percentage and stage name; it is a no-op when the
	// client did not ask for progress.
	progress func(percent float64, stage string)
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000;
// a cancelled call returns -32800.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
	}

	call := toolCall{ctx: ctx, args: params.Arguments, progress: func(float64, string) {}}
	if params.Meta != nil && params.Meta.ProgressToken != nil {
		token := params.Meta.ProgressToken
		call.progress = func(percent float64, stage string) {
			s.notify("notifications/progress", map[string]interface{}{
				"progressToken": token,
				"progress":      percent,
				"total":         100,
				"message":       stage,
			})
		}
	}

	start := time.Now()
	result, err := s.executeTool(params.Name, call)
	if err != nil {
		if errors.Is(err, pipeline.ErrCancelled) {
			s.logger.Info("tool cancelled", "tool", params.Name, "elapsed", time.Since(start))
			return s.errorResponse(req.ID, codeRequestCanceled, "Request cancelled", err.Error())
		}
		s.logger.Warn("tool failed", "tool", params.Name, "error", err)
		return s.errorResponse(req.ID, codeToolFailed, "Tool execution failed", err.Error())
	}
	s.logger.Debug("tool completed", "tool", params.Name, "elapsed", time.Since(start))

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(name string, call toolCall) (interface{}, error) {
	switch name {
	case "image_load":
		return s.handleImageLoad(call)
	case "wall_detect":
		return s.handleWallDetect(call)
	case "wall_texture_apply":
		return s.handleWallTextureApply(call)
	case "wall_processing_estimate":
		return s.handleWallProcessingEstimate(call)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		args = []byte("{}")
	}
	if err := json.Unmarshal(args, v); err != nil {
		if errors.Is(err, detection.ErrInvalidRegion) {
			return fmt.Errorf("%w: %w", pipeline.ErrInvalidSelection, err)
		}
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func requirePath(name, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", name)
	}
	return nil
}

// === Image Information ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(call toolCall) (interface{}, error) {
	var a imageLoadArgs
	if err := decodeArgs(call.args, &a); err != nil {
		return nil, err
	}
	if err := requirePath("path", a.Path); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

// === Wall Detection ===

type wallDetectArgs struct {
	Path    string `json:"path"`
	Preview bool   `json:"preview"`
}

// WallInfo describes one detected wall region.
type WallInfo struct {
	Region    detection.Region    `json:"region"`
	Area      float64             `json:"area"`
	Color     imaging.ColorResult `json:"color"`
	Luminance float64             `json:"luminance"`
}

// WallDetectResult is the output of the wall_detect tool.
type WallDetectResult struct {
	Width        int                   `json:"width"`
	Height       int                   `json:"height"`
	Strategy     string                `json:"strategy"`
	Walls        []WallInfo            `json:"walls"`
	MaskCoverage float64               `json:"mask_coverage"`
	MaskFallback bool                  `json:"mask_fallback"`
	Preview      *imaging.EncodedImage `json:"preview,omitempty"`
}

// previewTint marks detected walls in previews.
var previewTint = color.NRGBA{R: 0, G: 200, B: 255, A: 140}

func (s *Server) handleWallDetect(call toolCall) (interface{}, error) {
	var a wallDetectArgs
	if err := decodeArgs(call.args, &a); err != nil {
		return nil, err
	}
	if err := requirePath("path", a.Path); err != nil {
		return nil, err
	}

	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	walls, err := s.pipeline.DetectWalls(img)
	if err != nil {
		return nil, err
	}

	room := walls.Mask.Bounds()
	rgba := walls.Room
	res := &WallDetectResult{
		Width:        room.Dx(),
		Height:       room.Dy(),
		Strategy:     walls.Strategy,
		Walls:        make([]WallInfo, 0, len(walls.Regions)),
		MaskCoverage: walls.Mask.Coverage(),
		MaskFallback: walls.Mask.UsedFallback(),
	}
	for _, r := range walls.Regions {
		avg := detection.AverageColorRect(rgba, r.Bounds())
		res.Walls = append(res.Walls, WallInfo{
			Region:    r,
			Area:      r.Area(),
			Color:     imaging.DescribeColor(avg.R, avg.G, avg.B),
			Luminance: avg.Luminance,
		})
	}

	if a.Preview {
		res.Preview, err = imaging.EncodeBase64(walls.Mask.Overlay(rgba, previewTint), "png", 0)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

// === Texture Application ===

// settingsArgs are the optional processing settings. Nil fields keep the
// configured defaults.
type settingsArgs struct {
	RoomPath              string `json:"room_path"`
	TexturePath           string `json:"texture_path"`
	LightingMatch         *bool  `json:"lighting_match"`
	PerspectiveCorrection *bool  `json:"perspective_correction"`
	EdgeSmoothing         *int   `json:"edge_smoothing"`
}

func (a settingsArgs) validate() error {
	if err := requirePath("room_path", a.RoomPath); err != nil {
		return err
	}
	return requirePath("texture_path", a.TexturePath)
}

func (a settingsArgs) apply(o pipeline.Options) pipeline.Options {
	if a.LightingMatch != nil {
		o.LightingMatch = *a.LightingMatch
	}
	if a.PerspectiveCorrection != nil {
		o.PerspectiveCorrection = *a.PerspectiveCorrection
	}
	if a.EdgeSmoothing != nil {
		o.EdgeSmoothing = *a.EdgeSmoothing
	}
	return o
}

type wallTextureApplyArgs struct {
	settingsArgs
	WallSelection  detection.SelectionSet `json:"wall_selection"`
	TextureOpacity *float64               `json:"texture_opacity"`
	Format         string                 `json:"format"`
	Quality        *int                   `json:"quality"`
	OutputPath     string                 `json:"output_path"`
}

// WallTextureResult is the output of the wall_texture_apply tool.
type WallTextureResult struct {
	Image       *imaging.EncodedImage `json:"image"`
	OutputPath  string                `json:"output_path,omitempty"`
	SizeBytes   int                   `json:"size_bytes"`
	Diagnostics pipeline.Diagnostics  `json:"diagnostics"`
}

func (s *Server) handleWallTextureApply(call toolCall) (interface{}, error) {
	var a wallTextureApplyArgs
	if err := decodeArgs(call.args, &a); err != nil {
		return nil, err
	}
	if err := a.validate(); err != nil {
		return nil, err
	}

	opts := a.apply(s.cfg.Options())
	opts.WallSelection = a.WallSelection
	if a.TextureOpacity != nil {
		opts.TextureOpacity = *a.TextureOpacity
	}
	if a.Quality != nil {
		opts.OutputQuality = *a.Quality
	}
	opts = opts.Normalize()

	room, err := s.cache.Load(a.RoomPath)
	if err != nil {
		return nil, fmt.Errorf("room: %w", err)
	}
	texture, err := s.cache.Load(a.TexturePath)
	if err != nil {
		return nil, fmt.Errorf("texture: %w", err)
	}

	var stage pipeline.Stage
	hooks := pipeline.Hooks{
		OnStageChange: func(st pipeline.Stage) { stage = st },
		OnProgress:    func(p float64) { call.progress(p, stage.String()) },
	}
	res, err := s.pipeline.Process(call.ctx, room, texture, opts, hooks)
	if err != nil {
		return nil, err
	}

	format := a.Format
	if format == "" {
		format = s.cfg.Output.Format
	}

	out := &WallTextureResult{Diagnostics: res.Diagnostics}
	if a.OutputPath != "" {
		enc, err := imaging.Save(res.Image, a.OutputPath, format, opts.OutputQuality)
		if err != nil {
			return nil, err
		}
		out.Image, out.OutputPath = enc, a.OutputPath
	} else {
		enc, err := imaging.EncodeBase64(res.Image, format, opts.OutputQuality)
		if err != nil {
			return nil, err
		}
		out.Image = enc
	}
	out.SizeBytes = len(out.Image.Data)
	return out, nil
}

// === Estimation ===

// EstimateResult is the output of the wall_processing_estimate tool.
type EstimateResult struct {
	Seconds      float64 `json:"seconds"`
	RoomBytes    int64   `json:"room_bytes"`
	TextureBytes int64   `json:"texture_bytes"`
}

func (s *Server) handleWallProcessingEstimate(call toolCall) (interface{}, error) {
	var a settingsArgs
	if err := decodeArgs(call.args, &a); err != nil {
		return nil, err
	}
	if err := a.validate(); err != nil {
		return nil, err
	}

	room, err := os.Stat(a.RoomPath)
	if err != nil {
		return nil, fmt.Errorf("room: %w", err)
	}
	texture, err := os.Stat(a.TexturePath)
	if err != nil {
		return nil, fmt.Errorf("texture: %w", err)
	}

	d := pipeline.EstimateProcessingTime(room.Size(), texture.Size(), a.apply(s.cfg.Options()))
	return &EstimateResult{
		Seconds:      d.Seconds(),
		RoomBytes:    room.Size(),
		TextureBytes: texture.Size(),
	}, nil
}
