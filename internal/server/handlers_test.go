package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var (
	grayWall   = color.NRGBA{200, 200, 200, 255}
	redTexture = color.NRGBA{255, 0, 0, 255}
)

// writeSolidPNG writes a solid color PNG into a temp dir and returns its path.
func writeSolidPNG(t *testing.T, name string, width, height int, c color.NRGBA) string {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, c)
		}
	}

	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", name, err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

// callTool runs a tools/call synchronously and returns the response.
func callTool(t *testing.T, s *Server, name string, args interface{}, meta map[string]interface{}) *MCPResponse {
	t.Helper()

	params := map[string]interface{}{"name": name, "arguments": args}
	if meta != nil {
		params["_meta"] = meta
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("failed to marshal params: %v", err)
	}

	resp := s.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  paramsJSON,
	})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	return resp
}

// decodeResult unpacks the text content of a successful tool response.
func decodeResult(t *testing.T, resp *MCPResponse, v interface{}) {
	t.Helper()

	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}
	content, ok := result["content"].([]map[string]interface{})
	if !ok || len(content) != 1 {
		t.Fatalf("content: got %#v", result["content"])
	}
	if content[0]["type"] != "text" {
		t.Errorf("content type: got %v, want text", content[0]["type"])
	}
	if err := json.Unmarshal([]byte(content[0]["text"].(string)), v); err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
}

func TestHandleToolsCall_ImageLoad(t *testing.T) {
	s := newTestServer(t, nil, nil)
	path := writeSolidPNG(t, "room.png", 100, 80, grayWall)

	var info struct {
		Width         int    `json:"width"`
		Height        int    `json:"height"`
		Format        string `json:"format"`
		FileSizeBytes int64  `json:"file_size_bytes"`
	}
	decodeResult(t, callTool(t, s, "image_load", map[string]interface{}{"path": path}, nil), &info)

	if info.Width != 100 || info.Height != 80 {
		t.Errorf("size: got %dx%d, want 100x80", info.Width, info.Height)
	}
	if info.Format != "png" {
		t.Errorf("format: got %s, want png", info.Format)
	}
	if info.FileSizeBytes <= 0 {
		t.Errorf("file_size_bytes: got %d", info.FileSizeBytes)
	}
}

func TestHandleToolsCall_WallDetect(t *testing.T) {
	s := newTestServer(t, nil, nil)
	path := writeSolidPNG(t, "room.png", 400, 300, grayWall)

	var res WallDetectResult
	decodeResult(t, callTool(t, s, "wall_detect", map[string]interface{}{"path": path, "preview": true}, nil), &res)

	if res.Strategy != "block-growth" {
		t.Errorf("strategy: got %s, want block-growth", res.Strategy)
	}
	if len(res.Walls) != 1 {
		t.Fatalf("walls: got %d, want 1", len(res.Walls))
	}
	w := res.Walls[0]
	if w.Region.Bounds() != image.Rect(0, 0, 400, 300) {
		t.Errorf("region: got %v", w.Region.Bounds())
	}
	if w.Color.Hex != "#C8C8C8" {
		t.Errorf("color: got %s, want #C8C8C8", w.Color.Hex)
	}
	if res.MaskCoverage != 1 || res.MaskFallback {
		t.Errorf("mask: coverage %f fallback %v", res.MaskCoverage, res.MaskFallback)
	}

	if res.Preview == nil {
		t.Fatal("expected preview")
	}
	data, err := base64.StdEncoding.DecodeString(res.Preview.ImageBase64)
	if err != nil {
		t.Fatalf("preview base64: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("preview png: %v", err)
	}
	r, g, b, _ := img.At(10, 10).RGBA()
	if b <= r || g <= r {
		t.Errorf("preview should be tinted, got (%d,%d,%d)", r>>8, g>>8, b>>8)
	}
}

func TestHandleToolsCall_WallDetectWithoutPreview(t *testing.T) {
	s := newTestServer(t, nil, nil)
	path := writeSolidPNG(t, "room.png", 100, 100, color.NRGBA{20, 20, 20, 255})

	var res WallDetectResult
	decodeResult(t, callTool(t, s, "wall_detect", map[string]interface{}{"path": path}, nil), &res)

	if res.Preview != nil {
		t.Error("preview should be omitted")
	}
	// Too dark for block-growth; flat enough for flood-fill.
	if res.Strategy != "flood-fill" {
		t.Errorf("strategy: got %s, want flood-fill", res.Strategy)
	}
}

func TestHandleToolsCall_WallTextureApply(t *testing.T) {
	s := newTestServer(t, nil, nil)
	room := writeSolidPNG(t, "room.png", 200, 120, color.NRGBA{128, 128, 128, 255})
	texture := writeSolidPNG(t, "texture.png", 40, 40, redTexture)

	var res WallTextureResult
	decodeResult(t, callTool(t, s, "wall_texture_apply", map[string]interface{}{
		"room_path":      room,
		"texture_path":   texture,
		"lighting_match": false,
	}, nil), &res)

	if res.Image == nil || res.Image.Format != "png" || res.Image.MimeType != "image/png" {
		t.Fatalf("image: got %+v", res.Image)
	}
	if res.Image.Width != 200 || res.Image.Height != 120 {
		t.Errorf("size: got %dx%d", res.Image.Width, res.Image.Height)
	}
	if res.SizeBytes <= 0 {
		t.Errorf("size_bytes: got %d", res.SizeBytes)
	}
	if res.Diagnostics.Strategy != "block-growth" || res.Diagnostics.ChangedPixels != 200*120 {
		t.Errorf("diagnostics: got %+v", res.Diagnostics)
	}

	data, _ := base64.StdEncoding.DecodeString(res.Image.ImageBase64)
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output png: %v", err)
	}
	got := color.NRGBAModel.Convert(img.At(50, 50)).(color.NRGBA)
	// 128·0.3 + 255·0.7 and 128·0.3
	want := color.NRGBA{217, 38, 38, 255}
	if got != want {
		t.Errorf("pixel: got %v, want %v", got, want)
	}
}

func TestHandleToolsCall_WallTextureApplySelection(t *testing.T) {
	s := newTestServer(t, nil, nil)
	room := writeSolidPNG(t, "room.png", 100, 100, grayWall)
	texture := writeSolidPNG(t, "texture.png", 10, 10, redTexture)
	out := filepath.Join(t.TempDir(), "out.png")

	var res WallTextureResult
	decodeResult(t, callTool(t, s, "wall_texture_apply", map[string]interface{}{
		"room_path":    room,
		"texture_path": texture,
		"output_path":  out,
		"wall_selection": []map[string]interface{}{
			{"type": "rectangle", "x": 0, "y": 0, "width": 20, "height": 30},
		},
	}, nil), &res)

	if res.OutputPath != out {
		t.Errorf("output_path: got %s", res.OutputPath)
	}
	if res.Image.ImageBase64 != "" {
		t.Error("saved output should not be returned inline")
	}
	if res.Diagnostics.Strategy != "manual" || res.Diagnostics.ChangedPixels != 600 {
		t.Errorf("diagnostics: got %+v", res.Diagnostics)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if got := color.NRGBAModel.Convert(img.At(50, 50)).(color.NRGBA); got != grayWall {
		t.Errorf("pixel outside selection: got %v, want %v", got, grayWall)
	}
}

func TestHandleToolsCall_WallTextureApplyJPEG(t *testing.T) {
	s := newTestServer(t, nil, nil)
	room := writeSolidPNG(t, "room.png", 64, 64, grayWall)
	texture := writeSolidPNG(t, "texture.png", 8, 8, redTexture)

	var res WallTextureResult
	decodeResult(t, callTool(t, s, "wall_texture_apply", map[string]interface{}{
		"room_path":    room,
		"texture_path": texture,
		"format":       "jpeg",
		"quality":      60,
	}, nil), &res)

	if res.Image.Format != "jpeg" || res.Image.MimeType != "image/jpeg" {
		t.Errorf("format: got %s (%s)", res.Image.Format, res.Image.MimeType)
	}
}

func TestHandleToolsCall_Progress(t *testing.T) {
	var out bytes.Buffer
	s := newTestServer(t, nil, &out)
	room := writeSolidPNG(t, "room.png", 50, 50, grayWall)
	texture := writeSolidPNG(t, "texture.png", 10, 10, redTexture)

	resp := callTool(t, s, "wall_texture_apply", map[string]interface{}{
		"room_path":    room,
		"texture_path": texture,
	}, map[string]interface{}{"progressToken": 42})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}

	msgs := readMessages(t, out.Bytes())
	if len(msgs) != 7*20 {
		t.Fatalf("progress notifications: got %d, want %d", len(msgs), 7*20)
	}

	last := -1.0
	for _, m := range msgs {
		if m["method"] != "notifications/progress" {
			t.Fatalf("unexpected message: %v", m)
		}
		p := m["params"].(map[string]interface{})
		if p["progressToken"] != float64(42) {
			t.Fatalf("progressToken: got %v", p["progressToken"])
		}
		v := p["progress"].(float64)
		if v < last {
			t.Fatalf("progress went backwards: %f after %f", v, last)
		}
		last = v
	}
	if last != 100 {
		t.Errorf("final progress: got %f, want 100", last)
	}
	first := msgs[0]["params"].(map[string]interface{})
	if first["message"] != "analyzing" {
		t.Errorf("first stage: got %v, want analyzing", first["message"])
	}
}

func TestHandleToolsCall_NoProgressWithoutToken(t *testing.T) {
	var out bytes.Buffer
	s := newTestServer(t, nil, &out)
	room := writeSolidPNG(t, "room.png", 30, 30, grayWall)
	texture := writeSolidPNG(t, "texture.png", 10, 10, redTexture)

	resp := callTool(t, s, "wall_texture_apply", map[string]interface{}{
		"room_path":    room,
		"texture_path": texture,
	}, nil)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	if out.Len() != 0 {
		t.Errorf("expected no notifications, got %s", out.String())
	}
}

func TestHandleToolsCall_Errors(t *testing.T) {
	s := newTestServer(t, nil, nil)
	room := writeSolidPNG(t, "room.png", 50, 50, grayWall)
	texture := writeSolidPNG(t, "texture.png", 10, 10, redTexture)

	tests := []struct {
		name     string
		tool     string
		args     interface{}
		wantCode int
		wantData string
	}{
		{"unknown tool", "image_crop", map[string]interface{}{}, codeToolFailed, "unknown tool"},
		{"missing path", "image_load", map[string]interface{}{}, codeToolFailed, "path is required"},
		{"missing file", "image_load", map[string]interface{}{"path": "/nonexistent/room.png"}, codeToolFailed, "no such file"},
		{"missing texture", "wall_texture_apply", map[string]interface{}{"room_path": room}, codeToolFailed, "texture_path is required"},
		{
			"degenerate rectangle", "wall_texture_apply",
			map[string]interface{}{
				"room_path": room, "texture_path": texture,
				"wall_selection": []map[string]interface{}{{"type": "rectangle", "x": 0, "y": 0, "width": 0, "height": 10}},
			},
			codeToolFailed, "invalid selection",
		},
		{
			"unknown selection type", "wall_texture_apply",
			map[string]interface{}{
				"room_path": room, "texture_path": texture,
				"wall_selection": []map[string]interface{}{{"type": "circle"}},
			},
			codeToolFailed, "invalid selection",
		},
		{
			"two point polygon", "wall_texture_apply",
			map[string]interface{}{
				"room_path": room, "texture_path": texture,
				"wall_selection": []map[string]interface{}{
					{"type": "polygon", "points": []map[string]float64{{"x": 0, "y": 0}, {"x": 5, "y": 5}}},
				},
			},
			codeToolFailed, "invalid selection",
		},
		{"bad format", "wall_texture_apply", map[string]interface{}{"room_path": room, "texture_path": texture, "format": "xcf"}, codeToolFailed, "xcf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := callTool(t, s, tt.tool, tt.args, nil)
			if resp.Error == nil {
				t.Fatalf("expected error, got %+v", resp.Result)
			}
			if resp.Error.Code != tt.wantCode {
				t.Errorf("code: got %d, want %d", resp.Error.Code, tt.wantCode)
			}
			if data, _ := resp.Error.Data.(string); !strings.Contains(data, tt.wantData) {
				t.Errorf("data: got %q, want it to contain %q", data, tt.wantData)
			}
		})
	}
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := newTestServer(t, nil, nil)
	resp := s.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      9,
		Method:  "tools/call",
		Params:  json.RawMessage(`"not an object"`),
	})
	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Errorf("expected invalid params, got %+v", resp.Error)
	}
}

func TestHandleToolsCall_CancelledContext(t *testing.T) {
	s := newTestServer(t, nil, nil)
	room := writeSolidPNG(t, "room.png", 50, 50, grayWall)
	texture := writeSolidPNG(t, "texture.png", 10, 10, redTexture)

	params, _ := json.Marshal(map[string]interface{}{
		"name":      "wall_texture_apply",
		"arguments": map[string]interface{}{"room_path": room, "texture_path": texture},
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp := s.handleToolsCall(ctx, &MCPRequest{JSONRPC: "2.0", ID: 3, Method: "tools/call", Params: params})
	if resp.Error == nil || resp.Error.Code != codeRequestCanceled {
		t.Errorf("expected cancellation, got %+v", resp.Error)
	}
}

func TestHandleToolsCall_Estimate(t *testing.T) {
	s := newTestServer(t, nil, nil)
	room := writeSolidPNG(t, "room.png", 50, 50, grayWall)
	texture := writeSolidPNG(t, "texture.png", 10, 10, redTexture)

	var res EstimateResult
	decodeResult(t, callTool(t, s, "wall_processing_estimate", map[string]interface{}{
		"room_path":    room,
		"texture_path": texture,
	}, nil), &res)

	// Small files with perspective, lighting and smoothing 85.
	if res.Seconds != 25 {
		t.Errorf("seconds: got %f, want 25", res.Seconds)
	}
	if res.RoomBytes <= 0 || res.TextureBytes <= 0 {
		t.Errorf("sizes: got %d / %d", res.RoomBytes, res.TextureBytes)
	}

	var plain EstimateResult
	decodeResult(t, callTool(t, s, "wall_processing_estimate", map[string]interface{}{
		"room_path":              room,
		"texture_path":           texture,
		"perspective_correction": false,
		"edge_smoothing":         0,
	}, nil), &plain)
	if plain.Seconds != 18 {
		t.Errorf("seconds without perspective or smoothing: got %f, want 18", plain.Seconds)
	}
}
