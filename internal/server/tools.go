package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// selectionSchema describes one caller-drawn wall region.
var selectionSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"type": map[string]interface{}{
			"type":        "string",
			"enum":        []string{"rectangle", "polygon"},
			"description": "Region shape",
		},
		"x":      map[string]interface{}{"type": "integer", "description": "Rectangle left edge"},
		"y":      map[string]interface{}{"type": "integer", "description": "Rectangle top edge"},
		"width":  map[string]interface{}{"type": "integer", "description": "Rectangle width (> 0)"},
		"height": map[string]interface{}{"type": "integer", "description": "Rectangle height (> 0)"},
		"points": map[string]interface{}{
			"type":        "array",
			"description": "Polygon vertices in order (at least 3)",
			"items": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"x": map[string]interface{}{"type": "number"},
					"y": map[string]interface{}{"type": "number"},
				},
				"required": []string{"x", "y"},
			},
		},
	},
	"required": []string{"type"},
}

// settingsProperties are the processing settings shared by the apply and
// estimate tools.
func settingsProperties() map[string]interface{} {
	return map[string]interface{}{
		"room_path": map[string]interface{}{
			"type":        "string",
			"description": "Absolute path to the room photograph",
		},
		"texture_path": map[string]interface{}{
			"type":        "string",
			"description": "Absolute path to the texture image",
		},
		"lighting_match": map[string]interface{}{
			"type":        "boolean",
			"description": "Re-apply the room's shading over the texture. Default true",
			"default":     true,
		},
		"perspective_correction": map[string]interface{}{
			"type":        "boolean",
			"description": "Accepted for compatibility; only affects the time estimate. Default true",
			"default":     true,
		},
		"edge_smoothing": map[string]interface{}{
			"type":        "integer",
			"description": "Edge smoothing 0-100; only affects the time estimate. Default 85",
			"default":     85,
		},
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	apply := settingsProperties()
	apply["wall_selection"] = map[string]interface{}{
		"type":        "array",
		"description": "Optional wall regions. When present, automatic detection is skipped and exactly these regions are textured",
		"items":       selectionSchema,
	}
	apply["texture_opacity"] = map[string]interface{}{
		"type":        "number",
		"description": "Texture strength 0-1. Default from server config (0.7)",
	}
	apply["format"] = map[string]interface{}{
		"type":        "string",
		"description": "Output format: png, jpeg, gif, tiff or bmp. Default from server config",
	}
	apply["quality"] = map[string]interface{}{
		"type":        "integer",
		"description": "JPEG quality 1-100. Default from server config (95)",
	}
	apply["output_path"] = map[string]interface{}{
		"type":        "string",
		"description": "Optional file to write. When set, the image is saved there instead of returned as base64; the extension selects the format",
	}

	return []Tool{
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions, detected format and file size.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "wall_detect",
			Description: "Detect wall areas in a room photograph. Returns the wall regions, the detection strategy that found them, each wall's average color, and the fraction of the image that would be textured.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the room photograph",
					},
					"preview": map[string]interface{}{
						"type":        "boolean",
						"description": "Also return a PNG with the detected wall mask tinted. Default false",
						"default":     false,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "wall_texture_apply",
			Description: "Apply a texture to the walls of a room photograph. Walls are detected automatically unless wall_selection is given. Sends progress notifications when the request carries a progressToken and can be cancelled.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": apply,
				"required":   []string{"room_path", "texture_path"},
			},
		},
		{
			Name:        "wall_processing_estimate",
			Description: "Estimate how long wall_texture_apply will take for the given files and settings, in seconds.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": settingsProperties(),
				"required":   []string{"room_path", "texture_path"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
