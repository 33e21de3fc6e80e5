package imaging

import "testing"

func TestDescribeColor(t *testing.T) {
	tests := []struct {
		name    string
		r, g, b float64
		hex     string
		rgb     RGBColor
		hsl     HSLColor
	}{
		{"red", 255, 0, 0, "#FF0000", RGBColor{255, 0, 0}, HSLColor{0, 100, 50}},
		{"green", 0, 255, 0, "#00FF00", RGBColor{0, 255, 0}, HSLColor{120, 100, 50}},
		{"blue", 0, 0, 255, "#0000FF", RGBColor{0, 0, 255}, HSLColor{240, 100, 50}},
		{"white", 255, 255, 255, "#FFFFFF", RGBColor{255, 255, 255}, HSLColor{0, 0, 100}},
		{"black", 0, 0, 0, "#000000", RGBColor{0, 0, 0}, HSLColor{0, 0, 0}},
		{"rounded mean", 127.6, 127.6, 127.6, "#808080", RGBColor{128, 128, 128}, HSLColor{0, 0, 50}},
		{"clamped", 300, -20, 0, "#FF0000", RGBColor{255, 0, 0}, HSLColor{0, 100, 50}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DescribeColor(tt.r, tt.g, tt.b)
			if got.Hex != tt.hex {
				t.Errorf("Hex: got %s, want %s", got.Hex, tt.hex)
			}
			if got.RGB != tt.rgb {
				t.Errorf("RGB: got %+v, want %+v", got.RGB, tt.rgb)
			}
			if got.HSL != tt.hsl {
				t.Errorf("HSL: got %+v, want %+v", got.HSL, tt.hsl)
			}
		})
	}
}
