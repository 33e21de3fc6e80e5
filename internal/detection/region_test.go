package detection

import (
	"encoding/json"
	"errors"
	"image"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/paulmach/orb"
)

func TestRegion_Validate(t *testing.T) {
	tests := []struct {
		name    string
		region  Region
		wantErr bool
	}{
		{"valid box", NewBox(0, 0, 10, 10), false},
		{"zero width", NewBox(0, 0, 0, 10), true},
		{"negative height", NewBox(5, 5, 10, -1), true},
		{"triangle", NewPolygon(orb.Point{0, 0}, orb.Point{10, 0}, orb.Point{5, 5}), false},
		{"two points", NewPolygon(orb.Point{0, 0}, orb.Point{10, 0}), true},
		{"NaN point", NewPolygon(orb.Point{0, 0}, orb.Point{math.NaN(), 0}, orb.Point{5, 5}), true},
		{"infinite point", NewPolygon(orb.Point{0, 0}, orb.Point{10, 0}, orb.Point{5, math.Inf(1)}), true},
		{"unknown kind", Region{Kind: Kind(7)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.region.Validate()
			if tt.wantErr && !errors.Is(err, ErrInvalidRegion) {
				t.Errorf("Validate: got %v, want ErrInvalidRegion", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate: unexpected error %v", err)
			}
		})
	}
}

func TestSelectionSet_ValidateReportsIndex(t *testing.T) {
	set := SelectionSet{NewBox(0, 0, 5, 5), NewBox(0, 0, 5, 0)}

	err := set.Validate()
	if !errors.Is(err, ErrInvalidRegion) {
		t.Fatalf("Validate: got %v, want ErrInvalidRegion", err)
	}
	if !strings.Contains(err.Error(), "selection[1]") {
		t.Errorf("Error should name the index: %v", err)
	}
}

func TestRegion_PolygonBoundsAndArea(t *testing.T) {
	poly := NewPolygon(orb.Point{10.5, 20}, orb.Point{50, 20}, orb.Point{50, 60.2}, orb.Point{10.5, 60.2})

	if got, want := poly.Bounds(), image.Rect(10, 20, 50, 61); got != want {
		t.Errorf("Bounds: got %v, want %v", got, want)
	}
	if got := poly.Area(); math.Abs(got-39.5*40.2) > 1e-9 {
		t.Errorf("Area: got %f, want %f", got, 39.5*40.2)
	}

	// Winding order does not change the area sign.
	rev := NewPolygon(orb.Point{10.5, 60.2}, orb.Point{50, 60.2}, orb.Point{50, 20}, orb.Point{10.5, 20})
	if math.Abs(rev.Area()-poly.Area()) > 1e-9 {
		t.Errorf("Reversed area: got %f, want %f", rev.Area(), poly.Area())
	}
}

func TestRegion_HugePolygonBounds(t *testing.T) {
	poly := NewPolygon(orb.Point{-10, -10}, orb.Point{1e19, -10}, orb.Point{-10, 1e19})

	b := poly.Bounds()
	if b.Min != (image.Point{X: -10, Y: -10}) {
		t.Errorf("Bounds min: got %v", b.Min)
	}
	if b.Max.X < 1<<40 || b.Max.Y < 1<<40 {
		t.Errorf("Bounds max should saturate high, got %v", b.Max)
	}
	if b.Empty() || b.Dx() <= 0 {
		t.Errorf("Bounds should not wrap: %v", b)
	}
}

func TestRegion_BoxBoundsAndArea(t *testing.T) {
	r := NewBox(3, 4, 10, 20)
	if got, want := r.Bounds(), image.Rect(3, 4, 13, 24); got != want {
		t.Errorf("Bounds: got %v, want %v", got, want)
	}
	if r.Area() != 200 {
		t.Errorf("Area: got %f, want 200", r.Area())
	}
	if got := BoxFromRect(r.Bounds()); got != r.Box {
		t.Errorf("BoxFromRect: got %+v, want %+v", got, r.Box)
	}
}

func TestBox_RectSaturates(t *testing.T) {
	r := Box{X: 5, Y: 7, Width: math.MaxInt, Height: math.MaxInt}.Rect()

	if r.Min != (image.Point{X: 5, Y: 7}) {
		t.Errorf("Min: got %v", r.Min)
	}
	if r.Max != (image.Point{X: math.MaxInt, Y: math.MaxInt}) {
		t.Errorf("Max: got %v, want saturated", r.Max)
	}
	if !image.Rect(5, 7, 100, 100).In(r) {
		t.Errorf("Saturated rect %v should contain the visible frame", r)
	}
}

func TestRegion_JSON(t *testing.T) {
	input := `[
		{"type":"rectangle","x":1,"y":2,"width":30,"height":40},
		{"type":"box","x":5,"y":5,"width":10,"height":10},
		{"type":"polygon","points":[{"x":0,"y":0},{"x":10,"y":0},{"x":5,"y":8}]}
	]`

	var set SelectionSet
	if err := json.Unmarshal([]byte(input), &set); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(set) != 3 {
		t.Fatalf("Expected 3 regions, got %d", len(set))
	}

	if !reflect.DeepEqual(set[0], NewBox(1, 2, 30, 40)) {
		t.Errorf("set[0]: got %+v", set[0])
	}
	if !reflect.DeepEqual(set[1], NewBox(5, 5, 10, 10)) {
		t.Errorf("set[1]: got %+v", set[1])
	}
	if set[2].Kind != KindPolygon || !reflect.DeepEqual(set[2].Points, orb.Ring{{0, 0}, {10, 0}, {5, 8}}) {
		t.Errorf("set[2]: got %+v", set[2])
	}

	wire := map[int]string{
		0: `{"type":"rectangle","x":1,"y":2,"width":30,"height":40}`,
		2: `{"type":"polygon","points":[{"x":0,"y":0},{"x":10,"y":0},{"x":5,"y":8}]}`,
	}
	for i, want := range wire {
		out, err := json.Marshal(set[i])
		if err != nil {
			t.Fatalf("Marshal set[%d]: %v", i, err)
		}
		if string(out) != want {
			t.Errorf("Marshal set[%d]: got %s, want %s", i, out, want)
		}
	}
}

func TestRegion_JSONUnknownType(t *testing.T) {
	var r Region
	err := json.Unmarshal([]byte(`{"type":"circle","x":1}`), &r)
	if !errors.Is(err, ErrInvalidRegion) {
		t.Errorf("Unmarshal: got %v, want ErrInvalidRegion", err)
	}
}
