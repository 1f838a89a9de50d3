package systems

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/laop/components"
)

func TestBakeRect(t *testing.T) {
	tests := []struct {
		name       string
		rot        components.Rotation
		wantCorner r2.Vec // corner opposite the anchor
		wantMin    r2.Vec
		wantMax    r2.Vec
	}{
		{
			name:       "unrotated",
			rot:        components.Rotation{},
			wantCorner: r2.Vec{X: 14, Y: 12},
			wantMin:    r2.Vec{X: 10, Y: 10},
			wantMax:    r2.Vec{X: 14, Y: 12},
		},
		{
			name:       "quarter turn about anchor",
			rot:        components.Rotation{Angle: math.Pi / 2},
			wantCorner: r2.Vec{X: 8, Y: 14},
			wantMin:    r2.Vec{X: 8, Y: 10},
			wantMax:    r2.Vec{X: 10, Y: 14},
		},
		{
			name:       "half turn about centre",
			rot:        components.Rotation{Angle: math.Pi, Center: r2.Vec{X: 2, Y: 1}},
			wantCorner: r2.Vec{X: 10, Y: 10},
			wantMin:    r2.Vec{X: 10, Y: 10},
			wantMax:    r2.Vec{X: 14, Y: 12},
		},
	}

	col := components.Collider{Kind: components.ShapeRect, Width: 4, Height: 2}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := BakeShape(r3.Vec{X: 10, Y: 10}, tt.rot, col)
			if s.Kind != components.ShapeRect {
				t.Fatalf("kind = %v", s.Kind)
			}
			if !near2(s.Corners[2], tt.wantCorner) {
				t.Errorf("corner = %v, want %v", s.Corners[2], tt.wantCorner)
			}
			if !near2(s.Bounds.Min, tt.wantMin) || !near2(s.Bounds.Max, tt.wantMax) {
				t.Errorf("bounds = %v, want [%v %v]", s.Bounds, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func near2(a, b r2.Vec) bool {
	return math.Abs(a.X-b.X) < 1e-9 && math.Abs(a.Y-b.Y) < 1e-9
}

func TestShapeIntersects(t *testing.T) {
	rect := BakeShape(r3.Vec{}, components.Rotation{}, components.Collider{Kind: components.ShapeRect, Width: 10, Height: 10})
	circle := BakeShape(r3.Vec{X: 5, Y: 5}, components.Rotation{}, components.Collider{Kind: components.ShapeCircle, Radius: 2})
	none := BakeShape(r3.Vec{X: 5, Y: 5}, components.Rotation{}, components.Collider{})

	tests := []struct {
		name  string
		shape Shape
		line  Line
		want  bool
	}{
		{"rect crossing edge", rect, Line{A: r2.Vec{X: -5, Y: 5}, B: r2.Vec{X: 5, Y: 5}}, true},
		{"rect fully inside", rect, Line{A: r2.Vec{X: 2, Y: 2}, B: r2.Vec{X: 3, Y: 3}}, true},
		{"rect touching corner", rect, Line{A: r2.Vec{X: 10, Y: 10}, B: r2.Vec{X: 20, Y: 20}}, true},
		{"rect outside", rect, Line{A: r2.Vec{X: 11, Y: 0}, B: r2.Vec{X: 11, Y: 10}}, false},
		{"circle near", circle, Line{A: r2.Vec{X: 0, Y: 6.5}, B: r2.Vec{X: 10, Y: 6.5}}, true},
		{"circle far", circle, Line{A: r2.Vec{X: 0, Y: 8}, B: r2.Vec{X: 10, Y: 8}}, false},
		{"no collider", none, Line{A: r2.Vec{X: 0, Y: 5}, B: r2.Vec{X: 10, Y: 5}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.shape.Intersects(tt.line); got != tt.want {
				t.Errorf("Intersects = %v, want %v", got, tt.want)
			}
		})
	}
}
