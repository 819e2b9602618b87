package render

import (
	"math"
	"testing"

	"github.com/gogpu/chordflow/geom"
)

// captureTarget records transforms pushed by the synchronizer.
type captureTarget struct {
	got   geom.Matrix
	count int
}

func (c *captureTarget) SetTransform(m geom.Matrix) {
	c.got = m
	c.count++
}

func matNear(a, b geom.Matrix, tol float64) bool {
	return math.Abs(a.A-b.A) <= tol && math.Abs(a.B-b.B) <= tol &&
		math.Abs(a.C-b.C) <= tol && math.Abs(a.D-b.D) <= tol &&
		math.Abs(a.E-b.E) <= tol && math.Abs(a.F-b.F) <= tol
}

func TestConvert(t *testing.T) {
	s := NewSync(800, 800, nil)

	tests := []struct {
		name string
		view geom.Matrix
		want geom.Matrix
	}{
		{
			// Untransformed scene: only the Y flip remains.
			name: "identity view",
			view: geom.Identity(),
			want: geom.Matrix{A: 1, B: 0, C: 0, D: 0, E: -1, F: 0},
		},
		{
			// Panning right in Y-down scene space moves the same
			// direction in buffer space; panning down flips sign.
			name: "pan",
			view: geom.Translate(100, 40),
			want: geom.Matrix{A: 1, B: 0, C: 100, D: 0, E: -1, F: -40},
		},
		{
			// Zoom about the top-left: the diagram center moves on
			// screen and the offset follows it.
			name: "zoom",
			view: geom.Scale(2, 2),
			want: geom.Matrix{A: 2, B: 0, C: 400, D: 0, E: -2, F: -400},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Convert(tt.view)
			if !matNear(got, tt.want, 1e-9) {
				t.Errorf("Convert = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestApplyPushesToTarget(t *testing.T) {
	target := &captureTarget{}
	s := NewSync(400, 400, target)

	s.Apply(geom.Identity())
	if target.count != 1 {
		t.Fatalf("target received %d transforms, want 1", target.count)
	}
	if !matNear(target.got, geom.Matrix{A: 1, E: -1}, 1e-9) {
		t.Errorf("pushed %+v, want Y-flip identity", target.got)
	}
}

func TestSetViewportReapplies(t *testing.T) {
	target := &captureTarget{}
	s := NewSync(400, 400, target)

	s.Apply(geom.Scale(2, 2))
	before := target.count

	s.SetViewport(800, 600)
	if target.count != before+1 {
		t.Errorf("resize pushed %d transforms, want exactly one more", target.count-before)
	}
}

func TestSetViewportWithoutTransform(t *testing.T) {
	target := &captureTarget{}
	s := NewSync(400, 400, target)

	// No Apply yet: resize must not push a stale transform.
	s.SetViewport(800, 600)
	if target.count != 0 {
		t.Errorf("resize pushed %d transforms before any Apply", target.count)
	}
}
