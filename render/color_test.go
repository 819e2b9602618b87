package render

import (
	"math"
	"testing"
)

func colorNear(a, b RGBA, tol float64) bool {
	return math.Abs(a.R-b.R) <= tol && math.Abs(a.G-b.G) <= tol &&
		math.Abs(a.B-b.B) <= tol && math.Abs(a.A-b.A) <= tol
}

func TestHex(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want RGBA
	}{
		{"six digit", "ff8000", RGBA{R: 1, G: 128.0 / 255, B: 0, A: 1}},
		{"with hash", "#ff8000", RGBA{R: 1, G: 128.0 / 255, B: 0, A: 1}},
		{"three digit", "f80", RGBA{R: 1, G: 136.0 / 255, B: 0, A: 1}},
		{"eight digit", "ff800080", RGBA{R: 1, G: 128.0 / 255, B: 0, A: 128.0 / 255}},
		{"uppercase", "FF8000", RGBA{R: 1, G: 128.0 / 255, B: 0, A: 1}},
		{"invalid length", "ff80", RGBA{R: 0, G: 0, B: 0, A: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Hex(tt.in)
			if !colorNear(got, tt.want, 1e-9) {
				t.Errorf("Hex(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLerp(t *testing.T) {
	black := RGB(0, 0, 0)
	white := RGB(1, 1, 1)

	mid := black.Lerp(white, 0.5)
	if !colorNear(mid, RGBA{R: 0.5, G: 0.5, B: 0.5, A: 1}, 1e-12) {
		t.Errorf("Lerp midpoint = %+v", mid)
	}
	if got := black.Lerp(white, 0); !colorNear(got, black, 1e-12) {
		t.Errorf("Lerp(0) = %+v, want start", got)
	}
	if got := black.Lerp(white, 1); !colorNear(got, white, 1e-12) {
		t.Errorf("Lerp(1) = %+v, want end", got)
	}
}
