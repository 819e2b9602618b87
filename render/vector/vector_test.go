package vector

import (
	"testing"

	"github.com/gogpu/chordflow/particle"
	"github.com/gogpu/chordflow/render"
)

func testPoints(n int) []particle.Point {
	pts := make([]particle.Point, n)
	for i := range pts {
		pts[i] = particle.Point{X: float64(i), Y: float64(-i), Size: 2, Opacity: 1}
	}
	return pts
}

func TestSetRibbonParticles(t *testing.T) {
	b := New()
	if err := b.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	b.SetRibbonParticles(0, testPoints(3), true)
	b.SetRibbonParticles(1, testPoints(2), false)

	if got, want := b.Count(), 5; got != want {
		t.Errorf("Count = %d, want %d", got, want)
	}

	shapes := b.Shapes()
	if len(shapes) != 5 {
		t.Fatalf("Shapes = %d, want 5", len(shapes))
	}
	// Insertion order: ribbon 0's shapes first.
	for i := 0; i < 3; i++ {
		if shapes[i].Ribbon != 0 {
			t.Errorf("shape %d belongs to ribbon %d, want 0", i, shapes[i].Ribbon)
		}
		if !shapes[i].Real {
			t.Errorf("shape %d not tagged real", i)
		}
	}
	for i := 3; i < 5; i++ {
		if shapes[i].Ribbon != 1 {
			t.Errorf("shape %d belongs to ribbon %d, want 1", i, shapes[i].Ribbon)
		}
		if shapes[i].Real {
			t.Errorf("shape %d tagged real, want backfill", i)
		}
	}
}

func TestSetRibbonParticlesReplaces(t *testing.T) {
	b := New()
	b.SetRibbonParticles(0, testPoints(10), true)
	b.SetRibbonParticles(0, testPoints(4), true)

	if got, want := b.Count(), 4; got != want {
		t.Errorf("Count after replace = %d, want %d", got, want)
	}
}

// Advancing the reveal from 3 to 4 must keep ribbons 0-2 visible,
// expose ribbon 3, and leave 4+ hidden, all without touching shape
// data.
func TestRevealVisibility(t *testing.T) {
	b := New()
	for r := uint32(0); r < 6; r++ {
		b.SetRibbonParticles(r, testPoints(2), true)
	}
	// Start fully hidden, then reveal the first three.
	for r := uint32(0); r < 6; r++ {
		b.SetVisible(r, false)
	}
	for r := uint32(0); r < 3; r++ {
		b.SetVisible(r, true)
	}
	before := b.Count()

	// The reveal tick: expose ribbon 3.
	b.SetVisible(3, true)

	if b.Count() != before {
		t.Errorf("Count changed from %d to %d on a visibility flip", before, b.Count())
	}
	for r := uint32(0); r < 4; r++ {
		if !b.Visible(r) {
			t.Errorf("ribbon %d hidden, want visible", r)
		}
	}
	for r := uint32(4); r < 6; r++ {
		if b.Visible(r) {
			t.Errorf("ribbon %d visible, want hidden", r)
		}
	}
	if got, want := len(b.Shapes()), 8; got != want {
		t.Errorf("visible shapes = %d, want %d", got, want)
	}
}

func TestVisibilitySurvivesRegeneration(t *testing.T) {
	b := New()
	b.SetRibbonParticles(0, testPoints(3), true)
	b.SetVisible(0, false)

	// Regeneration replaces the particles but not the reveal state.
	b.SetRibbonParticles(0, testPoints(5), true)
	if b.Visible(0) {
		t.Error("regeneration reset the visibility flag")
	}
}

func TestUpdateStyle(t *testing.T) {
	b := New()
	b.SetRibbonParticles(0, testPoints(3), true)

	red := render.RGB(1, 0, 0)
	opacity := 0.5
	b.UpdateStyle(render.StyleUpdate{Color: &red, Opacity: &opacity})

	for i, s := range b.Shapes() {
		if s.Color != red {
			t.Errorf("shape %d color = %+v, want red", i, s.Color)
		}
		if s.Opacity != 0.5 {
			t.Errorf("shape %d opacity = %v, want 0.5", i, s.Opacity)
		}
		// Positions untouched.
		if s.X != float64(i) || s.Y != float64(-i) {
			t.Errorf("shape %d moved to (%v, %v)", i, s.X, s.Y)
		}
	}
}

// The configured opacity must reach each shape exactly once: the style
// base times the sampled per-particle factor, never the base squared.
func TestStyleBaseAppliedOnce(t *testing.T) {
	b := New()
	size := 3.0
	opacity := 0.8
	b.UpdateStyle(render.StyleUpdate{Size: &size, Opacity: &opacity})

	b.SetRibbonParticles(0, []particle.Point{
		{X: 1, Y: 2, Size: 1.2, Opacity: 1},
	}, true)

	s := b.Shapes()[0]
	if got, want := s.Opacity, 0.8; got != want {
		t.Errorf("shape opacity = %v, want %v", got, want)
	}
	if got, want := s.Size, 3.6; got < want-1e-9 || got > want+1e-9 {
		t.Errorf("shape size = %v, want %v", got, want)
	}
}

func TestSizeUpdatePreservesJitter(t *testing.T) {
	b := New()
	b.SetRibbonParticles(0, []particle.Point{
		{Size: 0.5, Opacity: 1},
		{Size: 1.0, Opacity: 1},
		{Size: 1.5, Opacity: 1},
	}, true)

	size := 3.0
	b.UpdateStyle(render.StyleUpdate{Size: &size})

	want := []float64{1.5, 3.0, 4.5}
	for i, s := range b.Shapes() {
		if got := s.Size; got < want[i]-1e-9 || got > want[i]+1e-9 {
			t.Errorf("shape %d size = %v, want %v", i, got, want[i])
		}
	}
}

func TestVersionCounter(t *testing.T) {
	b := New()
	v0 := b.Version()

	b.SetRibbonParticles(0, testPoints(1), true)
	if b.Version() == v0 {
		t.Error("version unchanged after adding particles")
	}

	v1 := b.Version()
	b.SetVisible(0, false)
	if b.Version() == v1 {
		t.Error("version unchanged after visibility flip")
	}

	v2 := b.Version()
	b.SetVisible(0, false) // no-op flip
	if b.Version() != v2 {
		t.Error("version changed on a no-op visibility flip")
	}
}

func TestClear(t *testing.T) {
	b := New()
	b.SetRibbonParticles(0, testPoints(3), true)
	b.Clear()

	if b.Count() != 0 {
		t.Errorf("Count after Clear = %d, want 0", b.Count())
	}
	if len(b.Shapes()) != 0 {
		t.Errorf("Shapes after Clear = %d, want 0", len(b.Shapes()))
	}
}

func TestRegistered(t *testing.T) {
	b := render.Get(render.BackendVector)
	if b == nil {
		t.Fatal("vector backend not registered")
	}
	if _, ok := b.(*Backend); !ok {
		t.Errorf("registry returned %T", b)
	}
}
