package chordflow

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/gogpu/chordflow/geom"
	"github.com/gogpu/chordflow/graph"
	"github.com/gogpu/chordflow/particle"
	"github.com/gogpu/chordflow/render"
	"github.com/gogpu/chordflow/render/buffer"
	"github.com/gogpu/chordflow/render/vector"
)

// meshData builds n fully connected detailed-mode nodes, yielding
// n*(n-1)/2 ribbons with every cell real.
func meshData(n int) ([]graph.Node, []graph.Edge) {
	nodes := make([]graph.Node, n)
	for i := range nodes {
		nodes[i] = graph.Node{ID: string(rune('a' + i%26)) + string(rune('0' + i/26))}
	}
	var edges []graph.Edge
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			edges = append(edges, graph.Edge{Source: nodes[i].ID, Target: nodes[j].ID})
		}
	}
	return nodes, edges
}

func newTestEngine(t *testing.T, cfg Config) (*Engine, chan Event) {
	t.Helper()
	e, err := New(WithConfig(cfg))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(e.Close)

	events := make(chan Event, 16)
	e.Notify(func(ev Event) { events <- ev })
	return e, events
}

func waitEvent(t *testing.T, events chan Event) Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(30 * time.Second):
		t.Fatal("timed out waiting for job event")
		return Event{}
	}
}

func TestGenerateNoData(t *testing.T) {
	e, _ := newTestEngine(t, DefaultConfig())
	if _, err := e.Generate(context.Background()); !errors.Is(err, graph.ErrNoData) {
		t.Errorf("Generate without data: err = %v, want ErrNoData", err)
	}
}

func TestGenerateCompletes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = render.BackendVector
	cfg.ViewMode = graph.ViewDetailed
	e, events := newTestEngine(t, cfg)
	e.sched.renderTick = time.Millisecond

	nodes, edges := meshData(5)
	e.SetData(nodes, edges)
	job, err := e.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	ev := waitEvent(t, events)
	if ev.Type != EventCompleted {
		t.Fatalf("event = %v, want completed", ev.Type)
	}
	if ev.Particles == 0 {
		t.Error("completed with zero particles")
	}
	if ev.Skipped != 0 {
		t.Errorf("Skipped = %d, want 0", ev.Skipped)
	}
	if p := job.Progress(); p.Phase != PhaseDone {
		t.Errorf("Phase = %v, want done", p.Phase)
	}

	e.Flush()
	vb := e.Backend().(*vector.Backend)
	if vb.Count() != ev.Particles {
		t.Errorf("backend holds %d shapes, event reported %d", vb.Count(), ev.Particles)
	}
	if e.Cache().Len() == 0 {
		t.Error("cache empty after generation")
	}

	// A completed pass is fully revealed.
	if got, want := e.Reveal().Index(), e.Reveal().Total(); got != want {
		t.Errorf("reveal index = %d, want total %d", got, want)
	}
}

func TestTotalParticleBudget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = render.BackendVector
	cfg.ViewMode = graph.ViewDetailed
	cfg.Quality = particle.QualityLow
	cfg.Density = 50 // saturate every per-ribbon cap
	e, events := newTestEngine(t, cfg)
	e.sched.renderTick = time.Millisecond

	// 25 nodes: 300 ribbons at 25 particles each would be 7500,
	// well past the low-quality budget of 5000.
	nodes, edges := meshData(25)
	e.SetData(nodes, edges)
	if _, err := e.Generate(context.Background()); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	ev := waitEvent(t, events)
	if ev.Type != EventCompleted {
		t.Fatalf("event = %v, want completed", ev.Type)
	}
	if budget := cfg.Quality.TotalCap(); ev.Particles != budget {
		t.Errorf("Particles = %d, want exactly the %d budget", ev.Particles, budget)
	}

	e.Flush()
	vb := e.Backend().(*vector.Backend)
	if vb.Count() != ev.Particles {
		t.Errorf("backend holds %d shapes, want %d", vb.Count(), ev.Particles)
	}
}

func TestCancelDuringCalculationKeepsCache(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = render.BackendVector
	cfg.ViewMode = graph.ViewDetailed
	e, events := newTestEngine(t, cfg)
	// Negative budget makes every calculation step yield after one
	// ribbon, so Flush advances the job one ribbon at a time.
	e.sched.calcBudget = -1
	e.sched.renderTick = 50 * time.Millisecond

	nodes, edges := meshData(10) // 45 ribbons
	e.SetData(nodes, edges)
	job, err := e.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	for i := 0; i < 5; i++ {
		e.Flush()
	}
	job.Cancel()

	ev := waitEvent(t, events)
	if ev.Type != EventCancelled {
		t.Fatalf("event = %v, want cancelled", ev.Type)
	}

	e.Flush()
	// Sampled positions survive the cancel; nothing reached the
	// backend because the render phase never started.
	if got := e.Cache().Len(); got == 0 {
		t.Error("cache dropped on cancel")
	}
	vb := e.Backend().(*vector.Backend)
	if vb.Count() != 0 {
		t.Errorf("backend holds %d shapes after calc-phase cancel, want 0", vb.Count())
	}
}

func TestContextCancelsJob(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = render.BackendVector
	cfg.ViewMode = graph.ViewDetailed
	e, events := newTestEngine(t, cfg)
	e.sched.calcBudget = -1
	e.sched.renderTick = 50 * time.Millisecond

	nodes, edges := meshData(10)
	e.SetData(nodes, edges)

	ctx, cancel := context.WithCancel(context.Background())
	if _, err := e.Generate(ctx); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	cancel()

	if ev := waitEvent(t, events); ev.Type != EventCancelled {
		t.Errorf("event = %v, want cancelled", ev.Type)
	}
}

func TestSingleActiveJob(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = render.BackendVector
	cfg.ViewMode = graph.ViewDetailed
	e, events := newTestEngine(t, cfg)
	e.sched.renderTick = 20 * time.Millisecond

	nodes, edges := meshData(10)
	e.SetData(nodes, edges)

	first, err := e.Generate(context.Background())
	if err != nil {
		t.Fatalf("first Generate: %v", err)
	}
	if _, err := e.Generate(context.Background()); err != nil {
		t.Fatalf("second Generate: %v", err)
	}
	if !first.Cancelled() {
		t.Error("first job not cancelled by second Generate")
	}

	ev1 := waitEvent(t, events)
	ev2 := waitEvent(t, events)
	if ev1.Type != EventCancelled {
		t.Errorf("first event = %v, want cancelled", ev1.Type)
	}
	if ev2.Type != EventCompleted {
		t.Errorf("second event = %v, want completed", ev2.Type)
	}
}

func TestRegenerationIsDeterministic(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = render.BackendVector
	cfg.ViewMode = graph.ViewDetailed
	cfg.Distribution = particle.Gaussian
	cfg.FixedSeeds = true
	e, events := newTestEngine(t, cfg)
	e.sched.renderTick = time.Millisecond

	nodes, edges := meshData(5)
	e.SetData(nodes, edges)

	if _, err := e.Generate(context.Background()); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	waitEvent(t, events)
	e.Flush()
	vb := e.Backend().(*vector.Backend)
	first := append([]vector.Shape(nil), vb.Shapes()...)

	// Drop the cache so the second pass resamples from scratch.
	e.Cache().InvalidateAll()

	if _, err := e.Generate(context.Background()); err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	waitEvent(t, events)
	e.Flush()
	second := vb.Shapes()

	if len(first) != len(second) {
		t.Fatalf("shape count changed: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("shape %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestSetConfigStyleOnly(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = render.BackendVector
	cfg.ViewMode = graph.ViewDetailed
	e, events := newTestEngine(t, cfg)
	e.sched.renderTick = time.Millisecond

	nodes, edges := meshData(5)
	e.SetData(nodes, edges)
	if _, err := e.Generate(context.Background()); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	waitEvent(t, events)
	e.Flush()

	cacheLen := e.Cache().Len()

	next := e.Config()
	next.Color = render.RGBA{R: 1, G: 0.5, B: 0, A: 1}
	next.Opacity = 0.3
	e.SetConfig(next)
	e.Flush()

	if got := e.Cache().Len(); got != cacheLen {
		t.Errorf("style change touched the cache: %d -> %d entries", cacheLen, got)
	}
	if p := e.Progress(); p.Phase != PhaseDone {
		t.Errorf("style change started a job, phase = %v", p.Phase)
	}
	select {
	case ev := <-events:
		t.Errorf("style change produced job event %v", ev.Type)
	default:
	}
}

func TestSetConfigDensityRegenerates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = render.BackendVector
	cfg.ViewMode = graph.ViewDetailed
	e, events := newTestEngine(t, cfg)
	e.sched.renderTick = time.Millisecond

	nodes, edges := meshData(5)
	e.SetData(nodes, edges)
	if _, err := e.Generate(context.Background()); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	ev := waitEvent(t, events)

	next := e.Config()
	next.Density = 10
	e.SetConfig(next)

	ev2 := waitEvent(t, events)
	if ev2.Type != EventCompleted {
		t.Fatalf("regeneration event = %v, want completed", ev2.Type)
	}
	if ev2.Particles <= ev.Particles {
		t.Errorf("tenfold density produced %d particles, was %d", ev2.Particles, ev.Particles)
	}
}

func TestConfiguredOpacityReachesShapes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = render.BackendVector
	cfg.ViewMode = graph.ViewDetailed
	cfg.Opacity = 0.8
	e, events := newTestEngine(t, cfg)
	e.sched.renderTick = time.Millisecond

	nodes, edges := meshData(5)
	e.SetData(nodes, edges)
	if _, err := e.Generate(context.Background()); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	waitEvent(t, events)
	e.Flush()

	// The configured opacity must land on each shape exactly once,
	// never compounded by the backend's own base.
	vb := e.Backend().(*vector.Backend)
	for i, sh := range vb.Shapes() {
		if math.Abs(sh.Opacity-0.8) > 1e-9 {
			t.Fatalf("shape %d opacity = %v, want 0.8", i, sh.Opacity)
		}
	}
}

func TestColorOnlyChangeKeepsSizeJitter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = render.BackendVector
	cfg.ViewMode = graph.ViewDetailed
	cfg.SizeVariation = 0.3
	e, events := newTestEngine(t, cfg)
	e.sched.renderTick = time.Millisecond

	nodes, edges := meshData(5)
	e.SetData(nodes, edges)
	if _, err := e.Generate(context.Background()); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	waitEvent(t, events)
	e.Flush()

	vb := e.Backend().(*vector.Backend)
	before := make([]float64, 0, vb.Count())
	minSize, maxSize := math.Inf(1), math.Inf(-1)
	for _, sh := range vb.Shapes() {
		before = append(before, sh.Size)
		minSize = math.Min(minSize, sh.Size)
		maxSize = math.Max(maxSize, sh.Size)
	}
	if maxSize-minSize == 0 {
		t.Fatal("size variation produced uniform sizes")
	}

	next := e.Config()
	next.Color = render.RGB(1, 0, 0)
	e.SetConfig(next)
	e.Flush()

	for i, sh := range vb.Shapes() {
		if sh.Size != before[i] {
			t.Fatalf("shape %d size changed by a color-only update: %v -> %v",
				i, before[i], sh.Size)
		}
	}
}

func TestViewSurvivesBackendSwitch(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = render.BackendVector
	cfg.ViewMode = graph.ViewDetailed
	e, events := newTestEngine(t, cfg)
	e.sched.renderTick = time.Millisecond

	nodes, edges := meshData(5)
	e.SetData(nodes, edges)
	if _, err := e.Generate(context.Background()); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	waitEvent(t, events)

	// Pan while the vector backend is active; the view must carry
	// over when a transform-consuming backend attaches later.
	e.SyncTransform(geom.Translate(100, 40))

	if err := e.SwitchBackend(render.BackendBuffer); err != nil {
		t.Fatalf("SwitchBackend: %v", err)
	}
	waitEvent(t, events)
	e.Flush()

	bb := e.Backend().(*buffer.Backend)
	got := bb.Transform()
	want := geom.Matrix{A: 1, B: 0, C: 100, D: 0, E: -1, F: -40}
	if got != want {
		t.Errorf("transform after switch = %+v, want %+v", got, want)
	}
}

func TestRevealVisibilityOnBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = render.BackendVector
	cfg.ViewMode = graph.ViewDetailed
	e, events := newTestEngine(t, cfg)
	e.sched.renderTick = time.Millisecond

	nodes, edges := meshData(5)
	e.SetData(nodes, edges)
	if _, err := e.Generate(context.Background()); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	waitEvent(t, events)
	e.Flush()

	e.Reveal().Seek(2)
	e.Flush()

	vb := e.Backend().(*vector.Backend)
	for _, ribbon := range []uint32{0, 1} {
		if !vb.Visible(ribbon) {
			t.Errorf("ribbon %d hidden, want visible at index 2", ribbon)
		}
	}
	if vb.Visible(2) {
		t.Error("ribbon 2 visible, want hidden at index 2")
	}
}

func TestSwitchBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = render.BackendVector
	cfg.ViewMode = graph.ViewDetailed
	e, events := newTestEngine(t, cfg)
	e.sched.renderTick = time.Millisecond

	nodes, edges := meshData(5)
	e.SetData(nodes, edges)
	if _, err := e.Generate(context.Background()); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	ev := waitEvent(t, events)
	cacheLen := e.Cache().Len()

	if err := e.SwitchBackend(render.BackendBuffer); err != nil {
		t.Fatalf("SwitchBackend: %v", err)
	}
	ev2 := waitEvent(t, events)
	if ev2.Type != EventCompleted {
		t.Fatalf("regeneration after switch = %v, want completed", ev2.Type)
	}
	if ev2.Particles != ev.Particles {
		t.Errorf("particle count changed across switch: %d vs %d", ev2.Particles, ev.Particles)
	}
	if got := e.Cache().Len(); got != cacheLen {
		t.Errorf("cache len changed across switch: %d vs %d", got, cacheLen)
	}

	e.Flush()
	bb, ok := e.Backend().(*buffer.Backend)
	if !ok {
		t.Fatalf("active backend is %T, want buffer", e.Backend())
	}
	if bb.Count() != ev2.Particles {
		t.Errorf("buffer holds %d particles, want %d", bb.Count(), ev2.Particles)
	}
	if got := e.Config().Backend; got != render.BackendBuffer {
		t.Errorf("Config().Backend = %q, want %q", got, render.BackendBuffer)
	}
}

func TestClosedEngine(t *testing.T) {
	e, _ := newTestEngine(t, DefaultConfig())
	e.Close()
	if _, err := e.Generate(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Generate after Close: err = %v, want ErrClosed", err)
	}
	if err := e.SwitchBackend(render.BackendVector); !errors.Is(err, ErrClosed) {
		t.Errorf("SwitchBackend after Close: err = %v, want ErrClosed", err)
	}
	// Close is idempotent.
	e.Close()
}
