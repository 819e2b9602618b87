package chordflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/gogpu/chordflow/geom"
	"github.com/gogpu/chordflow/graph"
	"github.com/gogpu/chordflow/internal/task"
	"github.com/gogpu/chordflow/layout"
	"github.com/gogpu/chordflow/particle"
	"github.com/gogpu/chordflow/render"
	"github.com/gogpu/chordflow/render/buffer"
	"github.com/gogpu/chordflow/reveal"
)

// ErrClosed is returned by operations on a closed engine.
var ErrClosed = errors.New("chordflow: engine closed")

// movementSetter is implemented by backends with a per-frame
// oscillation (the buffer backend).
type movementSetter interface {
	SetMovement(enabled bool, amount float64)
}

// Engine owns the full pipeline: matrix builder, chord layout, particle
// sampler with its position cache, progressive scheduler, the active
// render backend, and the reveal state machine. All backend mutations
// run on one internal run loop, so at most one writer touches backend
// state at a time.
//
// Engine methods are safe for concurrent use.
type Engine struct {
	loop  *task.Loop
	cache *particle.Cache
	sched *scheduler
	log   *slog.Logger

	mu        sync.Mutex
	cfg       Config
	nodes     []graph.Node
	edges     []graph.Edge
	matrix    *graph.Matrix
	diagram   *layout.Diagram
	backend   render.Backend
	sync      *render.Sync
	machine   *reveal.Machine
	job       *Job
	notify    func(Event)
	generated bool
	closed    bool

	width, height float64

	// view is the last transform pushed through SyncTransform, replayed
	// onto a freshly attached backend so a backend switch does not reset
	// the camera to identity.
	view    geom.Matrix
	hasView bool
}

// New creates an engine with the requested backend. When the backend
// cannot initialize (e.g. buffer without a GPU device) the registry
// falls back through its priority order, so New fails only when no
// backend is available at all.
func New(opts ...Option) (*Engine, error) {
	o := defaultEngineOptions()
	for _, fn := range opts {
		fn(&o)
	}
	o.cfg.normalize()

	log := o.logger
	if log == nil {
		log = Logger()
	}

	if o.device != nil {
		if err := buffer.SetDeviceProvider(o.device); err != nil {
			log.Warn("GPU device provider rejected", "err", err)
		}
	}

	b, err := render.Init(o.cfg.Backend)
	if err != nil {
		return nil, err
	}
	if b.Name() != o.cfg.Backend {
		log.Warn("backend unavailable, fell back",
			"requested", o.cfg.Backend, "active", b.Name())
		o.cfg.Backend = b.Name()
	}

	e := &Engine{
		loop:   task.NewLoop(),
		cache:  particle.NewCache(o.cacheLimit),
		log:    log,
		cfg:    o.cfg,
		width:  o.width,
		height: o.height,
	}
	e.sched = newScheduler(e.loop, e.cache, log)
	e.machine = reveal.NewMachine(e.loop, 0)
	e.machine.SetLogger(log)
	e.machine.SetSpeed(o.cfg.RevealSpeed)
	e.machine.SetFade(o.cfg.FadeEnabled, o.cfg.FadeDuration)
	e.machine.OnChange(e.applyReveal)

	e.attachBackend(b)
	return e, nil
}

// attachBackend wires logging, movement, style, and the transform
// synchronizer to a freshly initialized backend. Caller holds no lock
// or e.mu; backend calls are posted to the loop.
func (e *Engine) attachBackend(b render.Backend) {
	if ls, ok := b.(render.LoggerSetter); ok {
		ls.SetLogger(e.log)
	}

	e.mu.Lock()
	e.backend = b
	if tb, ok := b.(render.TransformBackend); ok {
		e.sync = render.NewSync(e.width, e.height, tb)
	} else {
		e.sync = nil
	}
	cfg := e.cfg
	s := e.sync
	view, hasView := e.view, e.hasView
	e.mu.Unlock()

	e.loop.Post(func() {
		if ms, ok := b.(movementSetter); ok {
			ms.SetMovement(cfg.Movement, cfg.MovementAmount)
		}
		b.UpdateStyle(cfg.styleUpdate())
		if s != nil && hasView {
			s.Apply(view)
		}
	})
}

// SetData replaces the node and edge lists. The matrix, layout, and
// position caches are rebuilt on the next Generate.
func (e *Engine) SetData(nodes []graph.Node, edges []graph.Edge) {
	e.mu.Lock()
	e.nodes = nodes
	e.edges = edges
	e.matrix = nil
	e.diagram = nil
	e.mu.Unlock()
	e.cache.InvalidateAll()
}

// Config returns a copy of the current configuration.
func (e *Engine) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// SetConfig applies a new configuration. Changes that move particles
// (density, distribution, size variation, view mode, quality, radius)
// drop the position cache and, when data was already generated, start
// a fresh generation. Pure style changes apply in place without
// touching positions.
func (e *Engine) SetConfig(next Config) {
	next.normalize()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	prev := e.cfg
	e.cfg = next
	invalidate := prev.invalidatesPositions(next)
	regen := prev.needsRegeneration(next) && e.generated
	if prev.ViewMode != next.ViewMode || prev.ShowAll != next.ShowAll {
		e.matrix = nil
		e.diagram = nil
	}
	b := e.backend
	delta := prev.styleDelta(next)
	e.mu.Unlock()

	if invalidate {
		e.cache.InvalidateAll()
	}

	e.machine.SetSpeed(next.RevealSpeed)
	e.machine.SetFade(next.FadeEnabled, next.FadeDuration)

	e.loop.Post(func() {
		if ms, ok := b.(movementSetter); ok {
			ms.SetMovement(next.Movement, next.MovementAmount)
		}
		b.UpdateStyle(delta)
	})

	if regen {
		if _, err := e.Generate(context.Background()); err != nil && !errors.Is(err, graph.ErrNoData) {
			e.log.Warn("regeneration after config change failed", "err", err)
		}
	}
}

// UpdateStyle applies a partial style change directly to the backend:
// colors, sizes, and opacities update in place, positions are never
// touched and nothing regenerates.
func (e *Engine) UpdateStyle(s render.StyleUpdate) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	if s.Color != nil {
		e.cfg.Color = *s.Color
	}
	if s.Opacity != nil {
		e.cfg.Opacity = *s.Opacity
	}
	if s.Size != nil {
		e.cfg.Size = *s.Size
	}
	if s.StrokeColor != nil {
		e.cfg.StrokeColor = *s.StrokeColor
	}
	if s.StrokeWidth != nil {
		e.cfg.StrokeWidth = *s.StrokeWidth
	}
	if s.Blur != nil {
		e.cfg.Blur = *s.Blur
	}
	b := e.backend
	e.mu.Unlock()

	e.loop.Post(func() { b.UpdateStyle(s) })
}

// Generate starts a generation pass: build the matrix and layout if
// needed, then run the progressive scheduler. An in-flight job is
// cancelled first, preserving the single active job invariant. The
// returned Job reports progress and supports cooperative cancellation;
// cancelling ctx cancels the job the same way.
func (e *Engine) Generate(ctx context.Context) (*Job, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrClosed
	}
	if e.job != nil {
		e.job.Cancel()
		e.job = nil
	}

	rebuilt := false
	if e.matrix == nil {
		m, err := graph.Build(e.nodes, e.edges, e.cfg.ViewMode, e.cfg.ShowAll)
		if err != nil {
			e.mu.Unlock()
			return nil, err
		}
		e.matrix = m
		e.diagram = nil
		rebuilt = true
	}
	if e.diagram == nil {
		e.diagram = layout.Compute(e.matrix)
	}

	job := newJob(len(e.diagram.Ribbons))
	e.job = job
	e.generated = true
	cfg := e.cfg
	diagram := e.diagram
	b := e.backend
	e.mu.Unlock()

	e.machine.Pause()
	e.machine.SetTotal(len(diagram.Ribbons))
	if rebuilt {
		e.loop.Post(func() { b.Clear() })
	}

	var stopWatch func() bool
	if ctx != nil && ctx.Done() != nil {
		stopWatch = context.AfterFunc(ctx, job.Cancel)
	}

	e.sched.run(job, diagram, cfg, b, func(ev Event) {
		if stopWatch != nil {
			stopWatch()
		}
		e.onJobDone(job, ev)
	})
	return job, nil
}

// onJobDone runs on the loop when a job finishes.
func (e *Engine) onJobDone(job *Job, ev Event) {
	e.mu.Lock()
	if e.job == job {
		e.job = nil
	}
	notify := e.notify
	total := 0
	if e.diagram != nil {
		total = len(e.diagram.Ribbons)
	}
	e.mu.Unlock()

	if ev.Type == EventCompleted {
		// A completed pass leaves every ribbon visible, which is the
		// fully revealed state.
		e.machine.SetTotal(total)
		e.machine.Seek(total)
	}
	if notify != nil {
		notify(ev)
	}
}

// CancelGeneration requests cooperative cancellation of the in-flight
// job, if any. The job stops at its next batch boundary; already
// rendered ribbons and cached positions remain.
func (e *Engine) CancelGeneration() {
	e.mu.Lock()
	job := e.job
	e.mu.Unlock()
	if job != nil {
		job.Cancel()
	}
}

// SwitchBackend disposes the current backend, initializes the named
// one (with registry fallback), and re-runs generation. The position
// cache survives the switch, so the new backend fills from cache hits.
func (e *Engine) SwitchBackend(name string) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if e.job != nil {
		e.job.Cancel()
		e.job = nil
	}
	old := e.backend
	generated := e.generated
	e.mu.Unlock()

	b, err := render.Init(name)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.cfg.Backend = b.Name()
	e.mu.Unlock()

	e.loop.Post(func() { old.Close() })
	e.attachBackend(b)

	if generated {
		if _, err := e.Generate(context.Background()); err != nil {
			return err
		}
	}
	return nil
}

// Reveal returns the reveal state machine driving the build-up
// animation.
func (e *Engine) Reveal() *reveal.Machine {
	return e.machine
}

// applyReveal flips ribbon visibility for a reveal index change.
// Runs for every index change; particles are hidden or shown, never
// regenerated.
func (e *Engine) applyReveal(prev, cur int) {
	lo, hi, visible := prev, cur, true
	if cur < prev {
		lo, hi, visible = cur, prev, false
	}
	e.mu.Lock()
	b := e.backend
	e.mu.Unlock()

	e.loop.Post(func() {
		for i := lo; i < hi; i++ {
			b.SetVisible(uint32(i), visible)
		}
	})
}

// Progress returns the current job's progress, or a done snapshot when
// no job is running.
func (e *Engine) Progress() Progress {
	e.mu.Lock()
	job := e.job
	e.mu.Unlock()
	if job == nil {
		return Progress{Phase: PhaseDone}
	}
	return job.Progress()
}

// Notify registers a callback for job completion, cancellation, and
// error events. The callback runs on the engine's loop and must not
// block.
func (e *Engine) Notify(fn func(Event)) {
	e.mu.Lock()
	e.notify = fn
	e.mu.Unlock()
}

// SyncTransform converts the vector scene's view transform (top-left
// origin, Y down) to buffer space (center origin, Y up) and pushes it
// to the backend. No-op unless the active backend consumes transforms.
func (e *Engine) SyncTransform(view geom.Matrix) {
	e.mu.Lock()
	e.view = view
	e.hasView = true
	s := e.sync
	e.mu.Unlock()
	if s == nil {
		return
	}
	e.loop.Post(func() { s.Apply(view) })
}

// SetViewport updates the canvas size used by the transform
// synchronizer.
func (e *Engine) SetViewport(width, height float64) {
	e.mu.Lock()
	e.width, e.height = width, height
	s := e.sync
	e.mu.Unlock()
	if s == nil {
		return
	}
	e.loop.Post(func() { s.SetViewport(width, height) })
}

// Advance runs one animation frame at time t (seconds) on backends
// that animate (the buffer backend's oscillation). Posted to the loop
// so frame updates never interleave with generation or style writes.
func (e *Engine) Advance(t float64) {
	e.mu.Lock()
	b := e.backend
	e.mu.Unlock()
	if a, ok := b.(render.Animated); ok {
		e.loop.Post(func() { a.Advance(t) })
	}
}

// Backend returns the active render backend. Hosts use it to read
// shape descriptors (vector) or the flat draw arrays (buffer). Reads
// should be coordinated with the loop via Flush.
func (e *Engine) Backend() render.Backend {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.backend
}

// Matrix returns the current weight matrix, or nil before Generate.
func (e *Engine) Matrix() *graph.Matrix {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.matrix
}

// Diagram returns the current chord layout, or nil before Generate.
func (e *Engine) Diagram() *layout.Diagram {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.diagram
}

// Cache returns the particle position cache.
func (e *Engine) Cache() *particle.Cache {
	return e.cache
}

// Flush blocks until all work queued on the engine loop so far has
// run. Hosts call it before reading backend state; tests use it to
// settle asynchronous steps.
func (e *Engine) Flush() {
	e.loop.Sync(func() {})
}

// Close cancels any in-flight job, stops the run loop (draining queued
// work), and releases the backend. The engine must not be used after
// Close.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	job := e.job
	e.job = nil
	b := e.backend
	e.mu.Unlock()

	if job != nil {
		job.Cancel()
	}
	e.machine.Pause()
	e.loop.Close()
	if b != nil {
		b.Close()
	}
}
