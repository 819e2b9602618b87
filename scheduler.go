package chordflow

import (
	"log/slog"
	"time"

	"github.com/gogpu/chordflow/internal/task"
	"github.com/gogpu/chordflow/layout"
	"github.com/gogpu/chordflow/particle"
	"github.com/gogpu/chordflow/render"
)

// Scheduler pacing defaults. Calculation runs in batches so the loop
// stays responsive; rendering trickles one ribbon per tick so the
// diagram builds up visibly instead of popping in at once.
const (
	calcBatchSize     = 10
	defaultCalcBudget = 12 * time.Millisecond
	defaultRenderTick = 15 * time.Millisecond
)

// readyRibbon is one ribbon whose particles were sampled during the
// calculating phase and await hand-off to the backend.
type readyRibbon struct {
	index uint32
	pts   []particle.Point
	real  bool
}

// scheduler drives one generation job through its two phases on the
// engine's run loop. Calculating fully precedes rendering; batches run
// in ribbon index order; cancellation is honored only at batch
// boundaries.
type scheduler struct {
	loop  *task.Loop
	cache *particle.Cache
	log   *slog.Logger

	calcBudget time.Duration
	renderTick time.Duration
}

func newScheduler(loop *task.Loop, cache *particle.Cache, log *slog.Logger) *scheduler {
	return &scheduler{
		loop:       loop,
		cache:      cache,
		log:        log,
		calcBudget: defaultCalcBudget,
		renderTick: defaultRenderTick,
	}
}

// run starts the job. done is called exactly once, on the loop, when
// the job completes, cancels, or fails.
func (s *scheduler) run(job *Job, diagram *layout.Diagram, cfg Config, backend render.Backend, done func(Event)) {
	st := &jobState{
		job:     job,
		diagram: diagram,
		cfg:     cfg,
		backend: backend,
		done:    done,
		dim:     len(diagram.Arcs),
	}
	job.setPhase(PhaseCalculating)
	s.loop.Post(func() { s.calcStep(st) })
}

type jobState struct {
	job     *Job
	diagram *layout.Diagram
	cfg     Config
	backend render.Backend
	done    func(Event)
	dim     int

	cursor int
	ready  []readyRibbon
	next   int // render cursor
}

// calcStep processes up to one batch of ribbons. A batch that exceeds
// the calculation budget yields early and keeps its partial results.
func (s *scheduler) calcStep(st *jobState) {
	if st.job.Cancelled() {
		s.finish(st, EventCancelled, nil)
		return
	}

	start := time.Now()
	batchEnd := st.cursor + calcBatchSize
	if batchEnd > len(st.diagram.Ribbons) {
		batchEnd = len(st.diagram.Ribbons)
	}

	totalCap := st.cfg.Quality.TotalCap()
	ribbonCap := st.cfg.Quality.RibbonCap(st.cfg.ViewMode)

	for st.cursor < batchEnd {
		r := st.diagram.Ribbons[st.cursor]
		st.cursor++

		if r.Source >= st.dim || r.Target >= st.dim || r.Source < 0 || r.Target < 0 {
			st.job.skip()
			s.log.Warn("skipping malformed ribbon",
				"ribbon", r.Index, "source", r.Source, "target", r.Target, "dim", st.dim)
			continue
		}
		if st.cfg.OnlyReal && !r.Real {
			st.job.advance(0)
			continue
		}

		path := layout.RibbonCurve(r, st.cfg.Radius)
		n := particle.Count(st.cfg.Density, path.Length(), r.Real, ribbonCap)

		key := particle.Key{
			Ribbon:        r.Index,
			Density:       st.cfg.Density,
			SizeVariation: st.cfg.SizeVariation,
			Dist:          st.cfg.Distribution,
		}
		pts := s.cache.GetOrCompute(key, func() []particle.Point {
			return particle.Sample(path, n, particle.Options{
				Distribution:  st.cfg.Distribution,
				SizeVariation: st.cfg.SizeVariation,
				Ribbon:        r.Index,
				FixedSeeds:    st.cfg.FixedSeeds,
				Spread:        st.cfg.Spread,
			})
		})

		// Enforce the quality tier's total particle budget. The cache
		// keeps the full sample; only the hand-off is truncated.
		particles, _ := st.job.snapshot()
		if totalCap > 0 && particles+len(pts) > totalCap {
			room := totalCap - particles
			if room < 0 {
				room = 0
			}
			pts = pts[:room]
		}

		st.ready = append(st.ready, readyRibbon{index: r.Index, pts: pts, real: r.Real})
		st.job.advance(len(pts))

		if time.Since(start) > s.calcBudget {
			// Budget exceeded: yield with partial batch results kept.
			s.log.Debug("calculation budget exceeded, yielding",
				"processed", st.cursor, "total", len(st.diagram.Ribbons))
			break
		}
	}

	if st.cursor < len(st.diagram.Ribbons) {
		s.loop.Post(func() { s.calcStep(st) })
		return
	}

	st.job.setPhase(PhaseRendering)
	s.loop.PostDelayed(func() { s.renderStep(st) }, s.renderTick)
}

// renderStep hands one ready ribbon to the backend per tick. Each tick
// is a batch boundary, so cancellation between ticks leaves already
// rendered ribbons in place.
func (s *scheduler) renderStep(st *jobState) {
	if st.job.Cancelled() {
		s.finish(st, EventCancelled, nil)
		return
	}
	if st.next >= len(st.ready) {
		s.finish(st, EventCompleted, nil)
		return
	}

	r := st.ready[st.next]
	st.next++
	st.backend.SetRibbonParticles(r.index, r.pts, r.real)
	st.job.advance(0)

	if st.next >= len(st.ready) {
		s.finish(st, EventCompleted, nil)
		return
	}
	s.loop.PostDelayed(func() { s.renderStep(st) }, s.renderTick)
}

func (s *scheduler) finish(st *jobState, t EventType, err error) {
	st.job.setPhase(PhaseDone)
	particles, skipped := st.job.snapshot()
	s.log.Debug("generation finished",
		"event", t, "particles", particles, "skipped", skipped)
	if st.done != nil {
		st.done(Event{Type: t, Err: err, Particles: particles, Skipped: skipped})
	}
}
