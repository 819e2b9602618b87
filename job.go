package chordflow

import (
	"sync"
	"sync/atomic"
	"time"
)

// Phase is the stage a generation job is in.
type Phase int

const (
	// PhaseCalculating samples particle positions for each ribbon.
	PhaseCalculating Phase = iota
	// PhaseRendering hands completed ribbons to the backend, one per
	// tick.
	PhaseRendering
	// PhaseDone means the job finished, was cancelled, or failed.
	PhaseDone
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseCalculating:
		return "calculating"
	case PhaseRendering:
		return "rendering"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// Progress is a point-in-time snapshot of a generation job.
type Progress struct {
	Phase     Phase
	Processed int // ribbons completed in the current phase
	Total     int // ribbons in scope for the job
	Particles int // particles generated so far
	Skipped   int // malformed ribbons skipped
	FPS       float64
}

// EventType classifies a job notification.
type EventType int

const (
	// EventCompleted fires when a job renders its last ribbon.
	EventCompleted EventType = iota
	// EventCancelled fires when a cancelled job stops at a batch
	// boundary.
	EventCancelled
	// EventError fires when a job stops on an error.
	EventError
)

// String returns the event type name.
func (t EventType) String() string {
	switch t {
	case EventCompleted:
		return "completed"
	case EventCancelled:
		return "cancelled"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a job lifecycle notification.
type Event struct {
	Type      EventType
	Err       error
	Particles int
	Skipped   int
}

// Job tracks one generation pass. Cancellation is cooperative: Cancel
// raises a flag that the scheduler checks at batch boundaries, so
// mid-batch work always completes and partial results stay.
type Job struct {
	cancelled atomic.Bool

	mu        sync.Mutex
	phase     Phase
	processed int
	total     int
	particles int
	skipped   int
	started   time.Time
	rendered  int
	renderAt  time.Time
}

func newJob(total int) *Job {
	return &Job{total: total, started: time.Now()}
}

// Cancel requests cooperative cancellation. The job stops at the next
// batch boundary; already rendered ribbons remain on the backend.
// Safe to call from any goroutine, more than once.
func (j *Job) Cancel() {
	j.cancelled.Store(true)
}

// Cancelled reports whether cancellation was requested.
func (j *Job) Cancelled() bool {
	return j.cancelled.Load()
}

// Progress returns a snapshot of the job state. During the rendering
// phase FPS is the measured ribbon tick rate.
func (j *Job) Progress() Progress {
	j.mu.Lock()
	defer j.mu.Unlock()
	p := Progress{
		Phase:     j.phase,
		Processed: j.processed,
		Total:     j.total,
		Particles: j.particles,
		Skipped:   j.skipped,
	}
	if j.rendered > 0 {
		elapsed := time.Since(j.renderAt).Seconds()
		if elapsed > 0 {
			p.FPS = float64(j.rendered) / elapsed
		}
	}
	return p
}

func (j *Job) setPhase(p Phase) {
	j.mu.Lock()
	j.phase = p
	j.processed = 0
	if p == PhaseRendering {
		j.renderAt = time.Now()
		j.rendered = 0
	}
	j.mu.Unlock()
}

func (j *Job) advance(particles int) {
	j.mu.Lock()
	j.processed++
	j.particles += particles
	if j.phase == PhaseRendering {
		j.rendered++
	}
	j.mu.Unlock()
}

func (j *Job) skip() {
	j.mu.Lock()
	j.processed++
	j.skipped++
	j.mu.Unlock()
}

func (j *Job) snapshot() (particles, skipped int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.particles, j.skipped
}
