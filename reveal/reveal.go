// Package reveal implements the build-up animation state machine. A
// Machine advances an index over the ordered ribbon list; each step
// flips per-ribbon visibility on the active backend through a change
// callback. Particles are hidden and shown, never regenerated.
package reveal

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gogpu/chordflow/internal/task"
)

// State is the animation state of a Machine.
type State int

const (
	// StateIdle means the machine has never played. Index is 0.
	StateIdle State = iota
	// StatePlaying means ticks are scheduled and the index advances.
	StatePlaying
	// StatePaused means the index holds its current value.
	StatePaused
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

const (
	// minTickDelay is the floor on the tick delay so high speed
	// settings never fall below a perceptible frame time.
	minTickDelay = 50 * time.Millisecond

	// fadeDelayFactor scales the configured fade duration into an
	// additional tick-delay floor, so fades are never starved to
	// invisibility by a fast speed setting.
	fadeDelayFactor = 0.3

	defaultSpeed = 1.0
)

// Machine is the reveal state machine. Ticks run on the engine's task
// loop; all other methods are safe to call from any goroutine.
type Machine struct {
	loop *task.Loop
	log  *slog.Logger

	mu           sync.Mutex
	index        int
	total        int
	state        State
	speed        float64
	fadeEnabled  bool
	fadeDuration time.Duration
	onChange     func(prev, cur int)
	cancelTick   func()
	generation   uint64
}

// NewMachine creates a machine over total ribbons, initially Idle at
// index 0. The loop carries the tick callbacks and must outlive the
// machine.
func NewMachine(loop *task.Loop, total int) *Machine {
	if total < 0 {
		total = 0
	}
	return &Machine{
		loop:  loop,
		total: total,
		speed: defaultSpeed,
	}
}

// SetLogger sets the machine's logger. Logging is off until one is
// set.
func (m *Machine) SetLogger(l *slog.Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = l
}

// OnChange registers the callback invoked on every index change, with
// the previous and current index. The callback runs on the task loop
// during playback and on the caller's goroutine for seek and step
// operations; it must not call back into the machine.
func (m *Machine) OnChange(fn func(prev, cur int)) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

// SetFade configures fade transitions. When enabled, the tick delay is
// additionally floored by a fraction of the fade duration so each fade
// has time to run.
func (m *Machine) SetFade(enabled bool, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fadeEnabled = enabled
	m.fadeDuration = duration
	if m.state == StatePlaying {
		m.rescheduleLocked()
	}
}

// State returns the current animation state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Index returns the current reveal index in [0, total]. 0 means
// nothing revealed, total means fully revealed.
func (m *Machine) Index() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index
}

// Total returns the number of ribbons the machine reveals over.
func (m *Machine) Total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// Speed returns the playback speed in steps per second.
func (m *Machine) Speed() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speed
}

// Play starts or resumes playback. Playing from a fully revealed state
// resets the index to 0 first so the build-up restarts. Play is a
// no-op while already playing.
func (m *Machine) Play() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StatePlaying {
		return
	}
	if m.index == m.total && m.total > 0 {
		m.setIndexLocked(0)
	}
	m.state = StatePlaying
	if m.log != nil {
		m.log.Debug("reveal play", "index", m.index, "total", m.total, "speed", m.speed)
	}
	m.rescheduleLocked()
}

// Pause stops advancing and holds the current index.
func (m *Machine) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pauseLocked()
}

// Stop pauses playback at the current index. It is an alias kept for
// symmetry with player-style control surfaces.
func (m *Machine) Stop() {
	m.Pause()
}

// StepForward pauses playback and advances the index by one, clamped
// to total.
func (m *Machine) StepForward() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pauseLocked()
	m.setIndexLocked(m.index + 1)
}

// StepBack pauses playback and moves the index back by one, clamped
// to 0.
func (m *Machine) StepBack() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pauseLocked()
	m.setIndexLocked(m.index - 1)
}

// Seek pauses playback and jumps to index i, clamped to [0, total].
func (m *Machine) Seek(i int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pauseLocked()
	m.setIndexLocked(i)
}

// SetSpeed changes the playback speed in steps per second. When
// playing, the pending tick is rescheduled with the new delay.
// Non-positive speeds are ignored.
func (m *Machine) SetSpeed(s float64) {
	if s <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.speed = s
	if m.state == StatePlaying {
		m.rescheduleLocked()
	}
}

// SetTotal updates the ribbon count after a regeneration. The index is
// clamped into the new range.
func (m *Machine) SetTotal(total int) {
	if total < 0 {
		total = 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total = total
	if m.index > total {
		m.setIndexLocked(total)
	}
}

// Delay returns the current tick delay derived from speed and fade
// settings.
func (m *Machine) Delay() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.delayLocked()
}

func (m *Machine) delayLocked() time.Duration {
	d := time.Duration(float64(time.Second) / m.speed)
	if d < minTickDelay {
		d = minTickDelay
	}
	if m.fadeEnabled {
		fadeFloor := time.Duration(float64(m.fadeDuration) * fadeDelayFactor / m.speed)
		if d < fadeFloor {
			d = fadeFloor
		}
	}
	return d
}

func (m *Machine) pauseLocked() {
	if m.cancelTick != nil {
		m.cancelTick()
		m.cancelTick = nil
	}
	m.generation++
	if m.state == StatePlaying {
		m.state = StatePaused
	}
}

// rescheduleLocked cancels any pending tick and schedules the next one
// with the current delay.
func (m *Machine) rescheduleLocked() {
	if m.cancelTick != nil {
		m.cancelTick()
	}
	m.generation++
	gen := m.generation
	m.cancelTick = m.loop.PostDelayed(func() { m.tick(gen) }, m.delayLocked())
}

// tick runs on the task loop. The generation check discards ticks that
// were cancelled or superseded after their timer fired.
func (m *Machine) tick(gen uint64) {
	m.mu.Lock()
	if gen != m.generation || m.state != StatePlaying {
		m.mu.Unlock()
		return
	}
	m.setIndexLocked(m.index + 1)
	if m.index >= m.total {
		m.cancelTick = nil
		m.state = StatePaused
		if m.log != nil {
			m.log.Debug("reveal complete", "total", m.total)
		}
		m.mu.Unlock()
		return
	}
	m.rescheduleLocked()
	m.mu.Unlock()
}

// setIndexLocked clamps and applies a new index, firing the change
// callback. The callback runs with the machine lock held and must not
// re-enter the machine.
func (m *Machine) setIndexLocked(i int) {
	if i < 0 {
		i = 0
	}
	if i > m.total {
		i = m.total
	}
	if i == m.index {
		return
	}
	prev := m.index
	m.index = i
	if m.onChange != nil {
		m.onChange(prev, i)
	}
}
