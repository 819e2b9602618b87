// Package render defines the particle rendering backend abstraction,
// the backend registry, and the transform synchronizer that keeps the
// buffer backend aligned with the vector scene's pan/zoom state.
package render

import (
	"errors"
	"log/slog"

	"github.com/gogpu/chordflow/geom"
	"github.com/gogpu/chordflow/particle"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is
	// not registered or cannot initialize.
	ErrBackendNotAvailable = errors.New("render: backend not available")

	// ErrNotInitialized is returned when operations are called before Init.
	ErrNotInitialized = errors.New("render: backend not initialized")
)

// StyleUpdate carries a partial style change. Nil fields are left
// untouched. Style updates never move particles: backends apply them
// to colors, sizes, and opacities in place without rewriting position
// data.
type StyleUpdate struct {
	Color       *RGBA
	Opacity     *float64
	Size        *float64
	StrokeColor *RGBA
	StrokeWidth *float64
	Blur        *float64
}

// Backend is a particle rendering target. The vector implementation
// emits one discrete shape per particle; the buffer implementation
// maintains flat numeric arrays for a single draw call.
//
// Backends are driven from the engine's run loop and are not safe for
// concurrent use.
type Backend interface {
	// Name returns the backend identifier ("vector", "buffer").
	Name() string

	// Init prepares backend resources. It must be called before any
	// other operation and may fail (e.g. no GPU device), in which
	// case the registry falls back to the next backend in priority.
	Init() error

	// SetRibbonParticles replaces the particles of one ribbon.
	// Appending ribbon by ribbon as generation batches complete is
	// the expected call pattern.
	SetRibbonParticles(ribbon uint32, pts []particle.Point, real bool)

	// UpdateStyle applies a partial style change in place.
	UpdateStyle(s StyleUpdate)

	// SetVisible toggles a ribbon's particles without destroying
	// them. Reveal ticks use this; regeneration does not.
	SetVisible(ribbon uint32, visible bool)

	// Clear removes all particles.
	Clear()

	// Close releases backend resources. The backend must not be used
	// afterwards.
	Close()
}

// TransformBackend is implemented by backends that consume a scene
// transform (the buffer backend). The synchronizer pushes the
// converted transform through this interface.
type TransformBackend interface {
	SetTransform(m geom.Matrix)
}

// Animated is implemented by backends with a per-frame update step.
type Animated interface {
	// Advance moves animated particles for the given time in seconds.
	Advance(t float64)
}

// LoggerSetter is implemented by backends that accept a logger.
// The engine propagates its logger to the active backend through this.
type LoggerSetter interface {
	SetLogger(*slog.Logger)
}
