// Package buffer implements the flat-array particle backend: four
// parallel numeric arrays (positions, sizes, colors, opacities) sized
// for a single draw call, updated in place by an animation loop.
//
// The backend keeps a CPU-side copy of all arrays; when a GPU device
// is available (shared from the host via gpucontext, or opened
// directly), the arrays mirror into storage buffers and the per-frame
// motion offset runs as a compute shader instead of on the CPU.
package buffer

import (
	"log/slog"
	"math"

	"github.com/gogpu/chordflow/geom"
	"github.com/gogpu/chordflow/particle"
	"github.com/gogpu/chordflow/render"
)

func init() {
	render.Register(render.BackendBuffer, func() render.Backend {
		b := New()
		b.wantGPU = true
		return b
	})
}

// floatsPerPosition is the position stride: x, y, z per particle.
const floatsPerPosition = 3

// floatsPerColor is the color stride: r, g, b per particle.
const floatsPerColor = 3

// span is one ribbon's contiguous slice of the particle arrays.
type span struct {
	start, count int
	real         bool
	visible      bool
}

// Backend is the flat-array particle backend.
//
// Invariants: all arrays hold the same particle count;
// originalPositions is written only by SetRibbonParticles (the
// regeneration path) and never by Advance or UpdateStyle; Advance
// writes only positions; UpdateStyle writes only colors, sizes, and
// opacities.
type Backend struct {
	positions         []float32 // 3 per particle, animated
	originalPositions []float32 // 3 per particle, rest state
	sizes             []float32 // 1 per particle
	colors            []float32 // 3 per particle
	opacities         []float32 // 1 per particle, post-visibility

	// baseOpacities keeps the sampled opacity so hiding a ribbon
	// (opacity 0) can be undone without resampling.
	baseOpacities []float32

	spans map[uint32]*span
	order []uint32

	color   render.RGBA
	opacity float64
	size    float64

	movement       bool
	movementAmount float64

	transform geom.Matrix

	initialized bool
	wantGPU     bool
	gpu         *gpuState
	log         *slog.Logger
}

var _ render.Backend = (*Backend)(nil)
var _ render.TransformBackend = (*Backend)(nil)
var _ render.Animated = (*Backend)(nil)

// New creates a CPU-only buffer backend. The host reads the arrays
// via Arrays() and issues its own draw call.
func New() *Backend {
	return &Backend{
		spans:          make(map[uint32]*span),
		color:          render.RGB(1, 1, 1),
		opacity:        1,
		size:           1,
		movementAmount: 1,
		transform:      geom.Identity(),
	}
}

// Name returns "buffer".
func (b *Backend) Name() string { return render.BackendBuffer }

// SetLogger sets the backend's logger.
func (b *Backend) SetLogger(l *slog.Logger) { b.log = l }

// Init prepares the backend. When the backend was created through the
// registry, a GPU device is required: failure to acquire one returns
// an error so the registry can fall back to the vector backend.
func (b *Backend) Init() error {
	if b.wantGPU {
		gpu, err := initGPU(b.log)
		if err != nil {
			if b.log != nil {
				b.log.Warn("buffer backend GPU init failed", "err", err)
			}
			return err
		}
		b.gpu = gpu
	}
	b.initialized = true
	return nil
}

// SetMovement configures the per-frame oscillation.
func (b *Backend) SetMovement(enabled bool, amount float64) {
	b.movement = enabled
	if amount > 0 {
		b.movementAmount = amount
	}
}

// SetTransform stores the buffer-space transform computed by the
// synchronizer. The transform applies at draw time; particle data
// stays in local coordinates.
func (b *Backend) SetTransform(m geom.Matrix) {
	b.transform = m
	if b.gpu != nil {
		b.gpu.markTransformDirty()
	}
}

// Transform returns the current buffer-space transform.
func (b *Backend) Transform() geom.Matrix { return b.transform }

// SetRibbonParticles replaces one ribbon's particles. Appending new
// ribbons extends the arrays; replacing an existing ribbon rebuilds
// them (regeneration always clears first, so the append path is the
// hot one). originalPositions is snapshotted here and nowhere else.
func (b *Backend) SetRibbonParticles(ribbon uint32, pts []particle.Point, real bool) {
	if sp, ok := b.spans[ribbon]; ok && sp.count != len(pts) {
		b.removeSpan(ribbon)
	}

	sp, ok := b.spans[ribbon]
	if !ok {
		sp = &span{start: b.Count(), count: len(pts), real: real, visible: true}
		b.spans[ribbon] = sp
		b.order = append(b.order, ribbon)
		b.grow(len(pts))
	}
	sp.real = real

	for i, p := range pts {
		pi := (sp.start + i) * floatsPerPosition
		b.positions[pi+0] = float32(p.X)
		b.positions[pi+1] = float32(p.Y)
		b.positions[pi+2] = 0
		b.originalPositions[pi+0] = float32(p.X)
		b.originalPositions[pi+1] = float32(p.Y)
		b.originalPositions[pi+2] = 0

		// Sampled size and opacity are factors on the style base.
		b.sizes[sp.start+i] = float32(p.Size * b.size)

		ci := (sp.start + i) * floatsPerColor
		b.colors[ci+0] = float32(b.color.R)
		b.colors[ci+1] = float32(b.color.G)
		b.colors[ci+2] = float32(b.color.B)

		op := float32(p.Opacity * b.opacity)
		b.baseOpacities[sp.start+i] = op
		if sp.visible {
			b.opacities[sp.start+i] = op
		} else {
			b.opacities[sp.start+i] = 0
		}
	}

	if b.gpu != nil {
		b.gpu.markDirty()
	}
}

// grow extends all arrays by n particles.
func (b *Backend) grow(n int) {
	b.positions = append(b.positions, make([]float32, n*floatsPerPosition)...)
	b.originalPositions = append(b.originalPositions, make([]float32, n*floatsPerPosition)...)
	b.sizes = append(b.sizes, make([]float32, n)...)
	b.colors = append(b.colors, make([]float32, n*floatsPerColor)...)
	b.opacities = append(b.opacities, make([]float32, n)...)
	b.baseOpacities = append(b.baseOpacities, make([]float32, n)...)
}

// removeSpan deletes a ribbon's block and compacts the arrays.
func (b *Backend) removeSpan(ribbon uint32) {
	sp, ok := b.spans[ribbon]
	if !ok {
		return
	}
	cut := func(f []float32, stride int) []float32 {
		lo, hi := sp.start*stride, (sp.start+sp.count)*stride
		return append(f[:lo], f[hi:]...)
	}
	b.positions = cut(b.positions, floatsPerPosition)
	b.originalPositions = cut(b.originalPositions, floatsPerPosition)
	b.sizes = cut(b.sizes, 1)
	b.colors = cut(b.colors, floatsPerColor)
	b.opacities = cut(b.opacities, 1)
	b.baseOpacities = cut(b.baseOpacities, 1)

	for _, r := range b.order {
		if o := b.spans[r]; o.start > sp.start {
			o.start -= sp.count
		}
	}
	delete(b.spans, ribbon)
	for i, r := range b.order {
		if r == ribbon {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// UpdateStyle applies a partial style in place. Positions and
// originalPositions are never touched here: a style update must stay
// distinguishable from a regeneration.
func (b *Backend) UpdateStyle(s render.StyleUpdate) {
	if s.Color != nil {
		b.color = *s.Color
		for i := 0; i < b.Count(); i++ {
			ci := i * floatsPerColor
			b.colors[ci+0] = float32(b.color.R)
			b.colors[ci+1] = float32(b.color.G)
			b.colors[ci+2] = float32(b.color.B)
		}
	}
	if s.Size != nil {
		// Scale by the ratio of new to old base so per-particle size
		// jitter survives style updates.
		scale := float32(1)
		if b.size > 0 {
			scale = float32(*s.Size / b.size)
		}
		b.size = *s.Size
		for i := range b.sizes {
			b.sizes[i] *= scale
		}
	}
	if s.Opacity != nil {
		// Rescale base opacities by the ratio of new to old.
		old := b.opacity
		b.opacity = *s.Opacity
		scale := float32(1)
		if old > 0 {
			scale = float32(b.opacity / old)
		}
		for i := range b.baseOpacities {
			b.baseOpacities[i] *= scale
		}
		b.refreshOpacities()
	}
	if b.gpu != nil {
		b.gpu.markDirty()
	}
}

// SetVisible hides or shows one ribbon by zeroing or restoring its
// opacity block. Position, size, and color data stay untouched, so a
// reveal tick costs one memset-sized write.
func (b *Backend) SetVisible(ribbon uint32, visible bool) {
	sp, ok := b.spans[ribbon]
	if !ok || sp.visible == visible {
		return
	}
	sp.visible = visible
	for i := sp.start; i < sp.start+sp.count; i++ {
		if visible {
			b.opacities[i] = b.baseOpacities[i]
		} else {
			b.opacities[i] = 0
		}
	}
	if b.gpu != nil {
		b.gpu.markDirty()
	}
}

// refreshOpacities rewrites the live opacity array from the base
// values and per-span visibility.
func (b *Backend) refreshOpacities() {
	for _, r := range b.order {
		sp := b.spans[r]
		for i := sp.start; i < sp.start+sp.count; i++ {
			if sp.visible {
				b.opacities[i] = b.baseOpacities[i]
			} else {
				b.opacities[i] = 0
			}
		}
	}
}

// Advance applies the motion offset for time t (seconds). Positions
// are always recomputed from originalPositions, never accumulated, so
// floating-point drift cannot build up across frames. With a GPU
// pipeline attached the offset runs as a compute dispatch instead.
func (b *Backend) Advance(t float64) {
	if !b.movement {
		return
	}
	if b.gpu != nil {
		if err := b.gpu.dispatchMotion(b, t); err == nil {
			return
		}
		// GPU dispatch failure falls through to the CPU path for
		// this frame; initGPU already logged the condition.
	}
	amp := b.movementAmount
	n := b.Count()
	for i := 0; i < n; i++ {
		freq := 0.5 + float64(i%7)*0.25
		phase := float64(i) * 0.7
		dx := amp * math.Sin(t*freq+phase)
		dy := amp * math.Cos(t*freq*0.8+phase)
		pi := i * floatsPerPosition
		b.positions[pi+0] = b.originalPositions[pi+0] + float32(dx)
		b.positions[pi+1] = b.originalPositions[pi+1] + float32(dy)
	}
}

// Count returns the particle count.
func (b *Backend) Count() int { return len(b.sizes) }

// Arrays exposes the four draw-call arrays: positions (3 floats per
// particle), sizes, colors (3 per particle), opacities. Callers must
// treat them as read-only; they are replaced wholesale on
// regeneration.
func (b *Backend) Arrays() (positions, sizes, colors, opacities []float32) {
	return b.positions, b.sizes, b.colors, b.opacities
}

// OriginalPositions exposes the rest-state snapshot (for tests and
// host-side motion).
func (b *Backend) OriginalPositions() []float32 { return b.originalPositions }

// Visible reports a ribbon's visibility.
func (b *Backend) Visible(ribbon uint32) bool {
	sp, ok := b.spans[ribbon]
	return ok && sp.visible
}

// Clear removes all particles. GPU buffers are released lazily on the
// next upload.
func (b *Backend) Clear() {
	b.positions = b.positions[:0]
	b.originalPositions = b.originalPositions[:0]
	b.sizes = b.sizes[:0]
	b.colors = b.colors[:0]
	b.opacities = b.opacities[:0]
	b.baseOpacities = b.baseOpacities[:0]
	b.spans = make(map[uint32]*span)
	b.order = b.order[:0]
	if b.gpu != nil {
		b.gpu.markDirty()
	}
}

// Close releases all resources, including GPU buffers and pipelines
// when present.
func (b *Backend) Close() {
	b.Clear()
	if b.gpu != nil {
		b.gpu.destroy()
		b.gpu = nil
	}
	b.initialized = false
}
