// Package vector implements the discrete-shape particle backend: one
// drawable descriptor per particle, grouped per ribbon, with
// visibility toggled per group instead of rebuilding shapes.
package vector

import (
	"log/slog"

	"github.com/gogpu/chordflow/particle"
	"github.com/gogpu/chordflow/render"
)

func init() {
	render.Register(render.BackendVector, func() render.Backend {
		return New()
	})
}

// Shape is one particle as a renderer-agnostic drawable descriptor.
// Any 2-D renderer (software rasterizer, SVG writer, canvas) can
// consume the list as circles of the given size.
type Shape struct {
	Ribbon  uint32
	Real    bool
	X, Y    float64
	Size    float64
	Color   render.RGBA
	Opacity float64
}

// group holds one ribbon's shapes and its visibility flag.
type group struct {
	shapes  []Shape
	visible bool
	real    bool
}

// Backend is the vector particle backend.
//
// Shapes accumulate per ribbon as generation batches complete. Reveal
// ticks flip the per-ribbon visibility flag; the shapes themselves are
// kept so revealing never recomputes or reallocates particles.
type Backend struct {
	groups map[uint32]*group
	order  []uint32 // ribbon insertion order, for stable iteration

	color   render.RGBA
	opacity float64
	size    float64

	// version increments on every content change so downstream
	// renderers can cheaply detect staleness.
	version uint64

	initialized bool
	log         *slog.Logger
}

var _ render.Backend = (*Backend)(nil)

// New creates an uninitialized vector backend.
func New() *Backend {
	return &Backend{
		groups:  make(map[uint32]*group),
		color:   render.RGB(1, 1, 1),
		opacity: 1,
		size:    1,
	}
}

// Name returns "vector".
func (b *Backend) Name() string { return render.BackendVector }

// Init prepares the backend. The vector backend has no native
// resources and never fails.
func (b *Backend) Init() error {
	b.initialized = true
	return nil
}

// SetLogger sets the backend's logger.
func (b *Backend) SetLogger(l *slog.Logger) { b.log = l }

// SetRibbonParticles replaces the particles of one ribbon. New ribbons
// start visible; an existing ribbon keeps its visibility flag so a
// style-driven regeneration does not undo a reveal state.
func (b *Backend) SetRibbonParticles(ribbon uint32, pts []particle.Point, real bool) {
	g, ok := b.groups[ribbon]
	if !ok {
		g = &group{visible: true}
		b.groups[ribbon] = g
		b.order = append(b.order, ribbon)
	}
	g.real = real
	g.shapes = g.shapes[:0]
	for _, p := range pts {
		// Sampled size and opacity are factors on the style base.
		g.shapes = append(g.shapes, Shape{
			Ribbon:  ribbon,
			Real:    real,
			X:       p.X,
			Y:       p.Y,
			Size:    p.Size * b.size,
			Color:   b.color,
			Opacity: p.Opacity * b.opacity,
		})
	}
	b.version++
}

// UpdateStyle restyles existing shapes in place. A size change scales
// each shape by the ratio of new to old base, so per-particle jitter
// survives any number of style updates.
func (b *Backend) UpdateStyle(s render.StyleUpdate) {
	if s.Color != nil {
		b.color = *s.Color
	}
	if s.Opacity != nil {
		b.opacity = *s.Opacity
	}
	sizeScale := 1.0
	if s.Size != nil {
		if b.size > 0 {
			sizeScale = *s.Size / b.size
		}
		b.size = *s.Size
	}
	for _, r := range b.order {
		g := b.groups[r]
		for i := range g.shapes {
			if s.Color != nil {
				g.shapes[i].Color = b.color
			}
			if s.Opacity != nil {
				g.shapes[i].Opacity = b.opacity
			}
			if s.Size != nil {
				g.shapes[i].Size *= sizeScale
			}
		}
	}
	b.version++
}

// SetVisible toggles one ribbon's group. Shapes are retained either
// way; hidden groups are simply skipped by Shapes().
func (b *Backend) SetVisible(ribbon uint32, visible bool) {
	if g, ok := b.groups[ribbon]; ok && g.visible != visible {
		g.visible = visible
		b.version++
	}
}

// Visible reports a ribbon's current visibility. Unknown ribbons are
// not visible.
func (b *Backend) Visible(ribbon uint32) bool {
	g, ok := b.groups[ribbon]
	return ok && g.visible
}

// Shapes returns the drawable descriptors of all visible ribbons in
// ribbon insertion order.
func (b *Backend) Shapes() []Shape {
	var out []Shape
	for _, r := range b.order {
		g := b.groups[r]
		if g.visible {
			out = append(out, g.shapes...)
		}
	}
	return out
}

// Count returns the total particle count, hidden ribbons included.
func (b *Backend) Count() int {
	n := 0
	for _, g := range b.groups {
		n += len(g.shapes)
	}
	return n
}

// Version returns the content version counter.
func (b *Backend) Version() uint64 { return b.version }

// Clear removes all particles and groups.
func (b *Backend) Clear() {
	b.groups = make(map[uint32]*group)
	b.order = b.order[:0]
	b.version++
}

// Close releases the backend. Vector shapes are plain memory, so this
// only drops them.
func (b *Backend) Close() {
	b.Clear()
	b.initialized = false
}
