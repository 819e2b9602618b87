package render

import "github.com/gogpu/chordflow/geom"

// Sync keeps a transform-consuming backend aligned with the vector
// scene's pan/zoom state.
//
// The two spaces disagree on both origin and Y direction: the vector
// scene is top-left origin with Y growing down, the buffer particle
// system is center origin with Y growing up. Sync owns that axis flip
// and the centering offset, so callers only ever hand it the raw scene
// transform.
type Sync struct {
	width, height float64
	target        TransformBackend

	last geom.Matrix
	set  bool
}

// NewSync creates a synchronizer for a scene of the given pixel size.
func NewSync(width, height float64, target TransformBackend) *Sync {
	return &Sync{width: width, height: height, target: target}
}

// SetViewport updates the scene size (e.g. after a window resize) and
// reapplies the last known transform.
func (s *Sync) SetViewport(width, height float64) {
	s.width = width
	s.height = height
	if s.set {
		s.Apply(s.last)
	}
}

// Apply converts the vector scene transform to buffer space and
// pushes it to the target. Call on every pan/zoom change and once
// right after regeneration.
func (s *Sync) Apply(view geom.Matrix) {
	s.last = view
	s.set = true
	if s.target == nil {
		return
	}
	s.target.SetTransform(s.Convert(view))
}

// Convert maps a top-left-origin, Y-down scene transform to the
// equivalent center-origin, Y-up transform.
//
// A point p in local diagram coordinates appears on screen at
// view*(center + flip(p)); the buffer system draws the same particle
// at convert(view)*p relative to the canvas center.
func (s *Sync) Convert(view geom.Matrix) geom.Matrix {
	cx, cy := s.width/2, s.height/2

	// Screen position of the diagram center under the scene transform.
	origin := view.TransformPoint(geom.Pt(cx, cy))
	scale := view.UniformScale()

	// Buffer space: translate by the center's offset from canvas
	// center, scale uniformly, flip Y.
	return geom.Matrix{
		A: scale, B: 0, C: origin.X - cx,
		D: 0, E: -scale, F: -(origin.Y - cy),
	}
}
