// Package layout converts a connectivity matrix into chord-diagram
// geometry: one arc per matrix row and one ribbon per connected cell
// pair, with angles distributed proportionally around a full circle.
package layout

import (
	"math"

	"github.com/gogpu/chordflow/graph"
)

const (
	// PadAngle is the fixed gap between adjacent arcs, in radians.
	PadAngle = 0.05

	// MinArcWidth is the angular width synthesized for entities whose
	// total weight is zero but that must stay addressable by index.
	MinArcWidth = 0.02
)

// AngleSpan is a contiguous angular range on the circle.
type AngleSpan struct {
	Start, End float64
}

// Mid returns the middle angle of the span.
func (s AngleSpan) Mid() float64 {
	return (s.Start + s.End) / 2
}

// Width returns the angular width of the span.
func (s AngleSpan) Width() float64 {
	return s.End - s.Start
}

// Arc is one circular segment, sized proportionally to the total
// connection weight of its matrix row.
type Arc struct {
	// Index is the matrix index this arc represents.
	Index int

	Span  AngleSpan
	Value float64

	// Synthetic marks arcs injected for zero-weight entities.
	Synthetic bool
}

// Ribbon is one curved band between two arcs, produced for each
// connected matrix cell pair. Ribbons are immutable once laid out;
// Index is stable for the render pass and keys particle caches and
// visibility state.
type Ribbon struct {
	Index  uint32
	Source int
	Target int

	SourceSpan AngleSpan
	TargetSpan AngleSpan

	Value float64

	// Real is false for ribbons whose weight is backfill only.
	Real bool
}

// Diagram is the layout result: arcs and ribbons in stable order.
type Diagram struct {
	Arcs    []Arc
	Ribbons []Ribbon
}

// Compute lays out arcs and ribbons for the matrix.
//
// Rows keep their original index order; they are never reordered by
// weight, so identical matrices always produce identical layouts.
// Rows with zero total weight receive a synthetic minimal-width arc so
// downstream code can index arcs by matrix index unconditionally.
func Compute(m *graph.Matrix) *Diagram {
	dim := m.Dim()
	if dim == 0 {
		return &Diagram{}
	}

	rowTotals := make([]float64, dim)
	grand := 0.0
	zeroRows := 0
	for i := 0; i < dim; i++ {
		rowTotals[i] = m.RowWeight(i)
		grand += rowTotals[i]
		if rowTotals[i] == 0 {
			zeroRows++
		}
	}

	// Angular budget after pads and synthetic arcs.
	usable := 2*math.Pi - float64(dim)*PadAngle - float64(zeroRows)*MinArcWidth
	if usable < 0 {
		usable = 0
	}

	d := &Diagram{Arcs: make([]Arc, 0, dim)}
	angle := 0.0
	for i := 0; i < dim; i++ {
		var width float64
		synthetic := false
		if rowTotals[i] == 0 {
			width = MinArcWidth
			synthetic = true
		} else if grand > 0 {
			width = usable * rowTotals[i] / grand
		}
		d.Arcs = append(d.Arcs, Arc{
			Index:     i,
			Span:      AngleSpan{Start: angle, End: angle + width},
			Value:     rowTotals[i],
			Synthetic: synthetic,
		})
		angle += width + PadAngle
	}

	d.Ribbons = buildRibbons(m, d.Arcs, rowTotals)
	return d
}

// buildRibbons walks cells in row-major order, carving each arc into
// sub-spans proportional to its cell weights and pairing sub-spans
// into ribbons. Cell pairs are visited once (i <= j).
func buildRibbons(m *graph.Matrix, arcs []Arc, rowTotals []float64) []Ribbon {
	dim := m.Dim()

	// Running sub-span cursor per arc, advanced as cells consume width.
	cursor := make([]float64, dim)
	for i := range cursor {
		cursor[i] = arcs[i].Span.Start
	}

	// subSpan carves the next span of the arc proportional to weight.
	subSpan := func(arc int, weight float64) AngleSpan {
		width := 0.0
		if rowTotals[arc] > 0 {
			width = arcs[arc].Span.Width() * weight / rowTotals[arc]
		}
		s := AngleSpan{Start: cursor[arc], End: cursor[arc] + width}
		cursor[arc] += width
		return s
	}

	var ribbons []Ribbon
	for i := 0; i < dim; i++ {
		for j := i; j < dim; j++ {
			wij := m.Weights[i][j]
			wji := m.Weights[j][i]
			if wij <= 0 && wji <= 0 {
				continue
			}
			src := subSpan(i, wij)
			var tgt AngleSpan
			if j == i {
				tgt = src
			} else {
				tgt = subSpan(j, wji)
			}
			ribbons = append(ribbons, Ribbon{
				Index:      uint32(len(ribbons)),
				Source:     i,
				Target:     j,
				SourceSpan: src,
				TargetSpan: tgt,
				Value:      wij + wji,
				Real:       m.IsReal(i, j) || m.IsReal(j, i),
			})
		}
	}
	return ribbons
}
