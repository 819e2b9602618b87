package layout

import (
	"math"

	"github.com/gogpu/chordflow/geom"
)

// pullFactor controls how far ribbon control points are pulled toward
// the circle center. 0 would cut straight through the center, 1 would
// hug the rim. Matches the visual weight of d3-style chord ribbons.
const pullFactor = 0.3

// kappa is the standard circular-arc cubic approximation constant for
// a quarter circle, scaled per sub-arc angle below.
const kappa = 0.5522847498307936

// RibbonCurve builds the resolved geometry for a ribbon on a circle of
// the given radius: the centerline the particles travel along and the
// closed band outline.
func RibbonCurve(r Ribbon, radius float64) *geom.RibbonPath {
	srcMid := geom.OnCircle(r.SourceSpan.Mid(), radius)
	tgtMid := geom.OnCircle(r.TargetSpan.Mid(), radius)

	center := geom.CubicBez{
		P0: srcMid,
		P1: srcMid.Mul(pullFactor),
		P2: tgtMid.Mul(pullFactor),
		P3: tgtMid,
	}

	// Outline: source rim arc, band edge to target, target rim arc,
	// band edge back.
	var outline []geom.CubicBez
	outline = append(outline, arcSegments(r.SourceSpan, radius)...)
	outline = append(outline, bandEdge(r.SourceSpan.End, r.TargetSpan.Start, radius))
	if r.TargetSpan != r.SourceSpan {
		outline = append(outline, arcSegments(r.TargetSpan, radius)...)
	}
	outline = append(outline, bandEdge(r.TargetSpan.End, r.SourceSpan.Start, radius))

	halfWidth := radius * r.SourceSpan.Width() / 2

	return &geom.RibbonPath{
		Centerline: []geom.CubicBez{center},
		Outline:    outline,
		Width:      halfWidth,
	}
}

// bandEdge is one curved side of the band, pulled toward the center
// like the centerline.
func bandEdge(fromAngle, toAngle, radius float64) geom.CubicBez {
	p0 := geom.OnCircle(fromAngle, radius)
	p3 := geom.OnCircle(toAngle, radius)
	return geom.CubicBez{
		P0: p0,
		P1: p0.Mul(pullFactor),
		P2: p3.Mul(pullFactor),
		P3: p3,
	}
}

// arcSegments approximates the rim arc for a span with cubic Beziers,
// one segment per quarter circle of coverage.
func arcSegments(span AngleSpan, radius float64) []geom.CubicBez {
	width := span.Width()
	if width <= 0 {
		return nil
	}
	n := int(math.Ceil(width / (math.Pi / 2)))
	if n < 1 {
		n = 1
	}
	step := width / float64(n)
	k := kappa * (step / (math.Pi / 2))

	segs := make([]geom.CubicBez, 0, n)
	for i := 0; i < n; i++ {
		a0 := span.Start + float64(i)*step
		a1 := a0 + step
		p0 := geom.OnCircle(a0, radius)
		p3 := geom.OnCircle(a1, radius)
		// Control points along the tangents at the endpoints.
		t0 := geom.Pt(-math.Sin(a0), math.Cos(a0)).Mul(radius * k)
		t1 := geom.Pt(-math.Sin(a1), math.Cos(a1)).Mul(radius * k)
		segs = append(segs, geom.CubicBez{
			P0: p0,
			P1: p0.Add(t0),
			P2: p3.Sub(t1),
			P3: p3,
		})
	}
	return segs
}
