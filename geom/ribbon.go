package geom

// RibbonPath is the resolved geometry of one ribbon: the centerline
// curve particles travel along, plus the closed outline of the band
// for renderers that draw the ribbon itself.
//
// The centerline is arc-length parameterized: PointAt(0) is the start
// on the source arc, PointAt(1) the end on the target arc, and equal
// steps in t cover equal distances along the curve. The
// parameterization table is built lazily on first use and reused for
// every sample, so sampling thousands of particles per ribbon costs
// one table build plus a binary search per point.
type RibbonPath struct {
	// Centerline segments in travel order.
	Centerline []CubicBez

	// Outline segments forming the closed band, in draw order.
	Outline []CubicBez

	// Width is the band's nominal half-width at the arcs.
	Width float64

	// cumLen[i] is the arc length of Centerline[0..i] inclusive.
	// Built by buildTable; nil until first PointAt/Length call.
	cumLen []float64
	total  float64

	// Per-segment parameter tables for arc-length inversion.
	segTables [][]float64
}

// arclenAccuracy bounds the arc-length estimation error per segment.
const arclenAccuracy = 1e-3

// tableSteps is the resolution of the per-segment arc-length table.
const tableSteps = 32

// Length returns the total arc length of the centerline.
func (rp *RibbonPath) Length() float64 {
	rp.buildTable()
	return rp.total
}

// PointAt returns the position at normalized arc length t in [0, 1].
// Values outside the range are clamped.
func (rp *RibbonPath) PointAt(t float64) Point {
	rp.buildTable()
	if len(rp.Centerline) == 0 {
		return Point{}
	}
	if t <= 0 {
		return rp.Centerline[0].Eval(0)
	}
	if t >= 1 {
		return rp.Centerline[len(rp.Centerline)-1].Eval(1)
	}

	target := t * rp.total
	seg := 0
	for seg < len(rp.cumLen)-1 && rp.cumLen[seg] < target {
		seg++
	}
	segStart := 0.0
	if seg > 0 {
		segStart = rp.cumLen[seg-1]
	}
	segLen := rp.cumLen[seg] - segStart
	if segLen <= 0 {
		return rp.Centerline[seg].Eval(0)
	}
	frac := (target - segStart) / segLen
	return rp.Centerline[seg].Eval(rp.invertSeg(seg, frac))
}

// Tangent returns the unit tangent direction at normalized arc length t.
func (rp *RibbonPath) Tangent(t float64) Point {
	const h = 1e-3
	t0, t1 := t-h, t+h
	if t0 < 0 {
		t0 = 0
	}
	if t1 > 1 {
		t1 = 1
	}
	return rp.PointAt(t1).Sub(rp.PointAt(t0)).Normalize()
}

// buildTable computes cumulative segment lengths and per-segment
// arc-length inversion tables. Idempotent.
func (rp *RibbonPath) buildTable() {
	if rp.cumLen != nil || len(rp.Centerline) == 0 {
		return
	}
	rp.cumLen = make([]float64, len(rp.Centerline))
	rp.segTables = make([][]float64, len(rp.Centerline))
	sum := 0.0
	for i, seg := range rp.Centerline {
		sum += seg.Arclen(arclenAccuracy)
		rp.cumLen[i] = sum

		// Sample cumulative chord length at uniform parameter steps.
		table := make([]float64, tableSteps+1)
		prev := seg.Eval(0)
		acc := 0.0
		for s := 1; s <= tableSteps; s++ {
			p := seg.Eval(float64(s) / tableSteps)
			acc += prev.Distance(p)
			table[s] = acc
			prev = p
		}
		// Normalize to [0, 1].
		if acc > 0 {
			for s := range table {
				table[s] /= acc
			}
		}
		rp.segTables[i] = table
	}
	rp.total = sum
}

// invertSeg maps a normalized arc-length fraction within segment seg
// to the corresponding curve parameter t via the sampled table.
func (rp *RibbonPath) invertSeg(seg int, frac float64) float64 {
	table := rp.segTables[seg]
	lo, hi := 0, len(table)-1
	for lo < hi {
		mid := (lo + hi) / 2
		if table[mid] < frac {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo == 0 {
		return 0
	}
	// Linear interpolation between table entries.
	t0 := float64(lo-1) / tableSteps
	t1 := float64(lo) / tableSteps
	f0, f1 := table[lo-1], table[lo]
	if f1 == f0 {
		return t0
	}
	return t0 + (t1-t0)*(frac-f0)/(f1-f0)
}
