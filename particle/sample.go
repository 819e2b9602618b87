// Package particle samples particle positions along ribbon paths and
// caches the results per ribbon and parameter set.
package particle

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/gogpu/chordflow/geom"
)

// Point is one sampled particle in local, untransformed coordinates.
// Size and Opacity are factors relative to the style's base values;
// the backend multiplies them in at hand-off. Keeping samples
// style-free lets cached points survive style changes unchanged.
type Point struct {
	X, Y    float64
	Size    float64
	Opacity float64
}

// Distribution selects how sample positions spread along the path.
type Distribution int

const (
	// Uniform spaces samples evenly across the arc length.
	Uniform Distribution = iota
	// Random draws each sample position uniformly at random.
	Random
	// Gaussian concentrates samples around the path midpoint.
	Gaussian
)

// String returns the string representation of the distribution.
func (d Distribution) String() string {
	switch d {
	case Uniform:
		return "uniform"
	case Random:
		return "random"
	case Gaussian:
		return "gaussian"
	default:
		return fmt.Sprintf("Distribution(%d)", int(d))
	}
}

// ParseDistribution parses the string form used in configuration.
func ParseDistribution(s string) (Distribution, error) {
	switch s {
	case "uniform", "":
		return Uniform, nil
	case "random":
		return Random, nil
	case "gaussian":
		return Gaussian, nil
	default:
		return Uniform, fmt.Errorf("particle: unknown distribution %q", s)
	}
}

// gaussianSigma is the normal spread around the path midpoint, in
// normalized arc-length units.
const gaussianSigma = 0.25

// Options controls one sampling run.
type Options struct {
	Distribution  Distribution
	SizeVariation float64 // per-particle size jitter, 0..1

	// Ribbon seeds the random source together with the sample count
	// when FixedSeeds is set, making output reproducible.
	Ribbon     uint32
	FixedSeeds bool

	// Spread offsets particles sideways off the centerline, as a
	// fraction of the ribbon half-width.
	Spread float64
}

// Sample produces n particle positions along the path according to the
// options. With FixedSeeds, identical (Ribbon, n) inputs and options
// yield identical output.
func Sample(path *geom.RibbonPath, n int, opts Options) []Point {
	if n <= 0 || path == nil {
		return nil
	}

	src := rand.NewSource(seedFor(opts.Ribbon, n, opts.FixedSeeds))
	rng := rand.New(src)
	uniform := distuv.Uniform{Min: 0, Max: 1, Src: src}
	normal := distuv.Normal{Mu: 0.5, Sigma: gaussianSigma, Src: src}

	halfWidth := path.Width * opts.Spread

	pts := make([]Point, 0, n)
	for i := 0; i < n; i++ {
		var t float64
		switch opts.Distribution {
		case Random:
			t = uniform.Rand()
		case Gaussian:
			t = normal.Rand()
			if t < 0 {
				t = 0
			} else if t > 1 {
				t = 1
			}
		default:
			t = (float64(i) + 0.5) / float64(n)
		}

		p := path.PointAt(t)
		if halfWidth > 0 {
			// Sideways offset perpendicular to travel direction.
			tan := path.Tangent(t)
			off := (rng.Float64()*2 - 1) * halfWidth
			p.X += -tan.Y * off
			p.Y += tan.X * off
		}

		size := 1.0
		if opts.SizeVariation > 0 {
			size += (rng.Float64()*2 - 1) * opts.SizeVariation
		}

		pts = append(pts, Point{X: p.X, Y: p.Y, Size: size, Opacity: 1})
	}
	return pts
}

// seedFor derives the random seed. Fixed mode mixes ribbon index and
// sample count so the same key always replays the same stream; free
// mode perturbs with a process-wide counter.
func seedFor(ribbon uint32, n int, fixed bool) uint64 {
	seed := uint64(ribbon)*0x9E3779B97F4A7C15 ^ uint64(n)*0xBF58476D1CE4E5B9
	if !fixed {
		seed ^= nextFreeSeed()
	}
	// splitmix64 finalizer spreads low-entropy inputs.
	seed ^= seed >> 30
	seed *= 0xBF58476D1CE4E5B9
	seed ^= seed >> 27
	seed *= 0x94D049BB133111EB
	seed ^= seed >> 31
	return seed
}

// sampleDensityUnit is the path length that yields baseDensity samples.
const sampleDensityUnit = 300.0

// minSamples is the floor so even tiny ribbons stay visible.
const minSamples = 5

// nonRealDensityFactor reduces density on backfill-only ribbons.
const nonRealDensityFactor = 0.6

// Count derives the sample count for one ribbon:
// clamp(round(density * pathLen/300), 5, cap). Non-real ribbons get
// reduced density; the cap comes from the quality tier and view mode.
func Count(density, pathLen float64, real bool, maxCap int) int {
	if !real {
		density *= nonRealDensityFactor
	}
	n := int(math.Round(density * pathLen / sampleDensityUnit))
	if n < minSamples {
		n = minSamples
	}
	if maxCap > 0 && n > maxCap {
		n = maxCap
	}
	return n
}
