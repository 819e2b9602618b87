package chordflow

import (
	"time"

	"github.com/gogpu/chordflow/graph"
	"github.com/gogpu/chordflow/particle"
	"github.com/gogpu/chordflow/render"
)

// Config is the full style and behavior configuration of an engine.
// The zero value is not usable; start from DefaultConfig.
type Config struct {
	// Density scales the particle count per unit of ribbon length.
	Density float64

	// Size is the base particle size; SizeVariation adds per-particle
	// jitter as a fraction of Size.
	Size          float64
	SizeVariation float64

	// Blur is a render hint in particle-size units. Zero disables it.
	Blur float64

	// Distribution places particles along the ribbon arc length.
	Distribution particle.Distribution

	// Spread offsets particles sideways off the centerline, as a
	// fraction of the ribbon half-width. Zero keeps them on the line.
	Spread float64

	Color       render.RGBA
	Opacity     float64
	StrokeColor render.RGBA
	StrokeWidth float64

	// Movement enables the per-frame oscillation in the buffer
	// backend; MovementAmount scales its amplitude.
	Movement       bool
	MovementAmount float64

	// Backend selects the render backend by registry name. An
	// unavailable backend falls back through the registry priority.
	Backend string

	// Quality caps the total particle count and the per-ribbon sample
	// count.
	Quality particle.Quality

	// ViewMode aggregates by category or keeps individual nodes.
	ViewMode graph.ViewMode

	// ShowAll backfills minimal weights so isolated entries still get
	// an arc. OnlyReal drops ribbons whose weight never exceeded the
	// real-connection threshold.
	ShowAll  bool
	OnlyReal bool

	// FixedSeeds makes sampling reproducible per (ribbon, count) key.
	FixedSeeds bool

	// Radius is the layout circle radius in scene units.
	Radius float64

	// RevealSpeed is the reveal playback speed in ribbons per second.
	RevealSpeed float64

	// FadeEnabled floors the reveal tick delay by a fraction of
	// FadeDuration so fades are never starved.
	FadeEnabled  bool
	FadeDuration time.Duration
}

// DefaultConfig returns the baseline configuration: medium quality,
// category view, uniform distribution, vector backend.
func DefaultConfig() Config {
	return Config{
		Density:        1,
		Size:           3,
		SizeVariation:  0.3,
		Distribution:   particle.Uniform,
		Spread:         0.8,
		Color:          render.RGB(1, 1, 1),
		Opacity:        0.8,
		StrokeColor:    render.RGB(0, 0, 0),
		StrokeWidth:    0,
		MovementAmount: 1,
		Backend:        render.BackendVector,
		Quality:        particle.QualityMedium,
		ViewMode:       graph.ViewCategory,
		ShowAll:        true,
		Radius:         300,
		RevealSpeed:    4,
		FadeDuration:   400 * time.Millisecond,
	}
}

// normalize clamps nonsensical values back into range.
func (c *Config) normalize() {
	if c.Density <= 0 {
		c.Density = 1
	}
	if c.Size <= 0 {
		c.Size = 3
	}
	if c.SizeVariation < 0 {
		c.SizeVariation = 0
	}
	if c.Opacity < 0 {
		c.Opacity = 0
	} else if c.Opacity > 1 {
		c.Opacity = 1
	}
	if c.Radius <= 0 {
		c.Radius = 300
	}
	if c.RevealSpeed <= 0 {
		c.RevealSpeed = 4
	}
	if c.MovementAmount <= 0 {
		c.MovementAmount = 1
	}
	if c.Backend == "" {
		c.Backend = render.BackendVector
	}
}

// invalidatesPositions reports whether switching from c to next
// changes sampled particle positions, which requires dropping the
// position cache and regenerating. Pure style fields (color, opacity,
// size scale applied in the backend) do not.
func (c Config) invalidatesPositions(next Config) bool {
	return c.Density != next.Density ||
		c.Distribution != next.Distribution ||
		c.SizeVariation != next.SizeVariation ||
		c.Spread != next.Spread ||
		c.ViewMode != next.ViewMode ||
		c.ShowAll != next.ShowAll ||
		c.Quality != next.Quality ||
		c.Radius != next.Radius ||
		c.FixedSeeds != next.FixedSeeds
}

// needsRegeneration reports whether the config change requires a new
// generation pass even when positions survive (e.g. the real-connection
// filter changes which ribbons are populated).
func (c Config) needsRegeneration(next Config) bool {
	return c.invalidatesPositions(next) || c.OnlyReal != next.OnlyReal
}

// styleDelta compares two configs and returns an update holding only
// the style fields that changed. Sending untouched fields would make
// backends restyle particles needlessly on every config change.
func (c Config) styleDelta(next Config) render.StyleUpdate {
	var s render.StyleUpdate
	if c.Color != next.Color {
		color := next.Color
		s.Color = &color
	}
	if c.Opacity != next.Opacity {
		opacity := next.Opacity
		s.Opacity = &opacity
	}
	if c.Size != next.Size {
		size := next.Size
		s.Size = &size
	}
	if c.StrokeColor != next.StrokeColor {
		strokeColor := next.StrokeColor
		s.StrokeColor = &strokeColor
	}
	if c.StrokeWidth != next.StrokeWidth {
		strokeWidth := next.StrokeWidth
		s.StrokeWidth = &strokeWidth
	}
	if c.Blur != next.Blur {
		blur := next.Blur
		s.Blur = &blur
	}
	return s
}

// styleUpdate extracts all backend-applied style fields, for priming a
// freshly attached backend.
func (c Config) styleUpdate() render.StyleUpdate {
	color := c.Color
	opacity := c.Opacity
	size := c.Size
	strokeColor := c.StrokeColor
	strokeWidth := c.StrokeWidth
	blur := c.Blur
	return render.StyleUpdate{
		Color:       &color,
		Opacity:     &opacity,
		Size:        &size,
		StrokeColor: &strokeColor,
		StrokeWidth: &strokeWidth,
		Blur:        &blur,
	}
}
