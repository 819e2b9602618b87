package particle

import (
	"fmt"

	"github.com/gogpu/chordflow/graph"
)

// Quality is the rendering quality tier. It bounds both the total
// particle count of a generation run and the per-ribbon sample count.
type Quality int

const (
	// QualityLow caps output for weak hardware.
	QualityLow Quality = iota
	// QualityMedium is the default tier.
	QualityMedium
	// QualityHigh allows the densest output.
	QualityHigh
)

// String returns the string representation of the quality tier.
func (q Quality) String() string {
	switch q {
	case QualityLow:
		return "low"
	case QualityMedium:
		return "medium"
	case QualityHigh:
		return "high"
	default:
		return fmt.Sprintf("Quality(%d)", int(q))
	}
}

// ParseQuality parses the string form used in configuration.
func ParseQuality(s string) (Quality, error) {
	switch s {
	case "low":
		return QualityLow, nil
	case "medium", "":
		return QualityMedium, nil
	case "high":
		return QualityHigh, nil
	default:
		return QualityMedium, fmt.Errorf("particle: unknown quality %q", s)
	}
}

// TotalCap returns the maximum particle count for a whole generation
// run at this tier.
func (q Quality) TotalCap() int {
	switch q {
	case QualityLow:
		return 5000
	case QualityHigh:
		return 50000
	default:
		return 20000
	}
}

// RibbonCap returns the per-ribbon sample cap for this tier and view
// mode. Detailed views carry far more ribbons, so their per-ribbon cap
// is stricter.
func (q Quality) RibbonCap(mode graph.ViewMode) int {
	if mode == graph.ViewDetailed {
		switch q {
		case QualityLow:
			return 25
		case QualityHigh:
			return 150
		default:
			return 80
		}
	}
	switch q {
	case QualityLow:
		return 60
	case QualityHigh:
		return 400
	default:
		return 200
	}
}
