// Package graph builds the square connectivity matrix that drives the
// chord layout. Nodes carry a category; edges connect node IDs. The
// matrix can be built at category granularity (one index per category)
// or at node granularity (one index per node).
package graph

import (
	"errors"
	"fmt"
)

// ViewMode selects the matrix granularity.
type ViewMode int

const (
	// ViewCategory aggregates connections per category.
	ViewCategory ViewMode = iota
	// ViewDetailed keeps one matrix index per node.
	ViewDetailed
)

// String returns the string representation of the view mode.
func (m ViewMode) String() string {
	switch m {
	case ViewCategory:
		return "category"
	case ViewDetailed:
		return "detailed"
	default:
		return fmt.Sprintf("ViewMode(%d)", int(m))
	}
}

// MinimalWeight is the synthetic weight injected for entities with no
// connections so they remain visible. Cells at or below this value are
// backfill, cells above it are real connections.
const MinimalWeight = 0.2

// ErrNoData is returned when the node or edge list is empty.
// Downstream stages treat it as "nothing to draw", not as a failure.
var ErrNoData = errors.New("graph: no data")

// Node is one entity in the relationship data.
type Node struct {
	ID       string
	Category string
}

// Edge is one directed relationship between two node IDs.
// Unknown endpoints are ignored during the build.
type Edge struct {
	Source string
	Target string
}

// Matrix is a square connectivity matrix plus the index-to-entity
// mapping for the active granularity.
type Matrix struct {
	// Weights is the square weight matrix. Weights[i][j] is the
	// connection weight from index i to index j.
	Weights [][]float64

	// Labels maps matrix index to entity label (category name or
	// node ID depending on the mode).
	Labels []string

	// Mode is the granularity the matrix was built at.
	Mode ViewMode
}

// Dim returns the matrix dimension.
func (m *Matrix) Dim() int {
	return len(m.Weights)
}

// IsReal reports whether the cell holds a real connection rather than
// backfill. Out-of-range indices are not real.
func (m *Matrix) IsReal(i, j int) bool {
	if i < 0 || j < 0 || i >= len(m.Weights) || j >= len(m.Weights) {
		return false
	}
	return m.Weights[i][j] > MinimalWeight
}

// RowWeight returns the total outgoing weight of index i.
func (m *Matrix) RowWeight(i int) float64 {
	sum := 0.0
	for _, w := range m.Weights[i] {
		sum += w
	}
	return sum
}

// ColWeight returns the total incoming weight of index j.
func (m *Matrix) ColWeight(j int) float64 {
	sum := 0.0
	for i := range m.Weights {
		sum += m.Weights[i][j]
	}
	return sum
}

// Build constructs the connectivity matrix from node and edge lists.
//
// In category mode each category becomes one index, in first-seen node
// order; an edge increments both [catA][catB] and [catB][catA]. In
// detailed mode every node becomes an index and edges count per node
// pair the same way.
//
// With showAll, entities with no connections are kept visible through
// backfill: an index whose outgoing row is all zero gets MinimalWeight
// into every other column, and independently an index whose incoming
// column is all zero gets MinimalWeight from every other row. The two
// directions are corrected separately because an entity may be a pure
// source or a pure sink. Without showAll, zero rows are left for the
// layout to omit.
//
// Returns ErrNoData when either list is empty.
func Build(nodes []Node, edges []Edge, mode ViewMode, showAll bool) (*Matrix, error) {
	if len(nodes) == 0 || len(edges) == 0 {
		return nil, ErrNoData
	}

	// Index assignment in first-seen order keeps layout stable across
	// rebuilds with the same input.
	index := make(map[string]int)
	var labels []string
	keyOf := func(n Node) string {
		if mode == ViewCategory {
			return n.Category
		}
		return n.ID
	}
	nodeKey := make(map[string]string, len(nodes))
	for _, n := range nodes {
		k := keyOf(n)
		nodeKey[n.ID] = k
		if _, ok := index[k]; !ok {
			index[k] = len(labels)
			labels = append(labels, k)
		}
	}

	dim := len(labels)
	weights := make([][]float64, dim)
	for i := range weights {
		weights[i] = make([]float64, dim)
	}

	for _, e := range edges {
		sk, okS := nodeKey[e.Source]
		tk, okT := nodeKey[e.Target]
		if !okS || !okT {
			continue
		}
		si, ti := index[sk], index[tk]
		weights[si][ti]++
		if si != ti {
			weights[ti][si]++
		}
	}

	m := &Matrix{Weights: weights, Labels: labels, Mode: mode}
	if showAll {
		backfill(m)
	}
	return m, nil
}

// backfill injects MinimalWeight for all-zero rows and all-zero
// columns so every entity gets an arc. Rows and columns are corrected
// independently.
func backfill(m *Matrix) {
	dim := m.Dim()
	if dim < 2 {
		return
	}
	for i := 0; i < dim; i++ {
		if m.RowWeight(i) == 0 {
			for j := 0; j < dim; j++ {
				if j != i {
					m.Weights[i][j] = MinimalWeight
				}
			}
		}
	}
	for j := 0; j < dim; j++ {
		if m.ColWeight(j) == 0 {
			for i := 0; i < dim; i++ {
				if i != j {
					m.Weights[i][j] = MinimalWeight
				}
			}
		}
	}
}
