package graph

import (
	"errors"
	"testing"
)

func testNodes() []Node {
	return []Node{
		{ID: "a1", Category: "alpha"},
		{ID: "a2", Category: "alpha"},
		{ID: "b1", Category: "beta"},
		{ID: "c1", Category: "gamma"},
	}
}

func TestBuildCategoryMode(t *testing.T) {
	edges := []Edge{
		{Source: "a1", Target: "b1"},
		{Source: "a2", Target: "b1"},
		{Source: "b1", Target: "c1"},
	}
	m, err := Build(testNodes(), edges, ViewCategory, false)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if got, want := m.Dim(), 3; got != want {
		t.Fatalf("Dim = %d, want %d", got, want)
	}
	// First-seen order: alpha, beta, gamma.
	wantLabels := []string{"alpha", "beta", "gamma"}
	for i, l := range wantLabels {
		if m.Labels[i] != l {
			t.Errorf("Labels[%d] = %q, want %q", i, m.Labels[i], l)
		}
	}

	// Both directions incremented per edge.
	if got := m.Weights[0][1]; got != 2 {
		t.Errorf("alpha-beta = %v, want 2", got)
	}
	if got := m.Weights[1][0]; got != 2 {
		t.Errorf("beta-alpha = %v, want 2", got)
	}
	if got := m.Weights[1][2]; got != 1 {
		t.Errorf("beta-gamma = %v, want 1", got)
	}
}

func TestBuildDetailedMode(t *testing.T) {
	edges := []Edge{
		{Source: "a1", Target: "a2"},
		{Source: "a1", Target: "b1"},
	}
	m, err := Build(testNodes(), edges, ViewDetailed, false)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got, want := m.Dim(), 4; got != want {
		t.Fatalf("Dim = %d, want %d", got, want)
	}
	if got := m.Weights[0][1]; got != 1 {
		t.Errorf("a1-a2 = %v, want 1", got)
	}
	if got := m.Weights[1][0]; got != 1 {
		t.Errorf("a2-a1 = %v, want 1", got)
	}
}

func TestBuildSquare(t *testing.T) {
	m, err := Build(testNodes(), []Edge{{Source: "a1", Target: "b1"}}, ViewDetailed, true)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(m.Weights) != m.Dim() {
		t.Fatalf("rows = %d, want %d", len(m.Weights), m.Dim())
	}
	for i, row := range m.Weights {
		if len(row) != m.Dim() {
			t.Errorf("row %d has %d columns, want %d", i, len(row), m.Dim())
		}
	}
}

func TestBuildSelfEdge(t *testing.T) {
	// An edge within one category lands on the diagonal exactly once.
	edges := []Edge{{Source: "a1", Target: "a2"}}
	m, err := Build(testNodes(), edges, ViewCategory, false)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := m.Weights[0][0]; got != 1 {
		t.Errorf("alpha-alpha = %v, want 1", got)
	}
}

func TestBuildUnknownEndpoints(t *testing.T) {
	edges := []Edge{
		{Source: "a1", Target: "nope"},
		{Source: "ghost", Target: "b1"},
		{Source: "a1", Target: "b1"},
	}
	m, err := Build(testNodes(), edges, ViewCategory, false)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	// Only the well-formed edge counts.
	total := 0.0
	for i := range m.Weights {
		total += m.RowWeight(i)
	}
	if total != 2 {
		t.Errorf("total weight = %v, want 2 (one edge, both directions)", total)
	}
}

func TestBuildNoData(t *testing.T) {
	tests := []struct {
		name  string
		nodes []Node
		edges []Edge
	}{
		{"no nodes", nil, []Edge{{Source: "a", Target: "b"}}},
		{"no edges", testNodes(), nil},
		{"neither", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.nodes, tt.edges, ViewCategory, true)
			if !errors.Is(err, ErrNoData) {
				t.Errorf("err = %v, want ErrNoData", err)
			}
		})
	}
}

// Five categories with edges between two pairs only: with showAll,
// backfill must leave no all-zero row or column.
func TestBackfillShowAll(t *testing.T) {
	nodes := []Node{
		{ID: "n1", Category: "c1"},
		{ID: "n2", Category: "c2"},
		{ID: "n3", Category: "c3"},
		{ID: "n4", Category: "c4"},
		{ID: "n5", Category: "c5"},
	}
	edges := []Edge{
		{Source: "n1", Target: "n2"},
		{Source: "n3", Target: "n4"},
	}
	m, err := Build(nodes, edges, ViewCategory, true)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got, want := m.Dim(), 5; got != want {
		t.Fatalf("Dim = %d, want %d", got, want)
	}

	for i := 0; i < m.Dim(); i++ {
		if m.RowWeight(i) == 0 {
			t.Errorf("row %d is all zero after backfill", i)
		}
		if m.ColWeight(i) == 0 {
			t.Errorf("column %d is all zero after backfill", i)
		}
	}

	// Backfill weight is exactly MinimalWeight and does not count as
	// a real connection.
	if got := m.Weights[4][0]; got != MinimalWeight {
		t.Errorf("backfilled cell = %v, want %v", got, MinimalWeight)
	}
	if m.IsReal(4, 0) {
		t.Error("backfilled cell reported as real connection")
	}
	if !m.IsReal(0, 1) {
		t.Error("counted edge not reported as real connection")
	}
}

func TestBackfillWithoutShowAll(t *testing.T) {
	nodes := []Node{
		{ID: "n1", Category: "c1"},
		{ID: "n2", Category: "c2"},
		{ID: "n3", Category: "c3"},
	}
	edges := []Edge{{Source: "n1", Target: "n2"}}
	m, err := Build(nodes, edges, ViewCategory, false)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := m.RowWeight(2); got != 0 {
		t.Errorf("disconnected row weight = %v, want 0 without showAll", got)
	}
}

func TestIsRealThreshold(t *testing.T) {
	m := &Matrix{
		Weights: [][]float64{
			{0, MinimalWeight},
			{0.21, 0},
		},
		Labels: []string{"a", "b"},
	}
	if m.IsReal(0, 1) {
		t.Error("weight at threshold must not be real")
	}
	if !m.IsReal(1, 0) {
		t.Error("weight above threshold must be real")
	}
}
