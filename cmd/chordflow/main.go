// Command chordflow generates a particle chord diagram from node and
// edge lists and reports the resulting particle counts.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/gogpu/chordflow"
	"github.com/gogpu/chordflow/graph"
	"github.com/gogpu/chordflow/particle"
	"github.com/gogpu/chordflow/render"
	"github.com/gogpu/chordflow/render/vector"
)

var (
	flagConfig  string
	flagNodes   string
	flagEdges   string
	flagBackend string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "chordflow",
	Short: "chordflow is a particle chord diagram generator",
	Long: "chordflow builds chord diagrams from relationship data and fills\n" +
		"their ribbons with particles, progressively, the way the library\n" +
		"does inside a host application.",
	SilenceUsage: true,
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run a full generation pass and print particle counts",
	RunE:  runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&flagConfig, "config", "c", "", "TOML style config file")
	generateCmd.Flags().StringVar(&flagNodes, "nodes", "", "node list file, one id,category per line")
	generateCmd.Flags().StringVar(&flagEdges, "edges", "", "edge list file, one source,target per line")
	generateCmd.Flags().StringVarP(&flagBackend, "backend", "b", render.BackendVector, "render backend (vector|buffer)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(generateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// styleFile is the TOML shape of a config file. String fields hold the
// enum spellings the library parses.
type styleFile struct {
	Density        float64 `toml:"density"`
	Size           float64 `toml:"size"`
	SizeVariation  float64 `toml:"size_variation"`
	Blur           float64 `toml:"blur"`
	Distribution   string  `toml:"distribution"`
	Color          string  `toml:"color"`
	Opacity        float64 `toml:"opacity"`
	StrokeColor    string  `toml:"stroke_color"`
	StrokeWidth    float64 `toml:"stroke_width"`
	Movement       bool    `toml:"movement"`
	MovementAmount float64 `toml:"movement_amount"`
	Quality        string  `toml:"quality"`
	ViewMode       string  `toml:"view_mode"`
	ShowAll        *bool   `toml:"show_all"`
	OnlyReal       bool    `toml:"only_real"`
	FixedSeeds     bool    `toml:"fixed_seeds"`
	Radius         float64 `toml:"radius"`
	RevealSpeed    float64 `toml:"reveal_speed"`
}

func loadConfig(path string) (chordflow.Config, error) {
	cfg := chordflow.DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	var f styleFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}

	if f.Density > 0 {
		cfg.Density = f.Density
	}
	if f.Size > 0 {
		cfg.Size = f.Size
	}
	if f.SizeVariation > 0 {
		cfg.SizeVariation = f.SizeVariation
	}
	cfg.Blur = f.Blur
	if f.Distribution != "" {
		d, err := particle.ParseDistribution(strings.ToLower(f.Distribution))
		if err != nil {
			return cfg, err
		}
		cfg.Distribution = d
	}
	if f.Color != "" {
		cfg.Color = render.Hex(f.Color)
	}
	if f.Opacity > 0 {
		cfg.Opacity = f.Opacity
	}
	if f.StrokeColor != "" {
		cfg.StrokeColor = render.Hex(f.StrokeColor)
	}
	cfg.StrokeWidth = f.StrokeWidth
	cfg.Movement = f.Movement
	if f.MovementAmount > 0 {
		cfg.MovementAmount = f.MovementAmount
	}
	if f.Quality != "" {
		q, err := particle.ParseQuality(strings.ToLower(f.Quality))
		if err != nil {
			return cfg, err
		}
		cfg.Quality = q
	}
	switch strings.ToLower(f.ViewMode) {
	case "", "category":
		cfg.ViewMode = graph.ViewCategory
	case "detailed":
		cfg.ViewMode = graph.ViewDetailed
	default:
		return cfg, fmt.Errorf("unknown view mode %q", f.ViewMode)
	}
	if f.ShowAll != nil {
		cfg.ShowAll = *f.ShowAll
	}
	cfg.OnlyReal = f.OnlyReal
	cfg.FixedSeeds = f.FixedSeeds
	if f.Radius > 0 {
		cfg.Radius = f.Radius
	}
	if f.RevealSpeed > 0 {
		cfg.RevealSpeed = f.RevealSpeed
	}
	return cfg, nil
}

// loadPairs reads comma-separated pairs, one per line. Blank lines and
// lines starting with # are skipped.
func loadPairs(path string) ([][2]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var pairs [][2]string
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		a, b, ok := strings.Cut(line, ",")
		if !ok {
			return nil, fmt.Errorf("%s:%d: expected two comma-separated fields", path, i+1)
		}
		pairs = append(pairs, [2]string{strings.TrimSpace(a), strings.TrimSpace(b)})
	}
	return pairs, nil
}

func loadData(nodesPath, edgesPath string) ([]graph.Node, []graph.Edge, error) {
	nodePairs, err := loadPairs(nodesPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load nodes: %w", err)
	}
	edgePairs, err := loadPairs(edgesPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load edges: %w", err)
	}

	nodes := make([]graph.Node, 0, len(nodePairs))
	for _, p := range nodePairs {
		nodes = append(nodes, graph.Node{ID: p[0], Category: p[1]})
	}
	edges := make([]graph.Edge, 0, len(edgePairs))
	for _, p := range edgePairs {
		edges = append(edges, graph.Edge{Source: p[0], Target: p[1]})
	}
	return nodes, edges, nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if flagNodes == "" || flagEdges == "" {
		return fmt.Errorf("both --nodes and --edges are required")
	}

	if flagVerbose {
		handler := charmlog.NewWithOptions(os.Stderr, charmlog.Options{
			ReportTimestamp: true,
			Level:           charmlog.DebugLevel,
		})
		chordflow.SetLogger(slog.New(handler))
	}

	cfg, err := loadConfig(flagConfig)
	if err != nil {
		return err
	}
	cfg.Backend = flagBackend

	nodes, edges, err := loadData(flagNodes, flagEdges)
	if err != nil {
		return err
	}

	eng, err := chordflow.New(chordflow.WithConfig(cfg))
	if err != nil {
		return err
	}
	defer eng.Close()

	done := make(chan chordflow.Event, 1)
	eng.Notify(func(ev chordflow.Event) { done <- ev })

	eng.SetData(nodes, edges)
	job, err := eng.Generate(context.Background())
	if err != nil {
		return err
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p := job.Progress()
			fmt.Printf("\r%-12s %d/%d ribbons, %d particles",
				p.Phase, p.Processed, p.Total, p.Particles)
		case ev := <-done:
			fmt.Println()
			return report(eng, ev)
		}
	}
}

func report(eng *chordflow.Engine, ev chordflow.Event) error {
	if ev.Type == chordflow.EventError {
		return ev.Err
	}

	d := eng.Diagram()
	fmt.Printf("%s: %d arcs, %d ribbons, %d particles",
		ev.Type, len(d.Arcs), len(d.Ribbons), ev.Particles)
	if ev.Skipped > 0 {
		fmt.Printf(" (%d ribbons skipped)", ev.Skipped)
	}
	fmt.Println()

	eng.Flush()
	if vb, ok := eng.Backend().(*vector.Backend); ok {
		fmt.Printf("vector backend: %d shapes\n", vb.Count())
	}
	return nil
}
