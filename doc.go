// Package chordflow turns node/edge relationship data into animated
// particle chord diagrams.
//
// The pipeline runs in stages: a matrix builder aggregates edges into
// a square weight matrix, the chord layout engine lays out arcs and
// ribbons on a circle, the path sampler scatters particles along each
// ribbon (with per-ribbon position caching), and a progressive
// scheduler feeds the particles to a render backend in cooperative
// batches so the host stays responsive during generation.
//
// Two backends are built in: a vector backend that emits one discrete
// shape per particle for any 2-D renderer, and a buffer backend that
// maintains flat float32 arrays (optionally animated on the GPU) for a
// single draw call. A reveal state machine animates the build-up by
// toggling per-ribbon visibility without regenerating particles.
//
// Basic usage:
//
//	eng, err := chordflow.New(chordflow.WithBackendName(render.BackendVector))
//	if err != nil { ... }
//	defer eng.Close()
//
//	eng.SetData(nodes, edges)
//	eng.Generate(ctx)
package chordflow
