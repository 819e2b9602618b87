package chordflow

import (
	"log/slog"

	"github.com/gogpu/chordflow/render"
)

// Option configures an Engine during creation.
//
// Example:
//
//	// Default: vector backend, medium quality.
//	eng, err := chordflow.New()
//
//	// Buffer backend sharing the host's GPU device:
//	eng, err := chordflow.New(
//	    chordflow.WithBackendName(render.BackendBuffer),
//	    chordflow.WithDevice(app),
//	)
type Option func(*engineOptions)

// engineOptions holds optional configuration for Engine creation.
type engineOptions struct {
	cfg        Config
	logger     *slog.Logger
	device     render.DeviceHandle
	cacheLimit int
	width      float64
	height     float64
}

func defaultEngineOptions() engineOptions {
	return engineOptions{
		cfg:    DefaultConfig(),
		width:  800,
		height: 800,
	}
}

// WithConfig sets the full initial configuration.
func WithConfig(cfg Config) Option {
	return func(o *engineOptions) {
		o.cfg = cfg
	}
}

// WithBackendName selects the render backend by registry name. An
// unavailable backend falls back through the registry priority order.
func WithBackendName(name string) Option {
	return func(o *engineOptions) {
		o.cfg.Backend = name
	}
}

// WithLogger sets the engine's logger, overriding the package default
// configured via SetLogger.
func WithLogger(l *slog.Logger) Option {
	return func(o *engineOptions) {
		o.logger = l
	}
}

// WithDevice supplies a host GPU device for the buffer backend, so it
// shares the host's device instead of opening its own.
func WithDevice(h render.DeviceHandle) Option {
	return func(o *engineOptions) {
		o.device = h
	}
}

// WithCacheLimit caps the particle position cache at n entries with
// oldest-first eviction. Zero (the default) keeps the cache unbounded.
func WithCacheLimit(n int) Option {
	return func(o *engineOptions) {
		o.cacheLimit = n
	}
}

// WithViewport sets the canvas size used by the transform
// synchronizer. Defaults to 800x800.
func WithViewport(width, height float64) Option {
	return func(o *engineOptions) {
		if width > 0 && height > 0 {
			o.width = width
			o.height = height
		}
	}
}
