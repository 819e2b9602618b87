package render

import "sync"

// Backend names used by the built-in implementations.
const (
	// BackendVector is the discrete-shape backend name.
	BackendVector = "vector"
	// BackendBuffer is the flat-array/GPU backend name.
	BackendBuffer = "buffer"
)

// Factory creates a new backend instance.
type Factory func() Backend

var (
	registryMu sync.RWMutex
	backends   = make(map[string]Factory)
	// Priority order for default selection (first to initialize wins).
	// Buffer carries far more particles per frame; vector is the
	// always-available fallback.
	backendPriority = []string{BackendBuffer, BackendVector}
)

// Register registers a backend factory with the given name.
// Typically called from init() functions in backend packages.
// Registering an existing name replaces it.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	backends[name] = factory
}

// Unregister removes a backend from the registry. Useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(backends, name)
}

// Available returns the registered backend names.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	return names
}

// Get returns a new, uninitialized backend instance by name.
// Returns nil if the backend is not registered.
func Get(name string) Backend {
	registryMu.RLock()
	defer registryMu.RUnlock()

	factory, ok := backends[name]
	if !ok {
		return nil
	}
	return factory()
}

// Init returns an initialized backend by name, falling back through
// the priority order when initialization fails. A buffer backend
// without a usable GPU device therefore degrades to vector instead of
// surfacing an error to the caller.
func Init(name string) (Backend, error) {
	tried := map[string]bool{}

	if b := Get(name); b != nil {
		tried[name] = true
		if err := b.Init(); err == nil {
			return b, nil
		}
	}

	registryMu.RLock()
	order := make([]string, len(backendPriority))
	copy(order, backendPriority)
	registryMu.RUnlock()

	for _, n := range order {
		if tried[n] {
			continue
		}
		b := Get(n)
		if b == nil {
			continue
		}
		if err := b.Init(); err == nil {
			return b, nil
		}
	}
	return nil, ErrBackendNotAvailable
}
