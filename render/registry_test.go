package render

import (
	"errors"
	"testing"

	"github.com/gogpu/chordflow/particle"
)

// fakeBackend is a minimal Backend for registry tests.
type fakeBackend struct {
	name    string
	initErr error
	inited  bool
}

func (f *fakeBackend) Name() string { return f.name }
func (f *fakeBackend) Init() error {
	if f.initErr != nil {
		return f.initErr
	}
	f.inited = true
	return nil
}
func (f *fakeBackend) SetRibbonParticles(uint32, []particle.Point, bool) {}
func (f *fakeBackend) UpdateStyle(StyleUpdate)                          {}
func (f *fakeBackend) SetVisible(uint32, bool)                          {}
func (f *fakeBackend) Clear()                                           {}
func (f *fakeBackend) Close()                                           {}

func TestRegistryRegisterGet(t *testing.T) {
	Register("fake", func() Backend { return &fakeBackend{name: "fake"} })
	defer Unregister("fake")

	b := Get("fake")
	if b == nil {
		t.Fatal("Get returned nil for a registered backend")
	}
	if b.Name() != "fake" {
		t.Errorf("Name = %q, want %q", b.Name(), "fake")
	}

	if Get("missing") != nil {
		t.Error("Get returned a backend for an unregistered name")
	}
}

func TestRegistryAvailable(t *testing.T) {
	Register("fake-a", func() Backend { return &fakeBackend{name: "fake-a"} })
	defer Unregister("fake-a")

	found := false
	for _, name := range Available() {
		if name == "fake-a" {
			found = true
		}
	}
	if !found {
		t.Error("registered backend missing from Available")
	}
}

func TestInitFallback(t *testing.T) {
	// A backend that always fails Init must fall back to a working
	// one from the priority order.
	failErr := errors.New("no device")
	Register(BackendBuffer, func() Backend {
		return &fakeBackend{name: BackendBuffer, initErr: failErr}
	})
	Register(BackendVector, func() Backend {
		return &fakeBackend{name: BackendVector}
	})
	defer Unregister(BackendBuffer)
	defer Unregister(BackendVector)

	b, err := Init(BackendBuffer)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if b.Name() != BackendVector {
		t.Errorf("fell back to %q, want %q", b.Name(), BackendVector)
	}
}

func TestInitUnknownName(t *testing.T) {
	Register(BackendVector, func() Backend {
		return &fakeBackend{name: BackendVector}
	})
	defer Unregister(BackendVector)
	defer Unregister(BackendBuffer)

	b, err := Init("holographic")
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if b.Name() != BackendVector {
		t.Errorf("got %q, want fallback to %q", b.Name(), BackendVector)
	}
}

func TestInitNothingAvailable(t *testing.T) {
	// Temporarily empty the registry of working backends.
	Unregister(BackendBuffer)
	Unregister(BackendVector)

	_, err := Init("anything")
	if !errors.Is(err, ErrBackendNotAvailable) {
		t.Errorf("err = %v, want ErrBackendNotAvailable", err)
	}
}
