package buffer

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// sharedProvider holds an optional host-supplied GPU device. When the
// host application already owns a device (e.g. a gogpu app), sharing
// it avoids a second instance and keeps resource management in one
// place.
var (
	providerMu     sync.Mutex
	sharedDevice   hal.Device
	sharedQueue    hal.Queue
	providerIsHost bool
)

// SetDeviceProvider configures the buffer backend to use a shared GPU
// device from an external provider. The provider must implement
// gpucontext's HAL access pattern: HalDevice() any and HalQueue() any
// returning hal.Device and hal.Queue.
//
// Call before the backend is initialized.
func SetDeviceProvider(provider any) error {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return fmt.Errorf("buffer: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return fmt.Errorf("buffer: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return fmt.Errorf("buffer: provider HalQueue is not hal.Queue")
	}

	providerMu.Lock()
	defer providerMu.Unlock()
	sharedDevice = device
	sharedQueue = queue
	providerIsHost = true
	return nil
}

// gpuState owns the compute pipeline and storage buffers mirroring the
// backend's particle arrays on the GPU.
type gpuState struct {
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue

	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.ComputePipeline

	originalsBuf hal.Buffer
	positionsBuf hal.Buffer
	stagingBuf   hal.Buffer
	paramsBuf    hal.Buffer
	bufCapacity  int // particle capacity of the allocated buffers

	dirty          bool
	transformDirty bool
	externalDevice bool // shared device: never destroy it

	log *slog.Logger
}

// initGPU acquires a device (shared from the host when available,
// otherwise its own Vulkan device) and builds the motion pipeline.
func initGPU(log *slog.Logger) (*gpuState, error) {
	g := &gpuState{log: log, dirty: true}

	providerMu.Lock()
	device, queue, external := sharedDevice, sharedQueue, providerIsHost
	providerMu.Unlock()

	if external {
		g.device = device
		g.queue = queue
		g.externalDevice = true
	} else {
		backend, ok := hal.GetBackend(gputypes.BackendVulkan)
		if !ok {
			return nil, fmt.Errorf("buffer: vulkan backend not available")
		}
		instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
		if err != nil {
			return nil, fmt.Errorf("buffer: create instance: %w", err)
		}
		g.instance = instance
		adapters := instance.EnumerateAdapters(nil)
		if len(adapters) == 0 {
			instance.Destroy()
			return nil, fmt.Errorf("buffer: no GPU adapters found")
		}
		var selected *hal.ExposedAdapter
		for i := range adapters {
			if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
				adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
				selected = &adapters[i]
				break
			}
		}
		if selected == nil {
			selected = &adapters[0]
		}
		openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
		if err != nil {
			instance.Destroy()
			return nil, fmt.Errorf("buffer: open device: %w", err)
		}
		g.device = openDev.Device
		g.queue = openDev.Queue
		if log != nil {
			log.Info("buffer backend GPU initialized", "adapter", selected.Info.Name)
		}
	}

	if err := g.createPipeline(); err != nil {
		g.destroy()
		return nil, err
	}
	return g, nil
}

func (g *gpuState) createPipeline() error {
	spirv, err := compileShaderToSPIRV(motionShaderSource)
	if err != nil {
		return err
	}
	shader, err := createShaderModule(g.device, "particle_motion", spirv)
	if err != nil {
		return fmt.Errorf("buffer: create shader module: %w", err)
	}
	g.shader = shader

	bindLayout, err := g.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "particle_motion_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 2, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
		},
	})
	if err != nil {
		return fmt.Errorf("buffer: create bind group layout: %w", err)
	}
	g.bindLayout = bindLayout

	pipeLayout, err := g.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: "particle_motion_pipe_layout", BindGroupLayouts: []hal.BindGroupLayout{g.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("buffer: create pipeline layout: %w", err)
	}
	g.pipeLayout = pipeLayout

	pipeline, err := g.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label: "particle_motion_pipeline", Layout: g.pipeLayout,
		Compute: hal.ComputeState{Module: g.shader, EntryPoint: "main"},
	})
	if err != nil {
		return fmt.Errorf("buffer: create compute pipeline: %w", err)
	}
	g.pipeline = pipeline
	return nil
}

func (g *gpuState) markDirty()          { g.dirty = true }
func (g *gpuState) markTransformDirty() { g.transformDirty = true }

// ensureBuffers (re)allocates the storage buffers for at least n
// particles. Existing buffers are reused while capacity suffices.
func (g *gpuState) ensureBuffers(n int) error {
	if n <= g.bufCapacity && g.originalsBuf != nil {
		return nil
	}
	g.destroyBuffers()

	posBytes := uint64(n * floatsPerPosition * 4)
	mk := func(label string, size uint64, usage gputypes.BufferUsage) (hal.Buffer, error) {
		return g.device.CreateBuffer(&hal.BufferDescriptor{
			Label: label, Size: size, Usage: usage,
		})
	}

	var err error
	if g.originalsBuf, err = mk("particle_originals", posBytes,
		gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst); err != nil {
		return fmt.Errorf("buffer: create originals buffer: %w", err)
	}
	if g.positionsBuf, err = mk("particle_positions", posBytes,
		gputypes.BufferUsageStorage|gputypes.BufferUsageCopySrc|gputypes.BufferUsageCopyDst); err != nil {
		return fmt.Errorf("buffer: create positions buffer: %w", err)
	}
	if g.stagingBuf, err = mk("particle_staging", posBytes,
		gputypes.BufferUsageMapRead|gputypes.BufferUsageCopyDst); err != nil {
		return fmt.Errorf("buffer: create staging buffer: %w", err)
	}
	if g.paramsBuf, err = mk("particle_params", 16,
		gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst); err != nil {
		return fmt.Errorf("buffer: create params buffer: %w", err)
	}
	g.bufCapacity = n
	return nil
}

// packParams serializes the frame uniform: count, time, amplitude.
func packParams(count uint32, t, amplitude float32) []byte {
	out := make([]byte, 16)
	binary.LittleEndian.PutUint32(out[0:], count)
	binary.LittleEndian.PutUint32(out[4:], math.Float32bits(t))
	binary.LittleEndian.PutUint32(out[8:], math.Float32bits(amplitude))
	return out
}

func packFloats(f []float32) []byte {
	out := make([]byte, len(f)*4)
	for i, v := range f {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func unpackFloats(data []byte, dst []float32) {
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
}

// dispatchMotion runs one motion frame on the GPU and reads the new
// positions back into the backend's CPU array. One submit and one
// fence wait per frame.
func (g *gpuState) dispatchMotion(b *Backend, t float64) error {
	n := b.Count()
	if n == 0 {
		return nil
	}
	if err := g.ensureBuffers(n); err != nil {
		return err
	}

	if g.dirty {
		g.queue.WriteBuffer(g.originalsBuf, 0, packFloats(b.originalPositions))
		g.dirty = false
	}
	g.queue.WriteBuffer(g.paramsBuf, 0, packParams(uint32(n), float32(t), float32(b.movementAmount)))

	posBytes := uint64(n * floatsPerPosition * 4)
	bg, err := g.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label: "particle_motion_bind", Layout: g.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: g.paramsBuf.NativeHandle(), Offset: 0, Size: 16}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: g.originalsBuf.NativeHandle(), Offset: 0, Size: posBytes}},
			{Binding: 2, Resource: gputypes.BufferBinding{Buffer: g.positionsBuf.NativeHandle(), Offset: 0, Size: posBytes}},
		},
	})
	if err != nil {
		return fmt.Errorf("buffer: create bind group: %w", err)
	}
	defer g.device.DestroyBindGroup(bg)

	encoder, err := g.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "particle_motion_encoder"})
	if err != nil {
		return fmt.Errorf("buffer: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("particle_motion"); err != nil {
		return fmt.Errorf("buffer: begin encoding: %w", err)
	}

	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "particle_motion_pass"})
	pass.SetPipeline(g.pipeline)
	pass.SetBindGroup(0, bg, nil)
	pass.Dispatch(uint32((n+63)/64), 1, 1)
	pass.End()

	encoder.CopyBufferToBuffer(g.positionsBuf, g.stagingBuf, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: posBytes},
	})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("buffer: end encoding: %w", err)
	}
	defer g.device.FreeCommandBuffer(cmdBuf)

	fence, err := g.device.CreateFence()
	if err != nil {
		return fmt.Errorf("buffer: create fence: %w", err)
	}
	defer g.device.DestroyFence(fence)
	if err := g.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("buffer: submit: %w", err)
	}
	fenceOK, err := g.device.Wait(fence, 1, 2*time.Second)
	if err != nil {
		return fmt.Errorf("buffer: wait for GPU: %w", err)
	}
	if !fenceOK {
		return fmt.Errorf("buffer: GPU fence timeout")
	}

	readback := make([]byte, posBytes)
	if err := g.queue.ReadBuffer(g.stagingBuf, 0, readback); err != nil {
		return fmt.Errorf("buffer: readback: %w", err)
	}
	unpackFloats(readback, b.positions[:n*floatsPerPosition])
	return nil
}

func (g *gpuState) destroyBuffers() {
	if g.device == nil {
		return
	}
	for _, buf := range []hal.Buffer{g.originalsBuf, g.positionsBuf, g.stagingBuf, g.paramsBuf} {
		if buf != nil {
			g.device.DestroyBuffer(buf)
		}
	}
	g.originalsBuf, g.positionsBuf, g.stagingBuf, g.paramsBuf = nil, nil, nil, nil
	g.bufCapacity = 0
}

// destroy releases all GPU resources. A shared device is handed back
// untouched; an owned device and instance are destroyed.
func (g *gpuState) destroy() {
	if g.device != nil {
		g.destroyBuffers()
		if g.pipeline != nil {
			g.device.DestroyComputePipeline(g.pipeline)
		}
		if g.pipeLayout != nil {
			g.device.DestroyPipelineLayout(g.pipeLayout)
		}
		if g.bindLayout != nil {
			g.device.DestroyBindGroupLayout(g.bindLayout)
		}
		if g.shader != nil {
			g.device.DestroyShaderModule(g.shader)
		}
	}
	if !g.externalDevice {
		if g.device != nil {
			g.device.Destroy()
		}
		if g.instance != nil {
			g.instance.Destroy()
		}
	}
	g.device = nil
	g.queue = nil
	g.instance = nil
}
