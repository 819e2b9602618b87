package buffer

import (
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

// motionShaderSource offsets each particle from its rest position with
// a per-index oscillation, mirroring the CPU path in Advance.
const motionShaderSource = `
struct Params {
    count: u32,
    time: f32,
    amplitude: f32,
    _pad: f32,
}

@group(0) @binding(0) var<uniform> params: Params;
@group(0) @binding(1) var<storage, read> originals: array<f32>;
@group(0) @binding(2) var<storage, read_write> positions: array<f32>;

@compute @workgroup_size(64)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let i = gid.x;
    if (i >= params.count) {
        return;
    }
    let freq = 0.5 + f32(i % 7u) * 0.25;
    let phase = f32(i) * 0.7;
    let dx = params.amplitude * sin(params.time * freq + phase);
    let dy = params.amplitude * cos(params.time * freq * 0.8 + phase);
    let base = i * 3u;
    positions[base + 0u] = originals[base + 0u] + dx;
    positions[base + 1u] = originals[base + 1u] + dy;
    positions[base + 2u] = originals[base + 2u];
}
`

// compileShaderToSPIRV compiles WGSL source to a SPIR-V word slice.
// Compiling through naga up front surfaces shader errors at init time
// instead of at first dispatch.
func compileShaderToSPIRV(wgslSource string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(wgslSource)
	if err != nil {
		return nil, fmt.Errorf("buffer: compile shader: %w", err)
	}

	// SPIR-V is little-endian 32-bit words.
	spirvCode := make([]uint32, len(spirvBytes)/4)
	for i := range spirvCode {
		spirvCode[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return spirvCode, nil
}

// createShaderModule creates a HAL shader module from SPIR-V code.
func createShaderModule(device hal.Device, label string, spirvCode []uint32) (hal.ShaderModule, error) {
	return device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label: label,
		Source: hal.ShaderSource{
			SPIRV: spirvCode,
		},
	})
}
