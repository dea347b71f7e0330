package soft

import (
	"fmt"

	"hdr-snip/src/gpu"
)

// Program names the software device understands. They match the file names
// of the compiled native programs without extension.
const (
	VertexShaderName     = "VertexShader"
	PixelShaderName      = "PixelShader"
	PreprocessShaderName = "PreprocessShader"
	ConvertShaderName    = "ConvertShader"
)

type kernel func(uavs []*view) error

var computeKernels = map[string]kernel{
	PreprocessShaderName: preprocess,
	ConvertShaderName:    convert,
}

// CreateVertexShader accepts the pass-through vertex program.
func (d *Device) CreateVertexShader(p gpu.Program) (gpu.Shader, error) {
	if p.Name != VertexShaderName {
		return nil, fmt.Errorf("%w: vertex program %q", gpu.ErrUnknownProgram, p.Name)
	}
	return &shader{stage: stageVertex, name: p.Name}, nil
}

// CreatePixelShader accepts the overlay pixel program.
func (d *Device) CreatePixelShader(p gpu.Program) (gpu.Shader, error) {
	if p.Name != PixelShaderName {
		return nil, fmt.Errorf("%w: pixel program %q", gpu.ErrUnknownProgram, p.Name)
	}
	return &shader{stage: stagePixel, name: p.Name}, nil
}

// CreateComputeShader accepts the preprocess and convert kernels.
func (d *Device) CreateComputeShader(p gpu.Program) (gpu.Shader, error) {
	if err := d.injected("CreateComputeShader"); err != nil {
		return nil, err
	}
	k, ok := computeKernels[p.Name]
	if !ok {
		return nil, fmt.Errorf("%w: compute program %q", gpu.ErrUnknownProgram, p.Name)
	}
	return &shader{stage: stageCompute, name: p.Name, kernel: k}, nil
}
