// Package gpu describes the slice of a Direct3D 11 style device that the
// capture, preview and export stages need. Two backends implement it: the
// native d3d11 package on Windows and the soft package everywhere else.
package gpu

import (
	"errors"
	"fmt"
)

// Format mirrors the DXGI_FORMAT values in use.
type Format uint32

const (
	FormatUnknown        Format = 0
	FormatRGBA16Typeless Format = 9
	FormatRGBA16Float    Format = 10
	FormatRGBA16UInt     Format = 12
	FormatRG32Float      Format = 16
	FormatBGRA8UNorm     Format = 87
)

// BytesPerPixel of a texel in this format, zero for FormatUnknown.
func (f Format) BytesPerPixel() uint32 {
	switch f {
	case FormatRGBA16Typeless, FormatRGBA16Float, FormatRGBA16UInt, FormatRG32Float:
		return 8
	case FormatBGRA8UNorm:
		return 4
	}
	return 0
}

func (f Format) String() string {
	switch f {
	case FormatUnknown:
		return "UNKNOWN"
	case FormatRGBA16Typeless:
		return "R16G16B16A16_TYPELESS"
	case FormatRGBA16Float:
		return "R16G16B16A16_FLOAT"
	case FormatRGBA16UInt:
		return "R16G16B16A16_UINT"
	case FormatRG32Float:
		return "R32G32_FLOAT"
	case FormatBGRA8UNorm:
		return "B8G8R8A8_UNORM"
	}
	return fmt.Sprintf("Format(%d)", uint32(f))
}

// Usage mirrors D3D11_USAGE.
type Usage uint32

const (
	UsageDefault   Usage = 0
	UsageImmutable Usage = 1
	UsageDynamic   Usage = 2
	UsageStaging   Usage = 3
)

// BindFlags mirrors D3D11_BIND_FLAG.
type BindFlags uint32

const (
	BindVertexBuffer    BindFlags = 0x1
	BindConstantBuffer  BindFlags = 0x4
	BindShaderResource  BindFlags = 0x8
	BindRenderTarget    BindFlags = 0x20
	BindUnorderedAccess BindFlags = 0x80
)

// CPUAccess mirrors D3D11_CPU_ACCESS_FLAG.
type CPUAccess uint32

const (
	CPUAccessNone  CPUAccess = 0
	CPUAccessWrite CPUAccess = 0x10000
	CPUAccessRead  CPUAccess = 0x20000
)

// MiscFlags mirrors D3D11_RESOURCE_MISC_FLAG.
type MiscFlags uint32

const (
	MiscGenerateMips     MiscFlags = 0x1
	MiscBufferStructured MiscFlags = 0x40
)

// MapMode mirrors D3D11_MAP.
type MapMode uint32

const (
	MapRead         MapMode = 1
	MapWrite        MapMode = 2
	MapWriteDiscard MapMode = 4
)

// Topology mirrors D3D11_PRIMITIVE_TOPOLOGY.
type Topology uint32

const (
	TopologyTriangleList  Topology = 4
	TopologyTriangleStrip Topology = 5
)

// FullMipChain as MipLevels asks for every level down to 1x1.
const FullMipChain = 0

// TextureDesc describes a single-slice, single-sample 2D texture.
type TextureDesc struct {
	Width     uint32
	Height    uint32
	MipLevels uint32
	Format    Format
	Usage     Usage
	Bind      BindFlags
	CPUAccess CPUAccess
	Misc      MiscFlags
}

// BufferDesc describes a linear buffer.
type BufferDesc struct {
	ByteWidth       uint32
	Usage           Usage
	Bind            BindFlags
	CPUAccess       CPUAccess
	Misc            MiscFlags
	StructureStride uint32
}

// Elements returns the number of structured elements in the buffer.
func (d BufferDesc) Elements() uint32 {
	if d.StructureStride == 0 {
		return 0
	}
	return d.ByteWidth / d.StructureStride
}

// MipCount returns the number of levels a full chain has for w x h.
func MipCount(w, h uint32) uint32 {
	n := uint32(1)
	for w > 1 || h > 1 {
		w = max(w/2, 1)
		h = max(h/2, 1)
		n++
	}
	return n
}

// MipSize returns the extent of a mip level.
func MipSize(w, h, level uint32) (uint32, uint32) {
	return max(w>>level, 1), max(h>>level, 1)
}

// Mapped is a CPU view of a mapped subresource. RowPitch is authoritative:
// rows may be padded past width * bytes-per-pixel.
type Mapped struct {
	Data       []byte
	RowPitch   uint32
	DepthPitch uint32
}

// Row returns row y of a mapped texture, trimmed to width bytes.
func (m Mapped) Row(y, width uint32) []byte {
	off := y * m.RowPitch
	return m.Data[off : off+width]
}

// Program is a compiled shader blob. Name identifies the program for backends
// that interpret programs natively.
type Program struct {
	Name     string
	Bytecode []byte
}

var (
	// ErrInvalidDesc is returned for zero-sized or inconsistent descriptors.
	ErrInvalidDesc = errors.New("gpu: invalid resource description")
	// ErrNotMappable is returned when mapping a resource without CPU access.
	ErrNotMappable = errors.New("gpu: resource is not mappable in this mode")
	// ErrUnknownProgram is returned when a backend cannot run a program.
	ErrUnknownProgram = errors.New("gpu: unknown program")
)
