//go:build windows

package d3d11

import (
	"fmt"
	"log"
	"math"
	"unsafe"

	"hdr-snip/src/gpu"
)

const (
	d3dDriverTypeHardware = 1
	d3dFeatureLevel11_0   = 0xb000
	d3dFeatureLevel11_1   = 0xb100
	d3d11SDKVersion       = 7

	d3d11CreateDeviceSingleThreaded = 0x1
	d3d11CreateDeviceDebug          = 0x2
	d3d11CreateDeviceBGRASupport    = 0x20

	d3d11UAVDimensionBuffer    = 1
	d3d11UAVDimensionTexture2D = 4

	d3d11FilterMinMagMipLinear = 0x15
	d3d11AddressClamp          = 3
	d3d11ComparisonNever       = 1

	d3d11InputPerVertexData = 0
)

// d3d11Texture2DDesc matches D3D11_TEXTURE2D_DESC (44 bytes).
type d3d11Texture2DDesc struct {
	Width          uint32
	Height         uint32
	MipLevels      uint32
	ArraySize      uint32
	Format         uint32
	SampleCount    uint32 // DXGI_SAMPLE_DESC.Count
	SampleQuality  uint32 // DXGI_SAMPLE_DESC.Quality
	Usage          uint32
	BindFlags      uint32
	CPUAccessFlags uint32
	MiscFlags      uint32
}

// d3d11BufferDesc matches D3D11_BUFFER_DESC.
type d3d11BufferDesc struct {
	ByteWidth           uint32
	Usage               uint32
	BindFlags           uint32
	CPUAccessFlags      uint32
	MiscFlags           uint32
	StructureByteStride uint32
}

// d3d11SubresourceData matches D3D11_SUBRESOURCE_DATA.
type d3d11SubresourceData struct {
	PSysMem          uintptr
	SysMemPitch      uint32
	SysMemSlicePitch uint32
}

// d3d11UAVDesc matches D3D11_UNORDERED_ACCESS_VIEW_DESC; the union holds
// either MipSlice or FirstElement/NumElements/Flags.
type d3d11UAVDesc struct {
	Format        uint32
	ViewDimension uint32
	Union         [3]uint32
}

// d3d11SamplerDesc matches D3D11_SAMPLER_DESC.
type d3d11SamplerDesc struct {
	Filter         uint32
	AddressU       uint32
	AddressV       uint32
	AddressW       uint32
	MipLODBias     float32
	MaxAnisotropy  uint32
	ComparisonFunc uint32
	BorderColor    [4]float32
	MinLOD         float32
	MaxLOD         float32
}

// d3d11InputElementDesc matches D3D11_INPUT_ELEMENT_DESC.
type d3d11InputElementDesc struct {
	SemanticName         *byte
	SemanticIndex        uint32
	Format               uint32
	InputSlot            uint32
	AlignedByteOffset    uint32
	InputSlotClass       uint32
	InstanceDataStepRate uint32
}

// Device is an ID3D11Device with its immediate context.
type Device struct {
	dev     uintptr // ID3D11Device
	adapter uintptr // IDXGIAdapter
	ctx     *Context
}

// Options for New.
type Options struct {
	// Debug requests the debug layer; creation falls back without it.
	Debug bool
}

// New creates a single-threaded hardware device on the default adapter at
// feature level 11.1, or 11.0 on runtimes that reject 11.1.
func New(opts Options) (*Device, error) {
	var device, context uintptr
	var actualLevel uint32

	create := func(flags uintptr, levels []uint32) uintptr {
		hr, _, _ := procD3D11CreateDevice.Call(
			0,                                      // pAdapter (NULL = default)
			uintptr(d3dDriverTypeHardware),         // DriverType
			0,                                      // Software
			flags,                                  // Flags
			uintptr(unsafe.Pointer(&levels[0])),    // pFeatureLevels
			uintptr(len(levels)),                   // FeatureLevels count
			uintptr(d3d11SDKVersion),               // SDKVersion
			uintptr(unsafe.Pointer(&device)),       // ppDevice
			uintptr(unsafe.Pointer(&actualLevel)),  // pFeatureLevel
			uintptr(unsafe.Pointer(&context)),      // ppImmediateContext
		)
		return hr
	}
	levels := []uint32{d3dFeatureLevel11_1, d3dFeatureLevel11_0}
	flags := uintptr(d3d11CreateDeviceSingleThreaded | d3d11CreateDeviceBGRASupport)
	if opts.Debug {
		flags |= d3d11CreateDeviceDebug
	}
	hr := create(flags, levels)
	if uint32(hr) == eInvalidArg {
		// Runtimes without 11.1 reject the whole list.
		levels = levels[1:]
		hr = create(flags, levels)
	}
	if int32(hr) < 0 && opts.Debug {
		log.Printf("D3D11: debug layer unavailable (0x%08X), retrying without it", uint32(hr))
		hr = create(flags&^d3d11CreateDeviceDebug, levels)
	}
	if int32(hr) < 0 {
		return nil, fmt.Errorf("D3D11CreateDevice failed: 0x%08X", uint32(hr))
	}

	dxgiDevice, err := queryInterface(device, &iidIDXGIDevice)
	if err != nil {
		comRelease(context)
		comRelease(device)
		return nil, fmt.Errorf("QueryInterface IDXGIDevice: %w", err)
	}
	defer comRelease(dxgiDevice)

	var adapter uintptr
	if _, err := comCall(dxgiDevice, dxgiDeviceGetAdapter, uintptr(unsafe.Pointer(&adapter))); err != nil {
		comRelease(context)
		comRelease(device)
		return nil, fmt.Errorf("IDXGIDevice::GetAdapter: %w", err)
	}

	log.Printf("D3D11: device created, feature level 0x%x", actualLevel)
	return &Device{dev: device, adapter: adapter, ctx: &Context{ctx: context}}, nil
}

// Context returns the immediate context.
func (d *Device) Context() gpu.Context { return d.ctx }

// Release frees the device, its adapter and context.
func (d *Device) Release() {
	comRelease(d.ctx.ctx)
	comRelease(d.adapter)
	comRelease(d.dev)
	d.ctx.ctx, d.adapter, d.dev = 0, 0, 0
}

func (d *Device) CreateTexture2D(desc gpu.TextureDesc, initial []byte) (gpu.Texture, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("%w: %dx%d texture", gpu.ErrInvalidDesc, desc.Width, desc.Height)
	}
	mips := desc.MipLevels
	if mips == gpu.FullMipChain {
		mips = gpu.MipCount(desc.Width, desc.Height)
	}
	raw := d3d11Texture2DDesc{
		Width:          desc.Width,
		Height:         desc.Height,
		MipLevels:      desc.MipLevels,
		ArraySize:      1,
		Format:         uint32(desc.Format),
		SampleCount:    1,
		Usage:          uint32(desc.Usage),
		BindFlags:      uint32(desc.Bind),
		CPUAccessFlags: uint32(desc.CPUAccess),
		MiscFlags:      uint32(desc.Misc),
	}
	var init uintptr
	var data d3d11SubresourceData
	if initial != nil {
		if mips != 1 {
			return nil, fmt.Errorf("%w: initial data needs a single mip level", gpu.ErrInvalidDesc)
		}
		pitch := desc.Width * desc.Format.BytesPerPixel()
		if uint32(len(initial)) < pitch*desc.Height {
			return nil, fmt.Errorf("%w: %d bytes of initial data for %dx%d", gpu.ErrInvalidDesc, len(initial), desc.Width, desc.Height)
		}
		data = d3d11SubresourceData{PSysMem: uintptr(unsafe.Pointer(&initial[0])), SysMemPitch: pitch}
		init = uintptr(unsafe.Pointer(&data))
	}
	var tex uintptr
	if _, err := comCall(d.dev, devCreateTexture2D, uintptr(unsafe.Pointer(&raw)), init, uintptr(unsafe.Pointer(&tex))); err != nil {
		return nil, fmt.Errorf("CreateTexture2D %dx%d %v: %w", desc.Width, desc.Height, desc.Format, err)
	}
	desc.MipLevels = mips
	return &texture{ptr: tex, desc: desc}, nil
}

func (d *Device) CreateBuffer(desc gpu.BufferDesc, initial []byte) (gpu.Buffer, error) {
	if desc.ByteWidth == 0 {
		return nil, fmt.Errorf("%w: empty buffer", gpu.ErrInvalidDesc)
	}
	raw := d3d11BufferDesc{
		ByteWidth:           desc.ByteWidth,
		Usage:               uint32(desc.Usage),
		BindFlags:           uint32(desc.Bind),
		CPUAccessFlags:      uint32(desc.CPUAccess),
		MiscFlags:           uint32(desc.Misc),
		StructureByteStride: desc.StructureStride,
	}
	var init uintptr
	var data d3d11SubresourceData
	if initial != nil {
		if uint32(len(initial)) < desc.ByteWidth {
			return nil, fmt.Errorf("%w: %d bytes of initial data for %d", gpu.ErrInvalidDesc, len(initial), desc.ByteWidth)
		}
		data.PSysMem = uintptr(unsafe.Pointer(&initial[0]))
		init = uintptr(unsafe.Pointer(&data))
	}
	var buf uintptr
	if _, err := comCall(d.dev, devCreateBuffer, uintptr(unsafe.Pointer(&raw)), init, uintptr(unsafe.Pointer(&buf))); err != nil {
		return nil, fmt.Errorf("CreateBuffer %d bytes: %w", desc.ByteWidth, err)
	}
	return &buffer{ptr: buf, desc: desc}, nil
}

func (d *Device) CreateShaderResourceView(tex gpu.Texture) (gpu.View, error) {
	var v uintptr
	if _, err := comCall(d.dev, devCreateShaderResourceView, ptrOf(tex), 0, uintptr(unsafe.Pointer(&v))); err != nil {
		return nil, fmt.Errorf("CreateShaderResourceView: %w", err)
	}
	return &view{ptr: v}, nil
}

func (d *Device) CreateRenderTargetView(tex gpu.Texture) (gpu.View, error) {
	var v uintptr
	if _, err := comCall(d.dev, devCreateRenderTargetView, ptrOf(tex), 0, uintptr(unsafe.Pointer(&v))); err != nil {
		return nil, fmt.Errorf("CreateRenderTargetView: %w", err)
	}
	return &view{ptr: v}, nil
}

func (d *Device) CreateTextureUAV(tex gpu.Texture, format gpu.Format) (gpu.View, error) {
	desc := d3d11UAVDesc{Format: uint32(format), ViewDimension: d3d11UAVDimensionTexture2D}
	return d.createUAV(ptrOf(tex), &desc)
}

func (d *Device) CreateBufferUAV(buf gpu.Buffer) (gpu.View, error) {
	desc := d3d11UAVDesc{
		Format:        uint32(gpu.FormatUnknown),
		ViewDimension: d3d11UAVDimensionBuffer,
		Union:         [3]uint32{0, buf.Desc().Elements(), 0},
	}
	return d.createUAV(ptrOf(buf), &desc)
}

func (d *Device) createUAV(res uintptr, desc *d3d11UAVDesc) (gpu.View, error) {
	var v uintptr
	if _, err := comCall(d.dev, devCreateUnorderedAccessView, res, uintptr(unsafe.Pointer(desc)), uintptr(unsafe.Pointer(&v))); err != nil {
		return nil, fmt.Errorf("CreateUnorderedAccessView: %w", err)
	}
	return &view{ptr: v}, nil
}

func bytecode(p gpu.Program) (uintptr, uintptr, error) {
	if len(p.Bytecode) == 0 {
		return 0, 0, fmt.Errorf("%w: %s has no bytecode", gpu.ErrUnknownProgram, p.Name)
	}
	return uintptr(unsafe.Pointer(&p.Bytecode[0])), uintptr(len(p.Bytecode)), nil
}

var (
	semanticPosition = []byte("POSITION\x00")
	semanticTexcoord = []byte("TEXCOORD\x00")
)

const dxgiFormatR32G32Float = 16

func (d *Device) CreateVertexShader(p gpu.Program) (gpu.Shader, error) {
	code, size, err := bytecode(p)
	if err != nil {
		return nil, err
	}
	var vs uintptr
	if _, err := comCall(d.dev, devCreateVertexShader, code, size, 0, uintptr(unsafe.Pointer(&vs))); err != nil {
		return nil, fmt.Errorf("CreateVertexShader %s: %w", p.Name, err)
	}
	layout := [2]d3d11InputElementDesc{
		{SemanticName: &semanticPosition[0], Format: dxgiFormatR32G32Float, AlignedByteOffset: 0, InputSlotClass: d3d11InputPerVertexData},
		{SemanticName: &semanticTexcoord[0], Format: dxgiFormatR32G32Float, AlignedByteOffset: 8, InputSlotClass: d3d11InputPerVertexData},
	}
	var il uintptr
	if _, err := comCall(d.dev, devCreateInputLayout, uintptr(unsafe.Pointer(&layout[0])), uintptr(len(layout)), code, size, uintptr(unsafe.Pointer(&il))); err != nil {
		comRelease(vs)
		return nil, fmt.Errorf("CreateInputLayout %s: %w", p.Name, err)
	}
	return &shader{ptr: vs, layout: il}, nil
}

func (d *Device) CreatePixelShader(p gpu.Program) (gpu.Shader, error) {
	return d.createShader(devCreatePixelShader, p)
}

func (d *Device) CreateComputeShader(p gpu.Program) (gpu.Shader, error) {
	return d.createShader(devCreateComputeShader, p)
}

func (d *Device) createShader(method int, p gpu.Program) (gpu.Shader, error) {
	code, size, err := bytecode(p)
	if err != nil {
		return nil, err
	}
	var s uintptr
	if _, err := comCall(d.dev, method, code, size, 0, uintptr(unsafe.Pointer(&s))); err != nil {
		return nil, fmt.Errorf("create shader %s: %w", p.Name, err)
	}
	return &shader{ptr: s}, nil
}

func (d *Device) CreateLinearSampler() (gpu.Sampler, error) {
	desc := d3d11SamplerDesc{
		Filter:         d3d11FilterMinMagMipLinear,
		AddressU:       d3d11AddressClamp,
		AddressV:       d3d11AddressClamp,
		AddressW:       d3d11AddressClamp,
		ComparisonFunc: d3d11ComparisonNever,
		MaxLOD:         math.MaxFloat32,
	}
	var s uintptr
	if _, err := comCall(d.dev, devCreateSamplerState, uintptr(unsafe.Pointer(&desc)), uintptr(unsafe.Pointer(&s))); err != nil {
		return nil, fmt.Errorf("CreateSamplerState: %w", err)
	}
	return &sampler{ptr: s}, nil
}
