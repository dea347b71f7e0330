// Package soft is a CPU implementation of the gpu device contract. It backs
// the headless capture command and every pipeline test, and runs the four
// programs (VertexShader, PixelShader, PreprocessShader, ConvertShader) as Go
// code.
package soft

import (
	"fmt"
	"log"
	"sync"

	"hdr-snip/src/gpu"
)

// DefaultRowAlignment pads texture rows the way drivers commonly do.
const DefaultRowAlignment = 64

// Option configures a Device.
type Option func(*Device)

// WithRowAlignment sets the row pitch alignment in bytes. Values below the
// texel size disable padding.
func WithRowAlignment(n uint32) Option {
	return func(d *Device) { d.rowAlign = n }
}

// Stats counts device activity for tests and diagnostics.
type Stats struct {
	TexturesCreated uint32
	BuffersCreated  uint32
	ViewsCreated    uint32
	Live            int
	Maps            uint32
	Unmaps          uint32
	Discards        uint32
	Draws           uint32
	Dispatches      uint32
}

// Device is the software device. It is safe for use from one goroutine at a
// time, matching the single-owner rule of the native backend.
type Device struct {
	mu       sync.Mutex
	rowAlign uint32
	ctx      *Context
	stats    Stats
	trace    []string
	textures []gpu.TextureDesc
	failures map[string]error
}

var _ gpu.Device = (*Device)(nil)

// New creates a software device.
func New(opts ...Option) *Device {
	d := &Device{rowAlign: DefaultRowAlignment, failures: map[string]error{}}
	for _, o := range opts {
		o(d)
	}
	d.ctx = &Context{dev: d}
	return d
}

// Context returns the immediate context.
func (d *Device) Context() gpu.Context { return d.ctx }

// Release is a no-op; resources are garbage collected.
func (d *Device) Release() {}

// Stats returns a snapshot of the activity counters.
func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// Trace returns the ordered list of context commands executed so far.
func (d *Device) Trace() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.trace...)
}

// ResetTrace clears the command trace.
func (d *Device) ResetTrace() {
	d.mu.Lock()
	d.trace = nil
	d.mu.Unlock()
}

// CreatedTextures lists the descriptors of every texture created so far.
func (d *Device) CreatedTextures() []gpu.TextureDesc {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]gpu.TextureDesc(nil), d.textures...)
}

// FailNext makes the next call of op (for example "CreateTexture2D" or
// "Present") return err.
func (d *Device) FailNext(op string, err error) {
	d.mu.Lock()
	d.failures[op] = err
	d.mu.Unlock()
}

func (d *Device) injected(op string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err, ok := d.failures[op]; ok {
		delete(d.failures, op)
		return err
	}
	return nil
}

func (d *Device) record(format string, args ...any) {
	d.mu.Lock()
	d.trace = append(d.trace, fmt.Sprintf(format, args...))
	d.mu.Unlock()
}

func (d *Device) count(f func(*Stats)) {
	d.mu.Lock()
	f(&d.stats)
	d.mu.Unlock()
}

func (d *Device) pitch(width, bpp uint32) uint32 {
	p := width * bpp
	if d.rowAlign > bpp {
		p = (p + d.rowAlign - 1) / d.rowAlign * d.rowAlign
	}
	return p
}

// CreateTexture2D allocates a texture. MipLevels of zero allocates the full
// chain.
func (d *Device) CreateTexture2D(desc gpu.TextureDesc, initial []byte) (gpu.Texture, error) {
	if err := d.injected("CreateTexture2D"); err != nil {
		return nil, err
	}
	bpp := desc.Format.BytesPerPixel()
	if desc.Width == 0 || desc.Height == 0 || bpp == 0 {
		return nil, fmt.Errorf("%w: texture %dx%d %s", gpu.ErrInvalidDesc, desc.Width, desc.Height, desc.Format)
	}
	if desc.Misc&gpu.MiscGenerateMips != 0 && desc.Bind&(gpu.BindRenderTarget|gpu.BindShaderResource) != gpu.BindRenderTarget|gpu.BindShaderResource {
		return nil, fmt.Errorf("%w: mip generation needs render target and shader resource binds", gpu.ErrInvalidDesc)
	}
	if desc.Usage == gpu.UsageStaging && desc.Bind != 0 {
		return nil, fmt.Errorf("%w: staging textures cannot be bound", gpu.ErrInvalidDesc)
	}
	if desc.MipLevels == gpu.FullMipChain {
		desc.MipLevels = gpu.MipCount(desc.Width, desc.Height)
	}
	t := &texture{dev: d, desc: desc}
	for i := uint32(0); i < desc.MipLevels; i++ {
		w, h := gpu.MipSize(desc.Width, desc.Height, i)
		p := d.pitch(w, bpp)
		t.levels = append(t.levels, level{w: w, h: h, pitch: p, data: make([]byte, int(p)*int(h))})
	}
	if initial != nil {
		l := t.levels[0]
		row := l.w * bpp
		if uint32(len(initial)) < row*l.h {
			return nil, fmt.Errorf("%w: initial data %d bytes, need %d", gpu.ErrInvalidDesc, len(initial), row*l.h)
		}
		for y := uint32(0); y < l.h; y++ {
			copy(l.data[y*l.pitch:y*l.pitch+row], initial[y*row:])
		}
	}
	d.count(func(s *Stats) { s.TexturesCreated++; s.Live++ })
	d.mu.Lock()
	d.textures = append(d.textures, desc)
	d.mu.Unlock()
	return t, nil
}

// CreateBuffer allocates a linear buffer.
func (d *Device) CreateBuffer(desc gpu.BufferDesc, initial []byte) (gpu.Buffer, error) {
	if err := d.injected("CreateBuffer"); err != nil {
		return nil, err
	}
	if desc.ByteWidth == 0 {
		return nil, fmt.Errorf("%w: empty buffer", gpu.ErrInvalidDesc)
	}
	if desc.Misc&gpu.MiscBufferStructured != 0 && (desc.StructureStride == 0 || desc.ByteWidth%desc.StructureStride != 0) {
		return nil, fmt.Errorf("%w: structured buffer stride %d does not divide %d", gpu.ErrInvalidDesc, desc.StructureStride, desc.ByteWidth)
	}
	b := &buffer{dev: d, desc: desc, data: make([]byte, desc.ByteWidth)}
	copy(b.data, initial)
	d.count(func(s *Stats) { s.BuffersCreated++; s.Live++ })
	return b, nil
}

func (d *Device) newView(v *view) (gpu.View, error) {
	if err := d.injected("CreateView"); err != nil {
		return nil, err
	}
	v.dev = d
	d.count(func(s *Stats) { s.ViewsCreated++; s.Live++ })
	return v, nil
}

// CreateShaderResourceView views every level of tex.
func (d *Device) CreateShaderResourceView(tex gpu.Texture) (gpu.View, error) {
	t, ok := asTexture(tex)
	if !ok || t.desc.Bind&gpu.BindShaderResource == 0 {
		return nil, fmt.Errorf("%w: texture is not shader resource bindable", gpu.ErrInvalidDesc)
	}
	return d.newView(&view{kind: viewSRV, tex: t, format: t.desc.Format})
}

// CreateRenderTargetView views level 0 of tex.
func (d *Device) CreateRenderTargetView(tex gpu.Texture) (gpu.View, error) {
	t, ok := asTexture(tex)
	if !ok || t.desc.Bind&gpu.BindRenderTarget == 0 {
		return nil, fmt.Errorf("%w: texture is not render target bindable", gpu.ErrInvalidDesc)
	}
	return d.newView(&view{kind: viewRTV, tex: t, format: t.desc.Format})
}

// CreateTextureUAV views level 0 of tex as format.
func (d *Device) CreateTextureUAV(tex gpu.Texture, format gpu.Format) (gpu.View, error) {
	t, ok := asTexture(tex)
	if !ok || t.desc.Bind&gpu.BindUnorderedAccess == 0 {
		return nil, fmt.Errorf("%w: texture is not unordered access bindable", gpu.ErrInvalidDesc)
	}
	if format.BytesPerPixel() != t.desc.Format.BytesPerPixel() {
		return nil, fmt.Errorf("%w: view format %s incompatible with %s", gpu.ErrInvalidDesc, format, t.desc.Format)
	}
	return d.newView(&view{kind: viewUAV, tex: t, format: format})
}

// CreateBufferUAV views every element of a structured buffer.
func (d *Device) CreateBufferUAV(buf gpu.Buffer) (gpu.View, error) {
	b, ok := buf.(*buffer)
	if !ok || b.desc.Bind&gpu.BindUnorderedAccess == 0 || b.desc.Misc&gpu.MiscBufferStructured == 0 {
		return nil, fmt.Errorf("%w: buffer is not a structured unordered access buffer", gpu.ErrInvalidDesc)
	}
	return d.newView(&view{kind: viewUAV, buf: b})
}

// CreateLinearSampler returns a clamp sampler. Sampling is nearest-texel.
func (d *Device) CreateLinearSampler() (gpu.Sampler, error) {
	return &sampler{}, nil
}

// CreateSwapchain creates an offscreen swapchain that records presents.
func (d *Device) CreateSwapchain(_ gpu.Surface, width, height uint32) (gpu.Swapchain, error) {
	if err := d.injected("CreateSwapchain"); err != nil {
		return nil, err
	}
	tex, err := d.CreateTexture2D(gpu.TextureDesc{
		Width:     width,
		Height:    height,
		MipLevels: 1,
		Format:    gpu.FormatRGBA16Float,
		Bind:      gpu.BindRenderTarget | gpu.BindShaderResource,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("swapchain back buffer: %w", err)
	}
	log.Printf("SOFTGPU: swapchain %dx%d created", width, height)
	return &Swapchain{dev: d, back: tex.(*texture)}, nil
}
