// Package export turns a committed selection of the captured frame into a
// 16-bit PNG: crop, mip generation, two compute passes, readback, encode,
// then file and clipboard delivery.
package export

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"hdr-snip/src/clipboard"
	"hdr-snip/src/encode"
	"hdr-snip/src/geometry"
	"hdr-snip/src/gpu"
)

// Buffer sizes bound to the compute kernels, in float32 elements.
const (
	ScalarElements  = 8
	ScratchElements = 1024
	floatSize       = 4
)

// Unordered access slot order expected by both kernels.
const (
	SlotScalars = iota
	SlotInput
	SlotOutput
	SlotScratch
)

// debugPixelLimit is the largest selection whose raw texels are logged.
const debugPixelLimit = 16 * 16

var (
	// ErrEmptySelection rejects requests with no area inside the frame.
	ErrEmptySelection = errors.New("export: selection has no area")
	// ErrNoFrame is returned when nothing has been captured yet.
	ErrNoFrame = errors.New("export: no captured frame")
	// ErrFrameFormat rejects frames that cannot be copied into the
	// half-float input texture.
	ErrFrameFormat = errors.New("export: frame is not RGBA16 float")
)

// Programs are the two compute kernels.
type Programs struct {
	Preprocess gpu.Program
	Convert    gpu.Program
}

// Publisher places encoded bytes on the clipboard.
type Publisher interface {
	Publish(ctx context.Context, data []byte) error
}

// Options configure delivery.
type Options struct {
	// OutputPath receives a copy of the image; empty disables the file.
	OutputPath string
	// Diagnostics reads the scalar results back after preprocessing.
	Diagnostics bool
	Encode      encode.Options
}

// Result describes a finished export.
type Result struct {
	Rect    geometry.Rect
	PNG     []byte
	Scalars []float32
	// FileErr is the swallowed error of the best-effort file write.
	FileErr error
}

// Pipeline runs exports against one device.
type Pipeline struct {
	dev  gpu.Device
	ctx  gpu.Context
	pre  gpu.Shader
	conv gpu.Shader
	clip Publisher
	opts Options

	writeFile func(string, []byte) error
}

// New compiles both kernels. clip may be nil to skip the clipboard.
func New(dev gpu.Device, progs Programs, clip Publisher, opts Options) (*Pipeline, error) {
	pre, err := dev.CreateComputeShader(progs.Preprocess)
	if err != nil {
		return nil, fmt.Errorf("create preprocess kernel: %w", err)
	}
	conv, err := dev.CreateComputeShader(progs.Convert)
	if err != nil {
		pre.Release()
		return nil, fmt.Errorf("create convert kernel: %w", err)
	}
	if opts.Encode == (encode.Options{}) {
		opts.Encode = encode.DefaultOptions()
	}
	return &Pipeline{
		dev:       dev,
		ctx:       dev.Context(),
		pre:       pre,
		conv:      conv,
		clip:      clip,
		opts:      opts,
		writeFile: clipboard.PersistFile,
	}, nil
}

// Release frees the kernels.
func (p *Pipeline) Release() {
	p.pre.Release()
	p.conv.Release()
}

// Run exports rect of frame. The rectangle is clipped to the frame first; a
// request with no area left is rejected before anything is allocated.
func (p *Pipeline) Run(ctx context.Context, frame gpu.Texture, rect geometry.Rect) (*Result, error) {
	if frame == nil {
		return nil, ErrNoFrame
	}
	fd := frame.Desc()
	if fd.Format != gpu.FormatRGBA16Float {
		return nil, fmt.Errorf("%w: got %v", ErrFrameFormat, fd.Format)
	}
	clipped := rect.Clamp(fd.Width, fd.Height)
	if !clipped.HasArea() {
		return nil, fmt.Errorf("%w: %v inside %dx%d", ErrEmptySelection, rect, fd.Width, fd.Height)
	}
	w, h := clipped.Width(), clipped.Height()
	log.Printf("EXPORT: final rect %v (%dx%d)", clipped, w, h)

	var scope gpu.Scope
	defer scope.Release()
	res, err := p.allocate(&scope, w, h)
	if err != nil {
		return nil, err
	}

	p.ctx.CopySubresourceRegion(res.input, 0, 0, frame, geometry.BoxOf(clipped))
	p.ctx.GenerateMips(res.inputSRV)
	p.ctx.CSSetUnorderedAccessViews(0, res.uavs[:])

	start := time.Now()
	p.ctx.CSSetShader(p.pre)
	p.ctx.Dispatch(1, 1, 1)
	p.ctx.Flush()

	result := &Result{Rect: clipped}
	if p.opts.Diagnostics {
		scalars, err := p.readScalars(&scope, res.scalars)
		if err != nil {
			log.Printf("EXPORT: scalar readback failed: %v", err)
		} else {
			result.Scalars = scalars
			log.Printf("EXPORT: preprocessor results %v", scalars)
		}
	}

	mid := time.Now()
	p.ctx.CSSetShader(p.conv)
	p.ctx.Dispatch(1, 1, 1)
	p.ctx.Flush()
	done := time.Now()
	log.Printf("EXPORT: compute passes ran in %v (preprocess %v, convert %v)", done.Sub(start), mid.Sub(start), done.Sub(mid))

	// unbind so the next export or paint does not see stale views
	p.ctx.CSSetUnorderedAccessViews(0, make([]gpu.View, len(res.uavs)))

	p.ctx.CopyResource(res.staging, res.output)
	data, err := p.readback(res.staging, w, h)
	if err != nil {
		return nil, err
	}
	result.PNG = data

	if p.opts.OutputPath != "" {
		if err := p.writeFile(p.opts.OutputPath, data); err != nil {
			result.FileErr = err
			log.Printf("EXPORT: writing %s failed (ignored): %v", p.opts.OutputPath, err)
		}
	}
	if p.clip != nil {
		if err := p.clip.Publish(ctx, data); err != nil {
			return result, fmt.Errorf("publish to clipboard: %w", err)
		}
		log.Printf("EXPORT: %d bytes copied to clipboard", len(data))
	}
	return result, nil
}

type resources struct {
	input, output, staging gpu.Texture
	inputSRV               gpu.View
	scalars, scratch       gpu.Buffer
	uavs                   [4]gpu.View
}

func (p *Pipeline) allocate(scope *gpu.Scope, w, h uint32) (*resources, error) {
	var r resources
	tex := func(name string, desc gpu.TextureDesc) (gpu.Texture, error) {
		t, err := p.dev.CreateTexture2D(desc, nil)
		if err != nil {
			return nil, fmt.Errorf("create %s texture: %w", name, err)
		}
		return gpu.Track(scope, t), nil
	}
	var err error
	if r.input, err = tex("input", gpu.TextureDesc{
		Width: w, Height: h, MipLevels: gpu.FullMipChain,
		Format: gpu.FormatRGBA16Float,
		Bind:   gpu.BindUnorderedAccess | gpu.BindShaderResource | gpu.BindRenderTarget,
		Misc:   gpu.MiscGenerateMips,
	}); err != nil {
		return nil, err
	}
	if r.output, err = tex("output", gpu.TextureDesc{
		Width: w, Height: h, MipLevels: 1,
		Format: gpu.FormatRGBA16Typeless,
		Bind:   gpu.BindUnorderedAccess,
	}); err != nil {
		return nil, err
	}
	if r.staging, err = tex("staging", gpu.TextureDesc{
		Width: w, Height: h, MipLevels: 1,
		Format:    gpu.FormatRGBA16Typeless,
		Usage:     gpu.UsageStaging,
		CPUAccess: gpu.CPUAccessRead,
	}); err != nil {
		return nil, err
	}

	buf := func(name string, elements uint32) (gpu.Buffer, error) {
		b, err := p.dev.CreateBuffer(gpu.BufferDesc{
			ByteWidth:       elements * floatSize,
			Bind:            gpu.BindUnorderedAccess,
			Misc:            gpu.MiscBufferStructured,
			StructureStride: floatSize,
		}, nil)
		if err != nil {
			return nil, fmt.Errorf("create %s buffer: %w", name, err)
		}
		return gpu.Track(scope, b), nil
	}
	if r.scalars, err = buf("scalar", ScalarElements); err != nil {
		return nil, err
	}
	if r.scratch, err = buf("scratch", ScratchElements); err != nil {
		return nil, err
	}

	view := func(name string, create func() (gpu.View, error)) (gpu.View, error) {
		v, err := create()
		if err != nil {
			return nil, fmt.Errorf("create %s view: %w", name, err)
		}
		return gpu.Track(scope, v), nil
	}
	if r.uavs[SlotScalars], err = view("scalar", func() (gpu.View, error) { return p.dev.CreateBufferUAV(r.scalars) }); err != nil {
		return nil, err
	}
	if r.uavs[SlotInput], err = view("input", func() (gpu.View, error) { return p.dev.CreateTextureUAV(r.input, gpu.FormatRGBA16Float) }); err != nil {
		return nil, err
	}
	if r.uavs[SlotOutput], err = view("output", func() (gpu.View, error) { return p.dev.CreateTextureUAV(r.output, gpu.FormatRGBA16UInt) }); err != nil {
		return nil, err
	}
	if r.uavs[SlotScratch], err = view("scratch", func() (gpu.View, error) { return p.dev.CreateBufferUAV(r.scratch) }); err != nil {
		return nil, err
	}
	if r.inputSRV, err = view("input mip", func() (gpu.View, error) { return p.dev.CreateShaderResourceView(r.input) }); err != nil {
		return nil, err
	}
	return &r, nil
}

// readScalars copies the scalar buffer through a staging buffer, since
// default-usage buffers cannot be mapped for reading.
func (p *Pipeline) readScalars(scope *gpu.Scope, scalars gpu.Buffer) ([]float32, error) {
	st, err := p.dev.CreateBuffer(gpu.BufferDesc{
		ByteWidth: ScalarElements * floatSize,
		Usage:     gpu.UsageStaging,
		CPUAccess: gpu.CPUAccessRead,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("create scalar staging buffer: %w", err)
	}
	gpu.Track(scope, st)
	p.ctx.CopyResource(st, scalars)
	m, err := p.ctx.Map(st, gpu.MapRead)
	if err != nil {
		return nil, fmt.Errorf("map scalar staging buffer: %w", err)
	}
	defer p.ctx.Unmap(st)
	out := make([]float32, ScalarElements)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(m.Data[i*floatSize:]))
	}
	return out, nil
}

// readback maps the staging texture, repacks it and encodes it. The unmap
// runs on every path once the map succeeded.
func (p *Pipeline) readback(staging gpu.Texture, w, h uint32) ([]byte, error) {
	m, err := p.ctx.Map(staging, gpu.MapRead)
	if err != nil {
		return nil, fmt.Errorf("map staging texture: %w", err)
	}
	defer p.ctx.Unmap(staging)
	log.Printf("EXPORT: mapped row pitch %d for %d bytes per row", m.RowPitch, w*encode.BytesPerPixel)

	pix, err := Repack(m, w, h, encode.BytesPerPixel)
	if err != nil {
		return nil, err
	}
	if w*h <= debugPixelLimit {
		logPixels(pix)
	}

	start := time.Now()
	data, err := encode.Bytes(pix, w, h, p.opts.Encode)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	log.Printf("EXPORT: encoded %d bytes in %v", len(data), time.Since(start))
	return data, nil
}

// Repack copies the rows of a mapped texture into a tightly packed buffer
// of width*height*bpp bytes using the reported row pitch.
func Repack(m gpu.Mapped, width, height, bpp uint32) ([]byte, error) {
	row := width * bpp
	if row == 0 || height == 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrEmptySelection, width, height)
	}
	if m.RowPitch < row {
		return nil, fmt.Errorf("row pitch %d smaller than row size %d", m.RowPitch, row)
	}
	need := uint64(m.RowPitch)*uint64(height-1) + uint64(row)
	if uint64(len(m.Data)) < need {
		return nil, fmt.Errorf("mapped data %d bytes, need %d", len(m.Data), need)
	}
	out := make([]byte, row*height)
	for y := uint32(0); y < height; y++ {
		copy(out[y*row:(y+1)*row], m.Row(y, row))
	}
	return out, nil
}

func logPixels(pix []byte) {
	var sb strings.Builder
	for i := 0; i+8 <= len(pix); i += 8 {
		fmt.Fprintf(&sb, " 0x%016X", binary.LittleEndian.Uint64(pix[i:]))
	}
	log.Printf("EXPORT: pixels%s", sb.String())
}
