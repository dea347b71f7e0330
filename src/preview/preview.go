// Package preview draws the captured desktop with the live selection overlay
// and presents it, using dirty-rect presents while a selection is dragged.
package preview

import (
	"encoding/binary"
	"fmt"
	"log"
	"math"

	"hdr-snip/src/geometry"
	"hdr-snip/src/gpu"
)

// Programs are the two shaders of the overlay pipeline.
type Programs struct {
	Vertex gpu.Program
	Pixel  gpu.Program
}

// VertexStride is two float32 position components plus two UV components.
const VertexStride = 16

// quad is a full-screen triangle strip: top-left, top-right, bottom-left,
// bottom-right.
var quad = [4][4]float32{
	{-1, 1, 0, 0},
	{1, 1, 1, 0},
	{-1, -1, 0, 1},
	{1, -1, 1, 1},
}

func quadBytes() []byte {
	out := make([]byte, len(quad)*VertexStride)
	for i, v := range quad {
		for j, f := range v {
			binary.LittleEndian.PutUint32(out[i*VertexStride+j*4:], math.Float32bits(f))
		}
	}
	return out
}

// Renderer owns the overlay pipeline, its render target and the per-frame
// parameter buffer. All of them live until Release.
type Renderer struct {
	dev  gpu.Device
	ctx  gpu.Context
	swap gpu.Swapchain

	width, height uint32

	vertices gpu.Buffer
	params   gpu.Buffer
	vs, ps   gpu.Shader
	sampler  gpu.Sampler
	target   gpu.Texture
	rtv      gpu.View

	// fullPresented is set once a full-surface present has happened, which
	// allows the following presents to name only the selection.
	fullPresented bool

	scope gpu.Scope
}

// New builds the pipeline for a width x height desktop presented on swap.
func New(dev gpu.Device, swap gpu.Swapchain, width, height uint32, progs Programs) (*Renderer, error) {
	r := &Renderer{dev: dev, ctx: dev.Context(), swap: swap, width: width, height: height}
	if err := r.build(progs); err != nil {
		r.scope.Release()
		return nil, err
	}
	log.Printf("PREVIEW: pipeline ready for %dx%d", width, height)
	return r, nil
}

func (r *Renderer) build(progs Programs) error {
	vb, err := r.dev.CreateBuffer(gpu.BufferDesc{
		ByteWidth: uint32(len(quad) * VertexStride),
		Usage:     gpu.UsageDefault,
		Bind:      gpu.BindVertexBuffer,
	}, quadBytes())
	if err != nil {
		return fmt.Errorf("create vertex buffer: %w", err)
	}
	r.vertices = gpu.Track(&r.scope, vb)

	vs, err := r.dev.CreateVertexShader(progs.Vertex)
	if err != nil {
		return fmt.Errorf("create vertex shader: %w", err)
	}
	r.vs = gpu.Track(&r.scope, vs)

	ps, err := r.dev.CreatePixelShader(progs.Pixel)
	if err != nil {
		return fmt.Errorf("create pixel shader: %w", err)
	}
	r.ps = gpu.Track(&r.scope, ps)

	smp, err := r.dev.CreateLinearSampler()
	if err != nil {
		return fmt.Errorf("create sampler: %w", err)
	}
	r.sampler = gpu.Track(&r.scope, smp)

	cb, err := r.dev.CreateBuffer(gpu.BufferDesc{
		ByteWidth: geometry.NormalisedRectSize,
		Usage:     gpu.UsageDynamic,
		Bind:      gpu.BindConstantBuffer,
		CPUAccess: gpu.CPUAccessWrite,
	}, geometry.NormalisedRect{}.Bytes())
	if err != nil {
		return fmt.Errorf("create parameter buffer: %w", err)
	}
	r.params = gpu.Track(&r.scope, cb)

	tex, err := r.dev.CreateTexture2D(gpu.TextureDesc{
		Width:     r.width,
		Height:    r.height,
		MipLevels: 1,
		Format:    gpu.FormatRGBA16Float,
		Bind:      gpu.BindRenderTarget,
	}, nil)
	if err != nil {
		return fmt.Errorf("create render target: %w", err)
	}
	r.target = gpu.Track(&r.scope, tex)

	rtv, err := r.dev.CreateRenderTargetView(tex)
	if err != nil {
		return fmt.Errorf("create render target view: %w", err)
	}
	r.rtv = gpu.Track(&r.scope, rtv)
	return nil
}

// ResetPresent forces the next present to cover the whole surface, so a
// cleared overlay leaves no stale pixels.
func (r *Renderer) ResetPresent() { r.fullPresented = false }

// Paint draws source with the selection overlay and presents. A nil sel
// draws without a selection.
func (r *Renderer) Paint(source gpu.View, sel *geometry.Dimensions) error {
	if source == nil {
		return fmt.Errorf("no captured frame")
	}
	rect := geometry.Rect{}
	if sel != nil {
		rect = sel.Rect()
	}
	if err := r.writeParams(rect, sel != nil); err != nil {
		return err
	}

	r.bind(source)
	r.ctx.Draw(uint32(len(quad)), 0)

	back, err := r.swap.BackBuffer()
	if err != nil {
		return fmt.Errorf("get back buffer: %w", err)
	}
	r.ctx.CopyResource(back, r.target)
	back.Release()

	return r.present(rect, sel != nil)
}

// writeParams replaces the parameter buffer contents with write-discard so
// the draw still reading the previous contents is never waited on.
func (r *Renderer) writeParams(rect geometry.Rect, active bool) error {
	n := geometry.NormalisedRect{}
	if active {
		n = geometry.Normalise(rect, r.width, r.height)
	}
	m, err := r.ctx.Map(r.params, gpu.MapWriteDiscard)
	if err != nil {
		return fmt.Errorf("map parameter buffer: %w", err)
	}
	n.Put(m.Data)
	r.ctx.Unmap(r.params)
	return nil
}

func (r *Renderer) bind(source gpu.View) {
	r.ctx.IASetVertexBuffer(r.vertices, VertexStride)
	r.ctx.IASetPrimitiveTopology(gpu.TopologyTriangleStrip)
	r.ctx.VSSetShader(r.vs)
	r.ctx.PSSetShader(r.ps)
	r.ctx.PSSetShaderResource(source)
	r.ctx.PSSetSampler(r.sampler)
	r.ctx.PSSetConstantBuffer(r.params)
	r.ctx.OMSetRenderTarget(r.rtv)
	r.ctx.RSSetViewport(float32(r.width), float32(r.height))
}

func (r *Renderer) present(rect geometry.Rect, active bool) error {
	dirty := rect.Clamp(r.width, r.height)
	if r.fullPresented && active && dirty.HasArea() {
		if err := r.swap.Present([]geometry.Rect{dirty}); err != nil {
			return fmt.Errorf("present %v: %w", dirty, err)
		}
		return nil
	}
	r.fullPresented = true
	if err := r.swap.Present(nil); err != nil {
		return fmt.Errorf("present: %w", err)
	}
	return nil
}

// Release frees the pipeline.
func (r *Renderer) Release() { r.scope.Release() }
