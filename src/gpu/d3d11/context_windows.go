//go:build windows

package d3d11

import (
	"fmt"
	"unsafe"

	"hdr-snip/src/geometry"
	"hdr-snip/src/gpu"
)

// d3d11MappedSubresource matches D3D11_MAPPED_SUBRESOURCE.
type d3d11MappedSubresource struct {
	PData      uintptr
	RowPitch   uint32
	DepthPitch uint32
}

// d3d11Box matches D3D11_BOX.
type d3d11Box struct {
	Left, Top, Front, Right, Bottom, Back uint32
}

// d3d11Viewport matches D3D11_VIEWPORT.
type d3d11Viewport struct {
	TopLeftX, TopLeftY float32
	Width, Height      float32
	MinDepth, MaxDepth float32
}

// Context is the immediate ID3D11DeviceContext.
type Context struct {
	ctx uintptr
}

func (c *Context) CopyResource(dst, src gpu.Resource) {
	comVoid(c.ctx, ctxCopyResource, ptrOf(dst), ptrOf(src))
}

func (c *Context) CopySubresourceRegion(dst gpu.Texture, x, y uint32, src gpu.Texture, box geometry.Box) {
	b := d3d11Box(box)
	comVoid(c.ctx, ctxCopySubresourceRegion,
		ptrOf(dst), 0, // dst, DstSubresource
		uintptr(x), uintptr(y), 0, // DstX, DstY, DstZ
		ptrOf(src), 0, // src, SrcSubresource
		uintptr(unsafe.Pointer(&b)),
	)
}

func (c *Context) GenerateMips(srv gpu.View) {
	comVoid(c.ctx, ctxGenerateMips, ptrOf(srv))
}

func (c *Context) Map(res gpu.Resource, mode gpu.MapMode) (gpu.Mapped, error) {
	var m d3d11MappedSubresource
	if _, err := comCall(c.ctx, ctxMap, ptrOf(res), 0, uintptr(mode), 0, uintptr(unsafe.Pointer(&m))); err != nil {
		return gpu.Mapped{}, fmt.Errorf("Map: %w", err)
	}
	size := mappedSize(res, m)
	if m.PData == 0 || size == 0 {
		comVoid(c.ctx, ctxUnmap, ptrOf(res), 0)
		return gpu.Mapped{}, fmt.Errorf("%w: empty mapping", gpu.ErrNotMappable)
	}
	return gpu.Mapped{
		Data:       unsafe.Slice((*byte)(unsafe.Pointer(m.PData)), size),
		RowPitch:   m.RowPitch,
		DepthPitch: m.DepthPitch,
	}, nil
}

// mappedSize is the number of addressable bytes behind a mapping.
func mappedSize(res gpu.Resource, m d3d11MappedSubresource) int {
	switch r := res.(type) {
	case gpu.Texture:
		if m.DepthPitch != 0 {
			return int(m.DepthPitch)
		}
		return int(m.RowPitch) * int(r.Desc().Height)
	case gpu.Buffer:
		return int(r.Desc().ByteWidth)
	}
	return 0
}

func (c *Context) Unmap(res gpu.Resource) {
	comVoid(c.ctx, ctxUnmap, ptrOf(res), 0)
}

func (c *Context) IASetVertexBuffer(buf gpu.Buffer, stride uint32) {
	ptr := ptrOf(buf)
	var offset uint32
	comVoid(c.ctx, ctxIASetVertexBuffers, 0, 1,
		uintptr(unsafe.Pointer(&ptr)),
		uintptr(unsafe.Pointer(&stride)),
		uintptr(unsafe.Pointer(&offset)),
	)
}

func (c *Context) IASetPrimitiveTopology(t gpu.Topology) {
	comVoid(c.ctx, ctxIASetPrimitiveTopology, uintptr(t))
}

func (c *Context) VSSetShader(s gpu.Shader) {
	if sh, ok := s.(*shader); ok && sh.layout != 0 {
		comVoid(c.ctx, ctxIASetInputLayout, sh.layout)
	}
	comVoid(c.ctx, ctxVSSetShader, ptrOf(s), 0, 0)
}

func (c *Context) PSSetShader(s gpu.Shader) {
	comVoid(c.ctx, ctxPSSetShader, ptrOf(s), 0, 0)
}

func (c *Context) PSSetShaderResource(v gpu.View) {
	ptr := ptrOf(v)
	comVoid(c.ctx, ctxPSSetShaderResources, 0, 1, uintptr(unsafe.Pointer(&ptr)))
}

func (c *Context) PSSetSampler(s gpu.Sampler) {
	ptr := ptrOf(s)
	comVoid(c.ctx, ctxPSSetSamplers, 0, 1, uintptr(unsafe.Pointer(&ptr)))
}

// PSSetConstantBuffer binds b to slot 0 of both the vertex and pixel stages.
func (c *Context) PSSetConstantBuffer(b gpu.Buffer) {
	ptr := ptrOf(b)
	comVoid(c.ctx, ctxVSSetConstantBuffers, 0, 1, uintptr(unsafe.Pointer(&ptr)))
	comVoid(c.ctx, ctxPSSetConstantBuffers, 0, 1, uintptr(unsafe.Pointer(&ptr)))
}

func (c *Context) OMSetRenderTarget(rtv gpu.View) {
	ptr := ptrOf(rtv)
	comVoid(c.ctx, ctxOMSetRenderTargets, 1, uintptr(unsafe.Pointer(&ptr)), 0)
}

func (c *Context) RSSetViewport(width, height float32) {
	vp := d3d11Viewport{Width: width, Height: height, MaxDepth: 1}
	comVoid(c.ctx, ctxRSSetViewports, 1, uintptr(unsafe.Pointer(&vp)))
}

func (c *Context) Draw(vertexCount, startVertex uint32) {
	comVoid(c.ctx, ctxDraw, uintptr(vertexCount), uintptr(startVertex))
}

func (c *Context) CSSetShader(s gpu.Shader) {
	comVoid(c.ctx, ctxCSSetShader, ptrOf(s), 0, 0)
}

func (c *Context) CSSetUnorderedAccessViews(start uint32, views []gpu.View) {
	if len(views) == 0 {
		return
	}
	ptrs := make([]uintptr, len(views))
	for i, v := range views {
		if v != nil {
			ptrs[i] = ptrOf(v)
		}
	}
	comVoid(c.ctx, ctxCSSetUnorderedAccessViews, uintptr(start), uintptr(len(ptrs)), uintptr(unsafe.Pointer(&ptrs[0])), 0)
}

func (c *Context) Dispatch(x, y, z uint32) {
	comVoid(c.ctx, ctxDispatch, uintptr(x), uintptr(y), uintptr(z))
}

func (c *Context) Flush() {
	comVoid(c.ctx, ctxFlush)
}
