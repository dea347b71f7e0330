package gpu

import "hdr-snip/src/geometry"

// Resource is anything the device hands out that must be released.
type Resource interface {
	Release()
}

// Texture is a 2D texture.
type Texture interface {
	Resource
	Desc() TextureDesc
}

// Buffer is a linear buffer.
type Buffer interface {
	Resource
	Desc() BufferDesc
}

// View is a shader resource, unordered access or render target view.
type View interface {
	Resource
}

// Shader is a created vertex, pixel or compute program.
type Shader interface {
	Resource
}

// Sampler is a created sampler state.
type Sampler interface {
	Resource
}

// Surface is the native window handle a swapchain presents to.
type Surface uintptr

// Device creates resources. It is owned by a single thread.
type Device interface {
	CreateTexture2D(desc TextureDesc, initial []byte) (Texture, error)
	CreateBuffer(desc BufferDesc, initial []byte) (Buffer, error)

	// CreateShaderResourceView covers every mip level of tex.
	CreateShaderResourceView(tex Texture) (View, error)
	CreateRenderTargetView(tex Texture) (View, error)
	// CreateTextureUAV views mip level 0 of tex, reinterpreted as format.
	CreateTextureUAV(tex Texture, format Format) (View, error)
	// CreateBufferUAV views every element of a structured buffer.
	CreateBufferUAV(buf Buffer) (View, error)

	// CreateVertexShader also builds the position+UV input layout.
	CreateVertexShader(p Program) (Shader, error)
	CreatePixelShader(p Program) (Shader, error)
	CreateComputeShader(p Program) (Shader, error)
	CreateLinearSampler() (Sampler, error)

	CreateSwapchain(surface Surface, width, height uint32) (Swapchain, error)

	Context() Context
	Release()
}

// Context records and executes commands. Flush returns once submitted work is
// complete enough for a following Map to observe it.
type Context interface {
	CopyResource(dst, src Resource)
	// CopySubresourceRegion copies box of src mip 0 into dst mip 0 at (x, y).
	CopySubresourceRegion(dst Texture, x, y uint32, src Texture, box geometry.Box)
	GenerateMips(srv View)

	Map(res Resource, mode MapMode) (Mapped, error)
	Unmap(res Resource)

	IASetVertexBuffer(buf Buffer, stride uint32)
	IASetPrimitiveTopology(t Topology)
	VSSetShader(s Shader)
	PSSetShader(s Shader)
	PSSetShaderResource(v View)
	PSSetSampler(s Sampler)
	PSSetConstantBuffer(b Buffer)
	OMSetRenderTarget(rtv View)
	RSSetViewport(width, height float32)
	Draw(vertexCount, startVertex uint32)

	CSSetShader(s Shader)
	// CSSetUnorderedAccessViews binds views to consecutive slots from start.
	CSSetUnorderedAccessViews(start uint32, views []View)
	Dispatch(x, y, z uint32)

	Flush()
}

// Swapchain presents a back buffer to a surface.
type Swapchain interface {
	Resource
	// BackBuffer returns buffer 0. The caller releases it.
	BackBuffer() (Texture, error)
	// Present shows the back buffer. A nil dirty list presents the full
	// surface; otherwise only the listed rectangles are updated.
	Present(dirty []geometry.Rect) error
}
