//go:build windows

package d3d11

import (
	"unsafe"

	"hdr-snip/src/gpu"
)

type comObject interface {
	comPtr() uintptr
}

func ptrOf(r gpu.Resource) uintptr {
	if o, ok := r.(comObject); ok {
		return o.comPtr()
	}
	return 0
}

type texture struct {
	ptr  uintptr // ID3D11Texture2D
	desc gpu.TextureDesc
}

func (t *texture) comPtr() uintptr        { return t.ptr }
func (t *texture) Desc() gpu.TextureDesc { return t.desc }
func (t *texture) Release() {
	comRelease(t.ptr)
	t.ptr = 0
}

// wrapTexture adopts a texture reference handed out by DXGI.
func wrapTexture(ptr uintptr) *texture {
	var raw d3d11Texture2DDesc
	comVoid(ptr, d3d11Texture2DGetDesc, uintptr(unsafe.Pointer(&raw)))
	return &texture{ptr: ptr, desc: gpu.TextureDesc{
		Width:     raw.Width,
		Height:    raw.Height,
		MipLevels: raw.MipLevels,
		Format:    gpu.Format(raw.Format),
		Usage:     gpu.Usage(raw.Usage),
		Bind:      gpu.BindFlags(raw.BindFlags),
		CPUAccess: gpu.CPUAccess(raw.CPUAccessFlags),
		Misc:      gpu.MiscFlags(raw.MiscFlags),
	}}
}

type buffer struct {
	ptr  uintptr // ID3D11Buffer
	desc gpu.BufferDesc
}

func (b *buffer) comPtr() uintptr       { return b.ptr }
func (b *buffer) Desc() gpu.BufferDesc { return b.desc }
func (b *buffer) Release() {
	comRelease(b.ptr)
	b.ptr = 0
}

type view struct{ ptr uintptr }

func (v *view) comPtr() uintptr { return v.ptr }
func (v *view) Release() {
	comRelease(v.ptr)
	v.ptr = 0
}

// shader is a vertex, pixel or compute shader; vertex shaders also own
// their input layout.
type shader struct {
	ptr    uintptr
	layout uintptr
}

func (s *shader) comPtr() uintptr { return s.ptr }
func (s *shader) Release() {
	comRelease(s.layout)
	comRelease(s.ptr)
	s.ptr, s.layout = 0, 0
}

type sampler struct{ ptr uintptr }

func (s *sampler) comPtr() uintptr { return s.ptr }
func (s *sampler) Release() {
	comRelease(s.ptr)
	s.ptr = 0
}
