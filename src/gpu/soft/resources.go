package soft

import "hdr-snip/src/gpu"

type level struct {
	w, h, pitch uint32
	data        []byte
}

// row returns the live bytes of row y.
func (l level) row(y, bpp uint32) []byte {
	off := y * l.pitch
	return l.data[off : off+l.w*bpp]
}

type texture struct {
	dev      *Device
	desc     gpu.TextureDesc
	levels   []level
	mapped   bool
	released bool
}

func (t *texture) Desc() gpu.TextureDesc { return t.desc }

func (t *texture) Release() {
	if t.released {
		return
	}
	t.released = true
	t.dev.count(func(s *Stats) { s.Live-- })
}

func (t *texture) bpp() uint32 { return t.desc.Format.BytesPerPixel() }

// texel returns the 8 or 4 bytes of (x, y) at mip 0.
func (t *texture) texel(x, y uint32) []byte {
	b := t.bpp()
	l := t.levels[0]
	off := y*l.pitch + x*b
	return l.data[off : off+b]
}

type buffer struct {
	dev      *Device
	desc     gpu.BufferDesc
	data     []byte
	mapped   bool
	released bool
}

func (b *buffer) Desc() gpu.BufferDesc { return b.desc }

func (b *buffer) Release() {
	if b.released {
		return
	}
	b.released = true
	b.dev.count(func(s *Stats) { s.Live-- })
}

type viewKind int

const (
	viewSRV viewKind = iota
	viewRTV
	viewUAV
)

type view struct {
	dev      *Device
	kind     viewKind
	tex      *texture
	buf      *buffer
	format   gpu.Format
	released bool
}

func (v *view) Release() {
	if v.released {
		return
	}
	v.released = true
	v.dev.count(func(s *Stats) { s.Live-- })
}

type stage int

const (
	stageVertex stage = iota
	stagePixel
	stageCompute
)

type shader struct {
	stage  stage
	name   string
	kernel kernel
}

func (s *shader) Release() {}

type sampler struct{}

func (s *sampler) Release() {}

// asTexture unwraps borrowed swapchain buffers.
func asTexture(r gpu.Resource) (*texture, bool) {
	switch t := r.(type) {
	case *texture:
		return t, true
	case *backBuffer:
		return t.texture, true
	}
	return nil, false
}

func unwrap(r gpu.Resource) gpu.Resource {
	if t, ok := asTexture(r); ok {
		return t
	}
	return r
}
