package soft

import (
	"encoding/binary"
	"fmt"
	"log"
	"math"

	"hdr-snip/src/geometry"
	"hdr-snip/src/gpu"
)

// Context is the immediate context of a software Device. Commands run
// synchronously, so Flush only marks a point in the trace.
type Context struct {
	dev *Device

	vb       *buffer
	stride   uint32
	topology gpu.Topology
	vs, ps   *shader
	srv      *view
	cb       *buffer
	rtv      *view
	viewport [2]float32

	cs   *shader
	uavs [8]*view
}

var _ gpu.Context = (*Context)(nil)

// CopyResource copies every level of a texture, or the bytes of a buffer.
func (c *Context) CopyResource(dst, src gpu.Resource) {
	c.dev.record("CopyResource")
	dst, src = unwrap(dst), unwrap(src)
	switch d := dst.(type) {
	case *texture:
		s, ok := src.(*texture)
		if !ok || s.desc.Width != d.desc.Width || s.desc.Height != d.desc.Height || s.bpp() != d.bpp() {
			log.Printf("SOFTGPU: CopyResource between mismatched textures ignored")
			return
		}
		for i := range d.levels {
			if i >= len(s.levels) {
				break
			}
			for y := uint32(0); y < d.levels[i].h; y++ {
				copy(d.levels[i].row(y, d.bpp()), s.levels[i].row(y, s.bpp()))
			}
		}
	case *buffer:
		s, ok := src.(*buffer)
		if !ok {
			log.Printf("SOFTGPU: CopyResource buffer from non-buffer ignored")
			return
		}
		copy(d.data, s.data)
	}
}

// CopySubresourceRegion copies box of src mip 0 to (x, y) of dst mip 0,
// clipped to both textures.
func (c *Context) CopySubresourceRegion(dst gpu.Texture, x, y uint32, src gpu.Texture, box geometry.Box) {
	c.dev.record("CopySubresourceRegion")
	d, ok1 := asTexture(dst)
	s, ok2 := asTexture(src)
	if !ok1 || !ok2 || d.bpp() != s.bpp() {
		log.Printf("SOFTGPU: CopySubresourceRegion with incompatible textures ignored")
		return
	}
	bpp := d.bpp()
	sl, dl := s.levels[0], d.levels[0]
	right := min(box.Right, sl.w)
	bottom := min(box.Bottom, sl.h)
	if box.Left >= right || box.Top >= bottom {
		return
	}
	w := min(right-box.Left, dl.w-min(x, dl.w))
	for row := box.Top; row < bottom; row++ {
		dy := y + row - box.Top
		if dy >= dl.h {
			break
		}
		so := row*sl.pitch + box.Left*bpp
		do := dy*dl.pitch + x*bpp
		copy(dl.data[do:do+w*bpp], sl.data[so:so+w*bpp])
	}
}

// GenerateMips box-filters level n into level n+1 for float textures.
func (c *Context) GenerateMips(srv gpu.View) {
	c.dev.record("GenerateMips")
	v, ok := srv.(*view)
	if !ok || v.kind != viewSRV {
		log.Printf("SOFTGPU: GenerateMips needs a shader resource view")
		return
	}
	t := v.tex
	if t.desc.Misc&gpu.MiscGenerateMips == 0 {
		log.Printf("SOFTGPU: GenerateMips on texture without the generate-mips flag")
		return
	}
	for i := 1; i < len(t.levels); i++ {
		src, dst := t.levels[i-1], t.levels[i]
		for y := uint32(0); y < dst.h; y++ {
			for x := uint32(0); x < dst.w; x++ {
				var acc gpu.HalfPixel
				n := float32(0)
				for dy := uint32(0); dy < 2; dy++ {
					for dx := uint32(0); dx < 2; dx++ {
						sx, sy := min(x*2+dx, src.w-1), min(y*2+dy, src.h-1)
						p := gpu.DecodeHalf(src.data[sy*src.pitch+sx*8:])
						for ch := range acc {
							acc[ch] += p[ch]
						}
						n++
					}
				}
				for ch := range acc {
					acc[ch] /= n
				}
				gpu.EncodeHalf(dst.data[y*dst.pitch+x*8:], acc)
			}
		}
	}
}

// Map exposes level 0 of a texture or the bytes of a buffer. Read maps need
// a staging resource with CPU read access; write-discard maps need a dynamic
// resource with CPU write access and hand out fresh storage.
func (c *Context) Map(res gpu.Resource, mode gpu.MapMode) (gpu.Mapped, error) {
	if err := c.dev.injected("Map"); err != nil {
		return gpu.Mapped{}, err
	}
	c.dev.record("Map")
	switch r := unwrap(res).(type) {
	case *texture:
		if err := mappable(r.desc.Usage, r.desc.CPUAccess, mode); err != nil {
			return gpu.Mapped{}, err
		}
		if r.mapped {
			return gpu.Mapped{}, fmt.Errorf("%w: texture already mapped", gpu.ErrNotMappable)
		}
		l := &r.levels[0]
		if mode == gpu.MapWriteDiscard {
			l.data = make([]byte, len(l.data))
			c.dev.count(func(s *Stats) { s.Discards++ })
		}
		r.mapped = true
		c.dev.count(func(s *Stats) { s.Maps++ })
		return gpu.Mapped{Data: l.data, RowPitch: l.pitch, DepthPitch: l.pitch * l.h}, nil
	case *buffer:
		if err := mappable(r.desc.Usage, r.desc.CPUAccess, mode); err != nil {
			return gpu.Mapped{}, err
		}
		if r.mapped {
			return gpu.Mapped{}, fmt.Errorf("%w: buffer already mapped", gpu.ErrNotMappable)
		}
		if mode == gpu.MapWriteDiscard {
			r.data = make([]byte, len(r.data))
			c.dev.count(func(s *Stats) { s.Discards++ })
		}
		r.mapped = true
		c.dev.count(func(s *Stats) { s.Maps++ })
		return gpu.Mapped{Data: r.data, RowPitch: r.desc.ByteWidth, DepthPitch: r.desc.ByteWidth}, nil
	}
	return gpu.Mapped{}, fmt.Errorf("%w: unsupported resource %T", gpu.ErrNotMappable, res)
}

func mappable(u gpu.Usage, access gpu.CPUAccess, mode gpu.MapMode) error {
	switch mode {
	case gpu.MapRead:
		if u != gpu.UsageStaging || access&gpu.CPUAccessRead == 0 {
			return fmt.Errorf("%w: read map needs a staging resource with CPU read access", gpu.ErrNotMappable)
		}
	case gpu.MapWriteDiscard:
		if u != gpu.UsageDynamic || access&gpu.CPUAccessWrite == 0 {
			return fmt.Errorf("%w: write-discard map needs a dynamic resource with CPU write access", gpu.ErrNotMappable)
		}
	case gpu.MapWrite:
		if access&gpu.CPUAccessWrite == 0 {
			return fmt.Errorf("%w: write map needs CPU write access", gpu.ErrNotMappable)
		}
	default:
		return fmt.Errorf("%w: map mode %d", gpu.ErrNotMappable, mode)
	}
	return nil
}

// Unmap ends a mapping. Unmapping an unmapped resource is ignored.
func (c *Context) Unmap(res gpu.Resource) {
	c.dev.record("Unmap")
	switch r := unwrap(res).(type) {
	case *texture:
		if !r.mapped {
			return
		}
		r.mapped = false
	case *buffer:
		if !r.mapped {
			return
		}
		r.mapped = false
	default:
		return
	}
	c.dev.count(func(s *Stats) { s.Unmaps++ })
}

// IsMapped reports whether res is currently mapped.
func IsMapped(res gpu.Resource) bool {
	switch r := unwrap(res).(type) {
	case *texture:
		return r.mapped
	case *buffer:
		return r.mapped
	}
	return false
}

func (c *Context) IASetVertexBuffer(buf gpu.Buffer, stride uint32) {
	c.vb, _ = buf.(*buffer)
	c.stride = stride
}

func (c *Context) IASetPrimitiveTopology(t gpu.Topology) { c.topology = t }

func (c *Context) VSSetShader(s gpu.Shader) { c.vs, _ = s.(*shader) }

func (c *Context) PSSetShader(s gpu.Shader) { c.ps, _ = s.(*shader) }

func (c *Context) PSSetShaderResource(v gpu.View) { c.srv, _ = v.(*view) }

func (c *Context) PSSetSampler(gpu.Sampler) {}

func (c *Context) PSSetConstantBuffer(b gpu.Buffer) { c.cb, _ = b.(*buffer) }

func (c *Context) OMSetRenderTarget(rtv gpu.View) { c.rtv, _ = rtv.(*view) }

func (c *Context) RSSetViewport(width, height float32) { c.viewport = [2]float32{width, height} }

// Draw rasterises a 4-vertex triangle strip quad through the pixel program.
func (c *Context) Draw(vertexCount, startVertex uint32) {
	c.dev.record("Draw")
	c.dev.count(func(s *Stats) { s.Draws++ })
	if err := c.draw(vertexCount, startVertex); err != nil {
		log.Printf("SOFTGPU: draw failed: %v", err)
	}
}

type vertex struct {
	x, y, u, v float32
}

func (c *Context) vertices(count, start uint32) ([]vertex, error) {
	if c.vb == nil || c.stride < 16 {
		return nil, fmt.Errorf("no vertex buffer bound")
	}
	out := make([]vertex, 0, count)
	for i := start; i < start+count; i++ {
		off := i * c.stride
		if off+16 > uint32(len(c.vb.data)) {
			return nil, fmt.Errorf("vertex %d outside buffer", i)
		}
		f := func(o uint32) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(c.vb.data[off+o:])) }
		out = append(out, vertex{f(0), f(4), f(8), f(12)})
	}
	return out, nil
}

func (c *Context) draw(count, start uint32) error {
	if c.topology != gpu.TopologyTriangleStrip || count != 4 {
		return fmt.Errorf("only a 4-vertex triangle strip quad is supported")
	}
	if c.vs == nil || c.ps == nil || c.rtv == nil || c.srv == nil {
		return fmt.Errorf("incomplete pipeline state")
	}
	verts, err := c.vertices(count, start)
	if err != nil {
		return err
	}
	var sel geometry.NormalisedRect
	if c.cb != nil && len(c.cb.data) >= geometry.NormalisedRectSize {
		sel = geometry.NormalisedRectFrom(c.cb.data)
	}
	return shadeQuad(c.rtv.tex, c.srv.tex, verts, sel)
}

func (c *Context) CSSetShader(s gpu.Shader) { c.cs, _ = s.(*shader) }

func (c *Context) CSSetUnorderedAccessViews(start uint32, views []gpu.View) {
	for i, v := range views {
		slot := int(start) + i
		if slot >= len(c.uavs) {
			break
		}
		c.uavs[slot], _ = v.(*view)
	}
}

// Dispatch runs the bound compute kernel once; the software kernels cover the
// whole resource regardless of group count.
func (c *Context) Dispatch(x, y, z uint32) {
	name := "<none>"
	if c.cs != nil {
		name = c.cs.name
	}
	c.dev.record("Dispatch:%s", name)
	c.dev.count(func(s *Stats) { s.Dispatches++ })
	if c.cs == nil || c.cs.kernel == nil {
		log.Printf("SOFTGPU: dispatch without compute program")
		return
	}
	if x == 0 || y == 0 || z == 0 {
		return
	}
	if err := c.cs.kernel(c.uavs[:]); err != nil {
		log.Printf("SOFTGPU: %s failed: %v", name, err)
	}
}

// Flush marks a submission point.
func (c *Context) Flush() { c.dev.record("Flush") }
