package soft

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"hdr-snip/src/geometry"
	"hdr-snip/src/gpu"
)

func halfImage(w, h uint32, f func(x, y uint32) gpu.HalfPixel) []byte {
	out := make([]byte, w*h*8)
	for y := uint32(0); y < h; y++ {
		for x := uint32(0); x < w; x++ {
			gpu.EncodeHalf(out[(y*w+x)*8:], f(x, y))
		}
	}
	return out
}

func TestTextureRowPitchIsPadded(t *testing.T) {
	dev := New(WithRowAlignment(64))
	tex, err := dev.CreateTexture2D(gpu.TextureDesc{
		Width: 5, Height: 3, MipLevels: 1,
		Format: gpu.FormatRGBA16UInt, Usage: gpu.UsageStaging, CPUAccess: gpu.CPUAccessRead,
	}, nil)
	if err != nil {
		t.Fatalf("CreateTexture2D: %v", err)
	}
	m, err := dev.Context().Map(tex, gpu.MapRead)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	defer dev.Context().Unmap(tex)
	if m.RowPitch != 64 {
		t.Errorf("RowPitch = %d, want 64", m.RowPitch)
	}
	if len(m.Data) != 64*3 {
		t.Errorf("len(Data) = %d", len(m.Data))
	}
}

func TestZeroSizedTextureRejected(t *testing.T) {
	dev := New()
	_, err := dev.CreateTexture2D(gpu.TextureDesc{Width: 0, Height: 4, Format: gpu.FormatRGBA16Float}, nil)
	if !errors.Is(err, gpu.ErrInvalidDesc) {
		t.Fatalf("err = %v, want ErrInvalidDesc", err)
	}
	if len(dev.CreatedTextures()) != 0 {
		t.Errorf("zero-sized texture was recorded as created")
	}
}

func TestMapRules(t *testing.T) {
	dev := New()
	ctx := dev.Context()
	def, _ := dev.CreateBuffer(gpu.BufferDesc{ByteWidth: 16, Bind: gpu.BindUnorderedAccess, Misc: gpu.MiscBufferStructured, StructureStride: 4, CPUAccess: gpu.CPUAccessRead}, nil)
	if _, err := ctx.Map(def, gpu.MapRead); !errors.Is(err, gpu.ErrNotMappable) {
		t.Errorf("read map of default-usage buffer: err = %v", err)
	}
	dyn, _ := dev.CreateBuffer(gpu.BufferDesc{ByteWidth: 16, Usage: gpu.UsageDynamic, Bind: gpu.BindConstantBuffer, CPUAccess: gpu.CPUAccessWrite}, []byte{1, 2, 3})
	m, err := ctx.Map(dyn, gpu.MapWriteDiscard)
	if err != nil {
		t.Fatalf("write-discard map: %v", err)
	}
	if m.Data[0] != 0 {
		t.Errorf("write-discard kept old contents")
	}
	if _, err := ctx.Map(dyn, gpu.MapWriteDiscard); err == nil {
		t.Errorf("double map succeeded")
	}
	ctx.Unmap(dyn)
	if IsMapped(dyn) {
		t.Errorf("still mapped after Unmap")
	}
	if s := dev.Stats(); s.Discards != 1 || s.Maps != 1 || s.Unmaps != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestCopySubresourceRegionAndMips(t *testing.T) {
	dev := New()
	ctx := dev.Context()
	src, err := dev.CreateTexture2D(gpu.TextureDesc{
		Width: 8, Height: 8, MipLevels: 1, Format: gpu.FormatRGBA16Float, Bind: gpu.BindShaderResource,
	}, halfImage(8, 8, func(x, y uint32) gpu.HalfPixel {
		return gpu.HalfPixel{float32(x), float32(y), 0, 1}
	}))
	if err != nil {
		t.Fatalf("src: %v", err)
	}
	dst, err := dev.CreateTexture2D(gpu.TextureDesc{
		Width: 4, Height: 2, MipLevels: gpu.FullMipChain, Format: gpu.FormatRGBA16Float,
		Bind: gpu.BindShaderResource | gpu.BindRenderTarget | gpu.BindUnorderedAccess,
		Misc: gpu.MiscGenerateMips,
	}, nil)
	if err != nil {
		t.Fatalf("dst: %v", err)
	}
	if dst.Desc().MipLevels != 3 {
		t.Fatalf("MipLevels = %d, want 3", dst.Desc().MipLevels)
	}
	ctx.CopySubresourceRegion(dst, 0, 0, src, geometry.BoxOf(geometry.Rect{Left: 2, Top: 5, Right: 6, Bottom: 7}))
	dt := dst.(*texture)
	p := gpu.DecodeHalf(dt.texel(3, 1))
	if p[0] != 5 || p[1] != 6 {
		t.Errorf("texel(3,1) = %v, want x=5 y=6", p)
	}

	srv, err := dev.CreateShaderResourceView(dst)
	if err != nil {
		t.Fatalf("srv: %v", err)
	}
	ctx.GenerateMips(srv)
	top := gpu.DecodeHalf(dt.levels[2].data)
	// mean of x in 2..5 is 3.5, mean of y in 5..6 is 5.5
	if math.Abs(float64(top[0]-3.5)) > 0.01 || math.Abs(float64(top[1]-5.5)) > 0.01 {
		t.Errorf("1x1 mip = %v", top)
	}
}

func bindExport(t *testing.T, dev *Device, w, h uint32, pixels []byte) (gpu.Buffer, gpu.Texture, gpu.Buffer) {
	t.Helper()
	in, err := dev.CreateTexture2D(gpu.TextureDesc{
		Width: w, Height: h, MipLevels: gpu.FullMipChain, Format: gpu.FormatRGBA16Float,
		Bind: gpu.BindShaderResource | gpu.BindRenderTarget | gpu.BindUnorderedAccess,
		Misc: gpu.MiscGenerateMips,
	}, pixels)
	if err != nil {
		t.Fatalf("input: %v", err)
	}
	out, err := dev.CreateTexture2D(gpu.TextureDesc{
		Width: w, Height: h, MipLevels: 1, Format: gpu.FormatRGBA16Typeless, Bind: gpu.BindUnorderedAccess,
	}, nil)
	if err != nil {
		t.Fatalf("output: %v", err)
	}
	sc, _ := dev.CreateBuffer(gpu.BufferDesc{ByteWidth: 32, Bind: gpu.BindUnorderedAccess, Misc: gpu.MiscBufferStructured, StructureStride: 4}, nil)
	scratch, _ := dev.CreateBuffer(gpu.BufferDesc{ByteWidth: 4096, Bind: gpu.BindUnorderedAccess, Misc: gpu.MiscBufferStructured, StructureStride: 4}, nil)
	var views []gpu.View
	for _, mk := range []func() (gpu.View, error){
		func() (gpu.View, error) { return dev.CreateBufferUAV(sc) },
		func() (gpu.View, error) { return dev.CreateTextureUAV(in, gpu.FormatRGBA16Float) },
		func() (gpu.View, error) { return dev.CreateTextureUAV(out, gpu.FormatRGBA16UInt) },
		func() (gpu.View, error) { return dev.CreateBufferUAV(scratch) },
	} {
		v, err := mk()
		if err != nil {
			t.Fatalf("uav: %v", err)
		}
		views = append(views, v)
	}
	dev.Context().CSSetUnorderedAccessViews(0, views)
	srv, _ := dev.CreateShaderResourceView(in)
	dev.Context().GenerateMips(srv)
	return sc, out, scratch
}

func TestPreprocessAndConvert(t *testing.T) {
	dev := New()
	ctx := dev.Context()
	const w, h = 4, 2
	sc, out, scratch := bindExport(t, dev, w, h, halfImage(w, h, func(x, y uint32) gpu.HalfPixel {
		if x == 0 && y == 0 {
			return gpu.HalfPixel{2, 2, 2, 1}
		}
		return gpu.HalfPixel{1, 0.5, 0, 1}
	}))

	pre, err := dev.CreateComputeShader(gpu.Program{Name: PreprocessShaderName})
	if err != nil {
		t.Fatalf("preprocess: %v", err)
	}
	ctx.CSSetShader(pre)
	ctx.Dispatch(1, 1, 1)
	scb := sc.(*buffer)
	if got := getFloat(scb, ScalarWhiteLevel); got != 2 {
		t.Errorf("white level = %v, want 2", got)
	}
	if got := getFloat(scb, ScalarWidth); got != w {
		t.Errorf("width scalar = %v", got)
	}
	if got := getFloat(scratch.(*buffer), 0); math.Abs(float64(got-2)) > 1e-3 {
		t.Errorf("scratch[0] = %v, want row 0 peak 2", got)
	}

	conv, err := dev.CreateComputeShader(gpu.Program{Name: ConvertShaderName})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	ctx.CSSetShader(conv)
	ctx.Dispatch(1, 1, 1)
	ot := out.(*texture)
	peak := gpu.DecodeU16(ot.texel(0, 0))
	if peak != [4]uint16{65535, 65535, 65535, 65535} {
		t.Errorf("peak texel = %v", peak)
	}
	other := gpu.DecodeU16(ot.texel(1, 0))
	want := uint16(math.Round(math.Pow(0.5, EncodeGamma) * 65535))
	if other[0] != want || other[2] != 0 || other[3] != 65535 {
		t.Errorf("texel(1,0) = %v, want r=%d b=0 a=65535", other, want)
	}
}

func TestUnknownProgram(t *testing.T) {
	dev := New()
	if _, err := dev.CreateComputeShader(gpu.Program{Name: "Blur"}); !errors.Is(err, gpu.ErrUnknownProgram) {
		t.Errorf("err = %v", err)
	}
}

func quad(t *testing.T, dev *Device) gpu.Buffer {
	t.Helper()
	verts := []float32{-1, 1, 0, 0, 1, 1, 1, 0, -1, -1, 0, 1, 1, -1, 1, 1}
	raw := make([]byte, len(verts)*4)
	for i, v := range verts {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}
	vb, err := dev.CreateBuffer(gpu.BufferDesc{ByteWidth: uint32(len(raw)), Usage: gpu.UsageImmutable, Bind: gpu.BindVertexBuffer}, raw)
	if err != nil {
		t.Fatalf("vertex buffer: %v", err)
	}
	return vb
}

func TestDrawDimsOutsideSelection(t *testing.T) {
	dev := New()
	ctx := dev.Context()
	const w, h = 16, 16
	src, _ := dev.CreateTexture2D(gpu.TextureDesc{Width: w, Height: h, MipLevels: 1, Format: gpu.FormatRGBA16Float, Bind: gpu.BindShaderResource},
		halfImage(w, h, func(x, y uint32) gpu.HalfPixel { return gpu.HalfPixel{1, 1, 1, 1} }))
	rt, _ := dev.CreateTexture2D(gpu.TextureDesc{Width: w, Height: h, MipLevels: 1, Format: gpu.FormatRGBA16Float, Bind: gpu.BindRenderTarget | gpu.BindShaderResource}, nil)
	srv, _ := dev.CreateShaderResourceView(src)
	rtv, _ := dev.CreateRenderTargetView(rt)
	vs, _ := dev.CreateVertexShader(gpu.Program{Name: VertexShaderName})
	ps, _ := dev.CreatePixelShader(gpu.Program{Name: PixelShaderName})
	cb, _ := dev.CreateBuffer(gpu.BufferDesc{ByteWidth: 16, Usage: gpu.UsageDynamic, Bind: gpu.BindConstantBuffer, CPUAccess: gpu.CPUAccessWrite},
		geometry.NormalisedRect{Left: 0.25, Top: 0.25, Right: 0.75, Bottom: 0.75}.Bytes())

	ctx.IASetVertexBuffer(quad(t, dev), 16)
	ctx.IASetPrimitiveTopology(gpu.TopologyTriangleStrip)
	ctx.VSSetShader(vs)
	ctx.PSSetShader(ps)
	ctx.PSSetShaderResource(srv)
	ctx.PSSetConstantBuffer(cb)
	ctx.OMSetRenderTarget(rtv)
	ctx.Draw(4, 0)

	rtt := rt.(*texture)
	inside := sampleLinear(rtt, 8, 8)
	outside := sampleLinear(rtt, 1, 1)
	if inside[0] < 0.99 {
		t.Errorf("inside selection = %v, want undimmed white", inside)
	}
	if outside[0] > 0.5 {
		t.Errorf("outside selection = %v, want dimmed", outside)
	}
}

func TestSwapchainRecordsPresents(t *testing.T) {
	dev := New()
	sc, err := dev.CreateSwapchain(0, 8, 8)
	if err != nil {
		t.Fatalf("CreateSwapchain: %v", err)
	}
	bb, _ := sc.BackBuffer()
	bb.Release()
	if err := sc.Present(nil); err != nil {
		t.Fatalf("Present: %v", err)
	}
	if err := sc.Present([]geometry.Rect{{Left: 1, Top: 1, Right: 3, Bottom: 3}}); err != nil {
		t.Fatalf("Present dirty: %v", err)
	}
	if err := sc.Present([]geometry.Rect{{}}); err == nil {
		t.Errorf("empty dirty rect accepted")
	}
	p := sc.(*Swapchain).Presents()
	if len(p) != 2 || !p[0].Full || p[1].Full || len(p[1].Dirty) != 1 {
		t.Errorf("presents = %+v", p)
	}
}

func TestSwapchainImageFollowsPresentScope(t *testing.T) {
	dev := New()
	sc, err := dev.CreateSwapchain(0, 4, 4)
	if err != nil {
		t.Fatalf("CreateSwapchain: %v", err)
	}
	swap := sc.(*Swapchain)
	if swap.Image() != nil {
		t.Fatal("image before the first present")
	}

	fill := func(v float32) {
		t.Helper()
		src, err := dev.CreateTexture2D(gpu.TextureDesc{Width: 4, Height: 4, MipLevels: 1, Format: gpu.FormatRGBA16Float},
			halfImage(4, 4, func(x, y uint32) gpu.HalfPixel { return gpu.HalfPixel{v, v, v, 1} }))
		if err != nil {
			t.Fatalf("source: %v", err)
		}
		bb, _ := sc.BackBuffer()
		dev.Context().CopyResource(bb, src)
		bb.Release()
		src.Release()
	}

	fill(1)
	if err := sc.Present(nil); err != nil {
		t.Fatalf("Present: %v", err)
	}
	if got := swap.Image().RGBAAt(3, 3); got.R != 255 || got.A != 255 {
		t.Fatalf("full present pixel = %v, want white", got)
	}

	fill(0)
	if err := sc.Present([]geometry.Rect{{Left: 0, Top: 0, Right: 2, Bottom: 2}}); err != nil {
		t.Fatalf("Present dirty: %v", err)
	}
	img := swap.Image()
	if got := img.RGBAAt(1, 1); got.R != 0 {
		t.Errorf("inside dirty rect = %v, want black", got)
	}
	if got := img.RGBAAt(3, 3); got.R != 255 {
		t.Errorf("outside dirty rect = %v, want the previous white", got)
	}
}
