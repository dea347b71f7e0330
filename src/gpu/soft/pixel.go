package soft

import (
	"fmt"
	"image"
	"math"

	"github.com/gogpu/gg"

	"hdr-snip/src/geometry"
	"hdr-snip/src/gpu"
)

// Overlay look of the pixel program.
const (
	ShadeAlpha  = 0.5
	BorderAlpha = 0.9
	BorderWidth = 1.0
)

// shadeQuad samples src over the quad described by verts into rt, then dims
// everything outside sel and outlines it.
func shadeQuad(rt, src *texture, verts []vertex, sel geometry.NormalisedRect) error {
	dst := rt.levels[0]
	w, h := int(dst.w), int(dst.h)
	x0, x1, u0, u1 := spanX(verts, float32(w))
	y0, y1, v0, v1 := spanY(verts, float32(h))
	if x1 <= x0 || y1 <= y0 {
		return fmt.Errorf("degenerate quad")
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	sw, sh := src.desc.Width, src.desc.Height
	for y := 0; y < h; y++ {
		fy := float32(y) + 0.5
		if fy < y0 || fy >= y1 {
			continue
		}
		v := v0 + (fy-y0)/(y1-y0)*(v1-v0)
		sy := min(uint32(max(v, 0)*float32(sh)), sh-1)
		for x := 0; x < w; x++ {
			fx := float32(x) + 0.5
			if fx < x0 || fx >= x1 {
				continue
			}
			u := u0 + (fx-x0)/(x1-x0)*(u1-u0)
			sx := min(uint32(max(u, 0)*float32(sw)), sw-1)
			p := sampleLinear(src, sx, sy)
			i := img.PixOffset(x, y)
			img.Pix[i+0] = gpu.LinearToSRGB(p[0])
			img.Pix[i+1] = gpu.LinearToSRGB(p[1])
			img.Pix[i+2] = gpu.LinearToSRGB(p[2])
			img.Pix[i+3] = 0xff
		}
	}

	dc := gg.NewContextForImage(img)
	defer dc.Close()
	fw, fh := float64(w), float64(h)
	sl, st := float64(sel.Left)*fw, float64(sel.Top)*fh
	sr, sb := float64(sel.Right)*fw, float64(sel.Bottom)*fh
	dc.SetFillRule(gg.FillRuleEvenOdd)
	dc.SetRGBA(0, 0, 0, ShadeAlpha)
	dc.DrawRectangle(0, 0, fw, fh)
	if !sel.IsZero() {
		dc.DrawRectangle(sl, st, sr-sl, sb-st)
	}
	if err := dc.Fill(); err != nil {
		return fmt.Errorf("shade: %w", err)
	}
	if !sel.IsZero() {
		dc.SetRGBA(1, 1, 1, BorderAlpha)
		dc.SetLineWidth(BorderWidth)
		dc.DrawRectangle(sl+0.5, st+0.5, sr-sl-1, sb-st-1)
		if err := dc.Stroke(); err != nil {
			return fmt.Errorf("outline: %w", err)
		}
	}

	out := dc.Image()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, a := out.At(x, y).RGBA()
			writeTexel(rt, uint32(x), uint32(y), r>>8, g>>8, b>>8, a>>8)
		}
	}
	return nil
}

func sampleLinear(t *texture, x, y uint32) gpu.HalfPixel {
	b := t.texel(x, y)
	switch t.desc.Format {
	case gpu.FormatRGBA16Float:
		return gpu.DecodeHalf(b)
	case gpu.FormatBGRA8UNorm:
		return gpu.HalfPixel{gpu.SRGBToLinear(b[2]), gpu.SRGBToLinear(b[1]), gpu.SRGBToLinear(b[0]), float32(b[3]) / 255}
	}
	return gpu.HalfPixel{}
}

func writeTexel(t *texture, x, y uint32, r, g, b, a uint32) {
	dst := t.texel(x, y)
	switch t.desc.Format {
	case gpu.FormatRGBA16Float:
		gpu.EncodeHalf(dst, gpu.HalfPixel{gpu.SRGBToLinear(uint8(r)), gpu.SRGBToLinear(uint8(g)), gpu.SRGBToLinear(uint8(b)), float32(a) / 255})
	case gpu.FormatBGRA8UNorm:
		dst[0], dst[1], dst[2], dst[3] = uint8(b), uint8(g), uint8(r), uint8(a)
	}
}

// spanX returns the horizontal pixel extent of the quad and the texture
// coordinates at its two ends.
func spanX(verts []vertex, w float32) (x0, x1, u0, u1 float32) {
	x0, x1 = float32(math.Inf(1)), float32(math.Inf(-1))
	for _, v := range verts {
		px := (v.x + 1) / 2 * w
		if px < x0 {
			x0, u0 = px, v.u
		}
		if px > x1 {
			x1, u1 = px, v.u
		}
	}
	return
}

func spanY(verts []vertex, h float32) (y0, y1, v0, v1 float32) {
	y0, y1 = float32(math.Inf(1)), float32(math.Inf(-1))
	for _, v := range verts {
		py := (1 - v.y) / 2 * h
		if py < y0 {
			y0, v0 = py, v.v
		}
		if py > y1 {
			y1, v1 = py, v.v
		}
	}
	return
}
