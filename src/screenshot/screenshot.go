// Package screenshot is a GDI frame source for machines without desktop
// duplication. Frames are 8-bit sRGB, converted to linear half floats so the
// rest of the pipeline sees the same format as a duplicated HDR desktop.
package screenshot

import (
	"fmt"
	"image"
	"log"
	"time"

	"github.com/kbinani/screenshot"

	"hdr-snip/src/capture"
	"hdr-snip/src/geometry"
	"hdr-snip/src/gpu"
)

// Output captures one display through kbinani/screenshot.
type Output struct {
	dev     gpu.Device
	display int

	// swapped in tests
	bounds func(int) image.Rectangle
	count  func() int
	grab   func(image.Rectangle) (*image.RGBA, error)
}

// NewOutput returns the GDI source for display, which must be active.
func NewOutput(dev gpu.Device, display int) (*Output, error) {
	o := &Output{
		dev:     dev,
		display: display,
		bounds:  screenshot.GetDisplayBounds,
		count:   screenshot.NumActiveDisplays,
		grab:    screenshot.CaptureRect,
	}
	if n := o.count(); display < 0 || display >= n {
		return nil, fmt.Errorf("display %d not active (%d displays)", display, n)
	}
	return o, nil
}

// Desc describes the display.
func (o *Output) Desc() (capture.OutputDesc, error) {
	if o.display >= o.count() {
		return capture.OutputDesc{}, fmt.Errorf("display %d is gone", o.display)
	}
	return capture.OutputDesc{
		Name:   fmt.Sprintf("GDI display %d", o.display),
		Bounds: toRect(o.bounds(o.display)),
	}, nil
}

// Duplicate starts a session pinned to the current display bounds.
func (o *Output) Duplicate() (capture.Duplication, error) {
	if o.display >= o.count() {
		return nil, fmt.Errorf("display %d is gone", o.display)
	}
	b := o.bounds(o.display)
	if b.Empty() {
		return nil, fmt.Errorf("display %d has empty bounds", o.display)
	}
	log.Printf("SCREENSHOT: GDI session on display %d at %v", o.display, b)
	return &session{out: o, bounds: b}, nil
}

type session struct {
	out    *Output
	bounds image.Rectangle
	frame  gpu.Texture
}

// AcquireNextFrame grabs the display. GDI has no change notification, so
// every call yields a frame; a change of display bounds ends the session
// the same way a mode change ends a duplication.
func (s *session) AcquireNextFrame(time.Duration) (gpu.Texture, capture.FrameInfo, error) {
	if s.frame != nil {
		return nil, capture.FrameInfo{}, fmt.Errorf("previous frame not released")
	}
	if s.out.display >= s.out.count() || s.out.bounds(s.out.display) != s.bounds {
		return nil, capture.FrameInfo{}, capture.ErrAccessLost
	}
	img, err := s.out.grab(s.bounds)
	if err != nil {
		return nil, capture.FrameInfo{}, fmt.Errorf("capture display: %w", err)
	}
	tex, err := Upload(s.out.dev, img)
	if err != nil {
		return nil, capture.FrameInfo{}, err
	}
	s.frame = tex
	return tex, capture.FrameInfo{LastPresentTime: time.Now().UnixNano(), AccumulatedFrames: 1}, nil
}

func (s *session) ReleaseFrame() error {
	if s.frame == nil {
		return fmt.Errorf("no frame held")
	}
	s.frame.Release()
	s.frame = nil
	return nil
}

func (s *session) Release() {
	if s.frame != nil {
		s.frame.Release()
		s.frame = nil
	}
}

// Upload converts img to a linear RGBA16F shader resource texture.
func Upload(dev gpu.Device, img *image.RGBA) (gpu.Texture, error) {
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("empty image")
	}
	tex, err := dev.CreateTexture2D(gpu.TextureDesc{
		Width:     uint32(b.Dx()),
		Height:    uint32(b.Dy()),
		MipLevels: 1,
		Format:    gpu.FormatRGBA16Float,
		Bind:      gpu.BindShaderResource,
	}, Linearise(img))
	if err != nil {
		return nil, fmt.Errorf("upload frame: %w", err)
	}
	return tex, nil
}

// Linearise returns tightly packed RGBA16F texels for img.
func Linearise(img *image.RGBA) []byte {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]byte, w*h*8)
	for y := 0; y < h; y++ {
		src := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			p := src[x*4 : x*4+4]
			gpu.EncodeHalf(out[(y*w+x)*8:], gpu.HalfPixel{
				lut[p[0]], lut[p[1]], lut[p[2]], float32(p[3]) / 255,
			})
		}
	}
	return out
}

var lut = func() (t [256]float32) {
	for i := range t {
		t[i] = gpu.SRGBToLinear(uint8(i))
	}
	return
}()

func toRect(r image.Rectangle) geometry.Rect {
	return geometry.Rect{
		Left:   int32(r.Min.X),
		Top:    int32(r.Min.Y),
		Right:  int32(r.Max.X),
		Bottom: int32(r.Max.Y),
	}
}
