package soft

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"hdr-snip/src/geometry"
	"hdr-snip/src/gpu"
)

// Present records one call to Swapchain.Present.
type Present struct {
	Full  bool
	Dirty []geometry.Rect
}

// Swapchain is an offscreen swapchain that remembers what was presented.
// Presented pixels are resolved into an 8-bit front image so a window can
// show them without a GPU.
type Swapchain struct {
	dev  *Device
	back *texture

	mu       sync.Mutex
	presents []Present
	front    *image.RGBA
}

// BackBuffer returns the single back buffer.
func (s *Swapchain) BackBuffer() (gpu.Texture, error) {
	return &backBuffer{texture: s.back}, nil
}

// Present records the present scope.
func (s *Swapchain) Present(dirty []geometry.Rect) error {
	if err := s.dev.injected("Present"); err != nil {
		return err
	}
	s.dev.record("Present")
	for _, r := range dirty {
		if !r.HasArea() {
			return fmt.Errorf("%w: empty dirty rect %v", gpu.ErrInvalidDesc, r)
		}
	}
	s.mu.Lock()
	s.presents = append(s.presents, Present{Full: dirty == nil, Dirty: append([]geometry.Rect(nil), dirty...)})
	s.resolve(dirty)
	s.mu.Unlock()
	return nil
}

// resolve copies the presented region of the back buffer into the front
// image. The first present always covers the whole surface.
func (s *Swapchain) resolve(dirty []geometry.Rect) {
	w, h := s.back.desc.Width, s.back.desc.Height
	if s.front == nil {
		s.front = image.NewRGBA(image.Rect(0, 0, int(w), int(h)))
		dirty = nil
	}
	if dirty == nil {
		dirty = []geometry.Rect{{Right: int32(w), Bottom: int32(h)}}
	}
	for _, r := range dirty {
		r = r.Clamp(w, h)
		for y := r.Top; y < r.Bottom; y++ {
			for x := r.Left; x < r.Right; x++ {
				p := sampleLinear(s.back, uint32(x), uint32(y))
				s.front.SetRGBA(int(x), int(y), color.RGBA{
					R: gpu.LinearToSRGB(p[0]),
					G: gpu.LinearToSRGB(p[1]),
					B: gpu.LinearToSRGB(p[2]),
					A: 255,
				})
			}
		}
	}
}

// Image returns a copy of what has been presented so far, or nil before the
// first present.
func (s *Swapchain) Image() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.front == nil {
		return nil
	}
	img := image.NewRGBA(s.front.Rect)
	copy(img.Pix, s.front.Pix)
	return img
}

// Presents returns every present recorded so far.
func (s *Swapchain) Presents() []Present {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Present(nil), s.presents...)
}

// Pixel returns the back buffer texel at (x, y) as linear floats.
func (s *Swapchain) Pixel(x, y uint32) gpu.HalfPixel {
	return sampleLinear(s.back, x, y)
}

// Release frees the back buffer.
func (s *Swapchain) Release() { s.back.Release() }

// backBuffer is a borrowed reference; releasing it leaves the swapchain's
// buffer alive.
type backBuffer struct {
	*texture
}

func (b *backBuffer) Release() {}
