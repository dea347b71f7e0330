// Package gui hosts the overlay window: a borderless topmost popup covering
// the duplicated output, shown on hotkey and hidden after each gesture. The
// window's message pump feeds the event loop.
package gui

import (
	"context"
	"errors"
	"image"

	"hdr-snip/src/eventloop"
	"hdr-snip/src/geometry"
)

// ErrUnsupported is returned on platforms without an overlay window.
var ErrUnsupported = errors.New("gui: overlay window requires Windows")

// Dispatcher receives translated window messages.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg eventloop.Message) error
}

// point decodes the signed client coordinates packed into a mouse message
// lParam. Coordinates go negative while the pointer is captured outside the
// window.
func point(lParam uintptr) geometry.Point {
	return geometry.Point{
		X: int32(int16(uint16(lParam))),
		Y: int32(int16(uint16(lParam >> 16))),
	}
}

// toBGRA writes img into dst as 32-bit BGRA rows, the layout of a top-down
// GDI DIB section.
func toBGRA(dst []byte, img *image.RGBA) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	for y := 0; y < h; y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+w*4]
		row := dst[y*w*4 : (y+1)*w*4]
		for x := 0; x < w*4; x += 4 {
			row[x] = src[x+2]
			row[x+1] = src[x+1]
			row[x+2] = src[x]
			row[x+3] = src[x+3]
		}
	}
}
