package gui

import (
	"image"
	"image/color"
	"testing"

	"hdr-snip/src/geometry"
)

func TestPointDecodesSignedCoordinates(t *testing.T) {
	tests := []struct {
		name   string
		lParam uintptr
		want   geometry.Point
	}{
		{"origin", 0, geometry.Point{}},
		{"positive", 0x0064_00C8, geometry.Point{X: 200, Y: 100}},
		{"negative x", 0x0010_FFFF, geometry.Point{X: -1, Y: 16}},
		{"negative y", 0xFFF6_0005, geometry.Point{X: 5, Y: -10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := point(tt.lParam); got != tt.want {
				t.Errorf("point(%#x) = %v, want %v", tt.lParam, got, tt.want)
			}
		})
	}
}

func TestToBGRASwapsChannels(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.SetRGBA(1, 1, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	dst := make([]byte, 2*2*4)
	toBGRA(dst, img)
	got := dst[(1*2+1)*4 : (1*2+1)*4+4]
	if got[0] != 30 || got[1] != 20 || got[2] != 10 || got[3] != 255 {
		t.Errorf("pixel = %v, want [30 20 10 255]", got)
	}
}

func TestToBGRAHonoursSubImageStride(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.SetRGBA(2, 2, color.RGBA{R: 1, G: 2, B: 3, A: 4})
	sub := img.SubImage(image.Rect(2, 2, 4, 4)).(*image.RGBA)
	dst := make([]byte, 2*2*4)
	toBGRA(dst, sub)
	if dst[0] != 3 || dst[2] != 1 || dst[3] != 4 {
		t.Errorf("first pixel = %v", dst[:4])
	}
}
