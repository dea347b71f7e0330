package geometry

import (
	"encoding/binary"
	"math"
)

// NormalisedRect is a rectangle expressed as fractions of the desktop size.
// It is the layout of the per-frame overlay parameter: four float32 values,
// 16 bytes, left/top/right/bottom. The zero value means no selection.
type NormalisedRect struct {
	Left, Top, Right, Bottom float32
}

// NormalisedRectSize is the byte size of the constant buffer payload.
const NormalisedRectSize = 16

// Normalise scales r into [0,1] relative to a width x height desktop.
func Normalise(r Rect, width, height uint32) NormalisedRect {
	if width == 0 || height == 0 {
		return NormalisedRect{}
	}
	w, h := float32(width), float32(height)
	return NormalisedRect{
		Left:   float32(r.Left) / w,
		Top:    float32(r.Top) / h,
		Right:  float32(r.Right) / w,
		Bottom: float32(r.Bottom) / h,
	}
}

// Denormalise scales back into pixel space, rounding to the nearest pixel.
func (n NormalisedRect) Denormalise(width, height uint32) Rect {
	w, h := float64(width), float64(height)
	return Rect{
		Left:   int32(math.Round(float64(n.Left) * w)),
		Top:    int32(math.Round(float64(n.Top) * h)),
		Right:  int32(math.Round(float64(n.Right) * w)),
		Bottom: int32(math.Round(float64(n.Bottom) * h)),
	}
}

// IsZero reports whether n is the no-selection rectangle.
func (n NormalisedRect) IsZero() bool {
	return n == NormalisedRect{}
}

// Contains reports whether the normalised point (u, v) lies inside n.
func (n NormalisedRect) Contains(u, v float32) bool {
	return u >= n.Left && u < n.Right && v >= n.Top && v < n.Bottom
}

// Bytes encodes n in little-endian constant buffer layout.
func (n NormalisedRect) Bytes() []byte {
	out := make([]byte, NormalisedRectSize)
	n.Put(out)
	return out
}

// Put writes n into dst, which must hold NormalisedRectSize bytes.
func (n NormalisedRect) Put(dst []byte) {
	putF32(dst[0:], n.Left)
	putF32(dst[4:], n.Top)
	putF32(dst[8:], n.Right)
	putF32(dst[12:], n.Bottom)
}

// NormalisedRectFrom decodes a constant buffer payload.
func NormalisedRectFrom(src []byte) NormalisedRect {
	return NormalisedRect{
		Left:   getF32(src[0:]),
		Top:    getF32(src[4:]),
		Right:  getF32(src[8:]),
		Bottom: getF32(src[12:]),
	}
}

func putF32(b []byte, v float32) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
}

func getF32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}
