package gpu

import (
	"encoding/binary"
	"math"

	"github.com/x448/float16"
)

// HalfPixel is one RGBA16F texel decoded to float32.
type HalfPixel [4]float32

// DecodeHalf reads an RGBA16F texel from 8 little-endian bytes.
func DecodeHalf(b []byte) HalfPixel {
	var p HalfPixel
	for i := range p {
		p[i] = float16.Frombits(binary.LittleEndian.Uint16(b[i*2:])).Float32()
	}
	return p
}

// EncodeHalf writes an RGBA16F texel into 8 bytes.
func EncodeHalf(dst []byte, p HalfPixel) {
	for i, v := range p {
		binary.LittleEndian.PutUint16(dst[i*2:], float16.Fromfloat32(v).Bits())
	}
}

// DecodeU16 reads an RGBA16 integer texel.
func DecodeU16(b []byte) [4]uint16 {
	return [4]uint16{
		binary.LittleEndian.Uint16(b[0:]),
		binary.LittleEndian.Uint16(b[2:]),
		binary.LittleEndian.Uint16(b[4:]),
		binary.LittleEndian.Uint16(b[6:]),
	}
}

// EncodeU16 writes an RGBA16 integer texel.
func EncodeU16(dst []byte, p [4]uint16) {
	for i, v := range p {
		binary.LittleEndian.PutUint16(dst[i*2:], v)
	}
}

// SRGBToLinear converts an 8-bit sRGB value to linear light.
func SRGBToLinear(b uint8) float32 {
	c := float64(b) / 255
	if c <= 0.04045 {
		return float32(c / 12.92)
	}
	return float32(math.Pow((c+0.055)/1.055, 2.4))
}

// LinearToSRGB converts linear light to an 8-bit sRGB value.
func LinearToSRGB(v float32) uint8 {
	c := float64(v)
	switch {
	case c != c || c <= 0:
		return 0
	case c >= 1:
		return 255
	case c <= 0.0031308:
		c *= 12.92
	default:
		c = 1.055*math.Pow(c, 1/2.4) - 0.055
	}
	return uint8(math.Round(c * 255))
}
