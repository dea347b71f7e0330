// Package encode writes 16-bit-per-channel RGBA PNG images with an embedded
// gamma and chromaticity description.
package encode

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"
)

// BytesPerPixel of the packed input: four little-endian uint16 channels.
const BytesPerPixel = 8

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// ErrPixelSize is returned when the pixel buffer does not match the size.
var ErrPixelSize = errors.New("encode: pixel buffer does not match image size")

// Chromaticities are CIE xy coordinates of the white point and primaries.
type Chromaticities struct {
	WhiteX, WhiteY float64
	RedX, RedY     float64
	GreenX, GreenY float64
	BlueX, BlueY   float64
}

// BT709 are the sRGB / scRGB primaries with a D65 white point.
var BT709 = Chromaticities{
	WhiteX: 0.3127, WhiteY: 0.3290,
	RedX: 0.64, RedY: 0.33,
	GreenX: 0.30, GreenY: 0.60,
	BlueX: 0.15, BlueY: 0.06,
}

// Gamma22 is 1/2.2 in PNG gAMA units (value * 100000).
const Gamma22 uint32 = 45454

// Options control the colour description and compression.
type Options struct {
	Gamma  uint32
	Chroma Chromaticities
	Level  int
}

// DefaultOptions describe the output of the convert pass.
func DefaultOptions() Options {
	return Options{Gamma: Gamma22, Chroma: BT709, Level: zlib.DefaultCompression}
}

// RGBA16 encodes a tightly packed buffer of width*height pixels, each four
// little-endian uint16 values, as a colour type 6, bit depth 16 PNG.
func RGBA16(w io.Writer, pix []byte, width, height uint32, opts Options) error {
	if width == 0 || height == 0 {
		return fmt.Errorf("%w: %dx%d", ErrPixelSize, width, height)
	}
	stride := uint64(width) * BytesPerPixel
	if uint64(len(pix)) != stride*uint64(height) {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrPixelSize, len(pix), stride*uint64(height))
	}
	if opts.Level == 0 {
		opts.Level = zlib.DefaultCompression
	}

	bw := bufio.NewWriter(w)
	if _, err := bw.Write(pngSignature); err != nil {
		return err
	}

	var ihdr [13]byte
	binary.BigEndian.PutUint32(ihdr[0:], width)
	binary.BigEndian.PutUint32(ihdr[4:], height)
	ihdr[8] = 16 // bit depth
	ihdr[9] = 6  // truecolour with alpha
	if err := writeChunk(bw, "IHDR", ihdr[:]); err != nil {
		return err
	}
	if opts.Gamma != 0 {
		var g [4]byte
		binary.BigEndian.PutUint32(g[:], opts.Gamma)
		if err := writeChunk(bw, "gAMA", g[:]); err != nil {
			return err
		}
	}
	if opts.Chroma != (Chromaticities{}) {
		if err := writeChunk(bw, "cHRM", chrm(opts.Chroma)); err != nil {
			return err
		}
	}

	idat, err := compress(pix, int(stride), int(height), opts.Level)
	if err != nil {
		return fmt.Errorf("compress: %w", err)
	}
	if err := writeChunk(bw, "IDAT", idat); err != nil {
		return err
	}
	if err := writeChunk(bw, "IEND", nil); err != nil {
		return err
	}
	return bw.Flush()
}

// Bytes is RGBA16 into memory.
func Bytes(pix []byte, width, height uint32, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := RGBA16(&buf, pix, width, height, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func chrm(c Chromaticities) []byte {
	out := make([]byte, 32)
	for i, v := range []float64{c.WhiteX, c.WhiteY, c.RedX, c.RedY, c.GreenX, c.GreenY, c.BlueX, c.BlueY} {
		binary.BigEndian.PutUint32(out[i*4:], uint32(math.Round(v*100000)))
	}
	return out
}

// compress byte-swaps every row to network order and deflates it behind a
// filter-type-0 byte.
func compress(pix []byte, stride, height, level int) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	row := make([]byte, 1+stride)
	for y := 0; y < height; y++ {
		src := pix[y*stride : (y+1)*stride]
		for i := 0; i < stride; i += 2 {
			row[1+i] = src[i+1]
			row[2+i] = src[i]
		}
		if _, err := zw.Write(row); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeChunk(w io.Writer, kind string, data []byte) error {
	var hdr [8]byte
	binary.BigEndian.PutUint32(hdr[0:], uint32(len(data)))
	copy(hdr[4:], kind)
	crc := crc32.NewIEEE()
	crc.Write(hdr[4:8])
	crc.Write(data)
	var tail [4]byte
	binary.BigEndian.PutUint32(tail[:], crc.Sum32())
	for _, b := range [][]byte{hdr[:], data, tail[:]} {
		if _, err := w.Write(b); err != nil {
			return fmt.Errorf("write %s chunk: %w", kind, err)
		}
	}
	return nil
}
