package soft

import (
	"encoding/binary"
	"fmt"
	"math"

	"hdr-snip/src/gpu"
)

// Unordered access slots shared by both compute kernels.
const (
	SlotScalars = 0
	SlotInput   = 1
	SlotOutput  = 2
	SlotScratch = 3
)

// Scalar result layout written by the preprocess kernel.
const (
	ScalarMaxLuminance = iota
	ScalarMeanLuminance
	ScalarMaxChannel
	ScalarWhiteLevel
	ScalarWidth
	ScalarHeight
	ScalarMipLevels
	ScalarCount = 8
)

// EncodeGamma is the transfer exponent applied by the convert kernel. It
// matches the 1/2.2 gamma recorded in exported images.
const EncodeGamma = 1 / 2.2

func luminance(p gpu.HalfPixel) float32 {
	return 0.2126*p[0] + 0.7152*p[1] + 0.0722*p[2]
}

func bindings(uavs []*view) (scalars *buffer, in, out *view, scratch *buffer, err error) {
	if len(uavs) <= SlotScratch {
		return nil, nil, nil, nil, fmt.Errorf("need %d unordered access slots", SlotScratch+1)
	}
	if uavs[SlotScalars] == nil || uavs[SlotScalars].buf == nil {
		return nil, nil, nil, nil, fmt.Errorf("slot %d: scalar buffer not bound", SlotScalars)
	}
	if uavs[SlotInput] == nil || uavs[SlotInput].tex == nil || uavs[SlotInput].format != gpu.FormatRGBA16Float {
		return nil, nil, nil, nil, fmt.Errorf("slot %d: half-float input texture not bound", SlotInput)
	}
	if uavs[SlotOutput] == nil || uavs[SlotOutput].tex == nil || uavs[SlotOutput].format != gpu.FormatRGBA16UInt {
		return nil, nil, nil, nil, fmt.Errorf("slot %d: integer output texture not bound", SlotOutput)
	}
	if uavs[SlotScratch] == nil || uavs[SlotScratch].buf == nil {
		return nil, nil, nil, nil, fmt.Errorf("slot %d: scratch buffer not bound", SlotScratch)
	}
	return uavs[SlotScalars].buf, uavs[SlotInput], uavs[SlotOutput], uavs[SlotScratch].buf, nil
}

func putFloat(b *buffer, i int, v float32) {
	if (i+1)*4 <= len(b.data) {
		binary.LittleEndian.PutUint32(b.data[i*4:], math.Float32bits(v))
	}
}

func getFloat(b *buffer, i int) float32 {
	if (i+1)*4 > len(b.data) {
		return 0
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b.data[i*4:]))
}

// preprocess measures the capture: peak values from mip 0, the mean from the
// 1x1 level, and per-thread row-band peaks into the scratch buffer.
func preprocess(uavs []*view) error {
	scalars, in, _, scratch, err := bindings(uavs)
	if err != nil {
		return err
	}
	t := in.tex
	l0 := t.levels[0]
	threads := len(scratch.data) / 4
	var maxLum, maxCh float32
	for y := uint32(0); y < l0.h; y++ {
		var rowMax float32
		for x := uint32(0); x < l0.w; x++ {
			p := gpu.DecodeHalf(l0.data[y*l0.pitch+x*8:])
			lum := luminance(p)
			rowMax = max(rowMax, lum)
			maxCh = max(maxCh, p[0], p[1], p[2])
		}
		maxLum = max(maxLum, rowMax)
		if threads > 0 {
			slot := int(y) % threads
			putFloat(scratch, slot, max(getFloat(scratch, slot), rowMax))
		}
	}
	last := t.levels[len(t.levels)-1]
	mean := luminance(gpu.DecodeHalf(last.data))
	if len(t.levels) == 1 {
		mean = meanLuminance(l0)
	}
	putFloat(scalars, ScalarMaxLuminance, maxLum)
	putFloat(scalars, ScalarMeanLuminance, mean)
	putFloat(scalars, ScalarMaxChannel, maxCh)
	putFloat(scalars, ScalarWhiteLevel, max(1, maxCh))
	putFloat(scalars, ScalarWidth, float32(l0.w))
	putFloat(scalars, ScalarHeight, float32(l0.h))
	putFloat(scalars, ScalarMipLevels, float32(len(t.levels)))
	return nil
}

func meanLuminance(l level) float32 {
	var sum float64
	for y := uint32(0); y < l.h; y++ {
		for x := uint32(0); x < l.w; x++ {
			sum += float64(luminance(gpu.DecodeHalf(l.data[y*l.pitch+x*8:])))
		}
	}
	return float32(sum / float64(l.w*l.h))
}

// convert scales the half-float input by the measured white level, applies
// the 1/2.2 transfer and writes 16-bit integers.
func convert(uavs []*view) error {
	scalars, in, out, _, err := bindings(uavs)
	if err != nil {
		return err
	}
	white := getFloat(scalars, ScalarWhiteLevel)
	if white <= 0 || math.IsNaN(float64(white)) {
		white = 1
	}
	src, dst := in.tex.levels[0], out.tex.levels[0]
	if src.w != dst.w || src.h != dst.h {
		return fmt.Errorf("input %dx%d and output %dx%d differ", src.w, src.h, dst.w, dst.h)
	}
	for y := uint32(0); y < src.h; y++ {
		for x := uint32(0); x < src.w; x++ {
			p := gpu.DecodeHalf(src.data[y*src.pitch+x*8:])
			var q [4]uint16
			for ch := 0; ch < 3; ch++ {
				q[ch] = quantise(encode(p[ch] / white))
			}
			q[3] = quantise(clamp01(p[3]))
			gpu.EncodeU16(dst.data[y*dst.pitch+x*8:], q)
		}
	}
	return nil
}

func clamp01(v float32) float32 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func encode(v float32) float32 {
	return float32(math.Pow(float64(clamp01(v)), EncodeGamma))
}

func quantise(v float32) uint16 {
	return uint16(math.Round(float64(v) * 65535))
}
