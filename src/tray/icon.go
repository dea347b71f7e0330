package tray

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/png"

	"github.com/gogpu/gg"
	xdraw "golang.org/x/image/draw"
)

// IconSize is the edge length of the rendered tray icon.
const IconSize = 32

// iconSizes are the images carried in the ICO, smallest first. The tray
// picks the one matching the current DPI.
var iconSizes = []int{16, 24, IconSize}

// IconPNG draws the tray icon: a dashed selection frame over a bright
// gradient bar standing in for HDR headroom.
func IconPNG() ([]byte, error) {
	dc := gg.NewContext(IconSize, IconSize)
	defer dc.Close()

	dc.SetHexColor("#1e1e1e")
	dc.DrawRoundedRectangle(1, 1, IconSize-2, IconSize-2, 5)
	if err := dc.Fill(); err != nil {
		return nil, fmt.Errorf("fill background: %w", err)
	}

	dc.SetHexColor("#ffd54f")
	dc.DrawRectangle(8, 17, 16, 6)
	if err := dc.Fill(); err != nil {
		return nil, fmt.Errorf("fill bar: %w", err)
	}

	dc.SetHexColor("#4fc3f7")
	dc.SetLineWidth(2)
	dc.SetDash(3, 2)
	dc.DrawRectangle(5, 5, IconSize-10, IconSize-10)
	if err := dc.Stroke(); err != nil {
		return nil, fmt.Errorf("stroke frame: %w", err)
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode icon: %w", err)
	}
	return buf.Bytes(), nil
}

type icoEntry struct {
	size int
	png  []byte
}

// iconSet renders IconPNG once and downsamples it for the smaller sizes.
func iconSet() ([]icoEntry, error) {
	base, err := IconPNG()
	if err != nil {
		return nil, err
	}
	src, err := png.Decode(bytes.NewReader(base))
	if err != nil {
		return nil, fmt.Errorf("decode icon: %w", err)
	}

	entries := make([]icoEntry, 0, len(iconSizes))
	for _, size := range iconSizes {
		if size == IconSize {
			entries = append(entries, icoEntry{size: size, png: base})
			continue
		}
		dst := image.NewNRGBA(image.Rect(0, 0, size, size))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
		var buf bytes.Buffer
		if err := png.Encode(&buf, dst); err != nil {
			return nil, fmt.Errorf("encode %dpx icon: %w", size, err)
		}
		entries = append(entries, icoEntry{size: size, png: buf.Bytes()})
	}
	return entries, nil
}

// wrapICO packs PNG images into an ICO container, which is what the Windows
// tray expects. Vista and later accept PNG payloads.
func wrapICO(entries ...icoEntry) []byte {
	const headerLen, entryLen = 6, 16
	dirLen := headerLen + entryLen*len(entries)
	out := make([]byte, dirLen)
	binary.LittleEndian.PutUint16(out[2:], 1) // type: icon
	binary.LittleEndian.PutUint16(out[4:], uint16(len(entries)))

	offset := dirLen
	for i, en := range entries {
		e := out[headerLen+i*entryLen:]
		dim := byte(en.size)
		if en.size >= 256 {
			dim = 0
		}
		e[0], e[1] = dim, dim
		binary.LittleEndian.PutUint16(e[4:], 1)  // planes
		binary.LittleEndian.PutUint16(e[6:], 32) // bits per pixel
		binary.LittleEndian.PutUint32(e[8:], uint32(len(en.png)))
		binary.LittleEndian.PutUint32(e[12:], uint32(offset))
		offset += len(en.png)
	}
	for _, en := range entries {
		out = append(out, en.png...)
	}
	return out
}
