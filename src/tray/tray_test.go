package tray

import (
	"bytes"
	"encoding/binary"
	"image/png"
	"strings"
	"testing"
)

func TestIconPNGDecodes(t *testing.T) {
	data, err := IconPNG()
	if err != nil {
		t.Fatalf("IconPNG: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != IconSize || b.Dy() != IconSize {
		t.Errorf("icon = %v", b)
	}
	if _, _, _, a := img.At(IconSize/2, 19).RGBA(); a == 0 {
		t.Error("icon centre is transparent")
	}
}

func TestWrapICO(t *testing.T) {
	small, large := []byte("\x89PNG small"), []byte("\x89PNG larger one")
	ico := wrapICO(icoEntry{size: 16, png: small}, icoEntry{size: 256, png: large})
	if got := binary.LittleEndian.Uint16(ico[2:]); got != 1 {
		t.Errorf("type = %d", got)
	}
	if got := binary.LittleEndian.Uint16(ico[4:]); got != 2 {
		t.Errorf("count = %d", got)
	}
	for i, want := range [][]byte{small, large} {
		e := ico[6+16*i:]
		size := binary.LittleEndian.Uint32(e[8:])
		off := binary.LittleEndian.Uint32(e[12:])
		if !bytes.Equal(ico[off:off+size], want) {
			t.Errorf("entry %d payload mismatched", i)
		}
	}
	if ico[6] != 16 || ico[7] != 16 {
		t.Errorf("first dimensions = %d x %d", ico[6], ico[7])
	}
	if ico[6+16] != 0 {
		t.Errorf("256px dimension byte = %d, want 0", ico[6+16])
	}
}

func TestIconSetSizes(t *testing.T) {
	entries, err := iconSet()
	if err != nil {
		t.Fatalf("iconSet: %v", err)
	}
	if len(entries) != len(iconSizes) {
		t.Fatalf("entries = %d, want %d", len(entries), len(iconSizes))
	}
	for _, e := range entries {
		img, err := png.Decode(bytes.NewReader(e.png))
		if err != nil {
			t.Fatalf("decode %dpx: %v", e.size, err)
		}
		if b := img.Bounds(); b.Dx() != e.size || b.Dy() != e.size {
			t.Errorf("%dpx entry is %v", e.size, b)
		}
	}
}

func TestAboutText(t *testing.T) {
	SetAboutExtra("Resident TCP port: 49560")
	t.Cleanup(func() { SetAboutExtra("") })
	s := AboutText("F11")
	if !strings.Contains(s, "F11") || !strings.Contains(s, "49560") {
		t.Errorf("about = %q", s)
	}
}
