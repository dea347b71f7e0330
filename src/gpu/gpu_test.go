package gpu

import (
	"math"
	"testing"
)

type fakeResource struct {
	id    int
	order *[]int
}

func (f *fakeResource) Release() { *f.order = append(*f.order, f.id) }

func TestScopeReleasesInReverse(t *testing.T) {
	var order []int
	var s Scope
	for i := 1; i <= 3; i++ {
		Track(&s, &fakeResource{id: i, order: &order})
	}
	if s.Len() != 3 {
		t.Fatalf("Len = %d", s.Len())
	}
	s.Release()
	s.Release()
	if len(order) != 3 || order[0] != 3 || order[1] != 2 || order[2] != 1 {
		t.Errorf("release order = %v, want [3 2 1]", order)
	}
}

func TestMipCount(t *testing.T) {
	tests := []struct {
		w, h, want uint32
	}{
		{1, 1, 1},
		{2, 1, 2},
		{201, 51, 8},
		{1920, 1080, 11},
		{4096, 4096, 13},
	}
	for _, tt := range tests {
		if got := MipCount(tt.w, tt.h); got != tt.want {
			t.Errorf("MipCount(%d,%d) = %d, want %d", tt.w, tt.h, got, tt.want)
		}
	}
	if w, h := MipSize(201, 51, 7); w != 1 || h != 1 {
		t.Errorf("MipSize(201,51,7) = %dx%d", w, h)
	}
}

func TestHalfRoundTrip(t *testing.T) {
	in := HalfPixel{0, 1, 0.5, 12.5}
	buf := make([]byte, 8)
	EncodeHalf(buf, in)
	out := DecodeHalf(buf)
	for i := range in {
		if math.Abs(float64(in[i]-out[i])) > 1e-3 {
			t.Errorf("channel %d: %v -> %v", i, in[i], out[i])
		}
	}
	u := [4]uint16{1, 0xffff, 0x1234, 0}
	EncodeU16(buf, u)
	if DecodeU16(buf) != u {
		t.Errorf("u16 round trip mismatch: %v", DecodeU16(buf))
	}
}

func TestMappedRowHonoursPitch(t *testing.T) {
	m := Mapped{Data: make([]byte, 32), RowPitch: 16}
	m.Data[16] = 7
	row := m.Row(1, 8)
	if len(row) != 8 || row[0] != 7 {
		t.Errorf("Row(1) = %v", row)
	}
}

func TestSRGBRoundTrip(t *testing.T) {
	for b := 0; b < 256; b++ {
		if got := LinearToSRGB(SRGBToLinear(uint8(b))); got != uint8(b) {
			t.Errorf("sRGB %d -> %d", b, got)
		}
	}
	if LinearToSRGB(-1) != 0 || LinearToSRGB(4) != 255 {
		t.Errorf("out-of-range values not clamped")
	}
}
