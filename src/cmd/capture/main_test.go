package main

import (
	"bytes"
	"encoding/json"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hdr-snip/src/geometry"
)

func TestParseRect(t *testing.T) {
	tests := []struct {
		in      string
		want    geometry.Rect
		wantErr bool
	}{
		{in: "10,20,30,40", want: geometry.Rect{Left: 10, Top: 20, Right: 40, Bottom: 60}},
		{in: " -5, 0, 8 ,2", want: geometry.Rect{Left: -5, Top: 0, Right: 3, Bottom: 2}},
		{in: "1,2,3", wantErr: true},
		{in: "1,2,0,4", wantErr: true},
		{in: "a,2,3,4", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseRect(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("parseRect(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseRect(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestNewRootCmdParsesFlags(t *testing.T) {
	opts := &captureOptions{}
	cmd := newRootCmd(opts)
	if err := cmd.ParseFlags([]string{"--rect", "0,0,4,4", "--out", "/tmp/x.png", "--no-clipboard", "--copy-path", "--backend", "software", "--json"}); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	if opts.rect != "0,0,4,4" || opts.outPath != "/tmp/x.png" || !opts.noClipboard || !opts.copyPath || opts.backend != "software" || !opts.jsonOutput {
		t.Fatalf("Unexpected options: %+v", opts)
	}
}

func TestInvalidRectRejectedBeforeCapture(t *testing.T) {
	if err := runWithArgs([]string{"hdr-snip-capture", "--rect", "1,1,-3,3"}); err == nil {
		t.Fatal("Expected error for negative width")
	}
}

func TestOutputResult(t *testing.T) {
	r := captureResult{Backend: "software", X: 4, Y: 8, Width: 16, Height: 9, Bytes: 1234, URL: "s3://snips/a.png"}

	var text bytes.Buffer
	if err := outputResult(&text, r, false); err != nil {
		t.Fatal(err)
	}
	if got := text.String(); got != "16x9 at 4,8 (1234 bytes)\ns3://snips/a.png\n" {
		t.Errorf("text output = %q", got)
	}

	var js bytes.Buffer
	if err := outputResult(&js, r, true); err != nil {
		t.Fatal(err)
	}
	var decoded captureResult
	if err := json.Unmarshal(js.Bytes(), &decoded); err != nil {
		t.Fatalf("Failed to parse JSON: %v", err)
	}
	if decoded != r {
		t.Errorf("decoded = %+v, want %+v", decoded, r)
	}
}

// TestSoftwareCapture grabs the real desktop through GDI; it needs a display.
func TestSoftwareCapture(t *testing.T) {
	if os.Getenv("HDR_SNIP_INTERACTIVE_TESTS") != "1" {
		t.Skip("set HDR_SNIP_INTERACTIVE_TESTS=1 to capture the desktop")
	}
	out := filepath.Join(t.TempDir(), "snip.png")

	var stdout bytes.Buffer
	err := runWithOptions(captureOptions{rect: "0,0,32,16", outPath: out, noClipboard: true, backend: "software"}, &stdout)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if !strings.HasPrefix(stdout.String(), "32x16") {
		t.Errorf("stdout = %q", stdout.String())
	}
	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 16 {
		t.Errorf("image = %dx%d", b.Dx(), b.Dy())
	}
}
