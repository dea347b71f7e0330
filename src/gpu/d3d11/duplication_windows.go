//go:build windows

package d3d11

import (
	"fmt"
	"log"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"hdr-snip/src/capture"
	"hdr-snip/src/geometry"
	"hdr-snip/src/gpu"
)

// dxgiOutputDesc matches DXGI_OUTPUT_DESC.
type dxgiOutputDesc struct {
	DeviceName         [32]uint16
	DesktopCoordinates win32Rect
	AttachedToDesktop  int32
	Rotation           uint32
	Monitor            uintptr
}

// dxgiOutDuplDesc matches DXGI_OUTDUPL_DESC.
type dxgiOutDuplDesc struct {
	ModeDesc                   dxgiModeDesc
	Rotation                   uint32
	DesktopImageInSystemMemory int32 // BOOL
}

// dxgiOutDuplFrameInfo matches DXGI_OUTDUPL_FRAME_INFO.
type dxgiOutDuplFrameInfo struct {
	LastPresentTime           int64
	LastMouseUpdateTime       int64
	AccumulatedFrames         uint32
	RectsCoalesced            int32
	ProtectedContentMaskedOut int32
	PointerPositionX          int32
	PointerPositionY          int32
	PointerVisible            int32
	TotalMetadataBufferSize   uint32
	PointerShapeBufferSize    uint32
}

// Output is one display of the device's adapter.
type Output struct {
	dev    *Device
	output uintptr // IDXGIOutput
	index  uint32
}

// NewOutput enumerates output index of the device's adapter.
func NewOutput(dev *Device, index uint32) (*Output, error) {
	var out uintptr
	if _, err := comCall(dev.adapter, dxgiAdapterEnumOutputs, uintptr(index), uintptr(unsafe.Pointer(&out))); err != nil {
		if hresult(err) == dxgiErrNotFound {
			return nil, fmt.Errorf("output %d not found: %w", index, err)
		}
		return nil, fmt.Errorf("IDXGIAdapter::EnumOutputs: %w", err)
	}
	return &Output{dev: dev, output: out, index: index}, nil
}

// Release frees the output.
func (o *Output) Release() {
	comRelease(o.output)
	o.output = 0
}

func (o *Output) Desc() (capture.OutputDesc, error) {
	var d dxgiOutputDesc
	if _, err := comCall(o.output, dxgiOutputGetDesc, uintptr(unsafe.Pointer(&d))); err != nil {
		return capture.OutputDesc{}, fmt.Errorf("IDXGIOutput::GetDesc: %w", err)
	}
	return capture.OutputDesc{
		Name:   windows.UTF16ToString(d.DeviceName[:]),
		Bounds: geometry.Rect(d.DesktopCoordinates),
	}, nil
}

// Duplicate starts a duplication session delivering RGBA16F frames through
// IDXGIOutput5, falling back to IDXGIOutput1 (desktop format) on systems
// without it.
func (o *Output) Duplicate() (capture.Duplication, error) {
	var dup uintptr
	if out5, err := queryInterface(o.output, &iidIDXGIOutput5); err == nil {
		formats := [1]uint32{uint32(gpu.FormatRGBA16Float)}
		_, err = comCall(out5, dxgiOutput5DuplicateOutput1, o.dev.dev, 0, uintptr(len(formats)), uintptr(unsafe.Pointer(&formats[0])), uintptr(unsafe.Pointer(&dup)))
		comRelease(out5)
		if err != nil {
			return nil, fmt.Errorf("IDXGIOutput5::DuplicateOutput1: %w", err)
		}
	} else {
		log.Printf("D3D11: IDXGIOutput5 unavailable (%v), duplicating in desktop format", err)
		out1, err := queryInterface(o.output, &iidIDXGIOutput1)
		if err != nil {
			return nil, fmt.Errorf("QueryInterface IDXGIOutput1: %w", err)
		}
		_, err = comCall(out1, dxgiOutput1DuplicateOutput, o.dev.dev, uintptr(unsafe.Pointer(&dup)))
		comRelease(out1)
		if err != nil {
			return nil, fmt.Errorf("IDXGIOutput1::DuplicateOutput: %w", err)
		}
	}

	var desc dxgiOutDuplDesc
	comVoid(dup, dxgiDuplGetDesc, uintptr(unsafe.Pointer(&desc)))
	log.Printf("D3D11: duplicating output %d, %dx%d format %v rotation %d",
		o.index, desc.ModeDesc.Width, desc.ModeDesc.Height, gpu.Format(desc.ModeDesc.Format), desc.Rotation)
	return &duplication{dup: dup}, nil
}

type duplication struct {
	dup uintptr // IDXGIOutputDuplication
}

func (d *duplication) AcquireNextFrame(timeout time.Duration) (gpu.Texture, capture.FrameInfo, error) {
	var info dxgiOutDuplFrameInfo
	var resource uintptr
	_, err := comCall(d.dup, dxgiDuplAcquireNextFrame,
		uintptr(timeout.Milliseconds()),
		uintptr(unsafe.Pointer(&info)),
		uintptr(unsafe.Pointer(&resource)),
	)
	if err != nil {
		// HRESULTError.Is maps timeout and access-lost onto the capture sentinels
		return nil, capture.FrameInfo{}, fmt.Errorf("IDXGIOutputDuplication::AcquireNextFrame: %w", err)
	}
	tex, err := queryInterface(resource, &iidID3D11Texture2D)
	comRelease(resource)
	if err != nil {
		d.ReleaseFrame()
		return nil, capture.FrameInfo{}, fmt.Errorf("QueryInterface ID3D11Texture2D: %w", err)
	}
	return wrapTexture(tex), capture.FrameInfo{
		LastPresentTime:   info.LastPresentTime,
		AccumulatedFrames: info.AccumulatedFrames,
	}, nil
}

func (d *duplication) ReleaseFrame() error {
	if _, err := comCall(d.dup, dxgiDuplReleaseFrame); err != nil {
		return fmt.Errorf("IDXGIOutputDuplication::ReleaseFrame: %w", err)
	}
	return nil
}

func (d *duplication) Release() {
	comRelease(d.dup)
	d.dup = 0
}
