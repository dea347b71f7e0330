//go:build windows

package d3d11

import (
	"fmt"
	"log"
	"unsafe"

	"hdr-snip/src/geometry"
	"hdr-snip/src/gpu"
)

const (
	dxgiUsageRenderTargetOutput  = 0x20
	dxgiSwapEffectFlipSequential = 3
	swapchainBufferCount         = 2
	presentSyncInterval          = 1
)

type dxgiRational struct {
	Numerator   uint32
	Denominator uint32
}

// dxgiModeDesc matches DXGI_MODE_DESC.
type dxgiModeDesc struct {
	Width            uint32
	Height           uint32
	RefreshRate      dxgiRational
	Format           uint32
	ScanlineOrdering uint32
	Scaling          uint32
}

// dxgiSwapChainDesc matches DXGI_SWAP_CHAIN_DESC.
type dxgiSwapChainDesc struct {
	BufferDesc    dxgiModeDesc
	SampleCount   uint32
	SampleQuality uint32
	BufferUsage   uint32
	BufferCount   uint32
	OutputWindow  uintptr
	Windowed      int32
	SwapEffect    uint32
	Flags         uint32
}

// win32Rect matches RECT.
type win32Rect struct {
	Left, Top, Right, Bottom int32
}

// dxgiPresentParameters matches DXGI_PRESENT_PARAMETERS.
type dxgiPresentParameters struct {
	DirtyRectsCount uint32
	PDirtyRects     uintptr
	PScrollRect     uintptr
	PScrollOffset   uintptr
}

// Swapchain is a flip-model RGBA16F swapchain bound to a window.
type Swapchain struct {
	swap          uintptr // IDXGISwapChain
	swap1         uintptr // IDXGISwapChain1, zero when unavailable
	width, height uint32
}

// CreateSwapchain creates a windowed flip-sequential swapchain for surface.
func (d *Device) CreateSwapchain(surface gpu.Surface, width, height uint32) (gpu.Swapchain, error) {
	var factory uintptr
	if _, err := comCall(d.adapter, dxgiObjectGetParent, uintptr(unsafe.Pointer(&iidIDXGIFactory)), uintptr(unsafe.Pointer(&factory))); err != nil {
		return nil, fmt.Errorf("IDXGIAdapter::GetParent: %w", err)
	}
	defer comRelease(factory)

	desc := dxgiSwapChainDesc{
		BufferDesc: dxgiModeDesc{
			Width:  width,
			Height: height,
			Format: uint32(gpu.FormatRGBA16Float),
		},
		SampleCount:  1,
		BufferUsage:  dxgiUsageRenderTargetOutput,
		BufferCount:  swapchainBufferCount,
		OutputWindow: uintptr(surface),
		Windowed:     1,
		SwapEffect:   dxgiSwapEffectFlipSequential,
	}
	var swap uintptr
	if _, err := comCall(factory, dxgiFactoryCreateSwapChain, d.dev, uintptr(unsafe.Pointer(&desc)), uintptr(unsafe.Pointer(&swap))); err != nil {
		return nil, fmt.Errorf("IDXGIFactory::CreateSwapChain %dx%d: %w", width, height, err)
	}
	sc := &Swapchain{swap: swap, width: width, height: height}
	if swap1, err := queryInterface(swap, &iidIDXGISwapChain1); err == nil {
		sc.swap1 = swap1
	} else {
		log.Printf("D3D11: IDXGISwapChain1 unavailable, dirty rectangles disabled: %v", err)
	}
	return sc, nil
}

func (s *Swapchain) BackBuffer() (gpu.Texture, error) {
	var tex uintptr
	if _, err := comCall(s.swap, dxgiSwapChainGetBuffer, 0, uintptr(unsafe.Pointer(&iidID3D11Texture2D)), uintptr(unsafe.Pointer(&tex))); err != nil {
		return nil, fmt.Errorf("IDXGISwapChain::GetBuffer: %w", err)
	}
	return wrapTexture(tex), nil
}

// Present shows the back buffer; dirty rectangles go through Present1.
func (s *Swapchain) Present(dirty []geometry.Rect) error {
	if dirty == nil || s.swap1 == 0 {
		if _, err := comCall(s.swap, dxgiSwapChainPresent, presentSyncInterval, 0); err != nil {
			return fmt.Errorf("IDXGISwapChain::Present: %w", err)
		}
		return nil
	}
	rects := make([]win32Rect, 0, len(dirty))
	for _, r := range dirty {
		r = r.Clamp(s.width, s.height)
		if r.HasArea() {
			rects = append(rects, win32Rect(r))
		}
	}
	var params dxgiPresentParameters
	if len(rects) > 0 {
		params.DirtyRectsCount = uint32(len(rects))
		params.PDirtyRects = uintptr(unsafe.Pointer(&rects[0]))
	}
	if _, err := comCall(s.swap1, dxgiSwapChain1Present1, presentSyncInterval, 0, uintptr(unsafe.Pointer(&params))); err != nil {
		return fmt.Errorf("IDXGISwapChain1::Present1 (%d dirty): %w", len(rects), err)
	}
	return nil
}

func (s *Swapchain) Release() {
	comRelease(s.swap1)
	comRelease(s.swap)
	s.swap1, s.swap = 0, 0
}
