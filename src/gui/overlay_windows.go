//go:build windows

package gui

import (
	"context"
	"fmt"
	"image"
	"log"
	"os"
	"syscall"
	"unsafe"

	"github.com/lxn/win"
	"golang.org/x/sys/windows"

	"hdr-snip/src/eventloop"
	"hdr-snip/src/geometry"
	"hdr-snip/src/gpu"
)

const (
	overlayClassName = "HdrSnipOverlay"

	// wmHotkey is posted from the hotkey goroutine; PostMessage is the only
	// window call that is safe off the pump thread.
	wmHotkey = win.WM_APP + 1
	// wmShutdown ends the pump. A plain WM_QUIT only hides the overlay.
	wmShutdown = win.WM_APP + 2
)

var (
	user32DLL                    = windows.NewLazySystemDLL("user32.dll")
	procAllowSetForegroundWindow = user32DLL.NewProc("AllowSetForegroundWindow")
)

// active is the overlay the window procedure forwards to. There is at most
// one per process.
var active *Window

// Window is the overlay window. Every method except PostHotkey and Shutdown
// must be called on the thread that created it.
type Window struct {
	hwnd   win.HWND
	class  *uint16
	bounds geometry.Rect
	cursor win.HCURSOR

	ctx    context.Context
	d      Dispatcher
	mirror func() *image.RGBA
	quit   bool
}

// NewWindow creates the hidden overlay at bounds, in desktop coordinates.
func NewWindow(bounds geometry.Rect) (*Window, error) {
	if active != nil {
		return nil, fmt.Errorf("overlay window already exists")
	}
	if !bounds.HasArea() {
		return nil, fmt.Errorf("overlay bounds %v have no area", bounds)
	}
	w := &Window{
		bounds: bounds,
		class:  syscall.StringToUTF16Ptr(overlayClassName),
		cursor: win.LoadCursor(0, win.MAKEINTRESOURCE(win.IDC_CROSS)),
	}
	if w.cursor == 0 {
		log.Printf("OVERLAY: failed to load cross cursor")
	}

	wndClass := win.WNDCLASSEX{
		CbSize:        uint32(unsafe.Sizeof(win.WNDCLASSEX{})),
		LpfnWndProc:   syscall.NewCallback(wndProc),
		HInstance:     win.GetModuleHandle(nil),
		HCursor:       w.cursor,
		HbrBackground: 0, // the swapchain paints everything
		LpszClassName: w.class,
	}
	if atom := win.RegisterClassEx(&wndClass); atom == 0 {
		return nil, fmt.Errorf("register overlay window class")
	}

	active = w
	w.hwnd = win.CreateWindowEx(
		win.WS_EX_TOPMOST|win.WS_EX_TOOLWINDOW,
		w.class,
		syscall.StringToUTF16Ptr("hdr-snip"),
		win.WS_POPUP,
		bounds.Left, bounds.Top, int32(bounds.Width()), int32(bounds.Height()),
		0, 0, win.GetModuleHandle(nil), nil,
	)
	if w.hwnd == 0 {
		active = nil
		win.UnregisterClass(w.class)
		return nil, fmt.Errorf("create overlay window")
	}
	log.Printf("OVERLAY: window %v created at %v", w.hwnd, bounds)
	return w, nil
}

// Surface is the handle a swapchain presents to.
func (w *Window) Surface() gpu.Surface { return gpu.Surface(w.hwnd) }

// Bounds returns the window rectangle in desktop coordinates.
func (w *Window) Bounds() geometry.Rect { return w.bounds }

// SetMirror makes WM_PAINT copy the image returned by f onto the window.
// Used when presents do not reach the screen on their own.
func (w *Window) SetMirror(f func() *image.RGBA) { w.mirror = f }

// Show raises the overlay and takes the keyboard focus.
func (w *Window) Show() error {
	win.ShowWindow(w.hwnd, win.SW_SHOW)
	procAllowSetForegroundWindow.Call(uintptr(os.Getpid()))
	if !win.SetForegroundWindow(w.hwnd) {
		log.Printf("OVERLAY: SetForegroundWindow refused")
	}
	win.BringWindowToTop(w.hwnd)
	win.SetFocus(w.hwnd)
	return nil
}

// Hide hides the overlay. The window and its swapchain stay alive.
func (w *Window) Hide() {
	win.ReleaseCapture()
	win.ShowWindow(w.hwnd, win.SW_HIDE)
}

// Invalidate schedules a WM_PAINT.
func (w *Window) Invalidate() {
	win.InvalidateRect(w.hwnd, nil, false)
}

// PostHotkey queues a capture request. Safe from any goroutine.
func (w *Window) PostHotkey() {
	win.PostMessage(w.hwnd, wmHotkey, 0, 0)
}

// Run pumps messages into d until ctx is cancelled.
func (w *Window) Run(ctx context.Context, d Dispatcher) error {
	w.ctx, w.d = ctx, d
	defer func() { w.d = nil }()

	stop := context.AfterFunc(ctx, func() {
		win.PostMessage(w.hwnd, wmShutdown, 0, 0)
	})
	defer stop()

	var msg win.MSG
	for {
		switch win.GetMessage(&msg, 0, 0, 0) {
		case 0: // WM_QUIT
			if w.quit || ctx.Err() != nil {
				log.Printf("OVERLAY: message pump stopped")
				return ctx.Err()
			}
			w.dispatch(eventloop.Close{})
			continue
		case -1:
			return fmt.Errorf("GetMessage failed")
		}
		win.TranslateMessage(&msg)
		win.DispatchMessage(&msg)
	}
}

// Release destroys the window.
func (w *Window) Release() {
	if w.hwnd != 0 {
		win.DestroyWindow(w.hwnd)
		w.hwnd = 0
	}
	win.UnregisterClass(w.class)
	if active == w {
		active = nil
	}
}

func (w *Window) dispatch(msg eventloop.Message) {
	if w.d == nil {
		return
	}
	if err := w.d.Dispatch(w.ctx, msg); err != nil {
		log.Printf("OVERLAY: %T: %v", msg, err)
	}
}

func wndProc(hwnd win.HWND, msg uint32, wParam, lParam uintptr) uintptr {
	w := active
	if w == nil {
		return win.DefWindowProc(hwnd, msg, wParam, lParam)
	}

	switch msg {
	case win.WM_PAINT:
		var ps win.PAINTSTRUCT
		hdc := win.BeginPaint(hwnd, &ps)
		w.dispatch(eventloop.Paint{})
		if w.mirror != nil {
			if img := w.mirror(); img != nil {
				blit(hdc, img)
			}
		}
		win.EndPaint(hwnd, &ps)
		return 0

	case win.WM_ERASEBKGND:
		return 1

	case win.WM_LBUTTONDOWN:
		win.SetCapture(hwnd)
		w.dispatch(eventloop.PointerDown{At: point(lParam)})
		return 0

	case win.WM_MOUSEMOVE:
		w.dispatch(eventloop.PointerMove{At: point(lParam)})
		return 0

	case win.WM_LBUTTONUP:
		win.ReleaseCapture()
		w.dispatch(eventloop.PointerUp{At: point(lParam)})
		return 0

	case win.WM_KEYUP:
		w.dispatch(eventloop.KeyUp{Key: uint32(wParam)})
		return 0

	case win.WM_CLOSE:
		// never destroyed here; the overlay is reused for every capture
		w.dispatch(eventloop.Close{})
		return 0

	case wmHotkey:
		w.dispatch(eventloop.Hotkey{})
		return 0

	case wmShutdown:
		w.quit = true
		win.PostQuitMessage(0)
		return 0

	case win.WM_NCHITTEST:
		// Force all points to be client area so the window receives mouse events
		return uintptr(win.HTCLIENT)

	case win.WM_SETCURSOR:
		if w.cursor != 0 {
			win.SetCursor(w.cursor)
			return 1
		}

	case win.WM_DESTROY:
		return 0
	}

	w.dispatch(eventloop.Unknown{ID: msg})
	return win.DefWindowProc(hwnd, msg, wParam, lParam)
}

// blit copies img to the top-left of hdc through a DIB section.
func blit(hdc win.HDC, img *image.RGBA) {
	width, height := img.Rect.Dx(), img.Rect.Dy()
	memDC := win.CreateCompatibleDC(hdc)
	defer win.DeleteDC(memDC)

	bitmapInfo := win.BITMAPINFO{
		BmiHeader: win.BITMAPINFOHEADER{
			BiSize:        uint32(unsafe.Sizeof(win.BITMAPINFOHEADER{})),
			BiWidth:       int32(width),
			BiHeight:      -int32(height), // top-down
			BiPlanes:      1,
			BiBitCount:    32,
			BiCompression: win.BI_RGB,
		},
	}
	var bits unsafe.Pointer
	hBitmap := win.CreateDIBSection(memDC, &bitmapInfo.BmiHeader, win.DIB_RGB_COLORS, &bits, 0, 0)
	if hBitmap == 0 {
		log.Printf("OVERLAY: CreateDIBSection failed")
		return
	}
	defer win.DeleteObject(win.HGDIOBJ(hBitmap))
	old := win.SelectObject(memDC, win.HGDIOBJ(hBitmap))
	defer win.SelectObject(memDC, old)

	// 32-bit rows are already DWORD aligned
	dst := unsafe.Slice((*byte)(bits), width*height*4)
	toBGRA(dst, img)
	win.BitBlt(hdc, 0, 0, int32(width), int32(height), memDC, 0, 0, win.SRCCOPY)
}
