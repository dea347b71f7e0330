//go:build windows

package main

import (
	"log"

	"github.com/lxn/win"
	"golang.org/x/sys/windows"
)

// dpiAwarenessPerMonitorV2 is DPI_AWARENESS_CONTEXT_PER_MONITOR_AWARE_V2.
const dpiAwarenessPerMonitorV2 = ^uintptr(3) // (HANDLE)-4

var (
	user32                            = windows.NewLazySystemDLL("user32.dll")
	shcore                            = windows.NewLazySystemDLL("Shcore.dll")
	procSetProcessDpiAwarenessContext = user32.NewProc("SetProcessDpiAwarenessContext")
	procSetProcessDpiAwareness        = shcore.NewProc("SetProcessDpiAwareness")
	procSetProcessDPIAware            = user32.NewProc("SetProcessDPIAware")
)

// enableDPIAwareness makes window and duplication coordinates physical
// pixels. Without it the overlay is scaled and pointer positions no longer
// match the captured frame.
func enableDPIAwareness() {
	if procSetProcessDpiAwarenessContext.Find() == nil {
		ret, _, err := procSetProcessDpiAwarenessContext.Call(dpiAwarenessPerMonitorV2)
		if ret != 0 {
			log.Printf("DPI: per-monitor v2 awareness set")
			return
		}
		log.Printf("DPI: per-monitor v2 awareness refused: %v", err)
	}

	const processPerMonitorDPIAware = 2
	if procSetProcessDpiAwareness.Find() == nil {
		ret, _, _ := procSetProcessDpiAwareness.Call(processPerMonitorDPIAware)
		if ret == 0 {
			log.Printf("DPI: per-monitor awareness set")
			return
		}
		log.Printf("DPI: SetProcessDpiAwareness failed, HRESULT 0x%08x", uint32(ret))
	}

	if procSetProcessDPIAware.Find() == nil {
		if ret, _, _ := procSetProcessDPIAware.Call(); ret != 0 {
			log.Printf("DPI: system awareness set (fallback)")
			return
		}
	}
	log.Printf("DPI: no awareness API succeeded; selections may be offset on scaled displays")
}

func logMonitorConfiguration() {
	log.Printf("MONITOR: %d monitors, virtual screen %d,%d %dx%d, primary %dx%d",
		win.GetSystemMetrics(win.SM_CMONITORS),
		win.GetSystemMetrics(win.SM_XVIRTUALSCREEN), win.GetSystemMetrics(win.SM_YVIRTUALSCREEN),
		win.GetSystemMetrics(win.SM_CXVIRTUALSCREEN), win.GetSystemMetrics(win.SM_CYVIRTUALSCREEN),
		win.GetSystemMetrics(win.SM_CXSCREEN), win.GetSystemMetrics(win.SM_CYSCREEN),
	)
}
