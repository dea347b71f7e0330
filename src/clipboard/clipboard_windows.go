//go:build windows

package clipboard

import (
	"errors"
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/lxn/win"
	"golang.org/x/sys/windows"
)

const openAttempts = 5

var (
	user32                      = windows.NewLazySystemDLL("user32.dll")
	procRegisterClipboardFormat = user32.NewProc("RegisterClipboardFormatW")

	formatMu  sync.Mutex
	formatIDs = map[string]uint32{}
)

func initPlatform() error {
	return procRegisterClipboardFormat.Find()
}

func registerFormat(name string) (uint32, error) {
	formatMu.Lock()
	defer formatMu.Unlock()
	if id, ok := formatIDs[name]; ok {
		return id, nil
	}
	ptr, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return 0, err
	}
	r, _, callErr := procRegisterClipboardFormat.Call(uintptr(unsafe.Pointer(ptr)))
	if r == 0 {
		return 0, fmt.Errorf("RegisterClipboardFormatW: %v", callErr)
	}
	formatIDs[name] = uint32(r)
	return uint32(r), nil
}

// openClipboard retries briefly since another process may hold the clipboard.
func openClipboard() error {
	for i := 0; i < openAttempts; i++ {
		if win.OpenClipboard(0) {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return errors.New("OpenClipboard failed")
}

func writePlatform(format string, data []byte) error {
	id, err := registerFormat(format)
	if err != nil {
		return err
	}

	mem := win.GlobalAlloc(win.GMEM_MOVEABLE, uintptr(len(data)))
	if mem == 0 {
		return errors.New("GlobalAlloc failed")
	}
	ptr := win.GlobalLock(mem)
	if ptr == nil {
		win.GlobalFree(mem)
		return errors.New("GlobalLock failed")
	}
	copy(unsafe.Slice((*byte)(ptr), len(data)), data)
	win.GlobalUnlock(mem)

	if err := openClipboard(); err != nil {
		win.GlobalFree(mem)
		return err
	}
	defer win.CloseClipboard()

	if !win.EmptyClipboard() {
		win.GlobalFree(mem)
		return errors.New("EmptyClipboard failed")
	}
	// on success the clipboard owns mem
	if win.SetClipboardData(id, win.HANDLE(mem)) == 0 {
		win.GlobalFree(mem)
		return errors.New("SetClipboardData failed")
	}
	return nil
}
