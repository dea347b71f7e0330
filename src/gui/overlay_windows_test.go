//go:build windows

package gui

import "testing"

func TestUser32LoadedFromSystemDirectory(t *testing.T) {
	if !user32DLL.System {
		t.Error("user32.dll is resolved through the default DLL search path")
	}
}
