//go:build !windows

package clipboard

import (
	"golang.design/x/clipboard"
)

func initPlatform() error {
	return clipboard.Init()
}

// writePlatform ignores the format name: the portable clipboard exposes a
// single image slot that takes PNG bytes.
func writePlatform(_ string, data []byte) error {
	clipboard.Write(clipboard.FmtImage, data)
	return nil
}
