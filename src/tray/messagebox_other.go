//go:build !windows

package tray

import "log"

// Icon returns the tray icon as PNG.
func Icon() ([]byte, error) { return IconPNG() }

func showMessageBox(title, message string) {
	log.Printf("TRAY: %s\n%s", title, message)
}
