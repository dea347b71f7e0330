// Package tray shows the resident process in the notification area with a
// capture item, an About box and Quit.
package tray

import (
	"fmt"
	"log"
	"runtime"

	"github.com/getlantern/systray"
)

// Options configure the tray icon.
type Options struct {
	Title   string
	Tooltip string
	Hotkey  string
	// OnCapture runs when the capture item is clicked.
	OnCapture func()
	// OnExit runs after Quit, once the tray is gone.
	OnExit func()
}

var aboutExtra string

// SetAboutExtra appends a line to the About text.
func SetAboutExtra(s string) { aboutExtra = s }

// UpdateTooltip replaces the tooltip. Ignored before the tray is ready.
func UpdateTooltip(s string) { systray.SetTooltip(s) }

// Quit removes the icon and makes Run return.
func Quit() { systray.Quit() }

// Run shows the icon and blocks until Quit.
func Run(opts Options) {
	systray.Run(func() { onReady(opts) }, func() {
		log.Printf("TRAY: exited")
		if opts.OnExit != nil {
			opts.OnExit()
		}
	})
}

func onReady(opts Options) {
	if icon, err := Icon(); err != nil {
		log.Printf("TRAY: icon: %v", err)
	} else {
		systray.SetIcon(icon)
	}
	systray.SetTitle(opts.Title)
	systray.SetTooltip(opts.Tooltip)

	mCapture := systray.AddMenuItem(fmt.Sprintf("Capture (%s)", opts.Hotkey), "Select a region of the screen")
	mAbout := systray.AddMenuItem("About", "About hdr-snip")
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Quit the application")

	go func() {
		for {
			select {
			case <-mCapture.ClickedCh:
				if opts.OnCapture != nil {
					opts.OnCapture()
				}
			case <-mAbout.ClickedCh:
				showMessageBox("About hdr-snip", AboutText(opts.Hotkey))
			case <-mQuit.ClickedCh:
				systray.Quit()
				return
			}
		}
	}()
	log.Printf("TRAY: ready")
}

// AboutText is the body of the About box.
func AboutText(hotkey string) string {
	s := fmt.Sprintf("hdr-snip\n\nPress %s, drag a rectangle, release to copy it to the clipboard as a 16-bit PNG.\nEsc cancels.\n\nGo %s", hotkey, runtime.Version())
	if aboutExtra != "" {
		s += "\n" + aboutExtra
	}
	return s
}
