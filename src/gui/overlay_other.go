//go:build !windows

package gui

import (
	"context"
	"image"

	"hdr-snip/src/geometry"
	"hdr-snip/src/gpu"
)

// Window is unavailable on this platform; NewWindow always fails.
type Window struct{}

// NewWindow returns ErrUnsupported.
func NewWindow(geometry.Rect) (*Window, error) { return nil, ErrUnsupported }

func (w *Window) Surface() gpu.Surface                  { return 0 }
func (w *Window) Bounds() geometry.Rect                 { return geometry.Rect{} }
func (w *Window) SetMirror(func() *image.RGBA)          {}
func (w *Window) Show() error                           { return ErrUnsupported }
func (w *Window) Hide()                                 {}
func (w *Window) Invalidate()                           {}
func (w *Window) PostHotkey()                           {}
func (w *Window) Run(context.Context, Dispatcher) error { return ErrUnsupported }
func (w *Window) Release()                              {}
