// Package eventloop is the single-threaded coordinator between the overlay
// window and the capture, selection, preview and export stages. The window
// owner translates its native messages into Message values and hands them to
// Dispatch on the thread that owns the device.
package eventloop

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"hdr-snip/src/export"
	"hdr-snip/src/geometry"
	"hdr-snip/src/gpu"
	"hdr-snip/src/selection"
)

// Message is one input to the loop.
type Message interface {
	isMessage()
}

// Hotkey requests a new capture.
type Hotkey struct{}

// Paint asks for a redraw if one is pending.
type Paint struct{}

// PointerDown is a primary button press in output-local pixels.
type PointerDown struct{ At geometry.Point }

// PointerMove is a pointer motion in output-local pixels.
type PointerMove struct{ At geometry.Point }

// PointerUp is a primary button release in output-local pixels.
type PointerUp struct{ At geometry.Point }

// KeyUp is a released virtual key.
type KeyUp struct{ Key uint32 }

// Close hides the overlay. The process keeps running.
type Close struct{}

// Unknown is any other window message.
type Unknown struct{ ID uint32 }

func (Hotkey) isMessage()      {}
func (Paint) isMessage()       {}
func (PointerDown) isMessage() {}
func (PointerMove) isMessage() {}
func (PointerUp) isMessage()   {}
func (KeyUp) isMessage()       {}
func (Close) isMessage()       {}
func (Unknown) isMessage()     {}

// KeyEscape is the virtual key that cancels a selection.
const KeyEscape = 0x1B

// DefaultCaptureTimeout bounds one hotkey capture.
const DefaultCaptureTimeout = 3 * time.Second

// Window is the overlay surface.
type Window interface {
	Show() error
	Hide()
	// Invalidate schedules a Paint message.
	Invalidate()
}

// Frames is the capture stage.
type Frames interface {
	Acquire(ctx context.Context) (gpu.Texture, error)
	Frame() gpu.Texture
	FrameView() gpu.View
}

// Painter is the preview stage.
type Painter interface {
	Paint(source gpu.View, sel *geometry.Dimensions) error
	ResetPresent()
}

// Exporter is the export stage.
type Exporter interface {
	Run(ctx context.Context, frame gpu.Texture, rect geometry.Rect) (*export.Result, error)
}

// Options configure a Loop.
type Options struct {
	CaptureTimeout time.Duration
	// OnExport observes every finished export, successful or not.
	OnExport func(*export.Result, error)
}

// Stats counts what the loop did.
type Stats struct {
	Captures      uint64
	CaptureErrors uint64
	Paints        uint64
	PaintErrors   uint64
	Exports       uint64
	ExportErrors  uint64
}

// Loop owns the selection state and the overlay visibility. It is not safe
// for concurrent use.
type Loop struct {
	frames   Frames
	painter  Painter
	exporter Exporter
	window   Window
	opts     Options

	sel     *selection.Machine
	visible bool
	stats   Stats
}

// New wires the stages together.
func New(frames Frames, painter Painter, exporter Exporter, window Window, opts Options) *Loop {
	if opts.CaptureTimeout <= 0 {
		opts.CaptureTimeout = DefaultCaptureTimeout
	}
	return &Loop{
		frames:   frames,
		painter:  painter,
		exporter: exporter,
		window:   window,
		opts:     opts,
		sel:      selection.NewMachine(),
	}
}

// Visible reports whether the overlay is shown.
func (l *Loop) Visible() bool { return l.visible }

// Selection exposes the selection state.
func (l *Loop) Selection() selection.State { return l.sel.State() }

// Stats returns the counters so far.
func (l *Loop) Stats() Stats { return l.stats }

// Dispatch handles one message. Errors are reported for logging; the loop
// stays usable after any of them.
func (l *Loop) Dispatch(ctx context.Context, msg Message) error {
	switch m := msg.(type) {
	case Hotkey:
		return l.handleHotkey(ctx)
	case Paint:
		return l.handlePaint()
	case PointerDown:
		return l.handleSelection(ctx, selection.Press{At: m.At})
	case PointerMove:
		return l.handleSelection(ctx, selection.Move{At: m.At})
	case PointerUp:
		return l.handleSelection(ctx, selection.Release{At: m.At})
	case KeyUp:
		if m.Key != KeyEscape {
			return nil
		}
		return l.handleSelection(ctx, selection.Escape{})
	case Close:
		l.sel.Clear()
		l.hide()
		return nil
	case Unknown:
		l.sel.MarkDirty()
		return nil
	default:
		return fmt.Errorf("unhandled message %T", msg)
	}
}

// Run dispatches messages from msgs until ctx is cancelled or msgs closes.
func (l *Loop) Run(ctx context.Context, msgs <-chan Message) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			if err := l.Dispatch(ctx, msg); err != nil {
				log.Printf("EVENTLOOP: %T: %v", msg, err)
			}
		}
	}
}

func (l *Loop) handleHotkey(ctx context.Context) error {
	if l.visible {
		log.Printf("EVENTLOOP: hotkey ignored, overlay already shown")
		return nil
	}
	cctx, cancel := context.WithTimeout(ctx, l.opts.CaptureTimeout)
	defer cancel()
	start := time.Now()
	if _, err := l.frames.Acquire(cctx); err != nil {
		l.stats.CaptureErrors++
		return fmt.Errorf("capture: %w", err)
	}
	l.stats.Captures++
	log.Printf("EVENTLOOP: captured in %v", time.Since(start))

	l.sel.Clear()
	l.sel.MarkDirty()
	l.painter.ResetPresent()
	if err := l.window.Show(); err != nil {
		return fmt.Errorf("show overlay: %w", err)
	}
	l.visible = true
	return l.handlePaint()
}

func (l *Loop) handlePaint() error {
	if !l.visible || !l.sel.TakeDirty() {
		return nil
	}
	var dims *geometry.Dimensions
	if d, ok := l.sel.Selection(); ok {
		dims = &d
	}
	if err := l.painter.Paint(l.frames.FrameView(), dims); err != nil {
		l.stats.PaintErrors++
		return fmt.Errorf("paint: %w", err)
	}
	l.stats.Paints++
	return nil
}

func (l *Loop) handleSelection(ctx context.Context, e selection.Event) error {
	if !l.visible {
		return nil
	}
	r := l.sel.Handle(e)
	if r.Actions.Has(selection.ResetPresent) {
		l.painter.ResetPresent()
	}
	if r.Actions.Has(selection.HideOverlay) {
		l.hide()
	} else if r.Actions.Has(selection.Redraw) {
		l.window.Invalidate()
	}
	if !r.Actions.Has(selection.Export) {
		return nil
	}
	// the overlay is already gone; the frame stays valid until the next capture
	err := l.export(ctx, r.Export)
	l.sel.Clear()
	return err
}

func (l *Loop) export(ctx context.Context, rect geometry.Rect) error {
	start := time.Now()
	res, err := l.exporter.Run(ctx, l.frames.Frame(), rect)
	if l.opts.OnExport != nil {
		l.opts.OnExport(res, err)
	}
	if err != nil {
		l.stats.ExportErrors++
		if errors.Is(err, export.ErrEmptySelection) {
			log.Printf("EVENTLOOP: nothing to export for %v", rect)
			return nil
		}
		return fmt.Errorf("export %v: %w", rect, err)
	}
	l.stats.Exports++
	log.Printf("EVENTLOOP: exported %v (%d bytes) in %v", res.Rect, len(res.PNG), time.Since(start))
	return nil
}

func (l *Loop) hide() {
	if !l.visible {
		return
	}
	l.visible = false
	l.painter.ResetPresent()
	l.window.Hide()
	log.Printf("EVENTLOOP: overlay hidden")
}
