// Package capture pulls desktop frames out of a duplication service and keeps
// a private copy for the preview and export stages.
package capture

import (
	"errors"
	"time"

	"hdr-snip/src/geometry"
	"hdr-snip/src/gpu"
)

var (
	// ErrWaitTimeout means no new frame arrived within the wait. Expected
	// whenever the desktop is static.
	ErrWaitTimeout = errors.New("capture: wait for next frame timed out")
	// ErrAccessLost means the duplication session is permanently invalid,
	// for example after a mode change or when the secure desktop appears.
	ErrAccessLost = errors.New("capture: duplication access lost")
	// ErrAccessLostExhausted is returned once re-establishing the session
	// has been retried the configured number of times.
	ErrAccessLostExhausted = errors.New("capture: duplication access lost too many times")
)

// FrameInfo is the metadata returned with a duplicated frame.
type FrameInfo struct {
	// LastPresentTime is zero when only the pointer changed.
	LastPresentTime   int64
	AccumulatedFrames uint32
}

// OutputDesc describes the display being duplicated.
type OutputDesc struct {
	Name string
	// Bounds are the desktop coordinates of the output.
	Bounds geometry.Rect
}

// Duplication is one live duplication session.
type Duplication interface {
	// AcquireNextFrame waits up to timeout for a new frame. The texture is
	// only valid until ReleaseFrame and must be released by the caller.
	AcquireNextFrame(timeout time.Duration) (gpu.Texture, FrameInfo, error)
	ReleaseFrame() error
	Release()
}

// Output is a display that can be duplicated.
type Output interface {
	Desc() (OutputDesc, error)
	Duplicate() (Duplication, error)
}
