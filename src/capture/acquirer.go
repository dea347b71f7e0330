package capture

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"hdr-snip/src/gpu"
)

// Defaults for Options.
const (
	DefaultFrameTimeout         = time.Millisecond
	DefaultMaxAccessLostRetries = 3
)

// Options tune an Acquirer.
type Options struct {
	// FrameTimeout bounds each AcquireNextFrame wait.
	FrameTimeout time.Duration
	// MaxAccessLostRetries bounds how often a lost session is re-established
	// within one Acquire call.
	MaxAccessLostRetries int
}

// Stats counts what happened across Acquire calls.
type Stats struct {
	Acquired          uint64
	Timeouts          uint64
	EmptyFrames       uint64
	TransientErrors   uint64
	Reinitialisations uint64
}

// Acquirer owns the captured frame. The frame and its shader resource view
// stay valid until the next successful Acquire or Release. A duplication
// session lives only for the duration of one Acquire call.
type Acquirer struct {
	dev  gpu.Device
	out  Output
	opts Options

	dup  Duplication
	held bool

	frame gpu.Texture
	view  gpu.View

	stats Stats
}

// NewAcquirer creates an acquirer. No session is opened until Acquire.
func NewAcquirer(dev gpu.Device, out Output, opts Options) *Acquirer {
	if opts.FrameTimeout <= 0 {
		opts.FrameTimeout = DefaultFrameTimeout
	}
	if opts.MaxAccessLostRetries <= 0 {
		opts.MaxAccessLostRetries = DefaultMaxAccessLostRetries
	}
	return &Acquirer{dev: dev, out: out, opts: opts}
}

// Stats returns the counters so far.
func (a *Acquirer) Stats() Stats { return a.stats }

// Frame returns the current captured frame, or nil.
func (a *Acquirer) Frame() gpu.Texture { return a.frame }

// FrameView returns the shader resource view of the current frame, or nil.
func (a *Acquirer) FrameView() gpu.View { return a.view }

// Acquire pulls the newest desktop frame. Timeouts and transient errors are
// retried until ctx is done; a lost session is re-established up to
// MaxAccessLostRetries times. Every call duplicates the output afresh, so
// the first frame of the new session carries the current desktop image even
// when nothing has presented since the previous capture.
func (a *Acquirer) Acquire(ctx context.Context) (gpu.Texture, error) {
	defer a.dropSession()
	for lost := 0; ; {
		if a.dup == nil {
			dup, err := a.out.Duplicate()
			if err != nil {
				return nil, fmt.Errorf("duplicate output: %w", err)
			}
			a.dup = dup
		}
		tex, err := a.next(ctx)
		if err == nil {
			return tex, nil
		}
		if !errors.Is(err, ErrAccessLost) {
			return nil, err
		}
		a.dropSession()
		lost++
		if lost > a.opts.MaxAccessLostRetries {
			return nil, fmt.Errorf("%w (%d attempts)", ErrAccessLostExhausted, lost)
		}
		a.stats.Reinitialisations++
		log.Printf("CAPTURE: access lost, re-establishing duplication (%d/%d)", lost, a.opts.MaxAccessLostRetries)
	}
}

func (a *Acquirer) next(ctx context.Context) (gpu.Texture, error) {
	for {
		if err := ctx.Err(); err != nil {
			a.releaseHeld()
			return nil, fmt.Errorf("acquire frame: %w (timeouts=%d)", err, a.stats.Timeouts)
		}
		a.releaseHeld()

		tex, info, err := a.dup.AcquireNextFrame(a.opts.FrameTimeout)
		switch {
		case err == nil:
			a.held = true
			if info.LastPresentTime == 0 {
				tex.Release()
				a.stats.EmptyFrames++
				continue
			}
			copied, err := a.keep(tex)
			tex.Release()
			a.releaseHeld()
			if err != nil {
				return nil, err
			}
			a.stats.Acquired++
			return copied, nil
		case errors.Is(err, ErrWaitTimeout):
			a.stats.Timeouts++
		case errors.Is(err, ErrAccessLost):
			return nil, err
		default:
			a.stats.TransientErrors++
			log.Printf("CAPTURE: AcquireNextFrame failed: %v", err)
		}
	}
}

// keep copies the duplicated frame into a private texture and swaps it in as
// the current frame.
func (a *Acquirer) keep(src gpu.Texture) (gpu.Texture, error) {
	sd := src.Desc()
	tex, err := a.dev.CreateTexture2D(gpu.TextureDesc{
		Width:     sd.Width,
		Height:    sd.Height,
		MipLevels: 1,
		Format:    sd.Format,
		Bind:      gpu.BindShaderResource,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("create frame copy: %w", err)
	}
	a.dev.Context().CopyResource(tex, src)
	view, err := a.dev.CreateShaderResourceView(tex)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("create frame view: %w", err)
	}
	a.dropFrame()
	a.frame, a.view = tex, view
	return tex, nil
}

func (a *Acquirer) releaseHeld() {
	if !a.held || a.dup == nil {
		return
	}
	a.held = false
	if err := a.dup.ReleaseFrame(); err != nil {
		log.Printf("CAPTURE: ReleaseFrame failed: %v", err)
	}
}

func (a *Acquirer) dropSession() {
	a.releaseHeld()
	if a.dup != nil {
		a.dup.Release()
		a.dup = nil
	}
}

func (a *Acquirer) dropFrame() {
	if a.view != nil {
		a.view.Release()
		a.view = nil
	}
	if a.frame != nil {
		a.frame.Release()
		a.frame = nil
	}
}

// Release drops the session and the captured frame.
func (a *Acquirer) Release() {
	a.dropSession()
	a.dropFrame()
}
