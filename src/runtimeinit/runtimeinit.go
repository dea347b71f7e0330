// Package runtimeinit performs the startup shared by the resident and the
// headless commands: configuration, logging, the clipboard and the GPU
// backend with its frame source.
package runtimeinit

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"hdr-snip/src/capture"
	"hdr-snip/src/clipboard"
	"hdr-snip/src/config"
	"hdr-snip/src/export"
	"hdr-snip/src/geometry"
	"hdr-snip/src/gpu"
	"hdr-snip/src/gpu/soft"
	"hdr-snip/src/screenshot"
	"hdr-snip/src/shaders"
)

type Options struct {
	LoadOptions  config.LoadOptions
	SetupLogging func(bool)
}

func Bootstrap(opts Options) (*config.Config, error) {
	cfg, err := config.LoadWithOptions(opts.LoadOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if opts.SetupLogging != nil {
		opts.SetupLogging(cfg.EnableFileLogging)
	}
	if cfg.ConfigFileUsed != "" {
		log.Printf("Config file: %s", cfg.ConfigFileUsed)
	}

	if err := clipboard.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize clipboard: %w", err)
	}
	return cfg, nil
}

// Stack is an opened backend: device, frame source, programs and the output
// geometry they were opened for.
type Stack struct {
	Backend  string
	Device   gpu.Device
	Output   capture.Output
	Desc     capture.OutputDesc
	Programs shaders.Set

	cfg     *config.Config
	release []func()
}

// Width is the output width in pixels.
func (s *Stack) Width() uint32 { return s.Desc.Bounds.Width() }

// Height is the output height in pixels.
func (s *Stack) Height() uint32 { return s.Desc.Bounds.Height() }

// OpenBackend opens the configured backend. "auto" prefers the hardware
// device and falls back to the software device with GDI capture.
func OpenBackend(cfg *config.Config) (*Stack, error) {
	switch cfg.Backend {
	case config.BackendSoftware:
		return openSoftware(cfg)
	case config.BackendD3D11:
		return openHardware(cfg)
	}
	s, err := openHardware(cfg)
	if err == nil {
		return s, nil
	}
	log.Printf("BACKEND: hardware unavailable (%v), using software", err)
	return openSoftware(cfg)
}

func openSoftware(cfg *config.Config) (*Stack, error) {
	dev := soft.New()
	out, err := screenshot.NewOutput(dev, 0)
	if err != nil {
		return nil, fmt.Errorf("software frame source: %w", err)
	}
	s := &Stack{Backend: config.BackendSoftware, Device: dev, Output: out, Programs: shaders.Named(), cfg: cfg}
	if err := s.describe(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Stack) describe() error {
	desc, err := s.Output.Desc()
	if err != nil {
		s.Release()
		return fmt.Errorf("describe output: %w", err)
	}
	if !desc.Bounds.HasArea() {
		s.Release()
		return fmt.Errorf("output %q has empty bounds %v", desc.Name, desc.Bounds)
	}
	s.Desc = desc
	log.Printf("BACKEND: %s on %q at %v", s.Backend, desc.Name, desc.Bounds)
	return nil
}

// Acquirer creates the frame acquirer for the output.
func (s *Stack) Acquirer() *capture.Acquirer {
	return capture.NewAcquirer(s.Device, s.Output, capture.Options{
		FrameTimeout:         s.cfg.FrameTimeout,
		MaxAccessLostRetries: s.cfg.AccessLostRetries,
	})
}

// Exporter creates the export pipeline. clip may be nil.
func (s *Stack) Exporter(clip export.Publisher) (*export.Pipeline, error) {
	return export.New(s.Device, s.Programs.Export(), clip, export.Options{
		OutputPath:  s.cfg.OutputPath,
		Diagnostics: s.cfg.ReadbackDiagnostics,
	})
}

// Local converts a desktop rectangle to output-local pixels.
func (s *Stack) Local(r geometry.Rect) geometry.Rect {
	return r.Offset(-s.Desc.Bounds.Left, -s.Desc.Bounds.Top)
}

// Release frees everything OpenBackend created, newest first.
func (s *Stack) Release() {
	for i := len(s.release) - 1; i >= 0; i-- {
		s.release[i]()
	}
	s.release = nil
	if s.Device != nil {
		s.Device.Release()
		s.Device = nil
	}
}

// resolveShaderDir finds dir next to the executable when it is relative and
// absent from the working directory.
func resolveShaderDir(dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	if _, err := os.Stat(dir); err == nil {
		return dir
	}
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), dir)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return dir
}
