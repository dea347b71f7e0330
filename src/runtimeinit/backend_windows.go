//go:build windows

package runtimeinit

import (
	"fmt"

	"hdr-snip/src/config"
	"hdr-snip/src/gpu/d3d11"
	"hdr-snip/src/shaders"
)

func openHardware(cfg *config.Config) (*Stack, error) {
	progs, err := shaders.Load(resolveShaderDir(cfg.ShaderDir))
	if err != nil {
		return nil, err
	}
	dev, err := d3d11.New(d3d11.Options{Debug: cfg.DebugDevice})
	if err != nil {
		return nil, err
	}
	out, err := d3d11.NewOutput(dev, 0)
	if err != nil {
		dev.Release()
		return nil, fmt.Errorf("output 0: %w", err)
	}
	s := &Stack{Backend: config.BackendD3D11, Device: dev, Output: out, Programs: progs, cfg: cfg}
	s.release = append(s.release, out.Release)
	if err := s.describe(); err != nil {
		return nil, err
	}
	return s, nil
}
