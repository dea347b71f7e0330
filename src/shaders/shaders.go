// Package shaders loads the compiled shader objects used by the preview and
// export stages.
package shaders

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"hdr-snip/src/export"
	"hdr-snip/src/gpu"
	"hdr-snip/src/preview"
)

// Program names; each is loaded from <dir>/<name>.cso.
const (
	Vertex     = "VertexShader"
	Pixel      = "PixelShader"
	Preprocess = "PreprocessShader"
	Convert    = "ConvertShader"
)

var ErrMissing = errors.New("shaders: compiled shader missing")

// Set holds all four programs.
type Set struct {
	Vertex, Pixel, Preprocess, Convert gpu.Program
}

// Preview returns the programs for the overlay renderer.
func (s Set) Preview() preview.Programs {
	return preview.Programs{Vertex: s.Vertex, Pixel: s.Pixel}
}

// Export returns the compute kernels.
func (s Set) Export() export.Programs {
	return export.Programs{Preprocess: s.Preprocess, Convert: s.Convert}
}

// Load reads every .cso file from dir.
func Load(dir string) (Set, error) {
	var s Set
	for _, p := range []struct {
		name string
		dst  *gpu.Program
	}{
		{Vertex, &s.Vertex},
		{Pixel, &s.Pixel},
		{Preprocess, &s.Preprocess},
		{Convert, &s.Convert},
	} {
		path := filepath.Join(dir, p.name+".cso")
		code, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return Set{}, fmt.Errorf("%w: %s", ErrMissing, path)
			}
			return Set{}, fmt.Errorf("read %s: %w", path, err)
		}
		if len(code) == 0 {
			return Set{}, fmt.Errorf("%w: %s is empty", ErrMissing, path)
		}
		*p.dst = gpu.Program{Name: p.name, Bytecode: code}
	}
	log.Printf("SHADERS: loaded 4 programs from %s", dir)
	return s, nil
}

// Named returns programs carrying only their names, for backends that
// resolve programs by name.
func Named() Set {
	return Set{
		Vertex:     gpu.Program{Name: Vertex},
		Pixel:      gpu.Program{Name: Pixel},
		Preprocess: gpu.Program{Name: Preprocess},
		Convert:    gpu.Program{Name: Convert},
	}
}
