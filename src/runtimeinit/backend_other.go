//go:build !windows

package runtimeinit

import (
	"errors"

	"hdr-snip/src/config"
)

func openHardware(*config.Config) (*Stack, error) {
	return nil, errors.New("d3d11 backend requires Windows")
}
