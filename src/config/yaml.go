package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// YAML renders the effective configuration. Durations are written in
// time.Duration notation.
func (c *Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return out, nil
}
