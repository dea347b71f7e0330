// Package clipboard places encoded images on the system clipboard.
package clipboard

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// DefaultFormat is the registered clipboard format name used for PNG data.
const DefaultFormat = "png"

// ErrEmpty rejects publishing zero bytes.
var ErrEmpty = errors.New("clipboard: empty data")

var (
	writeMu sync.Mutex
)

// Init prepares the platform clipboard.
func Init() error {
	return initPlatform()
}

// Publisher writes PNG bytes under one named clipboard format.
type Publisher struct {
	format string
	write  func(format string, data []byte) error
}

// NewPublisher returns a Publisher for format, or DefaultFormat when empty.
func NewPublisher(format string) *Publisher {
	if format == "" {
		format = DefaultFormat
	}
	return &Publisher{format: format, write: writePlatform}
}

// Format reports the clipboard format name.
func (p *Publisher) Format() string { return p.format }

// Publish performs a mutex-guarded clipboard write so concurrent exports do
// not interleave their open/empty/set sequences.
func (p *Publisher) Publish(ctx context.Context, data []byte) error {
	if len(data) == 0 {
		return ErrEmpty
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	writeMu.Lock()
	defer writeMu.Unlock()
	if err := p.write(p.format, data); err != nil {
		return fmt.Errorf("clipboard %q: %w", p.format, err)
	}
	log.Printf("CLIPBOARD: wrote %d bytes as %q", len(data), p.format)
	return nil
}

// PersistFile writes data to path, creating the parent directory. Callers
// treat a failure as non-fatal.
func PersistFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	log.Printf("CLIPBOARD: saved %d bytes to %s", len(data), path)
	return nil
}
