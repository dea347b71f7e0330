package logutil

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gogpu/gg"
)

const (
	logFileName  = "hdr_snip_debug.log"
	maxSizeBytes = 10 * 1024 * 1024 // 10 MB
	maxArchives  = 3
)

// Setup enables file logging with basic size-based rotation (10MB, max 3 files).
// When disabled, logs are discarded to keep stdout clean. The rasteriser's
// slog output follows the same destination.
func Setup(enableFileLogging bool) {
	SetupAt(".", enableFileLogging)
}

// SetupAt is Setup with the log file placed in dir.
func SetupAt(dir string, enableFileLogging bool) {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if !enableFileLogging {
		log.SetOutput(io.Discard)
		gg.SetLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
		return
	}
	w, err := openRotating(filepath.Join(dir, logFileName))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		return
	}
	log.SetOutput(w)
	gg.SetLogger(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})))
}

type rotatingWriter struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

func openRotating(path string) (*rotatingWriter, error) {
	rotate(path)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		return nil, err
	}
	return &rotatingWriter{path: path, f: f}, nil
}

func (w *rotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	// naive rotation check per write
	if st, err := w.f.Stat(); err == nil && st.Size()+int64(len(p)) > maxSizeBytes {
		_ = w.f.Close()
		if st.Size() > 0 {
			shift(w.path)
		}
		nf, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			return 0, err
		}
		w.f = nf
	}
	return w.f.Write(p)
}

// rotate shifts path into the archives when it already exceeds the limit.
func rotate(path string) {
	if st, err := os.Stat(path); err == nil && st.Size() > maxSizeBytes {
		shift(path)
	}
}

// shift moves path to .1, .1 to .2 and so on; the oldest is discarded.
func shift(path string) {
	_ = os.Remove(archiveName(path, maxArchives))
	for i := maxArchives - 1; i >= 1; i-- {
		_ = os.Rename(archiveName(path, i), archiveName(path, i+1))
	}
	_ = os.Rename(path, archiveName(path, 1))
}

func archiveName(path string, n int) string { return fmt.Sprintf("%s.%d", path, n) }
