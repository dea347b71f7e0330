package config

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchSettle absorbs the burst of events editors produce for one save.
const watchSettle = 250 * time.Millisecond

// Files lists the configuration files this Config was read from.
func (c *Config) Files() []string {
	var files []string
	for _, f := range []string{c.ConfigFileUsed, c.EnvFileUsed} {
		if f != "" {
			files = append(files, f)
		}
	}
	return files
}

// Watch calls onChange after any of files is written, created or renamed
// into place, until ctx is done. The parent directories are watched so
// editors that replace the file are seen too.
func Watch(ctx context.Context, files []string, onChange func()) error {
	if len(files) == 0 {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	defer w.Close()

	wanted := make(map[string]bool, len(files))
	dirs := make(map[string]bool)
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return err
		}
		wanted[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	log.Printf("CONFIG: watching %v", files)

	var settle *time.Timer
	defer func() {
		if settle != nil {
			settle.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !wanted[filepath.Clean(ev.Name)] || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if settle != nil {
				settle.Stop()
			}
			settle = time.AfterFunc(watchSettle, onChange)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Printf("CONFIG: watcher error: %v", err)
		}
	}
}
