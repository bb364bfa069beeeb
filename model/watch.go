package model

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the definition file whenever it changes on disk and hands
// the result to onChange. Parse or validation failures keep the previous
// definition and are logged. The returned function stops the watcher.
func Watch(path string, onChange func(*Definition), logger *slog.Logger) (func() error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("model: watch: %w", err)
	}
	// Watch the directory: editors replace files rather than write in place.
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, fmt.Errorf("model: watch %s: %w", path, err)
	}
	target := filepath.Clean(path)
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				def, err := LoadFile(target)
				if err != nil {
					logger.Error("model reload failed", "path", target, "err", err)
					continue
				}
				logger.Info("model definition reloaded", "path", target, "name", def.Name)
				onChange(def)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("model watcher error", "err", err)
			}
		}
	}()
	return w.Close, nil
}
