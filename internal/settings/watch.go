package settings

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses the bursts of events editors produce on save.
const DefaultDebounce = 200 * time.Millisecond

// Watch reloads the settings file whenever it changes on disk until ctx is
// cancelled. The parent directory is watched so the file may be created,
// replaced or removed; a removed file falls back to the defaults. Invalid
// content is logged and ignored.
func (s *Store) Watch(ctx context.Context, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := s.files.Path(s.path)
	if err != nil {
		return fmt.Errorf("settings: watch: %w", err)
	}
	dir, name := filepath.Dir(abs), filepath.Base(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("settings: watch: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("settings: watch: %w", err)
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("settings: watch %s: %w", dir, err)
	}
	s.logger.Info("settings: watching", slog.String("path", abs))

	var timer *time.Timer
	var fire <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			fire = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			s.logger.Info("settings: watcher stopped")
			return nil

		case <-fire:
			if _, err := s.Load(); err != nil {
				s.logger.Warn("settings: reload failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				s.logger.Debug("settings: changed", slog.String("op", ev.Op.String()))
				schedule()
			}

		case werr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("settings: watcher error", slog.String("error", werr.Error()))
		}
	}
}
