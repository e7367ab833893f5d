package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// #region watcher
// TuningWatcher reloads a tuning file when it changes on disk.
type TuningWatcher struct {
	path     string
	onChange func(Tuning)
	logger   *zap.Logger
	debounce time.Duration
}

// NewTuningWatcher creates a watcher for path. onChange receives each
// successfully parsed revision; invalid revisions are logged and skipped.
func NewTuningWatcher(path string, onChange func(Tuning), logger *zap.Logger) *TuningWatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TuningWatcher{
		path:     filepath.Clean(path),
		onChange: onChange,
		logger:   logger,
		debounce: 200 * time.Millisecond,
	}
}

// Run watches until ctx is done. The parent directory is watched so editors
// that replace the file by rename are still seen.
func (w *TuningWatcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.logger.Info("watching tuning file", zap.String("path", w.path))

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				pending = time.After(w.debounce)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("tuning watcher error", zap.Error(err))
		case <-pending:
			pending = nil
			w.reload()
		}
	}
}

func (w *TuningWatcher) reload() {
	t, err := LoadTuning(w.path)
	if err != nil {
		w.logger.Warn("tuning reload rejected", zap.String("path", w.path), zap.Error(err))
		return
	}
	w.logger.Info("tuning reloaded", zap.String("path", w.path))
	w.onChange(t)
}

// #endregion watcher
