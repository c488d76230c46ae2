package settings

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Store owns the current settings snapshot and notifies subscribers when
// the backing file changes. Snapshots are replaced wholesale; readers
// always observe a complete Settings value.
type Store struct {
	path string

	mu      sync.RWMutex
	current Settings
	subs    []func(Settings)
}

// NewStore loads settings from path and returns a store around them.
// A load failure falls back to defaults and is logged, never fatal.
func NewStore(path string, logger *slog.Logger) *Store {
	s, err := Load(path)
	if err != nil {
		logger.Warn("settings: load failed, using defaults", slog.String("error", err.Error()))
	}
	return &Store{path: path, current: s}
}

// Current returns the active settings snapshot.
func (st *Store) Current() Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.current
}

// Subscribe registers fn to be called with each new snapshot after a
// reload. Subscribers are invoked synchronously from the reload path.
func (st *Store) Subscribe(fn func(Settings)) {
	st.mu.Lock()
	st.subs = append(st.subs, fn)
	st.mu.Unlock()
}

// Reload re-reads the file and notifies subscribers when the snapshot
// changed. Parse failures keep the previous snapshot.
func (st *Store) Reload(logger *slog.Logger) {
	s, err := Load(st.path)
	if err != nil {
		logger.Warn("settings: reload failed, keeping previous", slog.String("error", err.Error()))
		return
	}

	st.mu.Lock()
	if s == st.current {
		st.mu.Unlock()
		return
	}
	st.current = s
	subs := make([]func(Settings), len(st.subs))
	copy(subs, st.subs)
	st.mu.Unlock()

	logger.Info("settings: reloaded", slog.String("path", st.path))
	for _, fn := range subs {
		fn(s)
	}
}

// Watch runs an fsnotify loop on the settings file until ctx is cancelled.
// The parent directory is watched so atomic replace (tmp + rename) is
// picked up as well as in-place writes.
func (st *Store) Watch(ctx context.Context, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(st.path)
	if err := w.Add(dir); err != nil {
		return err
	}
	target := filepath.Clean(st.path)

	logger.Info("settings: watching", slog.String("path", st.path))

	for {
		select {
		case <-ctx.Done():
			logger.Info("settings: watcher stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			st.Reload(logger)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("settings: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}
