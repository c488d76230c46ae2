package graph

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bryclee/taskcheck/internal/graphstore"
	"github.com/bryclee/taskcheck/internal/host"
	"github.com/bryclee/taskcheck/internal/index"
)

// Publisher receives one ordered change batch per page mutation.
type Publisher func(batch host.ChangeBatch)

// Watch starts an fsnotify watcher on the graph root and processes page
// change events until ctx is cancelled. Each changed page is re-parsed,
// diffed against the index snapshot, and the changed blocks are published
// (if non-nil) as a single batch.
//
// New directories created at runtime are automatically added to the watch
// list. Rename events trigger a reconciliation pass that removes stale
// index entries whose pages no longer exist on disk.
func Watch(ctx context.Context, db index.BlockIndex, store graphstore.Provider, root string, logger *slog.Logger, publish Publisher) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	// reconcileTimer is used to debounce rename reconciliation.
	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcileAfterRename(db, store, logger, publish)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			// --- Handle new directories: add to watcher ---
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					indexNewDir(db, store, root, absPath, logger, publish)
					continue
				}
			}

			// Only process .md pages from here on.
			if !strings.HasSuffix(absPath, ".md") {
				continue
			}

			rel, relErr := filepath.Rel(root, absPath)
			if relErr != nil {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				data, readErr := store.Read(rel)
				if readErr != nil {
					logger.Warn("watcher: read failed", slog.String("page", rel), slog.String("error", readErr.Error()))
					continue
				}
				changes, idxErr := indexPage(db, rel, data)
				if idxErr != nil {
					logger.Warn("watcher: index failed", slog.String("page", rel), slog.String("error", idxErr.Error()))
					continue
				}
				if len(changes) == 0 {
					continue
				}
				logger.Debug("watcher: page changed",
					slog.String("page", rel),
					slog.Int("blocks", len(changes)))
				if publish != nil {
					publish(host.ChangeBatch{Page: rel, Blocks: changes})
				}

			case ev.Op&fsnotify.Remove != 0:
				if delErr := db.DeletePage(rel); delErr != nil {
					logger.Warn("watcher: delete failed", slog.String("page", rel), slog.String("error", delErr.Error()))
					continue
				}
				logger.Debug("watcher: page deleted", slog.String("page", rel))

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify fires Rename on the OLD path only. The new
				// path will arrive as a separate Create event (if it
				// stays within a watched dir). We delete the old entry
				// immediately and schedule a short reconciliation pass
				// to catch any stragglers.
				if delErr := db.DeletePage(rel); delErr != nil {
					logger.Warn("watcher: rename delete failed", slog.String("page", rel), slog.String("error", delErr.Error()))
				} else {
					logger.Debug("watcher: rename old deleted", slog.String("page", rel))
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcileAfterRename does a lightweight sync using batch lookups:
// finds index entries without a corresponding page on disk and removes
// them, and indexes on-disk pages whose checksum differs.
func reconcileAfterRename(db index.BlockIndex, store graphstore.Provider, logger *slog.Logger, publish Publisher) {
	checksums, err := db.AllPageChecksums()
	if err != nil {
		logger.Warn("reconcile: checksums failed", slog.String("error", err.Error()))
		return
	}

	metas, err := store.List("")
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		disk[m.Path] = m.Checksum
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if delErr := db.DeletePage(p); delErr == nil {
				logger.Debug("reconcile: removed stale", slog.String("page", p))
			}
		}
	}

	for p, cs := range disk {
		if checksums[p] == cs {
			continue
		}
		data, readErr := store.Read(p)
		if readErr != nil {
			continue
		}
		changes, idxErr := indexPage(db, p, data)
		if idxErr != nil {
			continue
		}
		if len(changes) > 0 && publish != nil {
			logger.Debug("reconcile: indexed", slog.String("page", p))
			publish(host.ChangeBatch{Page: p, Blocks: changes})
		}
	}
}

// indexNewDir indexes any .md pages found in a newly created directory.
func indexNewDir(db index.BlockIndex, store graphstore.Provider, root, dirPath string, logger *slog.Logger, publish Publisher) {
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".md") {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		data, readErr := store.Read(rel)
		if readErr != nil {
			return nil
		}
		changes, idxErr := indexPage(db, rel, data)
		if idxErr != nil {
			return nil
		}
		if len(changes) > 0 && publish != nil {
			logger.Debug("watcher: indexed from new dir", slog.String("page", rel))
			publish(host.ChangeBatch{Page: rel, Blocks: changes})
		}
		return nil
	})
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
