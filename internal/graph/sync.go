package graph

import (
	"log/slog"

	"github.com/bryclee/taskcheck/internal/graphstore"
	"github.com/bryclee/taskcheck/internal/host"
	"github.com/bryclee/taskcheck/internal/index"
	"github.com/bryclee/taskcheck/internal/outline"
)

// Sync walks the graph and brings the index up to date:
//   - new/changed pages are parsed and their blocks replaced
//   - pages removed from disk are deleted from the index
//
// Sync publishes no change events: it runs before the reactor is live and
// startup reindexing must not replay history as fresh changes.
func Sync(db index.BlockIndex, store graphstore.Provider, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllPageChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("page", m.Path), slog.String("error", err.Error()))
			continue
		}
		page := outline.ParsePage(m.Path, data)
		if err := db.ReplacePageBlocks(m.Path, m.Checksum, page.Blocks); err != nil {
			logger.Warn("sync: index failed", slog.String("page", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("page", m.Path))
		}
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeletePage(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("page", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("page", p))
			}
		}
	}

	return nil
}

// indexPage re-parses a changed page, replaces its index snapshot, and
// returns the ordered list of blocks whose content is new or differs from
// the previous snapshot.
func indexPage(db index.BlockIndex, path string, data []byte) ([]host.BlockChange, error) {
	cs := graphstore.Checksum(data)
	prev, err := db.PageChecksum(path)
	if err != nil {
		return nil, err
	}
	if prev == cs {
		return nil, nil
	}

	before, err := db.BlocksForPage(path)
	if err != nil {
		return nil, err
	}
	byOrdinal := make(map[int]*outline.Block, len(before))
	for _, b := range before {
		byOrdinal[b.Ordinal] = b
	}

	page := outline.ParsePage(path, data)
	if err := db.ReplacePageBlocks(path, cs, page.Blocks); err != nil {
		return nil, err
	}

	var changes []host.BlockChange
	for _, b := range page.Blocks {
		old, existed := byOrdinal[b.Ordinal]
		if existed && old.Content == b.Content {
			continue
		}
		changes = append(changes, host.BlockChange{
			ID:         b.ID,
			Marker:     b.Marker,
			Content:    b.Content,
			Properties: b.Properties,
		})
	}
	return changes, nil
}
