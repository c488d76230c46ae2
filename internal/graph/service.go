// Package graph implements the host adapter over the page store and block
// index: block reads, updates, insertions, and change detection.
package graph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bryclee/taskcheck/internal/apperr"
	"github.com/bryclee/taskcheck/internal/graphstore"
	"github.com/bryclee/taskcheck/internal/host"
	"github.com/bryclee/taskcheck/internal/index"
	"github.com/bryclee/taskcheck/internal/outline"
)

// Service coordinates store and index operations on blocks.
type Service struct {
	store      graphstore.Provider
	db         index.BlockIndex
	dateFormat string
	logger     *slog.Logger
}

// Compile-time checks against the host-facing interfaces.
var (
	_ host.BlockReader    = (*Service)(nil)
	_ host.BlockUpdater   = (*Service)(nil)
	_ host.BlockInserter  = (*Service)(nil)
	_ host.ConfigProvider = (*Service)(nil)
)

// NewService creates a graph service. dateFormat is the configured
// preferred date-page format.
func NewService(store graphstore.Provider, db index.BlockIndex, dateFormat string, logger *slog.Logger) *Service {
	return &Service{store: store, db: db, dateFormat: dateFormat, logger: logger}
}

// PreferredDateFormat returns the configured date-page naming pattern.
func (s *Service) PreferredDateFormat(_ context.Context) (string, error) {
	return s.dateFormat, nil
}

// GetBlock returns the indexed snapshot of a block.
func (s *Service) GetBlock(_ context.Context, id string) (*outline.Block, error) {
	return s.db.GetBlock(id)
}

// UpdateBlock replaces a block's content, rewrites the owning page
// atomically, and reindexes it. The property map is re-derived from the
// written content, which carries the property lines.
func (s *Service) UpdateBlock(_ context.Context, id, content string, _ map[string]string) error {
	ref, err := s.db.GetBlock(id)
	if err != nil {
		return err
	}
	page, err := s.loadPage(ref.Page)
	if err != nil {
		return err
	}
	if ref.Ordinal >= len(page.Blocks) || page.Blocks[ref.Ordinal].ID != id {
		return fmt.Errorf("graph: block %s moved on page %s: %w", id, ref.Page, apperr.ErrConflict)
	}

	target := page.Blocks[ref.Ordinal]
	target.Content = content
	target.Refresh()

	return s.writePage(page)
}

// InsertBlock creates a new block relative to refID and returns it with
// its assigned ID.
func (s *Service) InsertBlock(_ context.Context, refID, content string, opts host.InsertOpts) (*outline.Block, error) {
	ref, err := s.db.GetBlock(refID)
	if err != nil {
		return nil, err
	}
	page, err := s.loadPage(ref.Page)
	if err != nil {
		return nil, err
	}

	pos := outline.Child
	switch {
	case opts.Before:
		pos = outline.Before
	case opts.Sibling:
		pos = outline.SiblingAfter
	}

	nb := outline.NewBlock(content)
	if !page.Insert(ref.Ordinal, nb, pos) {
		return nil, fmt.Errorf("graph: block %s moved on page %s: %w", refID, ref.Page, apperr.ErrConflict)
	}

	if err := s.writePage(page); err != nil {
		return nil, err
	}
	return nb, nil
}

// QueryByProperty returns blocks whose property key equals any of values.
func (s *Service) QueryByProperty(_ context.Context, key string, values []string) ([]*outline.Block, error) {
	return s.db.FindByProperty(key, values)
}

// loadPage reads and parses a page, attaching indexed block IDs so edits
// keep identities stable.
func (s *Service) loadPage(path string) (*outline.Page, error) {
	data, err := s.store.Read(path)
	if err != nil {
		return nil, err
	}
	page := outline.ParsePage(path, data)

	indexed, err := s.db.BlocksForPage(path)
	if err != nil {
		return nil, err
	}
	for _, row := range indexed {
		if row.Ordinal < len(page.Blocks) {
			page.Blocks[row.Ordinal].ID = row.ID
		}
	}
	return page, nil
}

// writePage renders, atomically writes, and reindexes a page.
func (s *Service) writePage(page *outline.Page) error {
	rendered := page.Render()
	if err := s.store.Write(page.Path, rendered); err != nil {
		return err
	}
	cs := graphstore.Checksum(rendered)
	if err := s.db.ReplacePageBlocks(page.Path, cs, page.Blocks); err != nil {
		return err
	}
	s.logger.Debug("graph: page written", slog.String("page", page.Path))
	return nil
}
