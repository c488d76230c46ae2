// Package host defines the interfaces and event types through which the
// core reacts to and mutates the block graph. The concrete implementation
// lives in internal/graph; tests substitute fakes.
package host

import (
	"context"

	"github.com/bryclee/taskcheck/internal/outline"
)

// BlockChange is a snapshot of one changed block at the time of change.
type BlockChange struct {
	ID         string
	Marker     string
	Content    string
	Properties map[string]string
}

// ChangeBatch is one ordered batch of changed blocks, delivered as a
// single event.
type ChangeBatch struct {
	Page   string
	Blocks []BlockChange
}

// BlockReader fetches block snapshots by ID.
type BlockReader interface {
	GetBlock(ctx context.Context, id string) (*outline.Block, error)
}

// BlockUpdater persists new content and properties for a block.
type BlockUpdater interface {
	UpdateBlock(ctx context.Context, id, content string, props map[string]string) error
}

// InsertOpts controls placement of an inserted block relative to its
// reference block.
type InsertOpts struct {
	Before  bool // place before the reference instead of after
	Sibling bool // same level as the reference; false nests as a child
}

// BlockInserter creates a new block relative to an existing one and
// returns it with its assigned ID.
type BlockInserter interface {
	InsertBlock(ctx context.Context, refID, content string, opts InsertOpts) (*outline.Block, error)
}

// ConfigProvider exposes host-level user configuration.
type ConfigProvider interface {
	// PreferredDateFormat returns the pattern used to name date pages.
	PreferredDateFormat(ctx context.Context) (string, error)
}
