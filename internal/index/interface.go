package index

import "github.com/bryclee/taskcheck/internal/outline"

// BlockIndex defines the interface for block index operations. Consumers
// should depend on this interface rather than the concrete *DB type to
// facilitate testing with fakes.
type BlockIndex interface {
	ReplacePageBlocks(page, checksum string, blocks []*outline.Block) error
	DeletePage(page string) error
	GetBlock(id string) (*outline.Block, error)
	BlocksForPage(page string) ([]*outline.Block, error)
	FindByProperty(key string, values []string) ([]*outline.Block, error)
	PageChecksum(page string) (string, error)
	AllPageChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies BlockIndex at compile time.
var _ BlockIndex = (*DB)(nil)
