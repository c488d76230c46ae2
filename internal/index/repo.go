package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/bryclee/taskcheck/internal/apperr"
	"github.com/bryclee/taskcheck/internal/outline"
)

// ReplacePageBlocks replaces all indexed blocks of a page in one
// transaction and records the page checksum. Block IDs are kept stable by
// (page, ordinal): an existing row at the same ordinal keeps its ID, new
// ordinals get fresh UUIDs. The passed blocks are mutated with their
// assigned IDs.
func (db *DB) ReplacePageBlocks(page, checksum string, blocks []*outline.Block) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	existing, err := pageIDsByOrdinal(tx, page)
	if err != nil {
		return err
	}

	// IDs already attached to incoming blocks stay claimed: the ordinal
	// fallback below must not hand one of them to a freshly inserted
	// block whose ordinal an existing block used to occupy.
	claimed := make(map[string]struct{}, len(blocks))
	for _, b := range blocks {
		if b.ID != "" {
			claimed[b.ID] = struct{}{}
		}
	}

	if _, err := tx.Exec(`DELETE FROM blocks WHERE page = ?`, page); err != nil {
		return fmt.Errorf("index: clear page: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO blocks (id, page, ordinal, indent, marker, content, properties, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`)
	if err != nil {
		return fmt.Errorf("index: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, b := range blocks {
		if b.ID == "" {
			if id, ok := existing[b.Ordinal]; ok {
				if _, taken := claimed[id]; !taken {
					b.ID = id
				}
			}
			if b.ID == "" {
				b.ID = uuid.NewString()
			}
			claimed[b.ID] = struct{}{}
		}
		propsJSON, _ := json.Marshal(b.Properties)
		if _, err := stmt.Exec(b.ID, page, b.Ordinal, b.Indent, b.Marker, b.Content, string(propsJSON)); err != nil {
			return fmt.Errorf("index: insert block: %w", err)
		}
	}

	if _, err := tx.Exec(`
		INSERT INTO pages (path, checksum) VALUES (?, ?)
		ON CONFLICT(path) DO UPDATE SET checksum = excluded.checksum
	`, page, checksum); err != nil {
		return fmt.Errorf("index: upsert page: %w", err)
	}

	return tx.Commit()
}

func pageIDsByOrdinal(tx *sql.Tx, page string) (map[int]string, error) {
	rows, err := tx.Query(`SELECT ordinal, id FROM blocks WHERE page = ?`, page)
	if err != nil {
		return nil, fmt.Errorf("index: load page ids: %w", err)
	}
	defer rows.Close()
	out := make(map[int]string)
	for rows.Next() {
		var ord int
		var id string
		if err := rows.Scan(&ord, &id); err != nil {
			return nil, err
		}
		out[ord] = id
	}
	return out, rows.Err()
}

// DeletePage removes a page and all of its blocks from the index.
func (db *DB) DeletePage(page string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, _ = tx.Exec(`DELETE FROM blocks WHERE page = ?`, page)
	_, _ = tx.Exec(`DELETE FROM pages WHERE path = ?`, page)

	return tx.Commit()
}

// GetBlock returns the indexed block with the given ID.
func (db *DB) GetBlock(id string) (*outline.Block, error) {
	row := db.conn.QueryRow(`
		SELECT id, page, ordinal, indent, marker, content, properties
		FROM blocks WHERE id = ?
	`, id)
	b, err := scanBlock(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: block %s: %w", id, apperr.ErrNotFound)
	}
	return b, err
}

// BlocksForPage returns a page's blocks ordered by ordinal.
func (db *DB) BlocksForPage(page string) ([]*outline.Block, error) {
	rows, err := db.conn.Query(`
		SELECT id, page, ordinal, indent, marker, content, properties
		FROM blocks WHERE page = ? ORDER BY ordinal
	`, page)
	if err != nil {
		return nil, fmt.Errorf("index: blocks for page: %w", err)
	}
	defer rows.Close()

	var out []*outline.Block
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// FindByProperty returns every block whose property key equals any of the
// given values, ordered by page then ordinal.
func (db *DB) FindByProperty(key string, values []string) ([]*outline.Block, error) {
	if len(values) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(values)), ",")
	args := make([]any, 0, len(values)+1)
	args = append(args, "$."+key)
	for _, v := range values {
		args = append(args, v)
	}

	rows, err := db.conn.Query(fmt.Sprintf(`
		SELECT id, page, ordinal, indent, marker, content, properties
		FROM blocks
		WHERE json_extract(properties, ?) IN (%s)
		ORDER BY page, ordinal
	`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("index: find by property: %w", err)
	}
	defer rows.Close()

	var out []*outline.Block
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// PageChecksum returns the stored checksum for a page, or empty string
// when the page is not indexed.
func (db *DB) PageChecksum(page string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM pages WHERE path = ?`, page).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return cs, err
}

// AllPageChecksums returns the checksum of every indexed page.
func (db *DB) AllPageChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM pages`)
	if err != nil {
		return nil, fmt.Errorf("index: all page checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBlock(r rowScanner) (*outline.Block, error) {
	var b outline.Block
	var propsJSON string
	if err := r.Scan(&b.ID, &b.Page, &b.Ordinal, &b.Indent, &b.Marker, &b.Content, &propsJSON); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(propsJSON), &b.Properties); err != nil {
		return nil, fmt.Errorf("index: decode properties: %w", err)
	}
	if b.Properties == nil {
		b.Properties = make(map[string]string)
	}
	return &b, nil
}
