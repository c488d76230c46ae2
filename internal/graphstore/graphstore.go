// Package graphstore defines the graph page file abstraction.
package graphstore

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// PageMeta is a lightweight representation returned by list operations.
type PageMeta struct {
	Path      string
	Checksum  string
	UpdatedAt time.Time
}

// Provider is the interface for graph page file operations.
type Provider interface {
	// List returns metadata for every .md page under dir (relative to the graph root).
	List(dir string) ([]PageMeta, error)
	// Read returns the raw bytes of the page at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the page at path.
	Delete(path string) error
}

// Checksum returns the hex-encoded SHA-256 digest of data.
func Checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
