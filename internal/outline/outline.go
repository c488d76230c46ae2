// Package outline parses markdown outline pages into blocks and renders
// them back. A block is one bullet node: its bullet line plus any
// more-indented continuation lines (properties, logbook entries). Child
// bullets are separate blocks with a deeper indent level.
package outline

import (
	"regexp"
	"strings"
)

var (
	bulletRe   = regexp.MustCompile(`^(\s*)- (.*)$`)
	markerRe   = regexp.MustCompile(`^([A-Z]+)(?:\s|$)`)
	propertyRe = regexp.MustCompile(`^([A-Za-z0-9_-]+)::\s*(.*)$`)
)

// Block is one outline node of a page.
type Block struct {
	ID         string // assigned by the index; empty until indexed
	Page       string
	Ordinal    int
	Indent     int    // nesting level, 0 = top
	Marker     string // leading task marker ("TODO", "DONE", ...), "" if none
	Content    string // multi-line, dedented; first line is the bullet text
	Properties map[string]string
}

// Page is an ordered list of blocks plus any preamble lines that appear
// before the first bullet (page-level properties, frontmatter).
type Page struct {
	Path     string
	Preamble []string
	Blocks   []*Block
}

// NewBlock builds a block from raw content, deriving marker and properties.
func NewBlock(content string) *Block {
	return &Block{
		Content:    content,
		Marker:     ExtractMarker(content),
		Properties: ParseProperties(content),
	}
}

// Refresh re-derives marker and properties after a content change.
func (b *Block) Refresh() {
	b.Marker = ExtractMarker(b.Content)
	b.Properties = ParseProperties(b.Content)
}

// ExtractMarker returns the leading uppercase task marker of the first
// content line, or "" when the line does not start with one.
func ExtractMarker(content string) string {
	first := content
	if i := strings.IndexByte(content, '\n'); i >= 0 {
		first = content[:i]
	}
	m := markerRe.FindStringSubmatch(first)
	if m == nil {
		return ""
	}
	return m[1]
}

// ParseProperties collects `key:: value` lines from block content.
func ParseProperties(content string) map[string]string {
	props := make(map[string]string)
	for _, line := range strings.Split(content, "\n") {
		m := propertyRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		props[m[1]] = m[2]
	}
	return props
}

// ParsePage parses raw page bytes into an ordered block list. Indent level
// is derived from leading whitespace (two spaces per level); continuation
// lines are dedented into the owning block's content. Blank lines between
// blocks are dropped.
func ParsePage(path string, data []byte) *Page {
	p := &Page{Path: path}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")

	var cur *Block
	var curLines []string

	flush := func() {
		if cur == nil {
			return
		}
		cur.Content = strings.Join(curLines, "\n")
		cur.Refresh()
		cur.Ordinal = len(p.Blocks)
		p.Blocks = append(p.Blocks, cur)
		cur = nil
		curLines = nil
	}

	for _, line := range lines {
		if m := bulletRe.FindStringSubmatch(line); m != nil {
			flush()
			cur = &Block{Page: path, Indent: len(m[1]) / 2}
			curLines = []string{m[2]}
			continue
		}
		if cur == nil {
			p.Preamble = append(p.Preamble, line)
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		curLines = append(curLines, strings.TrimSpace(line))
	}
	flush()

	// Drop a trailing run of blank preamble lines on block-less pages.
	for len(p.Preamble) > 0 && p.Preamble[len(p.Preamble)-1] == "" {
		p.Preamble = p.Preamble[:len(p.Preamble)-1]
	}

	return p
}

// Render serialises the page back to markdown bytes. Bullet lines are
// indented two spaces per level; continuation lines two more.
func (p *Page) Render() []byte {
	var sb strings.Builder
	for _, line := range p.Preamble {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	for _, b := range p.Blocks {
		pad := strings.Repeat("  ", b.Indent)
		for i, line := range strings.Split(b.Content, "\n") {
			if i == 0 {
				sb.WriteString(pad)
				sb.WriteString("- ")
			} else {
				sb.WriteString(pad)
				sb.WriteString("  ")
			}
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
	}
	return []byte(sb.String())
}

// Position selects where Insert places a new block relative to a reference.
type Position int

const (
	// Before places the new block immediately before the reference,
	// at the same indent level.
	Before Position = iota
	// Child places the new block as the first child of the reference.
	Child
	// SiblingAfter places the new block after the reference's entire
	// subtree, at the same indent level.
	SiblingAfter
)

// Insert places b relative to the block at refOrdinal and renumbers
// ordinals. It returns false when refOrdinal is out of range.
func (p *Page) Insert(refOrdinal int, b *Block, pos Position) bool {
	if refOrdinal < 0 || refOrdinal >= len(p.Blocks) {
		return false
	}
	ref := p.Blocks[refOrdinal]
	b.Page = p.Path

	at := refOrdinal
	switch pos {
	case Before:
		b.Indent = ref.Indent
	case Child:
		b.Indent = ref.Indent + 1
		at = refOrdinal + 1
	case SiblingAfter:
		b.Indent = ref.Indent
		at = p.subtreeEnd(refOrdinal)
	}

	p.Blocks = append(p.Blocks, nil)
	copy(p.Blocks[at+1:], p.Blocks[at:])
	p.Blocks[at] = b
	for i, blk := range p.Blocks {
		blk.Ordinal = i
	}
	return true
}

// subtreeEnd returns the index just past the block at i and all of its
// descendants.
func (p *Page) subtreeEnd(i int) int {
	indent := p.Blocks[i].Indent
	j := i + 1
	for j < len(p.Blocks) && p.Blocks[j].Indent > indent {
		j++
	}
	return j
}
