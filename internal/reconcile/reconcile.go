// Package reconcile keeps a block's visible text consistent with its
// property map when properties are added or removed.
package reconcile

import (
	"fmt"
	"sort"
	"strings"
)

// Request names the property keys to add (with their values) and the keys
// to remove from a block's content.
type Request struct {
	Add    map[string]string
	Remove []string
}

// Apply returns new block content with the requested property lines added
// or removed. Host-managed logbook lines are always stripped: they are
// rendered separately by the host and must not appear in editable text.
//
// An addition is only appended when its key is absent from props; a removal
// only takes effect when its key is present in props. Lines for keys not
// named in the request are never touched and retain their original order,
// so re-applying the same request to the output is a no-op.
func Apply(content string, props map[string]string, req Request) string {
	lines := strings.Split(content, "\n")

	kept := lines[:0]
	for _, line := range lines {
		if isLogbookLine(line) {
			continue
		}
		kept = append(kept, line)
	}
	lines = kept

	// Additions in sorted key order so output is deterministic.
	addKeys := make([]string, 0, len(req.Add))
	for k := range req.Add {
		addKeys = append(addKeys, k)
	}
	sort.Strings(addKeys)
	for _, key := range addKeys {
		if _, exists := props[key]; exists {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s:: %s", key, req.Add[key]))
	}

	for _, key := range req.Remove {
		if _, exists := props[key]; !exists {
			continue
		}
		prefix := key + "::"
		kept := lines[:0]
		for _, line := range lines {
			if strings.HasPrefix(strings.TrimSpace(line), prefix) {
				continue
			}
			kept = append(kept, line)
		}
		lines = kept
	}

	return strings.Join(lines, "\n")
}

// isLogbookLine reports whether line belongs to a host-managed logbook
// section: the open tag, a clock entry, or the close tag.
func isLogbookLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	return trimmed == ":LOGBOOK:" ||
		trimmed == ":END:" ||
		strings.HasPrefix(trimmed, "CLOCK:")
}
