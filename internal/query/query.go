// Package query builds and inserts the completed-tasks-for-the-past-week
// query block.
package query

import (
	"fmt"
	"strings"
)

// Build renders a query expression matching blocks whose property equals
// any of the given day-page labels.
func Build(property string, labels []string) string {
	var sb strings.Builder
	sb.WriteString("{{query (or")
	for _, label := range labels {
		fmt.Fprintf(&sb, " (property %s %q)", property, label)
	}
	sb.WriteString(")}}")
	return sb.String()
}
