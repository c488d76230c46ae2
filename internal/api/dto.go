package api

import (
	"github.com/bryclee/taskcheck/internal/outline"
)

// BlockDetail is the full block response type.
type BlockDetail struct {
	ID         string            `json:"id" example:"9f1c2a8e-..."`
	Page       string            `json:"page" example:"journals/2024_03_04.md"`
	Ordinal    int               `json:"ordinal" example:"0"`
	Indent     int               `json:"indent" example:"1"`
	Marker     string            `json:"marker,omitempty" example:"DONE"`
	Content    string            `json:"content" example:"DONE write the report"`
	Properties map[string]string `json:"properties,omitempty"`
}

func toBlockDetail(b *outline.Block) BlockDetail {
	return BlockDetail{
		ID:         b.ID,
		Page:       b.Page,
		Ordinal:    b.Ordinal,
		Indent:     b.Indent,
		Marker:     b.Marker,
		Content:    b.Content,
		Properties: b.Properties,
	}
}

func toBlockDetails(blocks []*outline.Block) []BlockDetail {
	out := make([]BlockDetail, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, toBlockDetail(b))
	}
	return out
}

// UpdateBlockRequest is the request body for replacing a block's content.
type UpdateBlockRequest struct {
	Content string `json:"content" example:"DONE write the report"`
}

// QueryResponse wraps property query results.
type QueryResponse struct {
	Blocks []BlockDetail `json:"blocks"`
	Total  int           `json:"total" example:"3"`
}

// CommandInfo describes a registered editor command.
type CommandInfo struct {
	Name  string `json:"name" example:"completed-last-week"`
	Label string `json:"label" example:"Completed tasks for the past week"`
}

// InvokeCommandRequest is the request body for invoking a command.
type InvokeCommandRequest struct {
	BlockID string `json:"blockId" example:"9f1c2a8e-..."`
}
