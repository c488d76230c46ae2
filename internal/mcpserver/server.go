// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes taskcheck tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/bryclee/taskcheck/internal/command"
	"github.com/bryclee/taskcheck/internal/index"
	"github.com/bryclee/taskcheck/internal/query"
)

// Server wraps the MCP server with taskcheck tools.
type Server struct {
	mcp      *server.MCPServer
	db       index.BlockIndex
	commands *command.Registry
}

// New creates a new MCP server with all taskcheck tools registered.
func New(db index.BlockIndex, commands *command.Registry) *Server {
	s := &Server{db: db, commands: commands}

	s.mcp = server.NewMCPServer(
		"taskcheck",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("read_block",
		mcp.WithDescription("Read a single outline block by its ID, including marker and properties."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Block ID")),
	), s.readBlock)

	s.mcp.AddTool(mcp.NewTool("query_blocks",
		mcp.WithDescription("Find blocks whose property matches one of the given values."),
		mcp.WithString("property", mcp.Required(), mcp.Description("Property key (e.g. completed)")),
		mcp.WithString("values", mcp.Required(), mcp.Description("Comma-separated property values to match")),
	), s.queryBlocks)

	s.mcp.AddTool(mcp.NewTool("completed_last_week",
		mcp.WithDescription("Insert a weekly completed-tasks query section before the given block. "+
			"Adds a heading, a child query block covering the past seven days, and a separator."),
		mcp.WithString("block_id", mcp.Required(), mcp.Description("ID of the block the section is inserted before")),
	), s.completedLastWeek)

	// Resource: block format contract.
	s.mcp.AddResource(
		mcp.NewResource("taskcheck://block-format", "Block Format Contract",
			mcp.WithResourceDescription("Canonical outline block format with markers and properties."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readBlockFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) readBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	block, err := s.db.GetBlock(id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	out, _ := json.MarshalIndent(block, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) queryBlocks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	property, err := req.RequireString("property")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := req.RequireString("values")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var values []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return mcp.NewToolResultError("values must contain at least one value"), nil
	}

	blocks, err := s.db.FindByProperty(property, values)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(blocks) == 0 {
		return mcp.NewToolResultText("no matching blocks"), nil
	}
	out, _ := json.MarshalIndent(blocks, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) completedLastWeek(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	blockID, err := req.RequireString("block_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.commands.Invoke(ctx, query.CommandName, command.Invocation{BlockID: blockID}); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("inserted weekly query before block %s", blockID)), nil
}

func (s *Server) readBlockFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "taskcheck://block-format",
			MIMEType: "text/markdown",
			Text:     BlockFormatContract,
		},
	}, nil
}
