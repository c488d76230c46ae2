// Package command implements the user-invoked command registry.
package command

import (
	"context"
	"fmt"
	"sync"

	"github.com/bryclee/taskcheck/internal/apperr"
)

// Invocation carries the context of a command invocation. BlockID is the
// current active block; empty when there is none.
type Invocation struct {
	BlockID string
}

// Handler executes a command.
type Handler func(ctx context.Context, inv Invocation) error

// Command pairs a registry name and display label with its handler.
type Command struct {
	Name    string
	Label   string
	Handler Handler
}

// Registry holds registered commands by name.
type Registry struct {
	mu      sync.RWMutex
	ordered []Command
	byName  map[string]Command
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Command)}
}

// Register adds cmd to the registry. Duplicate names are rejected.
func (r *Registry) Register(cmd Command) error {
	if cmd.Name == "" || cmd.Handler == nil {
		return fmt.Errorf("command: name and handler are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[cmd.Name]; exists {
		return fmt.Errorf("command: %q already registered", cmd.Name)
	}
	r.byName[cmd.Name] = cmd
	r.ordered = append(r.ordered, cmd)
	return nil
}

// Invoke runs the named command. Unknown names return ErrNotFound.
func (r *Registry) Invoke(ctx context.Context, name string, inv Invocation) error {
	r.mu.RLock()
	cmd, ok := r.byName[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("command %q: %w", name, apperr.ErrNotFound)
	}
	return cmd.Handler(ctx, inv)
}

// List returns commands in registration order.
func (r *Registry) List() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Command, len(r.ordered))
	copy(out, r.ordered)
	return out
}
