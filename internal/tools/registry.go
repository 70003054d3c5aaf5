package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Tool is a named, schema-validated callable the LLM may request.
type Tool interface {
	// Name returns the registered tool name.
	Name() string

	// Description explains what the tool does, for prompt assembly.
	Description() string

	// Schema declares the tool's arguments.
	Schema() Schema

	// Execute runs the tool with validated arguments. Returning an error
	// marks the result as a tool error; it never aborts the agent turn.
	Execute(ctx context.Context, args map[string]any) (any, error)
}

// Definition is the provider-neutral descriptor of a registered tool.
type Definition struct {
	Name        string
	Description string
	Schema      Schema
}

// Registry manages available tools with thread-safe registration and lookup.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: map[string]Tool{}}
}

// Register validates the tool's schema and adds it to the registry,
// replacing any previous tool with the same name. Schema warnings are
// returned for logging; schema violations are errors.
func (r *Registry) Register(tool Tool) ([]string, error) {
	if tool == nil || tool.Name() == "" {
		return nil, fmt.Errorf("tool with a name is required")
	}
	warnings, err := tool.Schema().Check()
	if err != nil {
		return nil, fmt.Errorf("tool %q: %w", tool.Name(), err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
	return warnings, nil
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns descriptors for every registered tool, sorted by name.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Definition, 0, len(r.tools))
	for _, tool := range r.tools {
		defs = append(defs, Definition{
			Name:        tool.Name(),
			Description: tool.Description(),
			Schema:      tool.Schema(),
		})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}
