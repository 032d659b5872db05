package tools

import (
	"sort"

	"github.com/jg-phare/warren/pkg/llm"
)

// Registry holds available tools and resolves them by name.
type Registry struct {
	tools    map[string]Tool
	disabled map[string]bool // explicitly disallowed
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithDisabled marks tool names as disabled.
func WithDisabled(names ...string) RegistryOption {
	return func(r *Registry) {
		for _, n := range names {
			r.disabled[n] = true
		}
	}
}

// NewRegistry creates a new tool registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		tools:    make(map[string]Tool),
		disabled: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a tool to the registry.
func (r *Registry) Register(tool Tool) {
	r.tools[tool.Name()] = tool
}

// Get retrieves a tool by name. Disabled tools are not resolvable.
func (r *Registry) Get(name string) (Tool, bool) {
	if r.disabled[name] {
		return nil, false
	}
	t, ok := r.tools[name]
	return t, ok
}

// Names returns all enabled tool names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		if !r.disabled[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Definitions returns model-facing definitions for all enabled tools.
func (r *Registry) Definitions() []llm.ToolDefinition {
	names := r.Names()
	defs := make([]llm.ToolDefinition, 0, len(names))
	for _, name := range names {
		tool := r.tools[name]
		defs = append(defs, llm.ToolDefinition{
			Name:        tool.Name(),
			Description: tool.Description(),
			InputSchema: tool.InputSchema(),
		})
	}
	return defs
}

// Scoped returns a new registry containing only the named tools (all enabled
// tools when allowed is empty), minus any in strip. Used to build a
// subagent's restricted tool set.
func (r *Registry) Scoped(allowed []string, strip ...string) *Registry {
	allowedSet := make(map[string]bool, len(allowed))
	for _, n := range allowed {
		allowedSet[n] = true
	}
	stripSet := make(map[string]bool, len(strip))
	for _, n := range strip {
		stripSet[n] = true
	}

	scoped := NewRegistry()
	for _, name := range r.Names() {
		if stripSet[name] {
			continue
		}
		if len(allowedSet) > 0 && !allowedSet[name] {
			continue
		}
		if tool, ok := r.Get(name); ok {
			scoped.Register(tool)
		}
	}
	return scoped
}
