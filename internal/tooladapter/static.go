package tooladapter

import (
	"context"
	"fmt"
)

// ToolFunc is a native Go tool implementation.
type ToolFunc func(ctx context.Context, argumentsJSON string) (string, error)

// StaticProvider is an in-process tool registry, useful for tests and
// for embedding native Go tools without spawning an MCP server.
type StaticProvider struct {
	tools map[string]registeredTool
}

type registeredTool struct {
	spec Tool
	fn   ToolFunc
}

// NewStaticProvider returns an empty registry.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{tools: make(map[string]registeredTool)}
}

// Register adds a tool under spec.Name, replacing any previous
// registration with the same name.
func (p *StaticProvider) Register(spec Tool, fn ToolFunc) {
	p.tools[spec.Name] = registeredTool{spec: spec, fn: fn}
}

func (p *StaticProvider) Execute(ctx context.Context, name string, argumentsJSON string) (string, error) {
	t, ok := p.tools[name]
	if !ok {
		return "", &UnknownToolError{Name: name}
	}
	result, err := t.fn(ctx, argumentsJSON)
	if err != nil {
		return "", fmt.Errorf("tooladapter: execute %s: %w", name, err)
	}
	return result, nil
}

func (p *StaticProvider) Tools(ctx context.Context) ([]Tool, error) {
	specs := make([]Tool, 0, len(p.tools))
	for _, t := range p.tools {
		specs = append(specs, t.spec)
	}
	return specs, nil
}
