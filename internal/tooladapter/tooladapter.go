// Package tooladapter provides the tool execution side of the advance
// engine: a pluggable Provider interface plus two concrete
// implementations, one backed by an MCP server and one backed by a
// static in-process registry.
package tooladapter

import "context"

// Provider executes a single named tool call and returns its result as
// a string. Unknown tool names and execution failures both surface as
// an error; the caller (the turn engine) is responsible for catching
// that error and turning it into "Error: <message>" tool-result
// content rather than letting it propagate.
type Provider interface {
	Execute(ctx context.Context, name string, argumentsJSON string) (string, error)
	// Tools returns the catalog of tools currently available, in the
	// shape the LLM adapter needs to advertise them to the model.
	Tools(ctx context.Context) ([]Tool, error)
}

// Tool describes one callable tool.
type Tool struct {
	Name        string
	Description string
	Schema      map[string]any
}

// UnknownToolError is returned when Execute is asked to run a tool name
// absent from the provider's catalog.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return "tooladapter: unknown tool: " + e.Name
}
