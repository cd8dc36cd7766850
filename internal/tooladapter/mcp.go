package tooladapter

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcptransport "github.com/mark3labs/mcp-go/client/transport"
)

// MCPProvider executes tools by delegating to a connected MCP server:
// connect once, cache the tool catalog, then dispatch CallTool per
// execution.
type MCPProvider struct {
	client *mcpclient.Client
	tools  map[string]Tool
}

// ConnectStreamableHTTP connects to an MCP server reachable over
// streamable HTTP, initializes the session, and loads its tool
// catalog.
func ConnectStreamableHTTP(ctx context.Context, url string, headers map[string]string) (*MCPProvider, error) {
	c, err := mcpclient.NewStreamableHttpClient(url, mcptransport.WithHTTPHeaders(headers))
	if err != nil {
		return nil, fmt.Errorf("tooladapter: connect mcp server: %w", err)
	}
	return connect(ctx, c)
}

// ConnectStdio launches command as a subprocess MCP server over stdio,
// initializes the session, and loads its tool catalog.
func ConnectStdio(ctx context.Context, command string, env []string, args ...string) (*MCPProvider, error) {
	c, err := mcpclient.NewStdioMCPClient(command, env, args...)
	if err != nil {
		return nil, fmt.Errorf("tooladapter: launch mcp server: %w", err)
	}
	return connect(ctx, c)
}

func connect(ctx context.Context, c *mcpclient.Client) (*MCPProvider, error) {
	_, err := c.Initialize(ctx, mcplib.InitializeRequest{
		Params: mcplib.InitializeParams{
			ClientInfo: mcplib.Implementation{Name: "immagent", Version: "0.1.0"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("tooladapter: initialize mcp session: %w", err)
	}

	listed, err := c.ListTools(ctx, mcplib.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("tooladapter: list tools: %w", err)
	}

	tools := make(map[string]Tool, len(listed.Tools))
	for _, t := range listed.Tools {
		schema, _ := json.Marshal(t.InputSchema)
		var schemaMap map[string]any
		_ = json.Unmarshal(schema, &schemaMap)
		tools[t.Name] = Tool{Name: t.Name, Description: t.Description, Schema: schemaMap}
	}

	return &MCPProvider{client: c, tools: tools}, nil
}

func (p *MCPProvider) Tools(ctx context.Context) ([]Tool, error) {
	out := make([]Tool, 0, len(p.tools))
	for _, t := range p.tools {
		out = append(out, t)
	}
	return out, nil
}

// Execute calls the named tool over MCP, concatenating any text content
// items in the result. Non-text content is JSON-serialized.
func (p *MCPProvider) Execute(ctx context.Context, name string, argumentsJSON string) (string, error) {
	if _, ok := p.tools[name]; !ok {
		return "", &UnknownToolError{Name: name}
	}

	var args map[string]any
	if argumentsJSON != "" {
		if err := json.Unmarshal([]byte(argumentsJSON), &args); err != nil {
			return "", fmt.Errorf("tooladapter: decode arguments for %s: %w", name, err)
		}
	}

	result, err := p.client.CallTool(ctx, mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{Name: name, Arguments: args},
	})
	if err != nil {
		return "", fmt.Errorf("tooladapter: call tool %s: %w", name, err)
	}
	if result.IsError {
		return "", fmt.Errorf("tooladapter: tool %s reported an error: %s", name, contentToString(result.Content))
	}
	return contentToString(result.Content), nil
}

func contentToString(items []mcplib.Content) string {
	out := ""
	for _, item := range items {
		if text, ok := item.(mcplib.TextContent); ok {
			out += text.Text
			continue
		}
		b, err := json.Marshal(item)
		if err == nil {
			out += string(b)
		}
	}
	return out
}

// Close disconnects from the MCP server.
func (p *MCPProvider) Close() error {
	return p.client.Close()
}
