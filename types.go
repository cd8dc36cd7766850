package immagent

import (
	"context"

	"github.com/ashita-ai/immagent/internal/llmadapter"
	"github.com/ashita-ai/immagent/internal/model"
	"github.com/ashita-ai/immagent/internal/tooladapter"
)

// The asset types are the library's public data model. They are type
// aliases for the internal representation rather than copies: the
// values a Store hands back are exactly the ones cached and persisted
// underneath, with no boundary-crossing conversion to keep in sync.
type (
	TextAsset    = model.TextAsset
	Message      = model.Message
	ToolCall     = model.ToolCall
	Conversation = model.Conversation
	Agent        = model.Agent
	ModelConfig  = model.ModelConfig
	Role         = model.Role
	AgentUpdate  = model.AgentUpdate
)

const (
	RoleSystem    = model.RoleSystem
	RoleUser      = model.RoleUser
	RoleAssistant = model.RoleAssistant
	RoleTool      = model.RoleTool
)

// LLMProvider is the external completion collaborator: one call that
// turns a system prompt, a message history, and a model config into
// the next assistant message. Implementations should mark retryable
// failures (rate limits, timeouts, transient 5xx) by returning an
// error with a `Temporary() bool` method returning true; anything else
// is treated as permanent and surfaced immediately as an *LLMError.
type LLMProvider interface {
	Complete(ctx context.Context, req CompletionRequest) (Message, error)
}

// CompletionRequest is everything an LLMProvider needs to produce the
// next assistant message.
type CompletionRequest struct {
	Model        string
	SystemPrompt string
	Messages     []Message
	Tools        []ToolSpec
	ModelConfig  ModelConfig
}

// ToolSpec describes one tool available to the model this round.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]any
}

// ToolProvider is the external tool-execution collaborator: an MCP-style
// catalog plus executor. ToolExecutionError and unknown-tool failures
// are swallowed by Advance into "Error: <message>" tool-result content
// and never reach the caller.
type ToolProvider interface {
	Execute(ctx context.Context, name, argumentsJSON string) (string, error)
	Tools(ctx context.Context) ([]ToolSpec, error)
}

// llmProviderAdapter satisfies internal/llmadapter.Provider by
// delegating to a public LLMProvider, translating the internal request
// shape to the public one at the boundary.
type llmProviderAdapter struct {
	p LLMProvider
}

func (a llmProviderAdapter) Complete(ctx context.Context, req llmadapter.Request) (model.Message, error) {
	tools := make([]ToolSpec, len(req.Tools))
	for i, t := range req.Tools {
		tools[i] = ToolSpec{Name: t.Name, Description: t.Description, Schema: t.Schema}
	}
	return a.p.Complete(ctx, CompletionRequest{
		Model:        req.Model,
		SystemPrompt: req.SystemPrompt,
		Messages:     req.Messages,
		Tools:        tools,
		ModelConfig:  req.ModelConfig,
	})
}

// toolProviderAdapter satisfies internal/tooladapter.Provider by
// delegating to a public ToolProvider.
type toolProviderAdapter struct {
	p ToolProvider
}

func (a toolProviderAdapter) Execute(ctx context.Context, name, argumentsJSON string) (string, error) {
	return a.p.Execute(ctx, name, argumentsJSON)
}

func (a toolProviderAdapter) Tools(ctx context.Context) ([]tooladapter.Tool, error) {
	specs, err := a.p.Tools(ctx)
	if err != nil {
		return nil, err
	}
	tools := make([]tooladapter.Tool, len(specs))
	for i, s := range specs {
		tools[i] = tooladapter.Tool{Name: s.Name, Description: s.Description, Schema: s.Schema}
	}
	return tools, nil
}
