// Package turnengine implements the advance protocol: the loop that
// reconstructs an agent's history, drives one or more rounds of LLM
// completion and tool execution, and emits a new agent version with
// all of its dependent assets cached and persisted as one atomic step.
package turnengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ashita-ai/immagent/internal/apperr"
	"github.com/ashita-ai/immagent/internal/llmadapter"
	"github.com/ashita-ai/immagent/internal/model"
	"github.com/ashita-ai/immagent/internal/storage"
	"github.com/ashita-ai/immagent/internal/store"
	"github.com/ashita-ai/immagent/internal/telemetry"
	"github.com/ashita-ai/immagent/internal/tooladapter"
)

// Engine drives the advance protocol against one Store, one LLM
// adapter, and a default tool provider (which individual Advance calls
// may override).
type Engine struct {
	store         *store.Store
	llm           *llmadapter.Client
	tools         tooladapter.Provider
	maxToolRounds int
	logger        *slog.Logger

	tracer           trace.Tracer
	turnLatency      metric.Float64Histogram
	toolCallLatency  metric.Float64Histogram
	toolCallOutcomes metric.Int64Counter
}

// New returns an Engine. tools may be nil, in which case each tool call
// a round requests gets "Error: ..." content reporting that no tool
// provider is configured, rather than panicking.
func New(s *store.Store, llm *llmadapter.Client, tools tooladapter.Provider, maxToolRounds int, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if maxToolRounds <= 0 {
		maxToolRounds = 10
	}

	meter := telemetry.Meter("immagent/turnengine")
	turnLatency, _ := meter.Float64Histogram("immagent.turn.duration",
		metric.WithDescription("Time to complete one Advance call (ms)"),
		metric.WithUnit("ms"),
	)
	toolCallLatency, _ := meter.Float64Histogram("immagent.tool_call.duration",
		metric.WithDescription("Time to execute one tool call (ms)"),
		metric.WithUnit("ms"),
	)
	toolCallOutcomes, _ := meter.Int64Counter("immagent.tool_call.outcomes",
		metric.WithDescription("Tool calls by outcome (success/error)"),
	)

	return &Engine{
		store: s, llm: llm, tools: tools, maxToolRounds: maxToolRounds, logger: logger,
		tracer:           telemetry.Tracer("immagent/turnengine"),
		turnLatency:      turnLatency,
		toolCallLatency:  toolCallLatency,
		toolCallOutcomes: toolCallOutcomes,
	}
}

// AdvanceOptions bounds and parameterizes one Advance call. A zero
// value uses the Engine's configured default tool-round cap, the
// agent's own model config unmodified, and the Engine's default tool
// provider.
type AdvanceOptions struct {
	MaxToolRounds       int
	ModelConfigOverride model.ModelConfig
	ToolProvider        tooladapter.Provider
}

// CreateAgent validates its inputs, mints a fresh system prompt text
// asset and an empty conversation, and saves the resulting agent in
// one bundle.
func (e *Engine) CreateAgent(ctx context.Context, name, systemPrompt, modelName string, cfg model.ModelConfig) (model.Agent, error) {
	if name == "" {
		return model.Agent{}, &apperr.ValidationError{Field: "name", Message: "must not be empty"}
	}
	if systemPrompt == "" {
		return model.Agent{}, &apperr.ValidationError{Field: "system_prompt", Message: "must not be empty"}
	}
	if modelName == "" {
		return model.Agent{}, &apperr.ValidationError{Field: "model", Message: "must not be empty"}
	}

	text := model.NewTextAsset(systemPrompt)
	conv := model.NewConversation()
	agent := model.Agent{
		ID:             model.NewID(),
		CreatedAt:      conv.CreatedAt,
		Name:           name,
		SystemPromptID: text.ID,
		ConversationID: conv.ID,
		Model:          modelName,
		ModelConfig:    cfg,
	}

	if err := e.store.SaveBundle(ctx, storage.Bundle{
		Texts:         []model.TextAsset{text},
		Conversations: []model.Conversation{conv},
		Agents:        []model.Agent{agent},
	}); err != nil {
		return model.Agent{}, fmt.Errorf("turnengine: create agent: %w", err)
	}
	return agent, nil
}

// Advance runs the full protocol: history reconstruction, the user
// turn, a bounded round loop of LLM completion and tool execution, and
// emission of a new agent version.
func (e *Engine) Advance(ctx context.Context, agent model.Agent, userInput string, opts AdvanceOptions) (model.Agent, error) {
	ctx, span := e.tracer.Start(ctx, "immagent.advance", trace.WithAttributes(
		attribute.String("immagent.agent_id", agent.ID.String()),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		e.turnLatency.Record(ctx, float64(time.Since(start).Milliseconds()))
	}()

	maxRounds := opts.MaxToolRounds
	if maxRounds <= 0 {
		maxRounds = e.maxToolRounds
	}
	toolProvider := opts.ToolProvider
	if toolProvider == nil {
		toolProvider = e.tools
	}

	systemPrompt, ok, err := e.store.GetText(ctx, agent.SystemPromptID)
	if err != nil {
		return model.Agent{}, fmt.Errorf("turnengine: advance: %w", err)
	}
	if !ok {
		return model.Agent{}, &apperr.NotFoundError{Kind: apperr.NotFoundSystemPrompt, ID: agent.SystemPromptID}
	}

	conv, ok, err := e.store.GetConversation(ctx, agent.ConversationID)
	if err != nil {
		return model.Agent{}, fmt.Errorf("turnengine: advance: %w", err)
	}
	if !ok {
		return model.Agent{}, &apperr.NotFoundError{Kind: apperr.NotFoundConversation, ID: agent.ConversationID}
	}

	history, err := e.store.GetMessages(ctx, conv.MessageIDs)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return model.Agent{}, &apperr.NotFoundError{Kind: apperr.NotFoundMessage, ID: firstMissing(ctx, e.store, conv.MessageIDs)}
		}
		return model.Agent{}, fmt.Errorf("turnengine: advance: %w", err)
	}

	user := model.UserMessage(userInput)
	working := make([]model.Message, 0, len(history)+8)
	working = append(working, history...)
	working = append(working, user)
	newMessages := []model.Message{user}

	effectiveConfig := agent.ModelConfig.Merge(opts.ModelConfigOverride)

	var toolSpecs []llmadapter.ToolSpec
	if toolProvider != nil {
		catalog, err := toolProvider.Tools(ctx)
		if err != nil {
			return model.Agent{}, fmt.Errorf("turnengine: advance: list tools: %w", err)
		}
		toolSpecs = make([]llmadapter.ToolSpec, len(catalog))
		for i, t := range catalog {
			toolSpecs[i] = llmadapter.ToolSpec{Name: t.Name, Description: t.Description, Schema: t.Schema}
		}
	}

	for round := 0; round < maxRounds; round++ {
		reply, err := e.completeWithSpan(ctx, llmadapter.Request{
			Model:        agent.Model,
			SystemPrompt: systemPrompt.Content,
			Messages:     working,
			Tools:        toolSpecs,
			ModelConfig:  effectiveConfig,
		})
		if err != nil {
			kind := apperr.LLMErrorPermanent
			var exhausted *llmadapter.RetriesExhaustedError
			if errors.As(err, &exhausted) {
				kind = apperr.LLMErrorTransient
			}
			return model.Agent{}, fmt.Errorf("turnengine: advance: %w", &apperr.LLMError{Kind: kind, Cause: err})
		}

		working = append(working, reply)
		newMessages = append(newMessages, reply)

		if len(reply.ToolCalls) == 0 {
			break
		}

		results := e.runToolRoundWithSpan(ctx, toolProvider, reply.ToolCalls, round)
		working = append(working, results...)
		newMessages = append(newMessages, results...)

		if round == maxRounds-1 {
			break
		}
	}

	newConv := conv.WithMessages(idsOf(newMessages)...)
	newAgent := agent.Evolve(newConv.ID)

	if err := e.store.SaveBundle(ctx, storage.Bundle{
		Messages:      newMessages,
		Conversations: []model.Conversation{newConv},
		Agents:        []model.Agent{newAgent},
	}); err != nil {
		return model.Agent{}, fmt.Errorf("turnengine: advance: %w", err)
	}

	return newAgent, nil
}

// completeWithSpan wraps one LLM completion call in its own child span so
// a slow provider call is visible separately from the rest of a turn.
func (e *Engine) completeWithSpan(ctx context.Context, req llmadapter.Request) (model.Message, error) {
	ctx, span := e.tracer.Start(ctx, "immagent.llm.complete", trace.WithAttributes(
		attribute.String("immagent.model", req.Model),
	))
	defer span.End()
	return e.llm.Complete(ctx, req)
}

// runToolRoundWithSpan wraps one round's worth of tool calls in its own
// child span, then delegates to runToolCalls for the actual execution.
func (e *Engine) runToolRoundWithSpan(ctx context.Context, provider tooladapter.Provider, calls []model.ToolCall, round int) []model.Message {
	ctx, span := e.tracer.Start(ctx, "immagent.tool.round", trace.WithAttributes(
		attribute.Int("immagent.round", round),
		attribute.Int("immagent.tool_call_count", len(calls)),
	))
	defer span.End()
	return e.runToolCalls(ctx, provider, calls)
}

// runToolCalls executes every call concurrently and returns their
// tool-result messages in the original call order, regardless of
// completion order. A failing or unknown tool never aborts the round:
// its result message carries "Error: <message>" content instead.
func (e *Engine) runToolCalls(ctx context.Context, provider tooladapter.Provider, calls []model.ToolCall) []model.Message {
	results := make([]model.Message, len(calls))
	var g errgroup.Group
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			results[i] = model.ToolResultMessage(call.ID, e.executeOne(ctx, provider, call))
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// executeOne runs a single tool call and always returns content for a
// tool-result message, never an error: failures are swallowed into
// "Error: <message>" content per the round loop's propagation policy.
func (e *Engine) executeOne(ctx context.Context, provider tooladapter.Provider, call model.ToolCall) string {
	start := time.Now()
	outcome := "success"
	defer func() {
		e.toolCallLatency.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(
			attribute.String("immagent.tool", call.Name),
		))
		e.toolCallOutcomes.Add(ctx, 1, metric.WithAttributes(
			attribute.String("immagent.tool", call.Name),
			attribute.String("immagent.outcome", outcome),
		))
	}()

	if provider == nil {
		outcome = "error"
		e.logger.WarnContext(ctx, "tool call with no provider configured", "tool", call.Name)
		return "Error: " + (&apperr.ToolExecutionError{Tool: call.Name, Cause: fmt.Errorf("no tool provider configured")}).Error()
	}
	result, err := provider.Execute(ctx, call.Name, call.Arguments)
	if err != nil {
		outcome = "error"
		e.logger.WarnContext(ctx, "tool call failed", "tool", call.Name, "error", err)
		return "Error: " + (&apperr.ToolExecutionError{Tool: call.Name, Cause: err}).Error()
	}
	return result
}

// Clone emits a sibling agent: a fresh identity sharing the receiver's
// parent_id, optionally renamed.
func (e *Engine) Clone(ctx context.Context, agent model.Agent, newName string) (model.Agent, error) {
	sibling := agent.Clone(newName)
	if err := e.store.SaveBundle(ctx, storage.Bundle{Agents: []model.Agent{sibling}}); err != nil {
		return model.Agent{}, fmt.Errorf("turnengine: clone: %w", err)
	}
	return sibling, nil
}

// WithMetadata emits a child agent with the same conversation but
// name/model/model_config altered per update.
func (e *Engine) WithMetadata(ctx context.Context, agent model.Agent, update model.AgentUpdate) (model.Agent, error) {
	child := agent.WithMetadata(update)
	if err := e.store.SaveBundle(ctx, storage.Bundle{Agents: []model.Agent{child}}); err != nil {
		return model.Agent{}, fmt.Errorf("turnengine: with metadata: %w", err)
	}
	return child, nil
}

// firstMissing re-checks ids one at a time to find which one
// GetMessages' batch fetch failed to resolve, so the NotFoundError
// reported to the caller names the actual absent message rather than
// a generic failure. Only called on the already-rare not-found path.
func firstMissing(ctx context.Context, s *store.Store, ids []uuid.UUID) uuid.UUID {
	for _, id := range ids {
		if _, ok, err := s.GetMessage(ctx, id); err == nil && !ok {
			return id
		}
	}
	return uuid.Nil
}

func idsOf(messages []model.Message) []uuid.UUID {
	ids := make([]uuid.UUID, len(messages))
	for i, m := range messages {
		ids[i] = m.ID
	}
	return ids
}
