package turnengine_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/immagent/internal/apperr"
	"github.com/ashita-ai/immagent/internal/llmadapter"
	"github.com/ashita-ai/immagent/internal/model"
	"github.com/ashita-ai/immagent/internal/storage"
	"github.com/ashita-ai/immagent/internal/storage/memory"
	"github.com/ashita-ai/immagent/internal/store"
	"github.com/ashita-ai/immagent/internal/tooladapter"
	"github.com/ashita-ai/immagent/internal/turnengine"
)

type scriptedLLM struct {
	mu        sync.Mutex
	responses []model.Message
	calls     int
}

func (s *scriptedLLM) Complete(ctx context.Context, req llmadapter.Request) (model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.responses[s.calls]
	s.calls++
	return r, nil
}

func newEngine(t *testing.T, llm llmadapter.Provider, tools tooladapter.Provider) (*turnengine.Engine, *store.Store) {
	t.Helper()
	s := store.NewStrong(memory.New())
	client := llmadapter.New(llm, llmadapter.DefaultConfig())
	return turnengine.New(s, client, tools, 10, nil), s
}

func text(s string) *string { return &s }

func TestCreateAndAdvanceWithoutTools(t *testing.T) {
	llm := &scriptedLLM{responses: []model.Message{
		model.AssistantMessage(text("pong"), nil, nil, nil),
	}}
	e, _ := newEngine(t, llm, nil)
	ctx := context.Background()

	a0, err := e.CreateAgent(ctx, "A0", "You are helpful.", "claude-3-5-haiku", model.ModelConfig{})
	require.NoError(t, err)

	a1, err := e.Advance(ctx, a0, "ping", turnengine.AdvanceOptions{})
	require.NoError(t, err)

	require.NotNil(t, a1.ParentID)
	assert.Equal(t, a0.ID, *a1.ParentID)
}

type staticTools struct {
	result string
}

func (s *staticTools) Tools(ctx context.Context) ([]tooladapter.Tool, error) {
	return []tooladapter.Tool{{Name: "clock"}}, nil
}

func (s *staticTools) Execute(ctx context.Context, name, argumentsJSON string) (string, error) {
	return s.result, nil
}

func TestToolRound(t *testing.T) {
	llm := &scriptedLLM{responses: []model.Message{
		model.AssistantMessage(nil, []model.ToolCall{{ID: "c1", Name: "clock", Arguments: "{}"}}, nil, nil),
		model.AssistantMessage(text("12:00"), nil, nil, nil),
	}}
	tools := &staticTools{result: "12:00 UTC"}
	e, _ := newEngine(t, llm, tools)
	ctx := context.Background()

	a0, err := e.CreateAgent(ctx, "A0", "sys", "m", model.ModelConfig{})
	require.NoError(t, err)

	a1, err := e.Advance(ctx, a0, "what time is it", turnengine.AdvanceOptions{})
	require.NoError(t, err)
	assert.NotEqual(t, a0.ID, a1.ID)
}

type orderedTools struct {
	delays map[string]time.Duration
}

func (o *orderedTools) Tools(ctx context.Context) ([]tooladapter.Tool, error) { return nil, nil }

func (o *orderedTools) Execute(ctx context.Context, name, argumentsJSON string) (string, error) {
	time.Sleep(o.delays[name])
	return name + "-result", nil
}

func TestConcurrentToolCallsPreserveOrder(t *testing.T) {
	llm := &scriptedLLM{responses: []model.Message{
		model.AssistantMessage(nil, []model.ToolCall{
			{ID: "c1", Name: "slow", Arguments: "{}"},
			{ID: "c2", Name: "fast", Arguments: "{}"},
		}, nil, nil),
		model.AssistantMessage(text("done"), nil, nil, nil),
	}}
	tools := &orderedTools{delays: map[string]time.Duration{"slow": 30 * time.Millisecond, "fast": 0}}
	e, s := newEngine(t, llm, tools)
	ctx := context.Background()

	a0, err := e.CreateAgent(ctx, "A0", "sys", "m", model.ModelConfig{})
	require.NoError(t, err)
	a1, err := e.Advance(ctx, a0, "go", turnengine.AdvanceOptions{})
	require.NoError(t, err)

	conv, ok, err := s.GetConversation(ctx, a1.ConversationID)
	require.NoError(t, err)
	require.True(t, ok)

	messages, err := s.GetMessages(ctx, conv.MessageIDs)
	require.NoError(t, err)

	var toolResults []model.Message
	for _, m := range messages {
		if m.Role == model.RoleTool {
			toolResults = append(toolResults, m)
		}
	}
	require.Len(t, toolResults, 2)
	assert.Equal(t, "c1", *toolResults[0].ToolCallID)
	assert.Equal(t, "c2", *toolResults[1].ToolCallID)
	assert.Equal(t, "slow-result", *toolResults[0].Content)
	assert.Equal(t, "fast-result", *toolResults[1].Content)
}

func TestBoundedToolRounds(t *testing.T) {
	alwaysToolCall := model.AssistantMessage(nil, []model.ToolCall{{ID: "c", Name: "loop", Arguments: "{}"}}, nil, nil)
	llm := &scriptedLLM{responses: []model.Message{alwaysToolCall, alwaysToolCall, alwaysToolCall}}
	tools := &staticTools{result: "ok"}
	e, _ := newEngine(t, llm, tools)
	ctx := context.Background()

	a0, err := e.CreateAgent(ctx, "A0", "sys", "m", model.ModelConfig{})
	require.NoError(t, err)

	a1, err := e.Advance(ctx, a0, "go", turnengine.AdvanceOptions{MaxToolRounds: 3})
	require.NoError(t, err)
	assert.NotEqual(t, a0.ID, a1.ID)
}

func TestCloneProducesSiblingNotChild(t *testing.T) {
	llm := &scriptedLLM{responses: []model.Message{model.AssistantMessage(text("x"), nil, nil, nil)}}
	e, _ := newEngine(t, llm, nil)
	ctx := context.Background()

	a0, err := e.CreateAgent(ctx, "A0", "sys", "m", model.ModelConfig{})
	require.NoError(t, err)
	a1, err := e.Advance(ctx, a0, "hi", turnengine.AdvanceOptions{})
	require.NoError(t, err)

	sibling, err := e.Clone(ctx, a1, "A1-sibling")
	require.NoError(t, err)
	assert.Equal(t, a1.ParentID, sibling.ParentID)
	assert.NotEqual(t, a1.ID, sibling.ID)
}

func TestWithMetadataProducesChild(t *testing.T) {
	llm := &scriptedLLM{}
	e, _ := newEngine(t, llm, nil)
	ctx := context.Background()

	a0, err := e.CreateAgent(ctx, "A0", "sys", "m", model.ModelConfig{})
	require.NoError(t, err)

	newName := "A0-renamed"
	newModel := "claude-3-7-sonnet"
	child, err := e.WithMetadata(ctx, a0, model.AgentUpdate{Name: &newName, Model: &newModel})
	require.NoError(t, err)
	require.NotNil(t, child.ParentID)
	assert.Equal(t, a0.ID, *child.ParentID)
	assert.Equal(t, newName, child.Name)
	assert.Equal(t, newModel, child.Model)
	assert.Equal(t, a0.ConversationID, child.ConversationID)
}

func TestAdvanceMissingMessageReturnsNotFoundMessage(t *testing.T) {
	llm := &scriptedLLM{}
	e, s := newEngine(t, llm, nil)
	ctx := context.Background()

	a0, err := e.CreateAgent(ctx, "A0", "sys", "m", model.ModelConfig{})
	require.NoError(t, err)

	missingID := model.NewID()
	corrupt := model.NewConversation().WithMessages(missingID)
	corrupt.ID = a0.ConversationID
	require.NoError(t, s.SaveBundle(ctx, storage.Bundle{Conversations: []model.Conversation{corrupt}}))

	_, err = e.Advance(ctx, a0, "ping", turnengine.AdvanceOptions{})
	require.Error(t, err)
	var notFound *apperr.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, apperr.NotFoundMessage, notFound.Kind)
	assert.Equal(t, missingID, notFound.ID)
}
