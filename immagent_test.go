package immagent_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/immagent"
)

type scriptedLLM struct {
	responses []immagent.Message
	calls     int
}

func (s *scriptedLLM) Complete(ctx context.Context, req immagent.CompletionRequest) (immagent.Message, error) {
	r := s.responses[s.calls]
	s.calls++
	return r, nil
}

func text(s string) *string { return &s }

func assistantMessage(content *string, toolCalls []immagent.ToolCall) immagent.Message {
	return immagent.Message{
		ID:        uuid.New(),
		Role:      immagent.RoleAssistant,
		Content:   content,
		ToolCalls: toolCalls,
	}
}

func TestCreateAgentAndAdvanceEndToEnd(t *testing.T) {
	llm := &scriptedLLM{responses: []immagent.Message{assistantMessage(text("pong"), nil)}}
	s := immagent.OpenMemory(immagent.WithLLMProvider(llm))
	ctx := context.Background()

	a0, err := s.CreateAgent(ctx, "A0", "You are helpful.", "claude-3-5-haiku", immagent.ModelConfig{})
	require.NoError(t, err)

	a1, err := s.Advance(ctx, a0, "ping", immagent.AdvanceOptions{})
	require.NoError(t, err)
	require.NotNil(t, a1.ParentID)
	assert.Equal(t, a0.ID, *a1.ParentID)

	messages, err := s.GetMessages(ctx, a1)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, immagent.RoleUser, messages[0].Role)
	assert.Equal(t, "ping", *messages[0].Content)
	assert.Equal(t, immagent.RoleAssistant, messages[1].Role)
	assert.Equal(t, "pong", *messages[1].Content)

	reloaded, err := s.LoadAgent(ctx, a1.ID)
	require.NoError(t, err)
	assert.Equal(t, a1, reloaded)
}

func TestSaveThenLoadAgentRoundTrips(t *testing.T) {
	s := immagent.OpenMemory()
	ctx := context.Background()

	a0, err := s.CreateAgent(ctx, "A0", "sys", "m", immagent.ModelConfig{})
	require.NoError(t, err)

	newName := "a0-detached-rename"
	detached := a0
	detached.ID = uuid.New()
	detached.ParentID = &a0.ID
	detached.Name = newName

	require.NoError(t, s.Save(ctx, detached))

	reloaded, err := s.LoadAgent(ctx, detached.ID)
	require.NoError(t, err)
	assert.Equal(t, detached, reloaded)
}

func TestLoadAgentNotFound(t *testing.T) {
	s := immagent.OpenMemory()
	_, err := s.LoadAgent(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, immagent.IsNotFound(err))
}

func TestCloneAndWithMetadataParentage(t *testing.T) {
	llm := &scriptedLLM{responses: []immagent.Message{assistantMessage(text("hi"), nil)}}
	s := immagent.OpenMemory(immagent.WithLLMProvider(llm))
	ctx := context.Background()

	a0, err := s.CreateAgent(ctx, "A0", "sys", "m", immagent.ModelConfig{})
	require.NoError(t, err)
	a1, err := s.Advance(ctx, a0, "hi", immagent.AdvanceOptions{})
	require.NoError(t, err)

	sibling, err := s.Clone(ctx, a1, "sibling")
	require.NoError(t, err)
	assert.Equal(t, a1.ParentID, sibling.ParentID)

	newName := "a1-renamed"
	child, err := s.WithMetadata(ctx, a1, immagent.AgentUpdate{Name: &newName})
	require.NoError(t, err)
	require.NotNil(t, child.ParentID)
	assert.Equal(t, a1.ID, *child.ParentID)
	assert.Equal(t, newName, child.Name)
	assert.Equal(t, a1.ConversationID, child.ConversationID)
}

func TestDeleteAgentAndGC(t *testing.T) {
	llm := &scriptedLLM{responses: []immagent.Message{
		assistantMessage(text("x"), nil),
		assistantMessage(text("y"), nil),
	}}
	s := immagent.OpenMemory(immagent.WithLLMProvider(llm))
	ctx := context.Background()

	a0, err := s.CreateAgent(ctx, "A0", "sys", "m", immagent.ModelConfig{})
	require.NoError(t, err)
	a1, err := s.Advance(ctx, a0, "x", immagent.AdvanceOptions{})
	require.NoError(t, err)
	a2, err := s.Advance(ctx, a1, "y", immagent.AdvanceOptions{})
	require.NoError(t, err)

	require.NoError(t, s.DeleteAgent(ctx, a1.ID))

	reloadedA2, err := s.LoadAgent(ctx, a2.ID)
	require.NoError(t, err)
	assert.Nil(t, reloadedA2.ParentID)

	lineage, err := s.GetLineage(ctx, a2)
	require.NoError(t, err)
	require.Len(t, lineage, 1)
	assert.Equal(t, a2.ID, lineage[0].ID)

	stats, err := s.GC(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.MessagesDeleted, 0)
}

func TestListAndFindByName(t *testing.T) {
	s := immagent.OpenMemory()
	ctx := context.Background()

	_, err := s.CreateAgent(ctx, "Helper", "sys", "m", immagent.ModelConfig{})
	require.NoError(t, err)
	_, err = s.CreateAgent(ctx, "helper-two", "sys", "m", immagent.ModelConfig{})
	require.NoError(t, err)

	listed, err := s.ListAgents(ctx, 10, 0, "helper")
	require.NoError(t, err)
	assert.Len(t, listed, 2)

	exact, err := s.FindByName(ctx, "Helper")
	require.NoError(t, err)
	assert.Len(t, exact, 1)

	count, err := s.CountAgents(ctx, "helper")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestCreateAgentValidatesInputs(t *testing.T) {
	s := immagent.OpenMemory()
	_, err := s.CreateAgent(context.Background(), "", "sys", "m", immagent.ModelConfig{})
	require.Error(t, err)
	var ve *immagent.ValidationError
	assert.ErrorAs(t, err, &ve)
}
