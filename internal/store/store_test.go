package store_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/immagent/internal/model"
	"github.com/ashita-ai/immagent/internal/storage"
	"github.com/ashita-ai/immagent/internal/storage/memory"
	"github.com/ashita-ai/immagent/internal/store"
)

func TestSaveBundlePrimesCacheBeforeWrite(t *testing.T) {
	s := store.NewStrong(memory.New())
	ctx := context.Background()

	text := model.NewTextAsset("system prompt")
	conv := model.NewConversation()
	agent := model.Agent{
		ID: model.NewID(), Name: "a", SystemPromptID: text.ID,
		ConversationID: conv.ID, Model: "m",
	}
	require.NoError(t, s.SaveBundle(ctx, storage.Bundle{
		Texts: []model.TextAsset{text}, Conversations: []model.Conversation{conv}, Agents: []model.Agent{agent},
	}))

	got, ok, err := s.GetAgent(ctx, agent.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, agent.Name, got.Name)
}

func TestGetMessagesResolvesMixOfCachedAndBackend(t *testing.T) {
	s := store.NewStrong(memory.New())
	ctx := context.Background()

	m1 := model.UserMessage("hi")
	m2 := model.UserMessage("there")
	require.NoError(t, s.SaveBundle(ctx, storage.Bundle{Messages: []model.Message{m1, m2}}))

	got, err := s.GetMessages(ctx, []uuid.UUID{m1.ID, m2.ID})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, m1.ID, got[0].ID)
	assert.Equal(t, m2.ID, got[1].ID)
}

func TestGCClearsCache(t *testing.T) {
	s := store.NewStrong(memory.New())
	ctx := context.Background()

	text := model.NewTextAsset("orphan")
	require.NoError(t, s.SaveBundle(ctx, storage.Bundle{Texts: []model.TextAsset{text}}))

	_, err := s.GC(ctx)
	require.NoError(t, err)

	_, ok, err := s.GetText(ctx, text.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}
