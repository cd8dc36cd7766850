package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/immagent/internal/model"
	"github.com/ashita-ai/immagent/internal/storage"
	"github.com/ashita-ai/immagent/internal/storage/memory"
)

func TestSaveAndGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := memory.New()

	text := model.NewTextAsset("you are a helpful assistant")
	msg := model.UserMessage("hello")
	conv := model.NewConversation().WithMessages(msg.ID)
	agent := model.Agent{
		ID: model.NewID(), Name: "assistant-1", SystemPromptID: text.ID,
		ConversationID: conv.ID, Model: "claude-haiku",
	}

	require.NoError(t, b.SaveBundle(ctx, storage.Bundle{
		Texts:         []model.TextAsset{text},
		Messages:      []model.Message{msg},
		Conversations: []model.Conversation{conv},
		Agents:        []model.Agent{agent},
	}))

	got, ok, err := b.GetAgent(ctx, agent.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, agent.Name, got.Name)

	_, ok, err = b.GetAgent(ctx, model.NewID())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGCRemovesUnreferenced(t *testing.T) {
	ctx := context.Background()
	b := memory.New()

	text := model.NewTextAsset("prompt")
	orphanText := model.NewTextAsset("orphan")
	msg := model.UserMessage("hi")
	orphanMsg := model.UserMessage("bye")
	conv := model.NewConversation().WithMessages(msg.ID)
	orphanConv := model.NewConversation().WithMessages(orphanMsg.ID)
	agent := model.Agent{ID: model.NewID(), Name: "a", SystemPromptID: text.ID, ConversationID: conv.ID, Model: "m"}

	require.NoError(t, b.SaveBundle(ctx, storage.Bundle{
		Texts:         []model.TextAsset{text, orphanText},
		Messages:      []model.Message{msg, orphanMsg},
		Conversations: []model.Conversation{conv, orphanConv},
		Agents:        []model.Agent{agent},
	}))

	stats, err := b.GC(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TextAssetsDeleted)
	assert.Equal(t, 1, stats.ConversationsDeleted)
	assert.Equal(t, 1, stats.MessagesDeleted)

	_, ok, _ := b.GetText(ctx, text.ID)
	assert.True(t, ok)
	_, ok, _ = b.GetText(ctx, orphanText.ID)
	assert.False(t, ok)
}

func TestLineageRootFirst(t *testing.T) {
	ctx := context.Background()
	b := memory.New()

	text := model.NewTextAsset("p")
	conv := model.NewConversation()
	root := model.Agent{ID: model.NewID(), Name: "root", SystemPromptID: text.ID, ConversationID: conv.ID, Model: "m"}
	child := root.Evolve(conv.ID)
	grandchild := child.Evolve(conv.ID)

	require.NoError(t, b.SaveBundle(ctx, storage.Bundle{
		Texts: []model.TextAsset{text}, Conversations: []model.Conversation{conv},
		Agents: []model.Agent{root, child, grandchild},
	}))

	lineage, err := b.GetLineage(ctx, grandchild.ID)
	require.NoError(t, err)
	require.Len(t, lineage, 3)
	assert.Equal(t, root.ID, lineage[0].ID)
	assert.Equal(t, grandchild.ID, lineage[2].ID)
}

func TestFindByNameIsCaseSensitiveListIsNot(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	text := model.NewTextAsset("p")
	conv := model.NewConversation()
	agent := model.Agent{ID: model.NewID(), Name: "Helper", SystemPromptID: text.ID, ConversationID: conv.ID, Model: "m"}
	require.NoError(t, b.SaveBundle(ctx, storage.Bundle{
		Texts: []model.TextAsset{text}, Conversations: []model.Conversation{conv}, Agents: []model.Agent{agent},
	}))

	exact, err := b.FindByName(ctx, "Helper")
	require.NoError(t, err)
	assert.Len(t, exact, 1)

	wrongCase, err := b.FindByName(ctx, "helper")
	require.NoError(t, err)
	assert.Len(t, wrongCase, 0)

	listed, err := b.ListAgents(ctx, 10, 0, "help")
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}
