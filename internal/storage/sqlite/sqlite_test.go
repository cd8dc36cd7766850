package sqlite_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/immagent/internal/model"
	"github.com/ashita-ai/immagent/internal/storage"
	"github.com/ashita-ai/immagent/internal/storage/sqlite"
)

func newBackend(t *testing.T) *sqlite.Backend {
	t.Helper()
	b, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, b.InitSchema(context.Background()))
	t.Cleanup(func() { _ = b.Close(context.Background()) })
	return b
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)

	text := model.NewTextAsset("you are a helpful assistant")
	msg := model.UserMessage("hello")
	conv := model.NewConversation().WithMessages(msg.ID)
	agent := model.Agent{
		ID: model.NewID(), Name: "assistant-1", SystemPromptID: text.ID,
		ConversationID: conv.ID, Model: "claude-haiku",
	}

	require.NoError(t, b.SaveBundle(ctx, storage.Bundle{
		Texts: []model.TextAsset{text}, Messages: []model.Message{msg},
		Conversations: []model.Conversation{conv}, Agents: []model.Agent{agent},
	}))

	got, ok, err := b.GetAgent(ctx, agent.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, agent.Name, got.Name)

	gotConv, ok, err := b.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []uuid.UUID{msg.ID}, gotConv.MessageIDs)
}

func TestDeleteAgentNullsParentID(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)

	text := model.NewTextAsset("p")
	conv := model.NewConversation()
	parent := model.Agent{ID: model.NewID(), Name: "parent", SystemPromptID: text.ID, ConversationID: conv.ID, Model: "m"}
	child := parent.Evolve(conv.ID)

	require.NoError(t, b.SaveBundle(ctx, storage.Bundle{
		Texts: []model.TextAsset{text}, Conversations: []model.Conversation{conv}, Agents: []model.Agent{parent, child},
	}))
	require.NoError(t, b.DeleteAgent(ctx, parent.ID))

	gotChild, ok, err := b.GetAgent(ctx, child.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Nil(t, gotChild.ParentID)
}

func TestGCDeletesUnreferenced(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)

	keptText := model.NewTextAsset("kept")
	orphanText := model.NewTextAsset("orphan")
	keptMsg := model.UserMessage("kept")
	orphanMsg := model.UserMessage("orphan")
	keptConv := model.NewConversation().WithMessages(keptMsg.ID)
	orphanConv := model.NewConversation().WithMessages(orphanMsg.ID)
	agent := model.Agent{ID: model.NewID(), Name: "a", SystemPromptID: keptText.ID, ConversationID: keptConv.ID, Model: "m"}

	require.NoError(t, b.SaveBundle(ctx, storage.Bundle{
		Texts:         []model.TextAsset{keptText, orphanText},
		Messages:      []model.Message{keptMsg, orphanMsg},
		Conversations: []model.Conversation{keptConv, orphanConv},
		Agents:        []model.Agent{agent},
	}))

	stats, err := b.GC(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TextAssetsDeleted)
	assert.Equal(t, 1, stats.ConversationsDeleted)
	assert.Equal(t, 1, stats.MessagesDeleted)
}

func TestLineageRootFirst(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)

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

func TestFindByNameCaseSensitiveListCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)

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
