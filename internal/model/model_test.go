package model_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/immagent/internal/model"
)

func TestConversationWithMessagesAppendsInOrder(t *testing.T) {
	c := model.NewConversation()
	a, b := uuid.New(), uuid.New()
	c = c.WithMessages(a, b)
	assert.Equal(t, []uuid.UUID{a, b}, c.MessageIDs)
}

func TestConversationWithMessagesSkipsDuplicateOfExistingID(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	c := model.NewConversation().WithMessages(a)
	c = c.WithMessages(a, b)
	assert.Equal(t, []uuid.UUID{a, b}, c.MessageIDs)
}

func TestConversationWithMessagesSkipsDuplicateWithinSameCall(t *testing.T) {
	a := uuid.New()
	c := model.NewConversation().WithMessages(a, a)
	assert.Equal(t, []uuid.UUID{a}, c.MessageIDs)
}

func TestAgentWithMetadataProducesChildWithOverrides(t *testing.T) {
	text := model.NewTextAsset("sys")
	conv := model.NewConversation()
	a := model.Agent{
		ID: model.NewID(), Name: "a0", SystemPromptID: text.ID,
		ConversationID: conv.ID, Model: "claude-haiku",
	}

	newName := "a0-renamed"
	child := a.WithMetadata(model.AgentUpdate{Name: &newName})

	require.NotNil(t, child.ParentID)
	assert.Equal(t, a.ID, *child.ParentID)
	assert.Equal(t, newName, child.Name)
	assert.Equal(t, a.Model, child.Model)
	assert.Equal(t, a.ConversationID, child.ConversationID)
	assert.NotEqual(t, a.ID, child.ID)
}

func TestAgentWithMetadataLeavesFieldsUnchangedWhenNil(t *testing.T) {
	a := model.Agent{ID: model.NewID(), Name: "a0", Model: "claude-haiku"}
	child := a.WithMetadata(model.AgentUpdate{})
	assert.Equal(t, a.Name, child.Name)
	assert.Equal(t, a.Model, child.Model)
}
