// Package storage defines the persistence contract shared by every
// concrete backend (Postgres, SQLite, and a pure in-memory backend) and
// the bundle/GC types that flow across it.
package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/ashita-ai/immagent/internal/model"
)

// Bundle is the set of assets produced by one advance/create/clone
// operation, always saved together in one atomic write. Order within
// each slice does not matter to the backend: dependency ordering is the
// caller's responsibility when populating the identity cache, not the
// backend's when writing rows.
type Bundle struct {
	Texts         []model.TextAsset
	Messages      []model.Message
	Conversations []model.Conversation
	Agents        []model.Agent
}

// Empty reports whether the bundle has nothing to save.
func (b Bundle) Empty() bool {
	return len(b.Texts) == 0 && len(b.Messages) == 0 && len(b.Conversations) == 0 && len(b.Agents) == 0
}

// GCStats reports how many rows of each kind a GC pass removed.
type GCStats struct {
	TextAssetsDeleted   int
	ConversationsDeleted int
	MessagesDeleted     int
}

// Backend is the storage contract every concrete implementation
// satisfies. Get* methods return (zero, false, nil) on a miss; they
// never return an error for "not found" — callers translate a miss into
// a typed not-found error at the layer that knows which asset kind was
// being requested.
type Backend interface {
	InitSchema(ctx context.Context) error

	GetText(ctx context.Context, id uuid.UUID) (model.TextAsset, bool, error)
	GetMessage(ctx context.Context, id uuid.UUID) (model.Message, bool, error)
	GetMessages(ctx context.Context, ids []uuid.UUID) ([]model.Message, error)
	GetConversation(ctx context.Context, id uuid.UUID) (model.Conversation, bool, error)
	GetAgent(ctx context.Context, id uuid.UUID) (model.Agent, bool, error)

	SaveBundle(ctx context.Context, b Bundle) error
	DeleteAgent(ctx context.Context, id uuid.UUID) error
	GC(ctx context.Context) (GCStats, error)

	GetLineage(ctx context.Context, id uuid.UUID) ([]model.Agent, error)
	ListAgents(ctx context.Context, limit, offset int, nameFilter string) ([]model.Agent, error)
	CountAgents(ctx context.Context, nameFilter string) (int, error)
	FindByName(ctx context.Context, name string) ([]model.Agent, error)

	Close(ctx context.Context) error
}
