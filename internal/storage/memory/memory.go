// Package memory implements storage.Backend without any database: every
// asset lives only in process memory. Used for tests and for
// short-lived agents that never need to survive a process restart.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ashita-ai/immagent/internal/model"
	"github.com/ashita-ai/immagent/internal/storage"
)

// Backend is a mutex-guarded set of maps, one per asset kind. Because
// this backend holds the only copy of the data, its identity cache
// counterpart in the public facade is always the strong (never-evict)
// variant, never the weak one.
type Backend struct {
	mu            sync.Mutex
	texts         map[uuid.UUID]model.TextAsset
	messages      map[uuid.UUID]model.Message
	conversations map[uuid.UUID]model.Conversation
	agents        map[uuid.UUID]model.Agent
}

// New returns an empty in-memory backend.
func New() *Backend {
	return &Backend{
		texts:         make(map[uuid.UUID]model.TextAsset),
		messages:      make(map[uuid.UUID]model.Message),
		conversations: make(map[uuid.UUID]model.Conversation),
		agents:        make(map[uuid.UUID]model.Agent),
	}
}

func (b *Backend) InitSchema(ctx context.Context) error { return nil }

func (b *Backend) GetText(ctx context.Context, id uuid.UUID) (model.TextAsset, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.texts[id]
	return v, ok, nil
}

func (b *Backend) GetMessage(ctx context.Context, id uuid.UUID) (model.Message, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.messages[id]
	return v, ok, nil
}

func (b *Backend) GetMessages(ctx context.Context, ids []uuid.UUID) ([]model.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.Message, 0, len(ids))
	for _, id := range ids {
		m, ok := b.messages[id]
		if !ok {
			return nil, storage.ErrNotFound
		}
		out = append(out, m)
	}
	return out, nil
}

func (b *Backend) GetConversation(ctx context.Context, id uuid.UUID) (model.Conversation, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.conversations[id]
	return v, ok, nil
}

func (b *Backend) GetAgent(ctx context.Context, id uuid.UUID) (model.Agent, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.agents[id]
	return v, ok, nil
}

func (b *Backend) SaveBundle(ctx context.Context, bundle storage.Bundle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range bundle.Texts {
		if _, exists := b.texts[t.ID]; !exists {
			b.texts[t.ID] = t
		}
	}
	for _, m := range bundle.Messages {
		if _, exists := b.messages[m.ID]; !exists {
			b.messages[m.ID] = m
		}
	}
	for _, c := range bundle.Conversations {
		if _, exists := b.conversations[c.ID]; !exists {
			b.conversations[c.ID] = c
		}
	}
	for _, a := range bundle.Agents {
		if _, exists := b.agents[a.ID]; !exists {
			b.agents[a.ID] = a
		}
	}
	return nil
}

func (b *Backend) DeleteAgent(ctx context.Context, id uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.agents[id]; !ok {
		return storage.ErrNotFound
	}
	delete(b.agents, id)
	for aid, a := range b.agents {
		if a.ParentID != nil && *a.ParentID == id {
			a.ParentID = nil
			b.agents[aid] = a
		}
	}
	return nil
}

func (b *Backend) GC(ctx context.Context) (storage.GCStats, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	referencedConversations := make(map[uuid.UUID]bool)
	referencedTexts := make(map[uuid.UUID]bool)
	for _, a := range b.agents {
		referencedConversations[a.ConversationID] = true
		referencedTexts[a.SystemPromptID] = true
	}

	referencedMessages := make(map[uuid.UUID]bool)
	var stats storage.GCStats
	for id, c := range b.conversations {
		if !referencedConversations[id] {
			continue
		}
		for _, mid := range c.MessageIDs {
			referencedMessages[mid] = true
		}
	}
	for id := range b.messages {
		if !referencedMessages[id] {
			delete(b.messages, id)
			stats.MessagesDeleted++
		}
	}
	for id := range b.conversations {
		if !referencedConversations[id] {
			delete(b.conversations, id)
			stats.ConversationsDeleted++
		}
	}
	for id := range b.texts {
		if !referencedTexts[id] {
			delete(b.texts, id)
			stats.TextAssetsDeleted++
		}
	}
	return stats, nil
}

// GetLineage walks parent_id pointers from id up to the root agent,
// returning the chain root-first. It fails if any ancestor (including
// id itself) is missing, mirroring the recursive-CTE backend's
// behavior of returning zero rows when the starting agent doesn't
// exist.
func (b *Backend) GetLineage(ctx context.Context, id uuid.UUID) ([]model.Agent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var chain []model.Agent
	cur := id
	for {
		a, ok := b.agents[cur]
		if !ok {
			return nil, storage.ErrNotFound
		}
		chain = append(chain, a)
		if a.ParentID == nil {
			break
		}
		cur = *a.ParentID
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

func (b *Backend) ListAgents(ctx context.Context, limit, offset int, nameFilter string) ([]model.Agent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var matched []model.Agent
	lowered := strings.ToLower(nameFilter)
	for _, a := range b.agents {
		if nameFilter == "" || strings.Contains(strings.ToLower(a.Name), lowered) {
			matched = append(matched, a)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (b *Backend) CountAgents(ctx context.Context, nameFilter string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	lowered := strings.ToLower(nameFilter)
	count := 0
	for _, a := range b.agents {
		if nameFilter == "" || strings.Contains(strings.ToLower(a.Name), lowered) {
			count++
		}
	}
	return count, nil
}

// FindByName performs an exact, case-sensitive match, deliberately
// distinct from ListAgents' case-insensitive substring filter.
func (b *Backend) FindByName(ctx context.Context, name string) ([]model.Agent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var matched []model.Agent
	for _, a := range b.agents {
		if a.Name == name {
			matched = append(matched, a)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return matched, nil
}

func (b *Backend) Close(ctx context.Context) error { return nil }
