// Package store layers the identity cache (internal/cache) in front of
// a storage.Backend, giving every read a cache-first path and every
// write a dependency-ordered cache-priming step, exactly as spec'd for
// the persistence layer: gets resolve through the cache before falling
// back to a row lookup, and the write path always primes dependencies
// before the thing that references them.
package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ashita-ai/immagent/internal/cache"
	"github.com/ashita-ai/immagent/internal/model"
	"github.com/ashita-ai/immagent/internal/storage"
	"github.com/ashita-ai/immagent/internal/telemetry"
)

// Store pairs one storage.Backend with one identity cache per asset
// kind. Callers never reach past it to the backend directly.
type Store struct {
	Backend storage.Backend

	texts         cache.Cache[model.TextAsset]
	messages      cache.Cache[model.Message]
	conversations cache.Cache[model.Conversation]
	agents        cache.Cache[model.Agent]

	cacheHits   metric.Int64Counter
	cacheMisses metric.Int64Counter
	gcDeletions metric.Int64Counter
}

func newInstruments() (hits, misses, gcDeletions metric.Int64Counter) {
	meter := telemetry.Meter("immagent/store")
	hits, _ = meter.Int64Counter("immagent.cache.hits",
		metric.WithDescription("Identity cache hits by asset kind"),
	)
	misses, _ = meter.Int64Counter("immagent.cache.misses",
		metric.WithDescription("Identity cache misses by asset kind"),
	)
	gcDeletions, _ = meter.Int64Counter("immagent.gc.deletions",
		metric.WithDescription("Rows deleted by GC, by asset kind"),
	)
	return hits, misses, gcDeletions
}

// New wraps backend with a weak identity cache, the pairing used for
// the persistent (pg, sqlite) backends: the cache is a capacity-bounded
// LRU rather than one that never extends an asset's lifetime.
func New(backend storage.Backend) *Store {
	hits, misses, gcDeletions := newInstruments()
	return &Store{
		Backend:       backend,
		texts:         cache.NewWeak[model.TextAsset](),
		messages:      cache.NewWeak[model.Message](),
		conversations: cache.NewWeak[model.Conversation](),
		agents:        cache.NewWeak[model.Agent](),
		cacheHits:     hits,
		cacheMisses:   misses,
		gcDeletions:   gcDeletions,
	}
}

// NewStrong wraps backend with a strong identity cache that never
// evicts on its own. This is the pairing for the in-memory backend,
// where the cache is exercised uniformly with the other backends even
// though the backend itself already holds every value.
func NewStrong(backend storage.Backend) *Store {
	hits, misses, gcDeletions := newInstruments()
	return &Store{
		Backend:       backend,
		texts:         cache.NewStrong[model.TextAsset](),
		messages:      cache.NewStrong[model.Message](),
		conversations: cache.NewStrong[model.Conversation](),
		agents:        cache.NewStrong[model.Agent](),
		cacheHits:     hits,
		cacheMisses:   misses,
		gcDeletions:   gcDeletions,
	}
}

func (s *Store) recordCache(ctx context.Context, kind string, hit bool) {
	attrs := metric.WithAttributes(attribute.String("immagent.kind", kind))
	if hit {
		s.cacheHits.Add(ctx, 1, attrs)
	} else {
		s.cacheMisses.Add(ctx, 1, attrs)
	}
}

func (s *Store) GetText(ctx context.Context, id uuid.UUID) (model.TextAsset, bool, error) {
	if v, ok := s.texts.Get(id); ok {
		s.recordCache(ctx, "text", true)
		return v, true, nil
	}
	s.recordCache(ctx, "text", false)
	v, ok, err := s.Backend.GetText(ctx, id)
	if err != nil {
		return model.TextAsset{}, false, fmt.Errorf("store: get text: %w", err)
	}
	if ok {
		s.texts.Put(id, v)
	}
	return v, ok, nil
}

func (s *Store) GetMessage(ctx context.Context, id uuid.UUID) (model.Message, bool, error) {
	if v, ok := s.messages.Get(id); ok {
		s.recordCache(ctx, "message", true)
		return v, true, nil
	}
	s.recordCache(ctx, "message", false)
	v, ok, err := s.Backend.GetMessage(ctx, id)
	if err != nil {
		return model.Message{}, false, fmt.Errorf("store: get message: %w", err)
	}
	if ok {
		s.messages.Put(id, v)
	}
	return v, ok, nil
}

// GetMessages resolves every id in order, consulting the cache first
// and fetching only the misses from the backend. It fails if any id is
// unresolvable, matching storage.Backend.GetMessages.
func (s *Store) GetMessages(ctx context.Context, ids []uuid.UUID) ([]model.Message, error) {
	out := make([]model.Message, len(ids))
	var missing []uuid.UUID
	for i, id := range ids {
		if v, ok := s.messages.Get(id); ok {
			s.recordCache(ctx, "message", true)
			out[i] = v
		} else {
			s.recordCache(ctx, "message", false)
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return out, nil
	}
	fetched, err := s.Backend.GetMessages(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("store: get messages: %w", err)
	}
	byID := make(map[uuid.UUID]model.Message, len(fetched))
	for _, m := range fetched {
		byID[m.ID] = m
		s.messages.Put(m.ID, m)
	}
	for i, id := range ids {
		if m, ok := byID[id]; ok {
			out[i] = m
		}
	}
	return out, nil
}

func (s *Store) GetConversation(ctx context.Context, id uuid.UUID) (model.Conversation, bool, error) {
	if v, ok := s.conversations.Get(id); ok {
		s.recordCache(ctx, "conversation", true)
		return v, true, nil
	}
	s.recordCache(ctx, "conversation", false)
	v, ok, err := s.Backend.GetConversation(ctx, id)
	if err != nil {
		return model.Conversation{}, false, fmt.Errorf("store: get conversation: %w", err)
	}
	if ok {
		s.conversations.Put(id, v)
	}
	return v, ok, nil
}

func (s *Store) GetAgent(ctx context.Context, id uuid.UUID) (model.Agent, bool, error) {
	if v, ok := s.agents.Get(id); ok {
		s.recordCache(ctx, "agent", true)
		return v, true, nil
	}
	s.recordCache(ctx, "agent", false)
	v, ok, err := s.Backend.GetAgent(ctx, id)
	if err != nil {
		return model.Agent{}, false, fmt.Errorf("store: get agent: %w", err)
	}
	if ok {
		s.agents.Put(id, v)
	}
	return v, ok, nil
}

// SaveBundle primes the identity cache in dependency order (texts,
// then messages, then conversations, then agents) and then persists
// the bundle in one atomic backend write. Priming happens before the
// write so that a concurrent reader resolving a reference through the
// cache never observes a partially-written bundle.
func (s *Store) SaveBundle(ctx context.Context, b storage.Bundle) error {
	for _, t := range b.Texts {
		s.texts.Put(t.ID, t)
	}
	for _, m := range b.Messages {
		s.messages.Put(m.ID, m)
	}
	for _, c := range b.Conversations {
		s.conversations.Put(c.ID, c)
	}
	for _, a := range b.Agents {
		s.agents.Put(a.ID, a)
	}
	if err := s.Backend.SaveBundle(ctx, b); err != nil {
		return fmt.Errorf("store: save bundle: %w", err)
	}
	return nil
}

// DeleteAgent removes the agent row and then clears the agent cache.
// The backend has just nulled parent_id on the deleted agent's
// children, and the cache has no parent-to-child index to patch them
// individually, so clearing it guarantees no cached child still points
// at the deleted parent; surviving agents are reloaded on next access.
func (s *Store) DeleteAgent(ctx context.Context, id uuid.UUID) error {
	if err := s.Backend.DeleteAgent(ctx, id); err != nil {
		return fmt.Errorf("store: delete agent: %w", err)
	}
	s.agents.Clear()
	return nil
}

// GC runs the backend's garbage collection pass and then clears every
// cache. The backend is always the source of truth for which rows
// survive, so clearing is the simplest way to guarantee no cache entry
// outlives a row GC just removed; surviving assets are transparently
// reloaded on next access.
func (s *Store) GC(ctx context.Context) (storage.GCStats, error) {
	stats, err := s.Backend.GC(ctx)
	if err != nil {
		return storage.GCStats{}, fmt.Errorf("store: gc: %w", err)
	}
	if stats.TextAssetsDeleted > 0 {
		s.gcDeletions.Add(ctx, int64(stats.TextAssetsDeleted), metric.WithAttributes(attribute.String("immagent.kind", "text")))
	}
	if stats.ConversationsDeleted > 0 {
		s.gcDeletions.Add(ctx, int64(stats.ConversationsDeleted), metric.WithAttributes(attribute.String("immagent.kind", "conversation")))
	}
	if stats.MessagesDeleted > 0 {
		s.gcDeletions.Add(ctx, int64(stats.MessagesDeleted), metric.WithAttributes(attribute.String("immagent.kind", "message")))
	}
	s.Clear()
	return stats, nil
}

// GetLineage resolves the lineage chain and primes the agent cache
// with every walked version, so later lineage or load calls along the
// same chain are served from cache.
func (s *Store) GetLineage(ctx context.Context, id uuid.UUID) ([]model.Agent, error) {
	lineage, err := s.Backend.GetLineage(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("store: get lineage: %w", err)
	}
	for _, a := range lineage {
		s.agents.Put(a.ID, a)
	}
	return lineage, nil
}

func (s *Store) ListAgents(ctx context.Context, limit, offset int, nameFilter string) ([]model.Agent, error) {
	agents, err := s.Backend.ListAgents(ctx, limit, offset, nameFilter)
	if err != nil {
		return nil, fmt.Errorf("store: list agents: %w", err)
	}
	for _, a := range agents {
		s.agents.Put(a.ID, a)
	}
	return agents, nil
}

func (s *Store) CountAgents(ctx context.Context, nameFilter string) (int, error) {
	n, err := s.Backend.CountAgents(ctx, nameFilter)
	if err != nil {
		return 0, fmt.Errorf("store: count agents: %w", err)
	}
	return n, nil
}

func (s *Store) FindByName(ctx context.Context, name string) ([]model.Agent, error) {
	agents, err := s.Backend.FindByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("store: find by name: %w", err)
	}
	for _, a := range agents {
		s.agents.Put(a.ID, a)
	}
	return agents, nil
}

// Clear drops every cache entry without touching the backend.
func (s *Store) Clear() {
	s.texts.Clear()
	s.messages.Clear()
	s.conversations.Clear()
	s.agents.Clear()
}

func (s *Store) Close(ctx context.Context) error {
	return s.Backend.Close(ctx)
}
