// Package immagent is an immutable agent state store for LLM-backed
// conversational agents. Every turn produces a new, frozen agent
// version whose parent pointer references the one before it; nothing
// already persisted is ever mutated. This gives callers safe caching,
// full history via a simple pointer walk, and reproducibility: any
// version's conversation can be reconstructed from its id alone.
//
// The import graph enforces a strict no-cycle rule: immagent (root)
// imports internal/*, but internal/* never imports immagent.
package immagent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/ashita-ai/immagent/internal/config"
	"github.com/ashita-ai/immagent/internal/llmadapter"
	"github.com/ashita-ai/immagent/internal/storage"
	"github.com/ashita-ai/immagent/internal/storage/memory"
	"github.com/ashita-ai/immagent/internal/storage/pg"
	"github.com/ashita-ai/immagent/internal/storage/sqlite"
	"github.com/ashita-ai/immagent/internal/store"
	"github.com/ashita-ai/immagent/internal/telemetry"
	"github.com/ashita-ai/immagent/internal/tooladapter"
	"github.com/ashita-ai/immagent/internal/turnengine"
)

// Store is the library's entry point: one persistence backend, one
// identity cache, and the advance engine bound to a caller-supplied LLM
// provider. Construct with Connect (PostgreSQL), OpenSQLite, or
// OpenMemory.
type Store struct {
	store        *store.Store
	engine       *turnengine.Engine
	cfg          config.Config
	logger       *slog.Logger
	otelShutdown telemetry.Shutdown
}

// Connect opens a PostgreSQL-backed Store, loading configuration from
// the environment (a ".env" file is loaded best-effort, matching the
// original server's startup convention) and applying any options.
// InitSchema is run automatically.
func Connect(ctx context.Context, opts ...Option) (*Store, error) {
	_ = godotenv.Load()

	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("immagent: load config: %w", err)
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	if o.maxRetries > 0 {
		cfg.MaxRetries = o.maxRetries
	}
	if o.maxToolRounds > 0 {
		cfg.MaxToolRounds = o.maxToolRounds
	}
	if o.timeout > 0 {
		cfg.TimeoutSeconds = o.timeout
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.OTELServiceName, "dev")
	if err != nil {
		return nil, fmt.Errorf("immagent: telemetry: %w", err)
	}

	backend, err := pg.New(ctx, cfg.DatabaseURL, pg.PoolConfig{
		MinSize:                   int32(cfg.PoolMinSize),
		MaxSize:                   int32(cfg.PoolMaxSize),
		MaxInactiveConnLifetimeSec: int32(cfg.PoolMaxInactiveConnSecs),
	}, logger)
	if err != nil {
		_ = otelShutdown(ctx)
		return nil, fmt.Errorf("immagent: connect: %w", err)
	}
	if err := backend.InitSchema(ctx); err != nil {
		_ = otelShutdown(ctx)
		return nil, fmt.Errorf("immagent: init schema: %w", err)
	}

	return newStore(backend, false, cfg, logger, otelShutdown, o), nil
}

// OpenSQLite opens a SQLite-backed Store at path (or ":memory:"),
// skipping environment-based database configuration entirely — useful
// for local development and tests. Other options (logger, providers,
// retry/round bounds) still apply.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*Store, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	cfg, err := config.Load()
	if err != nil {
		cfg = defaultConfig()
	}
	applyOptionOverrides(&cfg, o)

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	backend, err := sqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("immagent: open sqlite: %w", err)
	}
	if err := backend.InitSchema(ctx); err != nil {
		return nil, fmt.Errorf("immagent: init schema: %w", err)
	}

	return newStore(backend, false, cfg, logger, noopShutdown, o), nil
}

// OpenMemory opens a pure in-memory Store with no persistence at all,
// paired with the strong (never-evict) identity cache.
func OpenMemory(opts ...Option) *Store {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}
	cfg := defaultConfig()
	applyOptionOverrides(&cfg, o)

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	return newStore(memory.New(), true, cfg, logger, noopShutdown, o)
}

func noopShutdown(ctx context.Context) error { return nil }

func defaultConfig() config.Config {
	return config.Config{
		PoolMinSize: 2, PoolMaxSize: 10, PoolMaxInactiveConnSecs: 300,
		LogLevel: "info", OTELServiceName: "immagent",
		MaxToolRounds: 10, MaxRetries: 3, TimeoutSeconds: 120,
	}
}

func applyOptionOverrides(cfg *config.Config, o resolvedOptions) {
	if o.maxRetries > 0 {
		cfg.MaxRetries = o.maxRetries
	}
	if o.maxToolRounds > 0 {
		cfg.MaxToolRounds = o.maxToolRounds
	}
	if o.timeout > 0 {
		cfg.TimeoutSeconds = o.timeout
	}
}

func newStore(backend storage.Backend, strongCache bool, cfg config.Config, logger *slog.Logger, otelShutdown telemetry.Shutdown, o resolvedOptions) *Store {
	var s *store.Store
	if strongCache {
		s = store.NewStrong(backend)
	} else {
		s = store.New(backend)
	}

	var llm llmadapter.Provider
	if o.llmProvider != nil {
		llm = llmProviderAdapter{p: o.llmProvider}
	}
	client := llmadapter.New(llm, llmadapter.Config{
		MaxRetries:     cfg.MaxRetries,
		PerAttemptTime: cfg.TimeoutDuration(),
		BaseDelay:      500 * time.Millisecond,
	})

	var tools tooladapter.Provider
	if o.toolProvider != nil {
		tools = toolProviderAdapter{p: o.toolProvider}
	}

	engine := turnengine.New(s, client, tools, cfg.MaxToolRounds, logger)

	return &Store{store: s, engine: engine, cfg: cfg, logger: logger, otelShutdown: otelShutdown}
}

// Close releases the underlying connection pool (if any) and flushes
// telemetry exporters.
func (s *Store) Close(ctx context.Context) error {
	if err := s.store.Close(ctx); err != nil {
		_ = s.otelShutdown(ctx)
		return fmt.Errorf("immagent: close: %w", err)
	}
	return s.otelShutdown(ctx)
}

// InitSchema runs idempotent DDL against the backend. Connect and
// OpenSQLite already call this during construction; it is exposed for
// callers that manage schema lifecycle themselves.
func (s *Store) InitSchema(ctx context.Context) error {
	return s.store.Backend.InitSchema(ctx)
}

// CreateAgent mints a fresh text asset (the system prompt), an empty
// conversation, and a root agent version, and persists all three.
func (s *Store) CreateAgent(ctx context.Context, name, systemPrompt, modelName string, modelConfig ModelConfig) (Agent, error) {
	return s.engine.CreateAgent(ctx, name, systemPrompt, modelName, modelConfig)
}

// AdvanceOptions parameterizes one Advance call.
type AdvanceOptions struct {
	MaxToolRounds       int
	ModelConfigOverride ModelConfig
	ToolProvider        ToolProvider
}

// Advance runs one turn of the agent loop: it reconstructs history,
// appends the user's input, drives the LLM and any requested tool
// calls through a bounded round loop, and emits a new agent version
// with every new asset cached and persisted atomically.
func (s *Store) Advance(ctx context.Context, agent Agent, userInput string, opts AdvanceOptions) (Agent, error) {
	engineOpts := turnengine.AdvanceOptions{
		MaxToolRounds:       opts.MaxToolRounds,
		ModelConfigOverride: opts.ModelConfigOverride,
	}
	if opts.ToolProvider != nil {
		engineOpts.ToolProvider = toolProviderAdapter{p: opts.ToolProvider}
	}
	return s.engine.Advance(ctx, agent, userInput, engineOpts)
}

// Clone emits a sibling agent version: a fresh identity sharing the
// receiver's parent_id, optionally under a new name.
func (s *Store) Clone(ctx context.Context, agent Agent, newName string) (Agent, error) {
	return s.engine.Clone(ctx, agent, newName)
}

// WithMetadata emits a child agent version (parent_id = agent.ID) with
// the same conversation but name/model/model_config altered per update.
func (s *Store) WithMetadata(ctx context.Context, agent Agent, update AgentUpdate) (Agent, error) {
	return s.engine.WithMetadata(ctx, agent, update)
}

// Save persists a caller-held agent version directly, without running
// it through the advance protocol. This is the public entry point for
// save_bundle when the caller has already built the agent it wants
// stored — CreateAgent, Advance, Clone, and WithMetadata all persist
// their own output already and never need it.
func (s *Store) Save(ctx context.Context, agent Agent) error {
	if err := s.store.SaveBundle(ctx, storage.Bundle{Agents: []Agent{agent}}); err != nil {
		return fmt.Errorf("immagent: save: %w", err)
	}
	return nil
}

// LoadAgent resolves an agent by id, cache-first.
func (s *Store) LoadAgent(ctx context.Context, id uuid.UUID) (Agent, error) {
	a, ok, err := s.store.GetAgent(ctx, id)
	if err != nil {
		return Agent{}, fmt.Errorf("immagent: load agent: %w", err)
	}
	if !ok {
		return Agent{}, &NotFoundError{Kind: NotFoundAgent, ID: id}
	}
	return a, nil
}

// GetMessages resolves every message in an agent's current
// conversation, in conversation order.
func (s *Store) GetMessages(ctx context.Context, agent Agent) ([]Message, error) {
	conv, ok, err := s.store.GetConversation(ctx, agent.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("immagent: get messages: %w", err)
	}
	if !ok {
		return nil, &NotFoundError{Kind: NotFoundConversation, ID: agent.ConversationID}
	}
	messages, err := s.store.GetMessages(ctx, conv.MessageIDs)
	if err != nil {
		return nil, fmt.Errorf("immagent: get messages: %w", err)
	}
	return messages, nil
}

// GetLineage returns the chain from the root ancestor to agent,
// root-first.
func (s *Store) GetLineage(ctx context.Context, agent Agent) ([]Agent, error) {
	lineage, err := s.store.GetLineage(ctx, agent.ID)
	if err != nil {
		if errorsIsNotFoundStorage(err) {
			return nil, &NotFoundError{Kind: NotFoundAgent, ID: agent.ID}
		}
		return nil, fmt.Errorf("immagent: get lineage: %w", err)
	}
	return lineage, nil
}

// DeleteAgent removes one agent version. Children's parent_id becomes
// null; run GC afterward to remove anything that becomes unreferenced
// as a result.
func (s *Store) DeleteAgent(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteAgent(ctx, id); err != nil {
		if errorsIsNotFoundStorage(err) {
			return &NotFoundError{Kind: NotFoundAgent, ID: id}
		}
		return fmt.Errorf("immagent: delete agent: %w", err)
	}
	return nil
}

// GCStats reports how many rows of each kind a GC pass removed.
type GCStats = storage.GCStats

// GC removes messages, conversations, and text assets no longer
// referenced by any remaining agent, in that order, as one transaction.
func (s *Store) GC(ctx context.Context) (GCStats, error) {
	stats, err := s.store.GC(ctx)
	if err != nil {
		return GCStats{}, fmt.Errorf("immagent: gc: %w", err)
	}
	return stats, nil
}

// ListAgents returns agents ordered by creation time descending. name,
// if non-empty, is a case-insensitive substring filter.
func (s *Store) ListAgents(ctx context.Context, limit, offset int, name string) ([]Agent, error) {
	agents, err := s.store.ListAgents(ctx, limit, offset, name)
	if err != nil {
		return nil, fmt.Errorf("immagent: list agents: %w", err)
	}
	return agents, nil
}

// CountAgents counts agents matching the same filter ListAgents uses,
// without pagination.
func (s *Store) CountAgents(ctx context.Context, name string) (int, error) {
	n, err := s.store.CountAgents(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("immagent: count agents: %w", err)
	}
	return n, nil
}

// FindByName returns every agent whose name exactly matches name
// (case-sensitive), deliberately inconsistent with ListAgents' filter.
func (s *Store) FindByName(ctx context.Context, name string) ([]Agent, error) {
	agents, err := s.store.FindByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("immagent: find by name: %w", err)
	}
	return agents, nil
}

// ClearCache drops every entry from the identity cache without
// touching the backend.
func (s *Store) ClearCache() {
	s.store.Clear()
}

func errorsIsNotFoundStorage(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}
