package immagent

import "log/slog"

// Option configures a Store at construction time.
type Option func(*resolvedOptions)

// resolvedOptions holds every extension point after defaults and
// environment configuration are applied. Unexported — callers use the
// With* functions.
type resolvedOptions struct {
	logger        *slog.Logger
	databaseURL   string
	maxRetries    int
	maxToolRounds int
	timeout       int
	toolProvider  ToolProvider
	llmProvider   LLMProvider
}

// WithLogger sets the structured logger used throughout the Store. If
// unset, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithDatabaseURL overrides the IMMAGENT_DATABASE_URL environment
// variable.
func WithDatabaseURL(dsn string) Option {
	return func(o *resolvedOptions) { o.databaseURL = dsn }
}

// WithMaxRetries overrides IMMAGENT_MAX_RETRIES.
func WithMaxRetries(n int) Option {
	return func(o *resolvedOptions) { o.maxRetries = n }
}

// WithMaxToolRounds overrides IMMAGENT_MAX_TOOL_ROUNDS.
func WithMaxToolRounds(n int) Option {
	return func(o *resolvedOptions) { o.maxToolRounds = n }
}

// WithTimeoutSeconds overrides IMMAGENT_TIMEOUT_SECONDS.
func WithTimeoutSeconds(n int) Option {
	return func(o *resolvedOptions) { o.timeout = n }
}

// WithToolProvider sets the default tool executor used by Advance when
// the caller doesn't supply a per-call override.
func WithToolProvider(p ToolProvider) Option {
	return func(o *resolvedOptions) { o.toolProvider = p }
}

// WithLLMProvider sets the completion provider Advance drives. This is
// the one option every non-memory-backed caller must supply: the core
// module has no opinion about which LLM API to speak.
func WithLLMProvider(p LLMProvider) Option {
	return func(o *resolvedOptions) { o.llmProvider = p }
}
