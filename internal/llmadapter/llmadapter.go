// Package llmadapter wraps a pluggable completion Provider with the
// retry/timeout policy the turn engine depends on: each attempt is
// bounded by a per-call timeout, and the call as a whole is retried
// with jittered exponential backoff up to a configured limit, but only
// for failures the provider marks as transient.
package llmadapter

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/ashita-ai/immagent/internal/model"
)

// Request is everything a Provider needs to produce the next assistant
// message: the full message history (already resolved from the
// conversation), the tool catalog available this round, and the
// effective model config (the agent's config shallow-merged with any
// per-call override).
type Request struct {
	Model        string
	SystemPrompt string
	Messages     []model.Message
	Tools        []ToolSpec
	ModelConfig  model.ModelConfig
}

// ToolSpec describes one tool the provider may call, in the shape most
// completion APIs expect: a name, a description, and a JSON schema for
// its arguments.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]any
}

// Provider is the pluggable external collaborator: one LLM completion
// call. Implementations should mark transient failures (rate limits,
// timeouts, 5xx) by returning an error satisfying the temporary
// interface below; anything else is treated as permanent and is never
// retried.
type Provider interface {
	Complete(ctx context.Context, req Request) (model.Message, error)
}

type temporary interface {
	Temporary() bool
}

// isTransient reports whether err should trigger a retry. Providers
// that don't implement the temporary interface are always treated as
// permanent failures, matching the conservative default of "don't
// retry what you don't understand."
func isTransient(err error) bool {
	var t temporary
	if errors.As(err, &t) {
		return t.Temporary()
	}
	return false
}

// Config bounds the retry/timeout policy.
type Config struct {
	MaxRetries     int
	PerAttemptTime time.Duration
	BaseDelay      time.Duration
}

// DefaultConfig mirrors the module-level defaults described for
// IMMAGENT_MAX_RETRIES / IMMAGENT_TIMEOUT_SECONDS.
func DefaultConfig() Config {
	return Config{MaxRetries: 3, PerAttemptTime: 120 * time.Second, BaseDelay: 500 * time.Millisecond}
}

// Client retries Provider.Complete per Config.
type Client struct {
	provider Provider
	cfg      Config
}

func New(provider Provider, cfg Config) *Client {
	return &Client{provider: provider, cfg: cfg}
}

// Complete calls the underlying provider, retrying transient failures
// with jittered exponential backoff. A permanent failure, or the final
// retry's failure, is wrapped and returned immediately.
func (c *Client) Complete(ctx context.Context, req Request) (model.Message, error) {
	if c.provider == nil {
		return model.Message{}, fmt.Errorf("llmadapter: complete: no provider configured")
	}
	baseDelay := c.cfg.BaseDelay
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.PerAttemptTime)
		msg, err := c.provider.Complete(attemptCtx, req)
		cancel()
		if err == nil {
			return msg, nil
		}
		lastErr = err
		if !isTransient(err) {
			return model.Message{}, fmt.Errorf("llmadapter: complete: %w", err)
		}
		if attempt == c.cfg.MaxRetries {
			break
		}
		jitter := time.Duration(rand.Int64N(int64(baseDelay) + 1))
		select {
		case <-ctx.Done():
			return model.Message{}, ctx.Err()
		case <-time.After(baseDelay + jitter):
		}
		baseDelay *= 2
	}
	return model.Message{}, fmt.Errorf("llmadapter: complete: %w", &RetriesExhaustedError{Attempts: c.cfg.MaxRetries + 1, Cause: lastErr})
}

// RetriesExhaustedError reports that every attempt failed with a
// transient error. Callers can distinguish this from an immediate
// permanent failure via errors.As to decide how to classify the
// failure further up the stack.
type RetriesExhaustedError struct {
	Attempts int
	Cause    error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("exhausted %d attempts: %s", e.Attempts, e.Cause)
}

func (e *RetriesExhaustedError) Unwrap() error { return e.Cause }
