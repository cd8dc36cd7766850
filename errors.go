package immagent

import (
	"errors"

	"github.com/ashita-ai/immagent/internal/apperr"
	"github.com/ashita-ai/immagent/internal/storage"
)

// The public error taxonomy. Failures the library classifies itself
// (validation, missing assets, LLM failures) are, or wrap via %w, one
// of the types or sentinels in this file, so callers can branch with errors.As regardless of which
// internal layer detected them. Errors from the database driver are
// wrapped via %w as they come and are not translated into this
// taxonomy.
type (
	ValidationError    = apperr.ValidationError
	NotFoundError      = apperr.NotFoundError
	LLMError           = apperr.LLMError
	ToolExecutionError = apperr.ToolExecutionError
	IntegrityError     = storage.IntegrityError
)

// NotFoundKind and its values identify which asset kind was missing
// from a NotFoundError.
type NotFoundKind = apperr.NotFoundKind

const (
	NotFoundConversation = apperr.NotFoundConversation
	NotFoundSystemPrompt = apperr.NotFoundSystemPrompt
	NotFoundAgent        = apperr.NotFoundAgent
	NotFoundMessage      = apperr.NotFoundMessage
)

// LLMErrorKind and its values distinguish a transient completion
// failure (retries exhausted) from a permanent one.
type LLMErrorKind = apperr.LLMErrorKind

const (
	LLMErrorTransient = apperr.LLMErrorTransient
	LLMErrorPermanent = apperr.LLMErrorPermanent
)

// ErrNotFound is wrapped in the error GetMessages returns when a
// message the conversation references is missing. DeleteAgent and
// GetLineage report a missing agent as a *NotFoundError instead.
var ErrNotFound = storage.ErrNotFound

// ErrPoolExhausted is the sentinel for a connection pool that cannot
// hand out a connection. The backends in this module do not produce
// it: pool acquisition failures reach the caller as the driver's own
// error, wrapped via %w.
var ErrPoolExhausted = storage.ErrPoolExhausted

// IsNotFound reports whether err is or wraps a NotFoundError or
// ErrNotFound, the two shapes "missing asset" can take depending on
// which layer detected it.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf) || errors.Is(err, ErrNotFound)
}
