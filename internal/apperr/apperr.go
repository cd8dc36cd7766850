// Package apperr defines the flat, structured error taxonomy shared by
// the advance engine and the public facade. Each type carries enough
// structured data for a caller to branch on via errors.As without
// parsing a message string.
package apperr

import "github.com/google/uuid"

// ValidationError reports a malformed input caught before any I/O.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Field + ": " + e.Message
}

// NotFoundKind identifies which asset kind was missing.
type NotFoundKind string

const (
	NotFoundConversation  NotFoundKind = "conversation"
	NotFoundSystemPrompt  NotFoundKind = "system_prompt"
	NotFoundAgent         NotFoundKind = "agent"
	NotFoundMessage       NotFoundKind = "message"
)

// NotFoundError reports that an asset referenced by id does not exist.
type NotFoundError struct {
	Kind NotFoundKind
	ID   uuid.UUID
}

func (e *NotFoundError) Error() string {
	return string(e.Kind) + " not found: " + e.ID.String()
}

// LLMErrorKind distinguishes a transient failure (retries exhausted)
// from a permanent one (auth, invalid request, content policy).
type LLMErrorKind string

const (
	LLMErrorTransient LLMErrorKind = "transient"
	LLMErrorPermanent LLMErrorKind = "permanent"
)

// LLMError wraps a completion-provider failure that reached the caller
// (i.e. was not swallowed, because only tool failures are swallowed).
type LLMError struct {
	Kind  LLMErrorKind
	Cause error
}

func (e *LLMError) Error() string {
	return "llm: " + string(e.Kind) + ": " + e.Cause.Error()
}

func (e *LLMError) Unwrap() error { return e.Cause }

// ToolExecutionError records a tool invocation failure. The advance
// engine never returns this to its caller directly: it converts it to
// "Error: <message>" tool-result content. It is exported so that
// exact-match tests can assert on the kind of failure a stub tool
// provider produced.
type ToolExecutionError struct {
	Tool  string
	Cause error
}

func (e *ToolExecutionError) Error() string {
	return "tool_execution: " + e.Tool + ": " + e.Cause.Error()
}

func (e *ToolExecutionError) Unwrap() error { return e.Cause }
