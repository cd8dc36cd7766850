// Package model defines the immutable asset types stored and cached by
// immagent: text assets, messages, conversations, and agent versions.
// Every asset carries a UUID identity and a creation timestamp and is
// never mutated after construction; a "change" always produces a new
// asset with a new identity.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Kind identifies which concrete asset type a UUID refers to.
type Kind string

const (
	KindText         Kind = "text"
	KindMessage      Kind = "message"
	KindConversation Kind = "conversation"
	KindAgent        Kind = "agent"
)

// Asset is satisfied by every stored value type. It exists so the cache
// and storage layers can work generically over the four kinds without a
// type switch at every call site.
type Asset interface {
	AssetID() uuid.UUID
	AssetKind() Kind
}

// NewID returns a fresh random identity for a new asset.
func NewID() uuid.UUID {
	return uuid.New()
}

// TextAsset holds arbitrary immutable text, used for system prompts.
type TextAsset struct {
	ID        uuid.UUID
	CreatedAt time.Time
	Content   string
}

func NewTextAsset(content string) TextAsset {
	return TextAsset{ID: NewID(), CreatedAt: time.Now().UTC(), Content: content}
}

func (t TextAsset) AssetID() uuid.UUID { return t.ID }
func (t TextAsset) AssetKind() Kind    { return KindText }

// Role is the speaker of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is an assistant-requested invocation of a named tool with raw
// JSON arguments. It is not itself an Asset: it only ever exists nested
// inside a Message.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON, preserved verbatim end to end
}

// Message is one turn of a conversation. Content is nil for pure
// tool-call assistant messages; ToolCallID is set only on tool-result
// messages. InputTokens/OutputTokens are populated by the LLM adapter
// for assistant messages and left nil otherwise.
type Message struct {
	ID           uuid.UUID
	CreatedAt    time.Time
	Role         Role
	Content      *string
	ToolCalls    []ToolCall
	ToolCallID   *string
	InputTokens  *int
	OutputTokens *int
}

func (m Message) AssetID() uuid.UUID { return m.ID }
func (m Message) AssetKind() Kind    { return KindMessage }

func newMessage(role Role) Message {
	return Message{ID: NewID(), CreatedAt: time.Now().UTC(), Role: role}
}

// UserMessage constructs a plain user turn.
func UserMessage(content string) Message {
	m := newMessage(RoleUser)
	m.Content = &content
	return m
}

// AssistantMessage constructs an assistant turn, optionally carrying
// tool calls and token counts.
func AssistantMessage(content *string, toolCalls []ToolCall, inputTokens, outputTokens *int) Message {
	m := newMessage(RoleAssistant)
	m.Content = content
	m.ToolCalls = toolCalls
	m.InputTokens = inputTokens
	m.OutputTokens = outputTokens
	return m
}

// ToolResultMessage constructs the result of executing one tool call.
func ToolResultMessage(toolCallID, content string) Message {
	m := newMessage(RoleTool)
	m.Content = &content
	m.ToolCallID = &toolCallID
	return m
}

// Conversation is an ordered, immutable snapshot of message identities.
type Conversation struct {
	ID         uuid.UUID
	CreatedAt  time.Time
	MessageIDs []uuid.UUID
}

func (c Conversation) AssetID() uuid.UUID { return c.ID }
func (c Conversation) AssetKind() Kind    { return KindConversation }

// NewConversation creates an empty conversation.
func NewConversation() Conversation {
	return Conversation{ID: NewID(), CreatedAt: time.Now().UTC(), MessageIDs: nil}
}

// WithMessages returns a NEW conversation whose message list is this
// conversation's list plus the given ids appended, in order. The
// receiver is left untouched: conversations never mutate in place. An
// id already present in the conversation, or repeated within ids
// itself, is skipped rather than appended a second time: no
// conversation ever holds the same message id twice.
func (c Conversation) WithMessages(ids ...uuid.UUID) Conversation {
	seen := make(map[uuid.UUID]struct{}, len(c.MessageIDs)+len(ids))
	next := make([]uuid.UUID, 0, len(c.MessageIDs)+len(ids))
	for _, id := range c.MessageIDs {
		seen[id] = struct{}{}
		next = append(next, id)
	}
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		next = append(next, id)
	}
	return Conversation{ID: NewID(), CreatedAt: time.Now().UTC(), MessageIDs: next}
}

// ModelConfig is the free-form knob set passed to the LLM provider.
// Recognized keys are typed fields; anything else round-trips through
// Extra so unanticipated provider-specific knobs are never dropped.
type ModelConfig struct {
	Temperature      *float64
	TopP             *float64
	TopK             *int
	MaxTokens        *int
	Stop             []string
	FrequencyPenalty *float64
	PresencePenalty  *float64
	Extra            map[string]any
}

// Merge shallow-merges override on top of the receiver: any field set
// (non-nil / non-empty) in override wins, everything else falls back to
// the receiver's value. Extra keys are merged key-by-key.
func (c ModelConfig) Merge(override ModelConfig) ModelConfig {
	result := c
	if override.Temperature != nil {
		result.Temperature = override.Temperature
	}
	if override.TopP != nil {
		result.TopP = override.TopP
	}
	if override.TopK != nil {
		result.TopK = override.TopK
	}
	if override.MaxTokens != nil {
		result.MaxTokens = override.MaxTokens
	}
	if override.Stop != nil {
		result.Stop = override.Stop
	}
	if override.FrequencyPenalty != nil {
		result.FrequencyPenalty = override.FrequencyPenalty
	}
	if override.PresencePenalty != nil {
		result.PresencePenalty = override.PresencePenalty
	}
	if len(override.Extra) > 0 {
		merged := make(map[string]any, len(result.Extra)+len(override.Extra))
		for k, v := range result.Extra {
			merged[k] = v
		}
		for k, v := range override.Extra {
			merged[k] = v
		}
		result.Extra = merged
	}
	return result
}

// Agent is one immutable version in an agent's history. Evolving an
// agent (advancing a turn, cloning, or updating it) never mutates this
// value; it produces a new Agent with a new ID.
type Agent struct {
	ID             uuid.UUID
	CreatedAt      time.Time
	Name           string
	SystemPromptID uuid.UUID
	ParentID       *uuid.UUID
	ConversationID uuid.UUID
	Model          string
	ModelConfig    ModelConfig
}

func (a Agent) AssetID() uuid.UUID { return a.ID }
func (a Agent) AssetKind() Kind    { return KindAgent }

// Evolve returns a new Agent version pointing at a new conversation,
// with parent_id set to this agent's id (a child version).
func (a Agent) Evolve(conversationID uuid.UUID) Agent {
	next := a
	next.ID = NewID()
	next.CreatedAt = time.Now().UTC()
	parent := a.ID
	next.ParentID = &parent
	next.ConversationID = conversationID
	return next
}

// Clone returns a sibling Agent: same parent_id as the receiver, a new
// identity, and optionally a new name.
func (a Agent) Clone(newName string) Agent {
	next := a
	next.ID = NewID()
	next.CreatedAt = time.Now().UTC()
	if newName != "" {
		next.Name = newName
	}
	return next
}

// AgentUpdate names the fields WithMetadata may alter; a nil field
// leaves the corresponding field unchanged from the receiver.
type AgentUpdate struct {
	Name        *string
	Model       *string
	ModelConfig *ModelConfig
}

// WithMetadata returns a child Agent (parent_id = a.ID) with the same
// conversation but with name/model/model_config altered per update.
func (a Agent) WithMetadata(update AgentUpdate) Agent {
	next := a
	next.ID = NewID()
	next.CreatedAt = time.Now().UTC()
	parent := a.ID
	next.ParentID = &parent
	if update.Name != nil {
		next.Name = *update.Name
	}
	if update.Model != nil {
		next.Model = *update.Model
	}
	if update.ModelConfig != nil {
		next.ModelConfig = *update.ModelConfig
	}
	return next
}
