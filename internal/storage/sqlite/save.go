package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ashita-ai/immagent/internal/model"
	"github.com/ashita-ai/immagent/internal/storage"
)

// SaveBundle writes every asset in b inside one transaction, using
// INSERT OR IGNORE so re-saving an asset the cache already holds is a
// no-op rather than a constraint error.
func (b *Backend) SaveBundle(ctx context.Context, bundle storage.Bundle) error {
	if bundle.Empty() {
		return nil
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage/sqlite: begin save bundle: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := saveTexts(ctx, tx, bundle.Texts); err != nil {
		return err
	}
	if err := saveMessages(ctx, tx, bundle.Messages); err != nil {
		return err
	}
	if err := saveConversations(ctx, tx, bundle.Conversations); err != nil {
		return err
	}
	if err := saveAgents(ctx, tx, bundle.Agents); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage/sqlite: commit save bundle: %w", err)
	}
	return nil
}

func saveTexts(ctx context.Context, tx *sql.Tx, texts []model.TextAsset) error {
	for _, t := range texts {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO text_assets (id, created_at, content) VALUES (?, ?, ?)`,
			t.ID.String(), formatTime(t.CreatedAt), t.Content,
		); err != nil {
			return fmt.Errorf("storage/sqlite: save text asset: %w", err)
		}
	}
	return nil
}

func saveMessages(ctx context.Context, tx *sql.Tx, messages []model.Message) error {
	for _, m := range messages {
		toolCallsRaw, err := encodeToolCalls(m.ToolCalls)
		if err != nil {
			return err
		}
		var content, toolCallID any
		if m.Content != nil {
			content = *m.Content
		}
		if m.ToolCallID != nil {
			toolCallID = *m.ToolCallID
		}
		var inputTokens, outputTokens any
		if m.InputTokens != nil {
			inputTokens = *m.InputTokens
		}
		if m.OutputTokens != nil {
			outputTokens = *m.OutputTokens
		}
		var toolCallsVal any
		if toolCallsRaw != "" {
			toolCallsVal = toolCallsRaw
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO messages (id, created_at, role, content, tool_calls, tool_call_id, input_tokens, output_tokens)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID.String(), formatTime(m.CreatedAt), string(m.Role), content, toolCallsVal, toolCallID, inputTokens, outputTokens,
		); err != nil {
			return fmt.Errorf("storage/sqlite: save message: %w", err)
		}
	}
	return nil
}

func saveConversations(ctx context.Context, tx *sql.Tx, conversations []model.Conversation) error {
	for _, c := range conversations {
		idsRaw, err := encodeUUIDs(c.MessageIDs)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO conversations (id, created_at, message_ids) VALUES (?, ?, ?)`,
			c.ID.String(), formatTime(c.CreatedAt), idsRaw,
		); err != nil {
			return fmt.Errorf("storage/sqlite: save conversation: %w", err)
		}
	}
	return nil
}

func saveAgents(ctx context.Context, tx *sql.Tx, agents []model.Agent) error {
	for _, a := range agents {
		cfgRaw, err := encodeModelConfig(a.ModelConfig)
		if err != nil {
			return err
		}
		var parentID any
		if a.ParentID != nil {
			parentID = a.ParentID.String()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO agents (id, created_at, name, system_prompt_id, parent_id, conversation_id, model, model_config)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID.String(), formatTime(a.CreatedAt), a.Name, a.SystemPromptID.String(), parentID,
			a.ConversationID.String(), a.Model, cfgRaw,
		); err != nil {
			return fmt.Errorf("storage/sqlite: save agent: %w", err)
		}
	}
	return nil
}
