package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ashita-ai/immagent/internal/model"
	"github.com/ashita-ai/immagent/internal/storage"
)

// SaveBundle writes every asset in b inside one transaction using
// INSERT ... ON CONFLICT (id) DO NOTHING, so re-saving an asset the
// cache already holds (and therefore might resubmit) is a no-op rather
// than an error. Retried on transient serialization/deadlock failures.
func (b *Backend) SaveBundle(ctx context.Context, bundle storage.Bundle) error {
	if bundle.Empty() {
		return nil
	}
	return b.withRetry(ctx, 3, 50*time.Millisecond, func() error {
		tx, err := b.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("storage/pg: begin save bundle: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

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

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("storage/pg: commit save bundle: %w", err)
		}
		return nil
	})
}

func saveTexts(ctx context.Context, tx pgx.Tx, texts []model.TextAsset) error {
	for _, t := range texts {
		if _, err := tx.Exec(ctx,
			`INSERT INTO text_assets (id, created_at, content) VALUES ($1, $2, $3)
			 ON CONFLICT (id) DO NOTHING`,
			t.ID, t.CreatedAt, t.Content,
		); err != nil {
			return fmt.Errorf("storage/pg: save text asset: %w", err)
		}
	}
	return nil
}

func saveMessages(ctx context.Context, tx pgx.Tx, messages []model.Message) error {
	for _, m := range messages {
		toolCallsRaw, err := encodeToolCalls(m.ToolCalls)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO messages (id, created_at, role, content, tool_calls, tool_call_id, input_tokens, output_tokens)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (id) DO NOTHING`,
			m.ID, m.CreatedAt, string(m.Role), m.Content, toolCallsRaw, m.ToolCallID, m.InputTokens, m.OutputTokens,
		); err != nil {
			return fmt.Errorf("storage/pg: save message: %w", err)
		}
	}
	return nil
}

func saveConversations(ctx context.Context, tx pgx.Tx, conversations []model.Conversation) error {
	for _, c := range conversations {
		if _, err := tx.Exec(ctx,
			`INSERT INTO conversations (id, created_at, message_ids) VALUES ($1, $2, $3)
			 ON CONFLICT (id) DO NOTHING`,
			c.ID, c.CreatedAt, c.MessageIDs,
		); err != nil {
			return fmt.Errorf("storage/pg: save conversation: %w", err)
		}
	}
	return nil
}

func saveAgents(ctx context.Context, tx pgx.Tx, agents []model.Agent) error {
	for _, a := range agents {
		modelConfigRaw, err := encodeModelConfig(a.ModelConfig)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO agents (id, created_at, name, system_prompt_id, parent_id, conversation_id, model, model_config)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (id) DO NOTHING`,
			a.ID, a.CreatedAt, a.Name, a.SystemPromptID, uuidPtrOrNil(a.ParentID), a.ConversationID, a.Model, modelConfigRaw,
		); err != nil {
			return fmt.Errorf("storage/pg: save agent: %w", err)
		}
	}
	return nil
}
