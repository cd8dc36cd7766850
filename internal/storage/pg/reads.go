package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ashita-ai/immagent/internal/model"
	"github.com/ashita-ai/immagent/internal/storage"
)

func (b *Backend) GetText(ctx context.Context, id uuid.UUID) (model.TextAsset, bool, error) {
	row := b.pool.QueryRow(ctx, `SELECT id, created_at, content FROM text_assets WHERE id = $1`, id)
	var t model.TextAsset
	if err := row.Scan(&t.ID, &t.CreatedAt, &t.Content); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.TextAsset{}, false, nil
		}
		return model.TextAsset{}, false, fmt.Errorf("storage/pg: get text: %w", err)
	}
	return t, true, nil
}

func (b *Backend) scanMessage(row pgx.Row) (model.Message, bool, error) {
	var (
		m             model.Message
		toolCallsRaw  []byte
		content       *string
		toolCallID    *string
		inputTokens   *int
		outputTokens  *int
		role          string
	)
	err := row.Scan(&m.ID, &m.CreatedAt, &role, &content, &toolCallsRaw, &toolCallID, &inputTokens, &outputTokens)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Message{}, false, nil
		}
		return model.Message{}, false, fmt.Errorf("storage/pg: scan message: %w", err)
	}
	calls, err := decodeToolCalls(toolCallsRaw)
	if err != nil {
		return model.Message{}, false, err
	}
	m.Role = model.Role(role)
	m.Content = content
	m.ToolCalls = calls
	m.ToolCallID = toolCallID
	m.InputTokens = inputTokens
	m.OutputTokens = outputTokens
	return m, true, nil
}

func (b *Backend) GetMessage(ctx context.Context, id uuid.UUID) (model.Message, bool, error) {
	row := b.pool.QueryRow(ctx,
		`SELECT id, created_at, role, content, tool_calls, tool_call_id, input_tokens, output_tokens
		 FROM messages WHERE id = $1`, id)
	return b.scanMessage(row)
}

func (b *Backend) GetMessages(ctx context.Context, ids []uuid.UUID) ([]model.Message, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := b.pool.Query(ctx,
		`SELECT id, created_at, role, content, tool_calls, tool_call_id, input_tokens, output_tokens
		 FROM messages WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("storage/pg: get messages: %w", err)
	}
	defer rows.Close()

	byID := make(map[uuid.UUID]model.Message, len(ids))
	for rows.Next() {
		m, ok, err := b.scanMessage(rows)
		if err != nil {
			return nil, err
		}
		if ok {
			byID[m.ID] = m
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage/pg: get messages: %w", err)
	}

	out := make([]model.Message, 0, len(ids))
	for _, id := range ids {
		m, ok := byID[id]
		if !ok {
			return nil, storage.ErrNotFound
		}
		out = append(out, m)
	}
	return out, nil
}

func (b *Backend) GetConversation(ctx context.Context, id uuid.UUID) (model.Conversation, bool, error) {
	row := b.pool.QueryRow(ctx, `SELECT id, created_at, message_ids FROM conversations WHERE id = $1`, id)
	var c model.Conversation
	if err := row.Scan(&c.ID, &c.CreatedAt, &c.MessageIDs); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Conversation{}, false, nil
		}
		return model.Conversation{}, false, fmt.Errorf("storage/pg: get conversation: %w", err)
	}
	return c, true, nil
}

func (b *Backend) scanAgent(row pgx.Row) (model.Agent, bool, error) {
	var (
		a              model.Agent
		parentID       *uuid.UUID
		modelConfigRaw []byte
	)
	err := row.Scan(&a.ID, &a.CreatedAt, &a.Name, &a.SystemPromptID, &parentID,
		&a.ConversationID, &a.Model, &modelConfigRaw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Agent{}, false, nil
		}
		return model.Agent{}, false, fmt.Errorf("storage/pg: scan agent: %w", err)
	}
	cfg, err := decodeModelConfig(modelConfigRaw)
	if err != nil {
		return model.Agent{}, false, err
	}
	a.ParentID = parentID
	a.ModelConfig = cfg
	return a, true, nil
}

func (b *Backend) GetAgent(ctx context.Context, id uuid.UUID) (model.Agent, bool, error) {
	row := b.pool.QueryRow(ctx,
		`SELECT id, created_at, name, system_prompt_id, parent_id, conversation_id, model, model_config
		 FROM agents WHERE id = $1`, id)
	return b.scanAgent(row)
}
