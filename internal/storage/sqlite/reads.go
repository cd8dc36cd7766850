package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ashita-ai/immagent/internal/model"
	"github.com/ashita-ai/immagent/internal/storage"
)

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("storage/sqlite: parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func (b *Backend) GetText(ctx context.Context, id uuid.UUID) (model.TextAsset, bool, error) {
	var createdAtStr string
	var t model.TextAsset
	row := b.db.QueryRowContext(ctx, `SELECT created_at, content FROM text_assets WHERE id = ?`, id.String())
	if err := row.Scan(&createdAtStr, &t.Content); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.TextAsset{}, false, nil
		}
		return model.TextAsset{}, false, fmt.Errorf("storage/sqlite: get text: %w", err)
	}
	createdAt, err := parseTimestamp(createdAtStr)
	if err != nil {
		return model.TextAsset{}, false, err
	}
	t.ID = id
	t.CreatedAt = createdAt
	return t, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessageRow(id uuid.UUID, row rowScanner) (model.Message, bool, error) {
	var (
		createdAtStr               string
		role                       string
		content, toolCallsRaw     sql.NullString
		toolCallID                sql.NullString
		inputTokens, outputTokens sql.NullInt64
	)
	err := row.Scan(&createdAtStr, &role, &content, &toolCallsRaw, &toolCallID, &inputTokens, &outputTokens)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Message{}, false, nil
		}
		return model.Message{}, false, fmt.Errorf("storage/sqlite: scan message: %w", err)
	}
	createdAt, err := parseTimestamp(createdAtStr)
	if err != nil {
		return model.Message{}, false, err
	}
	var calls []model.ToolCall
	if toolCallsRaw.Valid {
		calls, err = decodeToolCalls(toolCallsRaw.String)
		if err != nil {
			return model.Message{}, false, err
		}
	}
	m := model.Message{ID: id, CreatedAt: createdAt, Role: model.Role(role), ToolCalls: calls}
	if content.Valid {
		m.Content = &content.String
	}
	if toolCallID.Valid {
		m.ToolCallID = &toolCallID.String
	}
	if inputTokens.Valid {
		v := int(inputTokens.Int64)
		m.InputTokens = &v
	}
	if outputTokens.Valid {
		v := int(outputTokens.Int64)
		m.OutputTokens = &v
	}
	return m, true, nil
}

func (b *Backend) GetMessage(ctx context.Context, id uuid.UUID) (model.Message, bool, error) {
	row := b.db.QueryRowContext(ctx, `
		SELECT created_at, role, content, tool_calls, tool_call_id, input_tokens, output_tokens
		FROM messages WHERE id = ?`, id.String())
	return scanMessageRow(id, row)
}

func (b *Backend) GetMessages(ctx context.Context, ids []uuid.UUID) ([]model.Message, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	out := make([]model.Message, 0, len(ids))
	for _, id := range ids {
		m, ok, err := b.GetMessage(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, storage.ErrNotFound
		}
		out = append(out, m)
	}
	return out, nil
}

func (b *Backend) GetConversation(ctx context.Context, id uuid.UUID) (model.Conversation, bool, error) {
	var createdAtStr, messageIDsStr string
	row := b.db.QueryRowContext(ctx, `SELECT created_at, message_ids FROM conversations WHERE id = ?`, id.String())
	if err := row.Scan(&createdAtStr, &messageIDsStr); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Conversation{}, false, nil
		}
		return model.Conversation{}, false, fmt.Errorf("storage/sqlite: get conversation: %w", err)
	}
	ids, err := decodeUUIDs(messageIDsStr)
	if err != nil {
		return model.Conversation{}, false, err
	}
	createdAt, err := parseTimestamp(createdAtStr)
	if err != nil {
		return model.Conversation{}, false, err
	}
	return model.Conversation{ID: id, CreatedAt: createdAt, MessageIDs: ids}, true, nil
}

func scanAgentRow(id uuid.UUID, row rowScanner) (model.Agent, bool, error) {
	var (
		createdAtStr, name, systemPromptIDStr, conversationIDStr, modelName string
		parentIDStr                                                        sql.NullString
		modelConfigRaw                                                     string
	)
	err := row.Scan(&createdAtStr, &name, &systemPromptIDStr, &parentIDStr, &conversationIDStr, &modelName, &modelConfigRaw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Agent{}, false, nil
		}
		return model.Agent{}, false, fmt.Errorf("storage/sqlite: scan agent: %w", err)
	}
	createdAt, err := parseTimestamp(createdAtStr)
	if err != nil {
		return model.Agent{}, false, err
	}
	systemPromptID, err := uuid.Parse(systemPromptIDStr)
	if err != nil {
		return model.Agent{}, false, fmt.Errorf("storage/sqlite: parse system_prompt_id: %w", err)
	}
	conversationID, err := uuid.Parse(conversationIDStr)
	if err != nil {
		return model.Agent{}, false, fmt.Errorf("storage/sqlite: parse conversation_id: %w", err)
	}
	var parentID *uuid.UUID
	if parentIDStr.Valid {
		pid, err := uuid.Parse(parentIDStr.String)
		if err != nil {
			return model.Agent{}, false, fmt.Errorf("storage/sqlite: parse parent_id: %w", err)
		}
		parentID = &pid
	}
	cfg, err := decodeModelConfig(modelConfigRaw)
	if err != nil {
		return model.Agent{}, false, err
	}
	return model.Agent{
		ID: id, CreatedAt: createdAt, Name: name, SystemPromptID: systemPromptID, ParentID: parentID,
		ConversationID: conversationID, Model: modelName, ModelConfig: cfg,
	}, true, nil
}

func (b *Backend) GetAgent(ctx context.Context, id uuid.UUID) (model.Agent, bool, error) {
	row := b.db.QueryRowContext(ctx, `
		SELECT created_at, name, system_prompt_id, parent_id, conversation_id, model, model_config
		FROM agents WHERE id = ?`, id.String())
	return scanAgentRow(id, row)
}
