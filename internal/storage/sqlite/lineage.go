package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/ashita-ai/immagent/internal/model"
	"github.com/ashita-ai/immagent/internal/storage"
)

const lineageCTE = `
WITH RECURSIVE lineage AS (
	SELECT id, created_at, name, system_prompt_id, parent_id, conversation_id, model, model_config, 0 AS depth
	FROM agents WHERE id = ?
	UNION ALL
	SELECT a.id, a.created_at, a.name, a.system_prompt_id, a.parent_id, a.conversation_id, a.model, a.model_config, lineage.depth + 1
	FROM agents a
	JOIN lineage ON a.id = lineage.parent_id
)
SELECT id, created_at, name, system_prompt_id, parent_id, conversation_id, model, model_config
FROM lineage
ORDER BY depth ASC
`

// GetLineage walks parent_id from id to the root via a recursive CTE,
// then reverses the child-first rows to root-first.
func (b *Backend) GetLineage(ctx context.Context, id uuid.UUID) ([]model.Agent, error) {
	rows, err := b.db.QueryContext(ctx, lineageCTE, id.String())
	if err != nil {
		return nil, fmt.Errorf("storage/sqlite: get lineage: %w", err)
	}
	defer rows.Close()

	var chain []model.Agent
	for rows.Next() {
		var idStr string
		a, ok, err := scanAgentRowWithLeadingID(&idStr, rows)
		if err != nil {
			return nil, err
		}
		if ok {
			chain = append(chain, a)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage/sqlite: get lineage: %w", err)
	}
	if len(chain) == 0 {
		return nil, storage.ErrNotFound
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// scanAgentRowWithLeadingID scans a row whose first column is the
// agent's own id (unlike GetAgent's query, which supplies the id
// separately since it's already known from the WHERE clause).
func scanAgentRowWithLeadingID(idDest *string, rows rowScanner) (model.Agent, bool, error) {
	var (
		createdAtStr, name, systemPromptIDStr, conversationIDStr, modelName string
		parentIDStr                                                        sql.NullString
		modelConfigRaw                                                     string
	)
	if err := rows.Scan(idDest, &createdAtStr, &name, &systemPromptIDStr, &parentIDStr, &conversationIDStr, &modelName, &modelConfigRaw); err != nil {
		return model.Agent{}, false, fmt.Errorf("storage/sqlite: scan agent row: %w", err)
	}
	id, err := uuid.Parse(*idDest)
	if err != nil {
		return model.Agent{}, false, fmt.Errorf("storage/sqlite: parse agent id: %w", err)
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
