package pg

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ashita-ai/immagent/internal/model"
	"github.com/ashita-ai/immagent/internal/storage"
)

// DeleteAgent removes one agent version. Postgres cascades parent_id to
// NULL on any children via the schema's ON DELETE SET NULL.
func (b *Backend) DeleteAgent(ctx context.Context, id uuid.UUID) error {
	tag, err := b.pool.Exec(ctx, `DELETE FROM agents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("storage/pg: delete agent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (b *Backend) ListAgents(ctx context.Context, limit, offset int, nameFilter string) ([]model.Agent, error) {
	rows, err := b.pool.Query(ctx, `
		SELECT id, created_at, name, system_prompt_id, parent_id, conversation_id, model, model_config
		FROM agents
		WHERE $1 = '' OR name ILIKE '%' || $1 || '%'
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, nameFilter, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("storage/pg: list agents: %w", err)
	}
	defer rows.Close()

	var out []model.Agent
	for rows.Next() {
		a, ok, err := b.scanAgent(rows)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, a)
		}
	}
	return out, rows.Err()
}

func (b *Backend) CountAgents(ctx context.Context, nameFilter string) (int, error) {
	row := b.pool.QueryRow(ctx, `
		SELECT count(*) FROM agents WHERE $1 = '' OR name ILIKE '%' || $1 || '%'
	`, nameFilter)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("storage/pg: count agents: %w", err)
	}
	return n, nil
}

// FindByName performs an exact, case-sensitive match, distinct from
// ListAgents' case-insensitive substring filter.
func (b *Backend) FindByName(ctx context.Context, name string) ([]model.Agent, error) {
	rows, err := b.pool.Query(ctx, `
		SELECT id, created_at, name, system_prompt_id, parent_id, conversation_id, model, model_config
		FROM agents WHERE name = $1
		ORDER BY created_at DESC
	`, name)
	if err != nil {
		return nil, fmt.Errorf("storage/pg: find by name: %w", err)
	}
	defer rows.Close()

	var out []model.Agent
	for rows.Next() {
		a, ok, err := b.scanAgent(rows)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, a)
		}
	}
	return out, rows.Err()
}
