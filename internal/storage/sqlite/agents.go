package sqlite

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ashita-ai/immagent/internal/model"
	"github.com/ashita-ai/immagent/internal/storage"
)

// DeleteAgent removes one agent version and nulls out parent_id on any
// children, matching Postgres's ON DELETE SET NULL behavior (SQLite
// honors the same foreign-key action when PRAGMA foreign_keys is ON).
func (b *Backend) DeleteAgent(ctx context.Context, id uuid.UUID) error {
	res, err := b.db.ExecContext(ctx, `DELETE FROM agents WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("storage/sqlite: delete agent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("storage/sqlite: delete agent: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (b *Backend) ListAgents(ctx context.Context, limit, offset int, nameFilter string) ([]model.Agent, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT id, created_at, name, system_prompt_id, parent_id, conversation_id, model, model_config
		FROM agents
		WHERE ? = '' OR lower(name) LIKE '%' || lower(?) || '%'
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, nameFilter, nameFilter, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("storage/sqlite: list agents: %w", err)
	}
	defer rows.Close()
	return scanAgentRows(rows)
}

func (b *Backend) CountAgents(ctx context.Context, nameFilter string) (int, error) {
	row := b.db.QueryRowContext(ctx, `
		SELECT count(*) FROM agents WHERE ? = '' OR lower(name) LIKE '%' || lower(?) || '%'
	`, nameFilter, nameFilter)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("storage/sqlite: count agents: %w", err)
	}
	return n, nil
}

// FindByName performs an exact, case-sensitive match, distinct from
// ListAgents' case-insensitive substring filter.
func (b *Backend) FindByName(ctx context.Context, name string) ([]model.Agent, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT id, created_at, name, system_prompt_id, parent_id, conversation_id, model, model_config
		FROM agents WHERE name = ?
		ORDER BY created_at DESC
	`, name)
	if err != nil {
		return nil, fmt.Errorf("storage/sqlite: find by name: %w", err)
	}
	defer rows.Close()
	return scanAgentRows(rows)
}

func scanAgentRows(rows rowScannerRows) ([]model.Agent, error) {
	var out []model.Agent
	for rows.Next() {
		var idStr string
		a, ok, err := scanAgentRowWithLeadingID(&idStr, rows)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, a)
		}
	}
	return out, rows.Err()
}

type rowScannerRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}
