package sqlite

import (
	"context"
	"fmt"

	"github.com/ashita-ai/immagent/internal/storage"
)

// GC deletes, in one transaction and in order, messages not referenced
// by any conversation that a remaining agent still references,
// conversations not referenced by any remaining agent, and text assets not referenced as any remaining
// agent's system prompt. SQLite has no array-unnest builtin, so message
// references are checked with json_each over the message_ids column.
func (b *Backend) GC(ctx context.Context) (storage.GCStats, error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.GCStats{}, fmt.Errorf("storage/sqlite: begin gc: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var stats storage.GCStats

	res, err := tx.ExecContext(ctx, `
		DELETE FROM messages
		WHERE id NOT IN (
			SELECT json_each.value FROM conversations, json_each(conversations.message_ids)
			WHERE conversations.id IN (SELECT conversation_id FROM agents)
		)
	`)
	if err != nil {
		return storage.GCStats{}, fmt.Errorf("storage/sqlite: gc messages: %w", err)
	}
	stats.MessagesDeleted = rowsAffected(res)

	res, err = tx.ExecContext(ctx, `
		DELETE FROM conversations WHERE id NOT IN (SELECT conversation_id FROM agents)
	`)
	if err != nil {
		return storage.GCStats{}, fmt.Errorf("storage/sqlite: gc conversations: %w", err)
	}
	stats.ConversationsDeleted = rowsAffected(res)

	res, err = tx.ExecContext(ctx, `
		DELETE FROM text_assets WHERE id NOT IN (SELECT system_prompt_id FROM agents)
	`)
	if err != nil {
		return storage.GCStats{}, fmt.Errorf("storage/sqlite: gc text assets: %w", err)
	}
	stats.TextAssetsDeleted = rowsAffected(res)

	if err := tx.Commit(); err != nil {
		return storage.GCStats{}, fmt.Errorf("storage/sqlite: commit gc: %w", err)
	}
	return stats, nil
}

func rowsAffected(res interface{ RowsAffected() (int64, error) }) int {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return int(n)
}
