package pg

import (
	"context"
	"fmt"

	"github.com/ashita-ai/immagent/internal/storage"
)

// GC runs the three ordered deletes in one transaction: messages not
// referenced by any conversation that a remaining agent still
// references, then conversations not referenced by any remaining agent,
// then text assets not referenced as any remaining agent's system
// prompt.
func (b *Backend) GC(ctx context.Context) (storage.GCStats, error) {
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return storage.GCStats{}, fmt.Errorf("storage/pg: begin gc: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var stats storage.GCStats

	msgRows, err := tx.Query(ctx, `
		DELETE FROM messages
		WHERE id NOT IN (
			SELECT unnest(c.message_ids) FROM conversations c
			WHERE c.id IN (SELECT conversation_id FROM agents)
		)
		RETURNING id
	`)
	if err != nil {
		return storage.GCStats{}, fmt.Errorf("storage/pg: gc messages: %w", err)
	}
	stats.MessagesDeleted = countRows(msgRows)

	convRows, err := tx.Query(ctx, `
		DELETE FROM conversations
		WHERE id NOT IN (
			SELECT conversation_id FROM agents
		)
		RETURNING id
	`)
	if err != nil {
		return storage.GCStats{}, fmt.Errorf("storage/pg: gc conversations: %w", err)
	}
	stats.ConversationsDeleted = countRows(convRows)

	textRows, err := tx.Query(ctx, `
		DELETE FROM text_assets
		WHERE id NOT IN (
			SELECT system_prompt_id FROM agents
		)
		RETURNING id
	`)
	if err != nil {
		return storage.GCStats{}, fmt.Errorf("storage/pg: gc text assets: %w", err)
	}
	stats.TextAssetsDeleted = countRows(textRows)

	if err := tx.Commit(ctx); err != nil {
		return storage.GCStats{}, fmt.Errorf("storage/pg: commit gc: %w", err)
	}
	return stats, nil
}

func countRows(rows interface {
	Next() bool
	Close()
}) int {
	n := 0
	for rows.Next() {
		n++
	}
	rows.Close()
	return n
}
