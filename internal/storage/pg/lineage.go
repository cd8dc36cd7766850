package pg

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ashita-ai/immagent/internal/model"
	"github.com/ashita-ai/immagent/internal/storage"
)

// lineageCTE walks parent_id from the starting agent to the root in one
// round trip, then the caller reverses the child-first rows to root-first.
const lineageCTE = `
WITH RECURSIVE lineage AS (
    SELECT id, created_at, name, system_prompt_id, parent_id, conversation_id, model, model_config, 0 AS depth
    FROM agents WHERE id = $1
    UNION ALL
    SELECT a.id, a.created_at, a.name, a.system_prompt_id, a.parent_id, a.conversation_id, a.model, a.model_config, lineage.depth + 1
    FROM agents a
    JOIN lineage ON a.id = lineage.parent_id
)
SELECT id, created_at, name, system_prompt_id, parent_id, conversation_id, model, model_config
FROM lineage
ORDER BY depth ASC
`

func (b *Backend) GetLineage(ctx context.Context, id uuid.UUID) ([]model.Agent, error) {
	rows, err := b.pool.Query(ctx, lineageCTE, id)
	if err != nil {
		return nil, fmt.Errorf("storage/pg: get lineage: %w", err)
	}
	defer rows.Close()

	var chain []model.Agent
	for rows.Next() {
		a, ok, err := b.scanAgent(rows)
		if err != nil {
			return nil, err
		}
		if ok {
			chain = append(chain, a)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage/pg: get lineage: %w", err)
	}
	if len(chain) == 0 {
		return nil, storage.ErrNotFound
	}

	// The CTE returns child-first (depth ascending from the starting
	// agent); reverse to root-first per the contract.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}
