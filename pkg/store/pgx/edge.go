package pgx

import (
	"context"
	"fmt"

	"github.com/podgraph/backend/pkg/common"
	"github.com/podgraph/backend/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

// CreateEdges upserts the edges in one transaction. Both endpoints must
// belong to the edge's user; a repeated directed pair keeps the larger
// weight.
func (s *GraphDBStorage) CreateEdges(ctx context.Context, edges []common.GraphEdge) error {
	edges = store.MergeEdges(edges)
	if len(edges) == 0 {
		return nil
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	batch := &pgxv5.Batch{}
	for i := range edges {
		e := &edges[i]
		if e.ID == "" {
			id, err := store.NewID()
			if err != nil {
				return err
			}
			e.ID = id
		}
		batch.Queue(`
			INSERT INTO graph_edges (id, user_id, source_node_id, target_node_id, weight)
			SELECT $1, $2, s.id, t.id, $5
			FROM graph_nodes s, graph_nodes t
			WHERE s.id = $3 AND t.id = $4 AND s.user_id = $2 AND t.user_id = $2
			ON CONFLICT (user_id, source_node_id, target_node_id)
			DO UPDATE SET weight = GREATEST(graph_edges.weight, EXCLUDED.weight)
		`, e.ID, e.UserID, e.SourceNodeID, e.TargetNodeID, e.Weight)
	}

	results := tx.SendBatch(ctx, batch)
	for i := range edges {
		tag, err := results.Exec()
		if err != nil {
			results.Close()
			return fmt.Errorf("failed to store edge %s -> %s: %w", edges[i].SourceNodeID, edges[i].TargetNodeID, err)
		}
		if tag.RowsAffected() == 0 {
			results.Close()
			return fmt.Errorf("edge %s -> %s: %w", edges[i].SourceNodeID, edges[i].TargetNodeID, store.ErrOwnership)
		}
	}
	if err := results.Close(); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *GraphDBStorage) ListEdges(ctx context.Context, userID string) ([]common.GraphEdge, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, user_id, source_node_id, target_node_id, weight
		FROM graph_edges
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	edges := make([]common.GraphEdge, 0)
	for rows.Next() {
		var e common.GraphEdge
		if err := rows.Scan(&e.ID, &e.UserID, &e.SourceNodeID, &e.TargetNodeID, &e.Weight); err != nil {
			return nil, fmt.Errorf("failed to scan edge row: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}
