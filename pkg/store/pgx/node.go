package pgx

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/podgraph/backend/internal/util"
	"github.com/podgraph/backend/pkg/common"
	"github.com/podgraph/backend/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

const nodeColumns = `id, user_id, podcast_id, video_id, primary_speaker_id, label, summary,
	idea_references, impact_score, is_bookmarked, created_at`

// impact_score DESC, created_at ASC, id ASC is the anchor order used by the
// granularity view.
const nodeOrder = `ORDER BY impact_score DESC, created_at ASC, id ASC`

func (s *GraphDBStorage) CreateNode(ctx context.Context, node *common.GraphNode) error {
	if node == nil || node.UserID == "" {
		return fmt.Errorf("invalid node")
	}
	if node.ID == "" {
		id, err := store.NewID()
		if err != nil {
			return err
		}
		node.ID = id
	}
	if node.References == nil {
		node.References = []common.Reference{}
	}
	for i := range node.References {
		node.References[i].Quote = util.SanitizePostgresText(node.References[i].Quote)
	}
	refs, err := json.Marshal(node.References)
	if err != nil {
		return fmt.Errorf("failed to encode references: %w", err)
	}

	var embedding any
	if len(node.Embedding) > 0 {
		embedding = pgvector.NewVector(node.Embedding)
	}

	return s.conn.QueryRow(ctx, `
		INSERT INTO graph_nodes (
			id, user_id, podcast_id, video_id, primary_speaker_id, label, summary,
			idea_references, embedding, impact_score, is_bookmarked
		)
		VALUES ($1, $2, NULLIF($3, ''), $4, NULLIF($5, ''), $6, $7, $8::jsonb, $9, $10, $11)
		RETURNING created_at
	`,
		node.ID,
		node.UserID,
		node.PodcastID,
		node.VideoID,
		node.PrimarySpeakerID,
		util.SanitizePostgresText(node.Label),
		util.SanitizePostgresText(node.Summary),
		string(refs),
		embedding,
		node.ImpactScore,
		node.IsBookmarked,
	).Scan(&node.CreatedAt)
}

func scanNode(row pgxv5.Row, withEmbedding bool) (common.GraphNode, error) {
	var (
		n         common.GraphNode
		podcastID *string
		speakerID *string
		refs      []byte
		embedding pgvector.Vector
	)
	dest := []any{
		&n.ID, &n.UserID, &podcastID, &n.VideoID, &speakerID, &n.Label, &n.Summary,
		&refs, &n.ImpactScore, &n.IsBookmarked, &n.CreatedAt,
	}
	if withEmbedding {
		dest = append(dest, &embedding)
	}
	if err := row.Scan(dest...); err != nil {
		return n, err
	}
	if podcastID != nil {
		n.PodcastID = *podcastID
	}
	if speakerID != nil {
		n.PrimarySpeakerID = *speakerID
	}
	n.References = []common.Reference{}
	if len(refs) > 0 {
		if err := json.Unmarshal(refs, &n.References); err != nil {
			return n, fmt.Errorf("failed to decode references of node %s: %w", n.ID, err)
		}
	}
	if withEmbedding {
		n.Embedding = embedding.Slice()
	}
	return n, nil
}

func (s *GraphDBStorage) queryNodes(ctx context.Context, withEmbedding bool, sql string, args ...any) ([]common.GraphNode, error) {
	rows, err := s.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	nodes := make([]common.GraphNode, 0)
	for rows.Next() {
		n, err := scanNode(rows, withEmbedding)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node row: %w", err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

func (s *GraphDBStorage) GetNode(ctx context.Context, userID, nodeID string) (common.GraphNode, error) {
	row := s.conn.QueryRow(ctx, `SELECT `+nodeColumns+` FROM graph_nodes WHERE id = $1`, nodeID)
	n, err := scanNode(row, false)
	if err != nil {
		return common.GraphNode{}, notFound(err)
	}
	if n.UserID != userID {
		return common.GraphNode{}, store.ErrOwnership
	}
	return n, nil
}

func (s *GraphDBStorage) ListNodes(ctx context.Context, userID string) ([]common.GraphNode, error) {
	return s.queryNodes(ctx, false,
		`SELECT `+nodeColumns+` FROM graph_nodes WHERE user_id = $1 `+nodeOrder,
		userID,
	)
}

func (s *GraphDBStorage) ListNodesBySpeaker(ctx context.Context, userID, speakerID string) ([]common.GraphNode, error) {
	return s.queryNodes(ctx, true,
		`SELECT `+nodeColumns+`, embedding FROM graph_nodes
		WHERE user_id = $1 AND primary_speaker_id = $2 AND embedding IS NOT NULL `+nodeOrder,
		userID, speakerID,
	)
}

func (s *GraphDBStorage) ListBookmarkedNodes(ctx context.Context, userID string) ([]common.GraphNode, error) {
	return s.queryNodes(ctx, false,
		`SELECT `+nodeColumns+` FROM graph_nodes WHERE user_id = $1 AND is_bookmarked `+nodeOrder,
		userID,
	)
}

func (s *GraphDBStorage) ListNodeEmbeddings(ctx context.Context, userID string) ([]common.NodeEmbedding, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, embedding FROM graph_nodes
		WHERE user_id = $1 AND embedding IS NOT NULL
		`+nodeOrder,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]common.NodeEmbedding, 0)
	for rows.Next() {
		var (
			id  string
			vec pgvector.Vector
		)
		if err := rows.Scan(&id, &vec); err != nil {
			return nil, fmt.Errorf("failed to scan embedding row: %w", err)
		}
		out = append(out, common.NodeEmbedding{ID: id, Embedding: vec.Slice()})
	}
	return out, rows.Err()
}

func (s *GraphDBStorage) SetBookmark(ctx context.Context, userID, nodeID string, bookmarked bool) error {
	var owner string
	err := s.conn.QueryRow(ctx, `
		UPDATE graph_nodes n
		SET is_bookmarked = CASE WHEN n.user_id = $2 THEN $3 ELSE n.is_bookmarked END
		WHERE n.id = $1
		RETURNING n.user_id
	`, nodeID, userID, bookmarked).Scan(&owner)
	if err != nil {
		return notFound(err)
	}
	if owner != userID {
		return store.ErrOwnership
	}
	return nil
}
