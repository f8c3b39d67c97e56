package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/podgraph/backend/pkg/ai"
	"github.com/podgraph/backend/pkg/common"
	"github.com/podgraph/backend/pkg/logger"
	"github.com/podgraph/backend/pkg/store"
)

// IngestResult summarises one ProcessIdeas run.
type IngestResult struct {
	NodesCreated int `json:"nodes_created"`
	EdgesCreated int `json:"edges_created"`
}

// UnknownSpeaker is used for ideas the model did not attribute to anyone.
const UnknownSpeaker = "Unknown Speaker"

func speakerName(idea common.TranscriptIdea) string {
	if strings.TrimSpace(idea.PrimarySpeaker) == "" {
		return UnknownSpeaker
	}
	return idea.PrimarySpeaker
}

// EmbeddingText is the text embedded for an idea.
func EmbeddingText(idea common.TranscriptIdea) string {
	return idea.Label + ": " + idea.Summary
}

// ProcessIdeas stores the ideas of one podcast as graph nodes of userID and
// links every new node to the user's existing nodes.
//
// Ideas are embedded in batches first; speakers are resolved once per
// distinct name. Nodes are then created in input order, so each node is
// linked against all nodes created before it. All writes happen in one
// store transaction, so a failed run leaves nothing behind and can be
// retried. Callers must serialise runs per user.
func (g *GraphClient) ProcessIdeas(
	ctx context.Context,
	userID string,
	podcastID string,
	videoID string,
	ideas []common.TranscriptIdea,
	aiClient ai.GraphAIClient,
	storeClient store.GraphStorage,
) (IngestResult, error) {
	var result IngestResult
	if userID == "" {
		return result, fmt.Errorf("%w: user id", ErrMissingField)
	}
	if len(ideas) == 0 {
		return result, ErrNoIdeas
	}

	logger.Info("[Graph] Processing ideas", "user_id", userID, "podcast_id", podcastID, "ideas", len(ideas))

	inputs := make([][]byte, len(ideas))
	for i, idea := range ideas {
		inputs[i] = []byte(EmbeddingText(idea))
	}
	embeddings, err := store.GenerateEmbeddings(ctx, aiClient, inputs, g.embeddingBatchSize)
	if err != nil {
		return result, upstreamError("failed to embed ideas", err)
	}
	logger.Debug("[Graph] Ideas embedded", "count", len(embeddings))

	err = storeClient.InTx(ctx, func(tx store.GraphStorage) error {
		var err error
		result, err = g.storeIdeas(ctx, userID, podcastID, videoID, ideas, embeddings, tx)
		return err
	})
	if err != nil {
		return IngestResult{}, err
	}

	logger.Info("[Graph] Ideas processed", "nodes", result.NodesCreated, "edges", result.EdgesCreated)

	return result, nil
}

// storeIdeas writes the nodes, speakers and edges of one ProcessIdeas run
// through tx.
func (g *GraphClient) storeIdeas(
	ctx context.Context,
	userID string,
	podcastID string,
	videoID string,
	ideas []common.TranscriptIdea,
	embeddings [][]float32,
	tx store.GraphStorage,
) (IngestResult, error) {
	var result IngestResult

	names := make([]string, len(ideas))
	for i, idea := range ideas {
		names[i] = speakerName(idea)
	}
	speakers, err := NewSpeakerResolver(tx).ResolveAll(ctx, userID, names)
	if err != nil {
		return IngestResult{}, err
	}

	candidates, err := tx.ListNodeEmbeddings(ctx, userID)
	if err != nil {
		return IngestResult{}, fmt.Errorf("failed to load node embeddings: %w", err)
	}

	for i, idea := range ideas {
		if err := ctx.Err(); err != nil {
			return IngestResult{}, err
		}

		id, err := g.newID()
		if err != nil {
			return IngestResult{}, fmt.Errorf("failed to generate ID for node: %w", err)
		}
		node := common.GraphNode{
			ID:               id,
			UserID:           userID,
			PodcastID:        podcastID,
			VideoID:          videoID,
			PrimarySpeakerID: speakers[speakerName(idea)],
			Label:            idea.Label,
			Summary:          idea.Summary,
			References:       idea.References,
			Embedding:        embeddings[i],
			ImpactScore:      idea.ImpactScore,
		}
		if err := tx.CreateNode(ctx, &node); err != nil {
			return IngestResult{}, fmt.Errorf("failed to create node %q: %w", idea.Label, err)
		}
		result.NodesCreated++

		links, err := LinkNode(node.ID, node.Embedding, candidates)
		if err != nil {
			return IngestResult{}, err
		}
		edges, err := BuildEdges(userID, node.ID, links, g.newID)
		if err != nil {
			return IngestResult{}, err
		}
		if len(edges) > 0 {
			if err := tx.CreateEdges(ctx, edges); err != nil {
				return IngestResult{}, fmt.Errorf("failed to create edges for node %s: %w", node.ID, err)
			}
			result.EdgesCreated += len(edges)
		}

		candidates = append(candidates, common.NodeEmbedding{ID: node.ID, Embedding: node.Embedding})
	}

	return result, nil
}
