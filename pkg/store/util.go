package store

import (
	"context"
	"fmt"

	"github.com/podgraph/backend/pkg/ai"
	"github.com/podgraph/backend/pkg/common"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/sync/errgroup"
)

// DefaultEmbeddingBatchSize is the number of texts sent per embedding request.
const DefaultEmbeddingBatchSize = 20

func ChunkRange(total, chunkSize int, fn func(start, end int) error) error {
	if total <= 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = total
	}
	for start := 0; start < total; start += chunkSize {
		end := min(start+chunkSize, total)
		if err := fn(start, end); err != nil {
			return err
		}
	}
	return nil
}

// DedupeStrings drops empty and repeated values, keeping first appearances
// in order.
func DedupeStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// NewID returns a fresh public identifier.
func NewID() (string, error) {
	return gonanoid.New()
}

type embeddingBatcher interface {
	GenerateEmbeddings(ctx context.Context, inputs [][]byte) ([][]float32, error)
}

// GenerateEmbeddings embeds every input. Batches of batchSize are sent
// concurrently and results keep the input order.
func GenerateEmbeddings(
	ctx context.Context,
	client ai.GraphAIClient,
	inputs [][]byte,
	batchSize int,
) ([][]float32, error) {
	if client == nil {
		return nil, fmt.Errorf("ai client is nil")
	}
	if len(inputs) == 0 {
		return nil, nil
	}
	if batchSize <= 0 {
		batchSize = DefaultEmbeddingBatchSize
	}

	out := make([][]float32, len(inputs))

	eg, ectx := errgroup.WithContext(ctx)
	_ = ChunkRange(len(inputs), batchSize, func(start, end int) error {
		chunk := inputs[start:end]
		offset := start
		eg.Go(func() error {
			embs, err := embedChunk(ectx, client, chunk)
			if err != nil {
				return err
			}
			if len(embs) != len(chunk) {
				return fmt.Errorf("embedding count mismatch: got %d, want %d", len(embs), len(chunk))
			}
			copy(out[offset:], embs)
			return nil
		})
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}

func embedChunk(ctx context.Context, client ai.GraphAIClient, chunk [][]byte) ([][]float32, error) {
	if b, ok := client.(embeddingBatcher); ok {
		return b.GenerateEmbeddings(ctx, chunk)
	}
	out := make([][]float32, len(chunk))
	for i, in := range chunk {
		emb, err := client.GenerateEmbedding(ctx, in)
		if err != nil {
			return nil, err
		}
		out[i] = emb
	}
	return out, nil
}

// MergeEdges collapses edges with the same user and directed (source,
// target) pair, keeping the first edge's identity and the maximum weight.
// Order of first appearance is preserved.
func MergeEdges(edges []common.GraphEdge) []common.GraphEdge {
	type pair struct{ user, source, target string }

	idx := make(map[pair]int, len(edges))
	out := make([]common.GraphEdge, 0, len(edges))
	for _, e := range edges {
		k := pair{e.UserID, e.SourceNodeID, e.TargetNodeID}
		if i, ok := idx[k]; ok {
			out[i].Weight = max(out[i].Weight, e.Weight)
			continue
		}
		idx[k] = len(out)
		out = append(out, e)
	}
	return out
}
