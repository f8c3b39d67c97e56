package graph

import (
	"errors"
	"fmt"
	"sort"

	"github.com/podgraph/backend/pkg/common"
)

const (
	// RetrievalThreshold is the exclusive upper bound on cosine distance for
	// an idea to be used as answer context.
	RetrievalThreshold = 0.4
	// MaxContextNodes caps the number of ideas handed to the answer prompt.
	MaxContextNodes = 5
)

// RetrieveContext picks the ideas closest to the question embedding.
//
// Candidates whose embedding is missing, has a different length or zero
// magnitude are skipped. The result is ordered by ascending distance and
// holds at most MaxContextNodes nodes. When nothing is within
// RetrievalThreshold, ErrInsufficientContext is returned.
func RetrieveContext(question []float32, candidates []common.GraphNode) ([]common.GraphNode, error) {
	if len(question) == 0 {
		return nil, fmt.Errorf("%w: question embedding", ErrMissingField)
	}
	if isZero(question) {
		return nil, fmt.Errorf("question embedding: %w", ErrZeroVector)
	}

	type scored struct {
		node     common.GraphNode
		distance float64
	}

	kept := make([]scored, 0)
	for _, c := range candidates {
		if len(c.Embedding) != len(question) {
			continue
		}
		dist, err := CosineDistance(question, c.Embedding)
		if errors.Is(err, ErrZeroVector) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if dist < RetrievalThreshold {
			kept = append(kept, scored{node: c, distance: dist})
		}
	}

	if len(kept) == 0 {
		return nil, ErrInsufficientContext
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].distance < kept[j].distance
	})

	n := min(len(kept), MaxContextNodes)
	out := make([]common.GraphNode, n)
	for i := range n {
		out[i] = kept[i].node
	}
	return out, nil
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
