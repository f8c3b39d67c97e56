package graph

import (
	"errors"
	"fmt"
	"sort"

	"github.com/podgraph/backend/pkg/common"
)

const (
	// LinkThreshold is the exclusive upper bound on cosine distance for two
	// ideas to be linked.
	LinkThreshold = 0.35

	maxLinkWeight   = 1.0
	minLinkWeight   = 0.4
	linkWeightDecay = 0.1
)

// EdgeCandidate is a node that qualified for a link together with its weight.
type EdgeCandidate struct {
	TargetNodeID string
	Distance     float64
	Weight       float64
}

// RankWeight is the weight given to the candidate at zero-based rank.
// It decays by 0.1 per rank and never drops below 0.4.
func RankWeight(rank int) float64 {
	w := maxLinkWeight - float64(rank)*linkWeightDecay
	if w < minLinkWeight {
		return minLinkWeight
	}
	return w
}

// LinkNode compares a freshly created node against every other node of the
// same user and returns the nodes closer than LinkThreshold, closest first,
// with rank decayed weights.
//
// Candidates without an embedding or with a zero embedding are skipped, as
// is the node itself. A candidate of a different length is an input error.
func LinkNode(nodeID string, embedding []float32, candidates []common.NodeEmbedding) ([]EdgeCandidate, error) {
	if nodeID == "" {
		return nil, fmt.Errorf("%w: node id", ErrMissingField)
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("%w: embedding of node %s", ErrMissingField, nodeID)
	}
	if isZero(embedding) {
		return nil, fmt.Errorf("node %s: %w", nodeID, ErrZeroVector)
	}

	kept := make([]EdgeCandidate, 0)
	for _, c := range candidates {
		if c.ID == nodeID || len(c.Embedding) == 0 {
			continue
		}
		dist, err := CosineDistance(embedding, c.Embedding)
		if errors.Is(err, ErrZeroVector) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", c.ID, err)
		}
		if dist < LinkThreshold {
			kept = append(kept, EdgeCandidate{TargetNodeID: c.ID, Distance: dist})
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Distance < kept[j].Distance
	})
	for rank := range kept {
		kept[rank].Weight = RankWeight(rank)
	}

	return kept, nil
}

// BuildEdges turns link candidates into directed edges from nodeID.
// newID is called once per edge to mint its identity.
func BuildEdges(
	userID string,
	nodeID string,
	candidates []EdgeCandidate,
	newID func() (string, error),
) ([]common.GraphEdge, error) {
	edges := make([]common.GraphEdge, 0, len(candidates))
	for _, c := range candidates {
		id, err := newID()
		if err != nil {
			return nil, fmt.Errorf("failed to generate ID for edge: %w", err)
		}
		edges = append(edges, common.GraphEdge{
			ID:           id,
			UserID:       userID,
			SourceNodeID: nodeID,
			TargetNodeID: c.TargetNodeID,
			Weight:       c.Weight,
		})
	}
	return edges, nil
}
