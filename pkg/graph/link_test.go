package graph

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/podgraph/backend/pkg/common"
)

func TestRankWeight(t *testing.T) {
	tests := []struct {
		rank int
		want float64
	}{
		{0, 1.0},
		{1, 0.9},
		{2, 0.8},
		{5, 0.5},
		{6, 0.4},
		{7, 0.4},
		{50, 0.4},
	}
	for _, tt := range tests {
		if got := RankWeight(tt.rank); math.Abs(got-tt.want) > 1e-9 {
			t.Fatalf("RankWeight(%d) = %v, want %v", tt.rank, got, tt.want)
		}
	}
}

func TestLinkNodeThresholdIsExclusive(t *testing.T) {
	// 13/20 = 0.65 so the distance is exactly 0.35
	boundary := []float32{13, 14, 5, 3, 1}
	candidates := []common.NodeEmbedding{
		{ID: "boundary", Embedding: boundary},
		{ID: "close", Embedding: []float32{20, 1, 0, 0, 0}},
	}

	got, err := LinkNode("new", []float32{1, 0, 0, 0, 0}, candidates)
	if err != nil {
		t.Fatalf("LinkNode() error = %v", err)
	}
	if len(got) != 1 || got[0].TargetNodeID != "close" {
		t.Fatalf("LinkNode() = %+v, want only the close node", got)
	}
}

func TestLinkNodeOrderAndWeights(t *testing.T) {
	candidates := []common.NodeEmbedding{
		{ID: "mid", Embedding: []float32{1, 0.2}},
		{ID: "far", Embedding: []float32{0, 1}},
		{ID: "self", Embedding: []float32{1, 0}},
		{ID: "same", Embedding: []float32{2, 0}},
		{ID: "near", Embedding: []float32{1, 0.1}},
		{ID: "zero", Embedding: []float32{0, 0}},
		{ID: "empty"},
	}

	got, err := LinkNode("self", []float32{1, 0}, candidates)
	if err != nil {
		t.Fatalf("LinkNode() error = %v", err)
	}

	wantIDs := []string{"same", "near", "mid"}
	wantWeights := []float64{1.0, 0.9, 0.8}
	if len(got) != len(wantIDs) {
		t.Fatalf("LinkNode() = %+v, want %v", got, wantIDs)
	}
	for i := range wantIDs {
		if got[i].TargetNodeID != wantIDs[i] {
			t.Fatalf("LinkNode()[%d] = %s, want %s", i, got[i].TargetNodeID, wantIDs[i])
		}
		if math.Abs(got[i].Weight-wantWeights[i]) > 1e-9 {
			t.Fatalf("LinkNode()[%d].Weight = %v, want %v", i, got[i].Weight, wantWeights[i])
		}
		if i > 0 && got[i].Distance < got[i-1].Distance {
			t.Fatalf("LinkNode() not ordered by distance: %+v", got)
		}
	}
}

func TestLinkNodeWeightFloor(t *testing.T) {
	candidates := make([]common.NodeEmbedding, 0, 9)
	for i := range 9 {
		candidates = append(candidates, common.NodeEmbedding{
			ID:        fmt.Sprintf("n%d", i),
			Embedding: []float32{1, float32(i) * 0.01},
		})
	}

	got, err := LinkNode("new", []float32{1, 0}, candidates)
	if err != nil {
		t.Fatalf("LinkNode() error = %v", err)
	}
	if len(got) != 9 {
		t.Fatalf("LinkNode() len = %d, want 9", len(got))
	}
	for i, c := range got {
		if c.TargetNodeID != fmt.Sprintf("n%d", i) {
			t.Fatalf("LinkNode()[%d] = %s", i, c.TargetNodeID)
		}
	}
	if math.Abs(got[8].Weight-0.4) > 1e-9 || math.Abs(got[6].Weight-0.4) > 1e-9 {
		t.Fatalf("LinkNode() tail weights = %v, %v, want floor 0.4", got[6].Weight, got[8].Weight)
	}
}

func TestLinkNodeEqualDistancesKeepInputOrder(t *testing.T) {
	candidates := []common.NodeEmbedding{
		{ID: "b", Embedding: []float32{1, 0.1}},
		{ID: "a", Embedding: []float32{1, 0.1}},
	}
	got, err := LinkNode("new", []float32{1, 0}, candidates)
	if err != nil {
		t.Fatalf("LinkNode() error = %v", err)
	}
	if len(got) != 2 || got[0].TargetNodeID != "b" || got[1].TargetNodeID != "a" {
		t.Fatalf("LinkNode() = %+v, want input order on ties", got)
	}
}

func TestLinkNodeErrors(t *testing.T) {
	tests := []struct {
		name       string
		nodeID     string
		embedding  []float32
		candidates []common.NodeEmbedding
		wantErr    error
	}{
		{name: "missing id", embedding: []float32{1}, wantErr: ErrMissingField},
		{name: "missing embedding", nodeID: "n", wantErr: ErrMissingField},
		{name: "zero embedding", nodeID: "n", embedding: []float32{0, 0}, wantErr: ErrZeroVector},
		{
			name:       "length mismatch",
			nodeID:     "n",
			embedding:  []float32{1, 0},
			candidates: []common.NodeEmbedding{{ID: "x", Embedding: []float32{1, 0, 0}}},
			wantErr:    ErrLengthMismatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LinkNode(tt.nodeID, tt.embedding, tt.candidates)
			if !errors.Is(err, tt.wantErr) || !errors.Is(err, ErrInput) {
				t.Fatalf("LinkNode() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestBuildEdges(t *testing.T) {
	n := 0
	newID := func() (string, error) {
		n++
		return fmt.Sprintf("e%d", n), nil
	}
	edges, err := BuildEdges("u1", "src", []EdgeCandidate{
		{TargetNodeID: "t1", Weight: 1},
		{TargetNodeID: "t2", Weight: 0.9},
	}, newID)
	if err != nil {
		t.Fatalf("BuildEdges() error = %v", err)
	}
	if len(edges) != 2 {
		t.Fatalf("BuildEdges() len = %d", len(edges))
	}
	if edges[1] != (common.GraphEdge{ID: "e2", UserID: "u1", SourceNodeID: "src", TargetNodeID: "t2", Weight: 0.9}) {
		t.Fatalf("BuildEdges()[1] = %+v", edges[1])
	}

	_, err = BuildEdges("u1", "src", []EdgeCandidate{{TargetNodeID: "t"}}, func() (string, error) {
		return "", errors.New("entropy")
	})
	if err == nil {
		t.Fatalf("BuildEdges() expected id error")
	}
}
