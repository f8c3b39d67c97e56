package graph

import (
	"errors"
	"fmt"
	"testing"

	"github.com/podgraph/backend/pkg/common"
)

func TestRetrieveContext(t *testing.T) {
	question := []float32{1, 0}

	t.Run("threshold is exclusive", func(t *testing.T) {
		candidates := []common.GraphNode{
			{ID: "boundary", Embedding: []float32{3, 4}},
			{ID: "near", Embedding: []float32{1, 0.2}},
		}
		got, err := RetrieveContext(question, candidates)
		if err != nil {
			t.Fatalf("RetrieveContext() error = %v", err)
		}
		if len(got) != 1 || got[0].ID != "near" {
			t.Fatalf("RetrieveContext() = %+v, want only near", got)
		}
	})

	t.Run("top five by distance", func(t *testing.T) {
		candidates := make([]common.GraphNode, 0, 8)
		for i := 7; i >= 0; i-- {
			candidates = append(candidates, common.GraphNode{
				ID:        fmt.Sprintf("n%d", i),
				Embedding: []float32{1, float32(i) * 0.05},
			})
		}
		got, err := RetrieveContext(question, candidates)
		if err != nil {
			t.Fatalf("RetrieveContext() error = %v", err)
		}
		if len(got) != MaxContextNodes {
			t.Fatalf("RetrieveContext() len = %d, want %d", len(got), MaxContextNodes)
		}
		for i, n := range got {
			if n.ID != fmt.Sprintf("n%d", i) {
				t.Fatalf("RetrieveContext()[%d] = %s, want n%d", i, n.ID, i)
			}
		}
	})

	t.Run("skips unusable candidates", func(t *testing.T) {
		candidates := []common.GraphNode{
			{ID: "short", Embedding: []float32{1}},
			{ID: "zero", Embedding: []float32{0, 0}},
			{ID: "none"},
			{ID: "ok", Embedding: []float32{2, 0}},
		}
		got, err := RetrieveContext(question, candidates)
		if err != nil {
			t.Fatalf("RetrieveContext() error = %v", err)
		}
		if len(got) != 1 || got[0].ID != "ok" {
			t.Fatalf("RetrieveContext() = %+v", got)
		}
	})

	t.Run("insufficient context", func(t *testing.T) {
		candidates := []common.GraphNode{{ID: "far", Embedding: []float32{0, 1}}}
		if _, err := RetrieveContext(question, candidates); !errors.Is(err, ErrInsufficientContext) {
			t.Fatalf("RetrieveContext() error = %v, want ErrInsufficientContext", err)
		}
		if _, err := RetrieveContext(question, nil); !errors.Is(err, ErrInsufficientContext) {
			t.Fatalf("RetrieveContext(nil) error = %v, want ErrInsufficientContext", err)
		}
	})

	t.Run("invalid question", func(t *testing.T) {
		if _, err := RetrieveContext(nil, nil); !errors.Is(err, ErrMissingField) {
			t.Fatalf("RetrieveContext(nil) error = %v, want ErrMissingField", err)
		}
		if _, err := RetrieveContext([]float32{0, 0}, nil); !errors.Is(err, ErrZeroVector) {
			t.Fatalf("RetrieveContext(zero) error = %v, want ErrZeroVector", err)
		}
	})
}
