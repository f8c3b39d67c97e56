package graph

import "github.com/podgraph/backend/pkg/store"

// GraphClient turns extracted transcript ideas into linked graph nodes and
// answers questions against them.
//
// A GraphClient should be created using NewGraphClient.
type GraphClient struct {
	embeddingBatchSize int
	newID              func() (string, error)
}

// NewGraphClientParams defines the configuration parameters for creating
// a new GraphClient.
//
// EmbeddingBatchSize controls how many ideas are embedded per request.
type NewGraphClientParams struct {
	EmbeddingBatchSize int
}

// NewGraphClient creates and returns a new GraphClient configured with
// the provided parameters.
//
// Example:
//
//	client, err := graph.NewGraphClient(graph.NewGraphClientParams{
//		EmbeddingBatchSize: 20,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
func NewGraphClient(params NewGraphClientParams) (*GraphClient, error) {
	batch := params.EmbeddingBatchSize
	if batch <= 0 {
		batch = store.DefaultEmbeddingBatchSize
	}
	g := &GraphClient{
		embeddingBatchSize: batch,
		newID:              store.NewID,
	}

	return g, nil
}
