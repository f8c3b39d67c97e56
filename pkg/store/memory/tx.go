package memory

import (
	"context"

	"github.com/podgraph/backend/pkg/common"
	"github.com/podgraph/backend/pkg/store"
)

// memoryTx records an undo step for every graph write made through it.
// Podcast and job writes are not part of the transaction.
type memoryTx struct {
	*GraphMemoryStorage
	undo []func()
}

var _ store.GraphStorage = (*memoryTx)(nil)

// InTx runs fn against a transactional view of the store. Transactions are
// serialized; when fn fails its node, edge and speaker writes are undone in
// reverse order.
func (s *GraphMemoryStorage) InTx(ctx context.Context, fn func(tx store.GraphStorage) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &memoryTx{GraphMemoryStorage: s}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// InTx joins the enclosing transaction.
func (t *memoryTx) InTx(ctx context.Context, fn func(tx store.GraphStorage) error) error {
	return fn(t)
}

func (t *memoryTx) record(undo func(), err error) error {
	if err == nil && undo != nil {
		t.undo = append(t.undo, undo)
	}
	return err
}

func (t *memoryTx) rollback() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *memoryTx) CreateNode(ctx context.Context, node *common.GraphNode) error {
	return t.record(t.createNode(node))
}

func (t *memoryTx) CreateEdges(ctx context.Context, edges []common.GraphEdge) error {
	return t.record(t.createEdges(edges))
}

func (t *memoryTx) CreateSpeaker(ctx context.Context, speaker *common.Speaker) error {
	return t.record(t.createSpeaker(speaker))
}

func (t *memoryTx) IncrementSpeakerCount(ctx context.Context, userID, speakerID string) error {
	return t.record(t.incrementSpeakerCount(userID, speakerID))
}
