package pgx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/podgraph/backend/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// GraphDBStorage implements store.GraphStorage on PostgreSQL with pgvector
// holding the node embeddings. The pgvector types must be registered on the
// connection (see pgxvec.RegisterTypes).
type GraphDBStorage struct {
	conn pgxIConn
	now  func() time.Time
}

type GraphDBStorageOption func(*GraphDBStorage)

// WithClock overrides the clock used for job timestamps.
func WithClock(now func() time.Time) GraphDBStorageOption {
	return func(s *GraphDBStorage) {
		s.now = now
	}
}

// NewGraphDBStorageWithConnection creates a new GraphDBStorage using an
// existing connection or pool.
func NewGraphDBStorageWithConnection(
	conn pgxIConn,
	opts ...GraphDBStorageOption,
) *GraphDBStorage {
	s := &GraphDBStorage{
		conn: conn,
		now:  time.Now,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s
}

var _ store.GraphStorage = (*GraphDBStorage)(nil)

// InTx runs fn inside a database transaction. Nested calls become
// savepoints of the outer transaction.
func (s *GraphDBStorage) InTx(ctx context.Context, fn func(tx store.GraphStorage) error) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&GraphDBStorage{conn: tx, now: s.now}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, pgxv5.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}
