package queue

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/podgraph/backend/pkg/logger"
)

// InlinePublisher processes ingestion jobs in background goroutines of the
// current process. It backs single-process runs with the in-memory store,
// where no worker can see the jobs. Failed jobs are not retried.
type InlinePublisher struct {
	ctx  context.Context
	deps IngestDeps
	wg   sync.WaitGroup
}

// NewInlinePublisher returns a publisher whose jobs run until ctx is done.
func NewInlinePublisher(ctx context.Context, deps IngestDeps) *InlinePublisher {
	return &InlinePublisher{ctx: ctx, deps: deps}
}

func (p *InlinePublisher) PublishIngest(ctx context.Context, msg IngestMsg) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := ProcessIngestMessage(p.ctx, p.deps, string(body)); err != nil {
			logger.Error("[Queue] Inline ingestion failed", "job_id", msg.JobID, "err", err)
			return
		}
		logger.Info("[Queue] Inline ingestion finished", "job_id", msg.JobID)
	}()
	return nil
}

// Wait blocks until every published job has finished.
func (p *InlinePublisher) Wait() {
	p.wg.Wait()
}

var _ IngestPublisher = (*InlinePublisher)(nil)
