package pgx

import (
	"context"
	"fmt"

	"github.com/podgraph/backend/internal/util"
	"github.com/podgraph/backend/pkg/common"
	"github.com/podgraph/backend/pkg/store"
)

func (s *GraphDBStorage) CreateJob(ctx context.Context, job *common.IngestionJob) error {
	if job == nil || job.UserID == "" || job.PodcastID == "" {
		return fmt.Errorf("invalid job")
	}
	if job.ID == "" {
		id, err := store.NewID()
		if err != nil {
			return err
		}
		job.ID = id
	}
	if job.Status == "" {
		job.Status = common.JobStatusPending
	}
	if job.Stage == "" {
		job.Stage = common.JobStatusPending
	}

	now := s.now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now

	_, err := s.conn.Exec(ctx, `
		INSERT INTO ingestion_jobs (id, podcast_id, user_id, status, stage, progress, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`, job.ID, job.PodcastID, job.UserID, job.Status, job.Stage, job.Progress, job.ErrorMessage, now)
	return err
}

func (s *GraphDBStorage) GetJob(ctx context.Context, jobID string) (common.IngestionJob, error) {
	var j common.IngestionJob
	err := s.conn.QueryRow(ctx, `
		SELECT id, podcast_id, user_id, status, stage, progress, error_message, created_at, updated_at, completed_at
		FROM ingestion_jobs WHERE id = $1
	`, jobID).Scan(
		&j.ID, &j.PodcastID, &j.UserID, &j.Status, &j.Stage, &j.Progress,
		&j.ErrorMessage, &j.CreatedAt, &j.UpdatedAt, &j.CompletedAt,
	)
	if err != nil {
		return common.IngestionJob{}, notFound(err)
	}
	return j, nil
}

func (s *GraphDBStorage) UpdateJobStatus(ctx context.Context, jobID string, update store.JobUpdate) error {
	var job common.IngestionJob
	store.ApplyJobUpdate(&job, update, s.now().UTC())
	if job.ErrorMessage != nil {
		msg := util.SanitizePostgresText(*job.ErrorMessage)
		job.ErrorMessage = &msg
	}

	tag, err := s.conn.Exec(ctx, `
		UPDATE ingestion_jobs
		SET status = $2, stage = $3, progress = $4, error_message = $5, updated_at = $6, completed_at = $7
		WHERE id = $1
	`, jobID, job.Status, job.Stage, job.Progress, job.ErrorMessage, job.UpdatedAt, job.CompletedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
