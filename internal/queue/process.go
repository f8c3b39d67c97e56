package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/podgraph/backend/internal/storage"
	"github.com/podgraph/backend/pkg/ai"
	"github.com/podgraph/backend/pkg/common"
	"github.com/podgraph/backend/pkg/graph"
	"github.com/podgraph/backend/pkg/leaselock"
	"github.com/podgraph/backend/pkg/logger"
	"github.com/podgraph/backend/pkg/store"
	"github.com/podgraph/backend/pkg/youtube"
)

// Job stages reported while a podcast is ingested.
const (
	StageInitializing = "Initializing ingestion"
	StageVerified     = "Podcast verified"
	StageCheckCache   = "Checking transcript cache"
	StageTranscript   = "Generating transcript"
	StageAgent        = "AI Agent processing"
	StageGenerated    = "AI generation completed"
	StageStored       = "Transcript stored"
	StageGraph        = "Building knowledge graph"
	StageCompleted    = "Completed"
	StageError        = "Error"
	StageRetrying     = "Waiting for retry"
)

// IngestDeps are the collaborators of ProcessIngestMessage.
type IngestDeps struct {
	Store   store.GraphStorage
	AI      ai.GraphAIClient
	Cache   storage.TranscriptCache
	YouTube *youtube.Client
	Locker  leaselock.Locker
	Graph   *graph.GraphClient

	CaptionsLang     string
	MaxCaptionTokens int
	LockTTL          time.Duration
}

func (d IngestDeps) lockOptions(jobID string) leaselock.Options {
	ttl := d.LockTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return leaselock.Options{
		TTL:         ttl,
		RenewEvery:  ttl / 3,
		Wait:        true,
		TokenPrefix: fmt.Sprintf("ingest/%s/", jobID),
	}
}

// ProcessIngestMessage runs one ingestion job: it loads or extracts the
// segmented transcript of the podcast and merges its ideas into the user's
// graph. Jobs that are no longer pending are skipped. A failing job is
// marked failed and the error is returned so the caller can decide on a
// retry.
func ProcessIngestMessage(ctx context.Context, deps IngestDeps, msg string) (err error) {
	var data IngestMsg
	if err = json.Unmarshal([]byte(msg), &data); err != nil {
		return fmt.Errorf("%w: %w", graph.ErrInput, err)
	}
	if data.JobID == "" {
		return fmt.Errorf("%w: job id", graph.ErrMissingField)
	}

	job, err := deps.Store.GetJob(ctx, data.JobID)
	if err != nil {
		return fmt.Errorf("failed to load job %s: %w", data.JobID, err)
	}
	if job.Status != common.JobStatusPending {
		logger.Info("[Queue] Skipping job: not pending", "job_id", job.ID, "status", job.Status)
		return nil
	}

	setStage := func(stage string, progress int32) error {
		return deps.Store.UpdateJobStatus(ctx, job.ID, store.JobUpdate{
			Status:   common.JobStatusProcessing,
			Stage:    stage,
			Progress: progress,
		})
	}

	defer func() {
		if err == nil {
			return
		}
		updateCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		msg := err.Error()
		if updateErr := deps.Store.UpdateJobStatus(updateCtx, job.ID, store.JobUpdate{
			Status:       common.JobStatusFailed,
			Stage:        StageError,
			Progress:     0,
			ErrorMessage: &msg,
		}); updateErr != nil {
			logger.Warn("[Queue] Failed to mark job as failed", "job_id", job.ID, "err", updateErr)
		}
	}()

	if err = setStage(StageInitializing, 10); err != nil {
		return err
	}

	podcast, err := deps.Store.GetPodcast(ctx, job.PodcastID)
	if err != nil {
		return fmt.Errorf("failed to load podcast %s: %w", job.PodcastID, err)
	}
	if podcast.UserID != job.UserID {
		return fmt.Errorf("podcast %s: %w", podcast.ID, store.ErrOwnership)
	}
	if err = setStage(StageVerified, 15); err != nil {
		return err
	}

	if podcast.GraphExists {
		logger.Info("[Queue] Graph already exists for podcast", "podcast_id", podcast.ID)
		return complete(ctx, deps.Store, job.ID)
	}

	if err = setStage(StageCheckCache, 20); err != nil {
		return err
	}
	transcript, err := loadTranscript(ctx, deps, podcast, setStage)
	if err != nil {
		return err
	}

	if err = setStage(StageGraph, 80); err != nil {
		return err
	}
	logger.Debug("[Queue] Waiting for ingestion lease", "user_id", job.UserID, "job_id", job.ID)
	err = deps.Locker.WithLease(ctx, leaselock.IngestKey(job.UserID), deps.lockOptions(job.ID), func(ctx context.Context) error {
		res, err := deps.Graph.ProcessIdeas(ctx, job.UserID, podcast.ID, podcast.VideoID, transcript.Ideas, deps.AI, deps.Store)
		if err != nil {
			return err
		}
		logger.Info("[Queue] Knowledge graph updated", "podcast_id", podcast.ID, "nodes", res.NodesCreated, "edges", res.EdgesCreated)
		return deps.Store.MarkGraphExists(ctx, podcast.ID)
	})
	if err != nil {
		return err
	}

	return complete(ctx, deps.Store, job.ID)
}

func complete(ctx context.Context, jobs store.JobStorage, jobID string) error {
	return jobs.UpdateJobStatus(ctx, jobID, store.JobUpdate{
		Status:   common.JobStatusCompleted,
		Stage:    StageCompleted,
		Progress: 100,
	})
}

// loadTranscript returns the cached segmented transcript of the podcast or
// extracts and caches a new one.
func loadTranscript(
	ctx context.Context,
	deps IngestDeps,
	podcast common.Podcast,
	setStage func(stage string, progress int32) error,
) (common.SegmentedTranscript, error) {
	cached, ok, err := deps.Cache.Get(ctx, podcast.VideoID)
	if err != nil {
		logger.Warn("[Queue] Transcript cache lookup failed", "video_id", podcast.VideoID, "err", err)
	}
	if ok {
		logger.Info("[Queue] Using cached transcript", "video_id", podcast.VideoID, "ideas", len(cached.Ideas))
		return cached, nil
	}

	if err := setStage(StageTranscript, 25); err != nil {
		return common.SegmentedTranscript{}, err
	}
	captions, err := deps.YouTube.FetchCaptions(ctx, podcast.VideoID, deps.CaptionsLang)
	if err != nil {
		return common.SegmentedTranscript{}, err
	}
	captionsJSON, err := youtube.CaptionsJSON(captions, deps.MaxCaptionTokens)
	if err != nil {
		return common.SegmentedTranscript{}, err
	}

	if err := setStage(StageAgent, 45); err != nil {
		return common.SegmentedTranscript{}, err
	}
	transcript, err := deps.Graph.ExtractIdeas(ctx, graph.ExtractParams{
		VideoID:     podcast.VideoID,
		YoutubeURL:  podcast.YoutubeURL,
		Title:       podcast.Title,
		ChannelName: podcast.ChannelName,
		Captions:    captionsJSON,
	}, deps.AI)
	if err != nil {
		return common.SegmentedTranscript{}, err
	}
	if err := setStage(StageGenerated, 60); err != nil {
		return common.SegmentedTranscript{}, err
	}

	if err := deps.Cache.Put(ctx, transcript); err != nil {
		logger.Warn("[Queue] Failed to cache transcript", "video_id", podcast.VideoID, "err", err)
	}
	if err := setStage(StageStored, 70); err != nil {
		return common.SegmentedTranscript{}, err
	}

	return transcript, nil
}

// IsPermanent reports whether retrying the job cannot succeed.
func IsPermanent(err error) bool {
	return errors.Is(err, graph.ErrInput) ||
		errors.Is(err, store.ErrNotFound) ||
		errors.Is(err, store.ErrOwnership) ||
		errors.Is(err, youtube.ErrInvalidURL) ||
		errors.Is(err, youtube.ErrNoCaptions) ||
		errors.Is(err, youtube.ErrRejected)
}
