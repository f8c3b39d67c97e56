package store

import (
	"context"
	"errors"
	"time"

	"github.com/podgraph/backend/pkg/common"
)

var (
	// ErrNotFound is returned when the requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrOwnership is returned when the entity exists but belongs to another user.
	ErrOwnership = errors.New("permission denied")
)

// NodeStorage persists graph nodes and edges. Every read is scoped to a
// single user.
type NodeStorage interface {
	// CreateNode inserts the node. ID and CreatedAt are filled in when empty.
	CreateNode(ctx context.Context, node *common.GraphNode) error
	GetNode(ctx context.Context, userID, nodeID string) (common.GraphNode, error)
	// ListNodes returns the user's nodes ordered by impact_score DESC,
	// created_at ASC, id ASC. Embeddings are not loaded.
	ListNodes(ctx context.Context, userID string) ([]common.GraphNode, error)
	// ListNodesBySpeaker returns the speaker's nodes including embeddings.
	ListNodesBySpeaker(ctx context.Context, userID, speakerID string) ([]common.GraphNode, error)
	ListNodeEmbeddings(ctx context.Context, userID string) ([]common.NodeEmbedding, error)
	SetBookmark(ctx context.Context, userID, nodeID string, bookmarked bool) error
	ListBookmarkedNodes(ctx context.Context, userID string) ([]common.GraphNode, error)

	// CreateEdges stores edges. A second edge for the same directed pair
	// keeps the higher weight instead of being duplicated.
	CreateEdges(ctx context.Context, edges []common.GraphEdge) error
	ListEdges(ctx context.Context, userID string) ([]common.GraphEdge, error)
}

type SpeakerStorage interface {
	GetSpeakerByNormalizedName(ctx context.Context, userID, normalizedName string) (common.Speaker, error)
	// CreateSpeaker inserts the speaker with a detected count of one. If a
	// speaker with the same normalized name was created concurrently, that
	// speaker's count is incremented instead and speaker.ID is replaced.
	CreateSpeaker(ctx context.Context, speaker *common.Speaker) error
	IncrementSpeakerCount(ctx context.Context, userID, speakerID string) error
	// ListSpeakers returns the user's speakers, newest first.
	ListSpeakers(ctx context.Context, userID string) ([]common.Speaker, error)
}

type PodcastStorage interface {
	CreatePodcast(ctx context.Context, podcast *common.Podcast) error
	GetPodcast(ctx context.Context, podcastID string) (common.Podcast, error)
	FindPodcastByVideo(ctx context.Context, userID, videoID string) (common.Podcast, error)
	// ListPodcasts returns the user's podcasts, newest first.
	ListPodcasts(ctx context.Context, userID string) ([]common.Podcast, error)
	MarkGraphExists(ctx context.Context, podcastID string) error
}

// JobUpdate is a status transition of an ingestion job.
type JobUpdate struct {
	Status       string
	Stage        string
	Progress     int32
	ErrorMessage *string
}

type JobStorage interface {
	CreateJob(ctx context.Context, job *common.IngestionJob) error
	GetJob(ctx context.Context, jobID string) (common.IngestionJob, error)
	// UpdateJobStatus applies the update. CompletedAt is set when the job
	// reaches a terminal status.
	UpdateJobStatus(ctx context.Context, jobID string, update JobUpdate) error
}

// GraphStorage bundles everything the ingestion pipeline and the API need.
type GraphStorage interface {
	NodeStorage
	SpeakerStorage
	PodcastStorage
	JobStorage

	// InTx runs fn against a storage whose writes are committed only when fn
	// returns nil. On error none of them are visible afterwards.
	InTx(ctx context.Context, fn func(tx GraphStorage) error) error
}

// IsTerminalJobStatus reports whether no further transitions are expected.
func IsTerminalJobStatus(status string) bool {
	return status == common.JobStatusCompleted || status == common.JobStatusFailed
}

// ApplyJobUpdate writes the update into job the same way every store does.
func ApplyJobUpdate(job *common.IngestionJob, update JobUpdate, now time.Time) {
	job.Status = update.Status
	job.Stage = update.Stage
	job.Progress = update.Progress
	job.ErrorMessage = update.ErrorMessage
	job.UpdatedAt = now
	if IsTerminalJobStatus(update.Status) {
		t := now
		job.CompletedAt = &t
	} else {
		job.CompletedAt = nil
	}
}
