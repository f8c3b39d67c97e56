package common

import "time"

// Reference is a timestamped quote from a podcast that supports an idea.
// Start and End are seconds since the beginning of the audio.
type Reference struct {
	Quote string  `json:"quote"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// GraphNode is a single atomic idea extracted from a podcast transcript.
//
// Nodes are created once by the ingestion pass and afterwards only the
// bookmark flag changes. The embedding is written together with the node
// and never recomputed.
type GraphNode struct {
	ID               string      `json:"id"`
	UserID           string      `json:"user_id"`
	PodcastID        string      `json:"podcast_id"`
	VideoID          string      `json:"video_id"`
	PrimarySpeakerID string      `json:"primary_speaker_id"`
	Label            string      `json:"label"`
	Summary          string      `json:"summary"`
	References       []Reference `json:"references"`
	Embedding        []float32   `json:"-"`
	ImpactScore      float64     `json:"impact_score"`
	IsBookmarked     bool        `json:"is_bookmarked"`
	CreatedAt        time.Time   `json:"created_at"`
}

// NodeEmbedding is the projection of a node needed for similarity linking.
type NodeEmbedding struct {
	ID        string
	Embedding []float32
}

// GraphEdge connects two nodes of the same user. Edges are stored directed
// (Source is the node that was linked when it was created) but consumers
// treat them as undirected.
type GraphEdge struct {
	ID           string  `json:"id"`
	UserID       string  `json:"user_id"`
	SourceNodeID string  `json:"source_node_id"`
	TargetNodeID string  `json:"target_node_id"`
	Weight       float64 `json:"weight"`
}

// Speaker is a deduplicated podcast speaker owned by a user.
type Speaker struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Name           string    `json:"name"`
	NormalizedName string    `json:"normalized_name"`
	DetectedCount  int32     `json:"detected_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Podcast is a YouTube video a user asked to ingest.
type Podcast struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	YoutubeURL   string    `json:"youtube_url"`
	VideoID      string    `json:"video_id"`
	Title        string    `json:"title"`
	ChannelName  string    `json:"channel_name"`
	ThumbnailURL string    `json:"thumbnail_url"`
	GraphExists  bool      `json:"graph_exists"`
	CreatedAt    time.Time `json:"created_at"`
}

// Job statuses.
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// IngestionJob tracks the progress of a single podcast ingestion.
type IngestionJob struct {
	ID           string     `json:"id"`
	PodcastID    string     `json:"podcast_id"`
	UserID       string     `json:"user_id"`
	Status       string     `json:"status"`
	Stage        string     `json:"stage"`
	Progress     int32      `json:"progress"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// TranscriptIdea is one idea as returned by the extraction model, before
// it becomes a GraphNode.
type TranscriptIdea struct {
	Label          string      `json:"label" jsonschema_description:"A concise label of 2 to 6 words"`
	Summary        string      `json:"summary" jsonschema_description:"A detailed summary explaining the idea"`
	ImpactScore    float64     `json:"impactScore" jsonschema_description:"How important the idea is, between 0 and 1"`
	PrimarySpeaker string      `json:"primarySpeaker" jsonschema_description:"Full, human-readable name of the main speaker of the idea"`
	References     []Reference `json:"references" jsonschema_description:"Timestamped references in seconds where the idea is discussed"`
}

// SegmentedTranscript is the cached extraction result for a video.
type SegmentedTranscript struct {
	VideoID string           `json:"videoId"`
	Ideas   []TranscriptIdea `json:"ideas"`
}
