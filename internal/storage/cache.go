package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/podgraph/backend/pkg/common"
)

// TranscriptCache stores the extraction result per video so a video that
// was ingested once (by any user) is not sent to the model again.
type TranscriptCache interface {
	// Get reports false without error when nothing is cached for the video.
	Get(ctx context.Context, videoID string) (common.SegmentedTranscript, bool, error)
	Put(ctx context.Context, transcript common.SegmentedTranscript) error
}

func TranscriptKey(videoID string) string {
	return "transcripts/" + videoID + ".json"
}

// A cached transcript without ideas is treated as a miss.
func decodeTranscript(videoID string, data []byte) (common.SegmentedTranscript, bool, error) {
	var t common.SegmentedTranscript
	if err := json.Unmarshal(data, &t); err != nil {
		return common.SegmentedTranscript{}, false, fmt.Errorf("failed to decode cached transcript %s: %w", videoID, err)
	}
	if len(t.Ideas) == 0 {
		return common.SegmentedTranscript{}, false, nil
	}
	if t.VideoID == "" {
		t.VideoID = videoID
	}
	return t, true, nil
}

type MemoryTranscriptCache struct {
	mu    sync.RWMutex
	items map[string][]byte
}

func NewMemoryTranscriptCache() *MemoryTranscriptCache {
	return &MemoryTranscriptCache{items: make(map[string][]byte)}
}

func (c *MemoryTranscriptCache) Get(ctx context.Context, videoID string) (common.SegmentedTranscript, bool, error) {
	c.mu.RLock()
	data, ok := c.items[TranscriptKey(videoID)]
	c.mu.RUnlock()
	if !ok {
		return common.SegmentedTranscript{}, false, nil
	}
	return decodeTranscript(videoID, data)
}

func (c *MemoryTranscriptCache) Put(ctx context.Context, transcript common.SegmentedTranscript) error {
	if transcript.VideoID == "" {
		return fmt.Errorf("transcript has no video id")
	}
	data, err := json.Marshal(transcript)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.items[TranscriptKey(transcript.VideoID)] = data
	c.mu.Unlock()
	return nil
}

var (
	_ TranscriptCache = (*S3TranscriptCache)(nil)
	_ TranscriptCache = (*MemoryTranscriptCache)(nil)
)
