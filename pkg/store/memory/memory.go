package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/podgraph/backend/pkg/common"
	"github.com/podgraph/backend/pkg/store"
)

type edgeKey struct {
	userID, source, target string
}

// GraphMemoryStorage is an in-process store.GraphStorage. It keeps the
// same ordering and ownership rules as the Postgres store and is used by
// tests and by local runs without a database.
type GraphMemoryStorage struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	nodes     map[string]common.GraphNode
	edges     []common.GraphEdge
	edgeIndex map[edgeKey]int
	speakers  map[string]common.Speaker
	podcasts  map[string]common.Podcast
	jobs      map[string]common.IngestionJob

	now  func() time.Time
	last time.Time
}

func NewGraphMemoryStorage() *GraphMemoryStorage {
	return &GraphMemoryStorage{
		nodes:     make(map[string]common.GraphNode),
		edgeIndex: make(map[edgeKey]int),
		speakers:  make(map[string]common.Speaker),
		podcasts:  make(map[string]common.Podcast),
		jobs:      make(map[string]common.IngestionJob),
		now:       time.Now,
	}
}

// timestamp returns a strictly increasing time so creation order is
// reflected in created_at. Callers must hold mu.
func (s *GraphMemoryStorage) timestamp() time.Time {
	t := s.now().UTC()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

func ensureID(id *string) error {
	if *id != "" {
		return nil
	}
	v, err := store.NewID()
	if err != nil {
		return err
	}
	*id = v
	return nil
}

func (s *GraphMemoryStorage) CreateNode(ctx context.Context, node *common.GraphNode) error {
	_, err := s.createNode(node)
	return err
}

func (s *GraphMemoryStorage) createNode(node *common.GraphNode) (func(), error) {
	if node == nil || node.UserID == "" {
		return nil, fmt.Errorf("invalid node")
	}
	if err := ensureID(&node.ID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[node.ID]; ok {
		return nil, fmt.Errorf("node %s already exists", node.ID)
	}
	if node.CreatedAt.IsZero() {
		node.CreatedAt = s.timestamp()
	}
	if node.References == nil {
		node.References = []common.Reference{}
	}
	s.nodes[node.ID] = *node

	id := node.ID
	return func() { delete(s.nodes, id) }, nil
}

func (s *GraphMemoryStorage) GetNode(ctx context.Context, userID, nodeID string) (common.GraphNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[nodeID]
	if !ok {
		return common.GraphNode{}, store.ErrNotFound
	}
	if n.UserID != userID {
		return common.GraphNode{}, store.ErrOwnership
	}
	return n, nil
}

func (s *GraphMemoryStorage) filterNodes(keep func(common.GraphNode) bool, withEmbedding bool) []common.GraphNode {
	out := make([]common.GraphNode, 0)
	for _, n := range s.nodes {
		if !keep(n) {
			continue
		}
		if !withEmbedding {
			n.Embedding = nil
		}
		out = append(out, n)
	}
	sortByImpact(out)
	return out
}

// sortByImpact orders nodes by impact_score DESC, created_at ASC, id ASC.
func sortByImpact(nodes []common.GraphNode) {
	sort.Slice(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if a.ImpactScore != b.ImpactScore {
			return a.ImpactScore > b.ImpactScore
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

func (s *GraphMemoryStorage) ListNodes(ctx context.Context, userID string) ([]common.GraphNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.filterNodes(func(n common.GraphNode) bool { return n.UserID == userID }, false), nil
}

func (s *GraphMemoryStorage) ListNodesBySpeaker(ctx context.Context, userID, speakerID string) ([]common.GraphNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.filterNodes(func(n common.GraphNode) bool {
		return n.UserID == userID && n.PrimarySpeakerID == speakerID
	}, true), nil
}

func (s *GraphMemoryStorage) ListNodeEmbeddings(ctx context.Context, userID string) ([]common.NodeEmbedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := s.filterNodes(func(n common.GraphNode) bool { return n.UserID == userID }, true)
	out := make([]common.NodeEmbedding, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, common.NodeEmbedding{ID: n.ID, Embedding: n.Embedding})
	}
	return out, nil
}

func (s *GraphMemoryStorage) SetBookmark(ctx context.Context, userID, nodeID string, bookmarked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[nodeID]
	if !ok {
		return store.ErrNotFound
	}
	if n.UserID != userID {
		return store.ErrOwnership
	}
	n.IsBookmarked = bookmarked
	s.nodes[nodeID] = n
	return nil
}

func (s *GraphMemoryStorage) ListBookmarkedNodes(ctx context.Context, userID string) ([]common.GraphNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.filterNodes(func(n common.GraphNode) bool {
		return n.UserID == userID && n.IsBookmarked
	}, false), nil
}

// CreateEdges upserts the edges. Nothing is written unless every edge
// passes the endpoint and ownership checks.
func (s *GraphMemoryStorage) CreateEdges(ctx context.Context, edges []common.GraphEdge) error {
	_, err := s.createEdges(edges)
	return err
}

func (s *GraphMemoryStorage) createEdges(edges []common.GraphEdge) (func(), error) {
	edges = store.MergeEdges(edges)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range edges {
		src, ok := s.nodes[e.SourceNodeID]
		if !ok {
			return nil, fmt.Errorf("edge source %s: %w", e.SourceNodeID, store.ErrNotFound)
		}
		dst, ok := s.nodes[e.TargetNodeID]
		if !ok {
			return nil, fmt.Errorf("edge target %s: %w", e.TargetNodeID, store.ErrNotFound)
		}
		if src.UserID != e.UserID || dst.UserID != e.UserID {
			return nil, fmt.Errorf("edge %s: %w", e.ID, store.ErrOwnership)
		}
	}

	type prior struct {
		key    edgeKey
		weight float64
		added  bool
	}
	changes := make([]prior, 0, len(edges))
	for _, e := range edges {
		k := edgeKey{e.UserID, e.SourceNodeID, e.TargetNodeID}
		if i, ok := s.edgeIndex[k]; ok {
			changes = append(changes, prior{key: k, weight: s.edges[i].Weight})
			s.edges[i].Weight = max(s.edges[i].Weight, e.Weight)
			continue
		}
		if err := ensureID(&e.ID); err != nil {
			return nil, err
		}
		changes = append(changes, prior{key: k, added: true})
		s.edgeIndex[k] = len(s.edges)
		s.edges = append(s.edges, e)
	}

	return func() {
		removed := make(map[edgeKey]bool)
		for _, c := range changes {
			if c.added {
				removed[c.key] = true
				continue
			}
			if i, ok := s.edgeIndex[c.key]; ok {
				s.edges[i].Weight = c.weight
			}
		}
		if len(removed) == 0 {
			return
		}
		kept := s.edges[:0]
		for _, e := range s.edges {
			if !removed[edgeKey{e.UserID, e.SourceNodeID, e.TargetNodeID}] {
				kept = append(kept, e)
			}
		}
		s.edges = kept
		clear(s.edgeIndex)
		for i, e := range s.edges {
			s.edgeIndex[edgeKey{e.UserID, e.SourceNodeID, e.TargetNodeID}] = i
		}
	}, nil
}

func (s *GraphMemoryStorage) ListEdges(ctx context.Context, userID string) ([]common.GraphEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]common.GraphEdge, 0)
	for _, e := range s.edges {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *GraphMemoryStorage) GetSpeakerByNormalizedName(ctx context.Context, userID, normalizedName string) (common.Speaker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sp := range s.speakers {
		if sp.UserID == userID && sp.NormalizedName == normalizedName {
			return sp, nil
		}
	}
	return common.Speaker{}, store.ErrNotFound
}

func (s *GraphMemoryStorage) CreateSpeaker(ctx context.Context, speaker *common.Speaker) error {
	_, err := s.createSpeaker(speaker)
	return err
}

func (s *GraphMemoryStorage) createSpeaker(speaker *common.Speaker) (func(), error) {
	if speaker == nil || speaker.UserID == "" || speaker.NormalizedName == "" {
		return nil, fmt.Errorf("invalid speaker")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sp := range s.speakers {
		if sp.UserID == speaker.UserID && sp.NormalizedName == speaker.NormalizedName {
			sp.DetectedCount++
			sp.UpdatedAt = s.timestamp()
			s.speakers[id] = sp
			*speaker = sp
			return s.decrementSpeaker(id), nil
		}
	}

	if err := ensureID(&speaker.ID); err != nil {
		return nil, err
	}
	now := s.timestamp()
	speaker.DetectedCount = 1
	speaker.CreatedAt = now
	speaker.UpdatedAt = now
	s.speakers[speaker.ID] = *speaker

	id := speaker.ID
	return func() { delete(s.speakers, id) }, nil
}

func (s *GraphMemoryStorage) IncrementSpeakerCount(ctx context.Context, userID, speakerID string) error {
	_, err := s.incrementSpeakerCount(userID, speakerID)
	return err
}

func (s *GraphMemoryStorage) incrementSpeakerCount(userID, speakerID string) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sp, ok := s.speakers[speakerID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if sp.UserID != userID {
		return nil, store.ErrOwnership
	}
	sp.DetectedCount++
	sp.UpdatedAt = s.timestamp()
	s.speakers[speakerID] = sp
	return s.decrementSpeaker(speakerID), nil
}

// decrementSpeaker returns an undo for one count increment. Callers of the
// returned func must hold mu.
func (s *GraphMemoryStorage) decrementSpeaker(id string) func() {
	return func() {
		sp, ok := s.speakers[id]
		if !ok || sp.DetectedCount <= 1 {
			return
		}
		sp.DetectedCount--
		s.speakers[id] = sp
	}
}

func (s *GraphMemoryStorage) ListSpeakers(ctx context.Context, userID string) ([]common.Speaker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]common.Speaker, 0)
	for _, sp := range s.speakers {
		if sp.UserID == userID {
			out = append(out, sp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *GraphMemoryStorage) CreatePodcast(ctx context.Context, podcast *common.Podcast) error {
	if podcast == nil || podcast.UserID == "" || podcast.VideoID == "" {
		return fmt.Errorf("invalid podcast")
	}
	if err := ensureID(&podcast.ID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.podcasts {
		if p.UserID == podcast.UserID && p.VideoID == podcast.VideoID {
			return fmt.Errorf("podcast for video %s already exists", podcast.VideoID)
		}
	}
	podcast.CreatedAt = s.timestamp()
	s.podcasts[podcast.ID] = *podcast
	return nil
}

func (s *GraphMemoryStorage) GetPodcast(ctx context.Context, podcastID string) (common.Podcast, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.podcasts[podcastID]
	if !ok {
		return common.Podcast{}, store.ErrNotFound
	}
	return p, nil
}

func (s *GraphMemoryStorage) FindPodcastByVideo(ctx context.Context, userID, videoID string) (common.Podcast, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.podcasts {
		if p.UserID == userID && p.VideoID == videoID {
			return p, nil
		}
	}
	return common.Podcast{}, store.ErrNotFound
}

func (s *GraphMemoryStorage) ListPodcasts(ctx context.Context, userID string) ([]common.Podcast, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]common.Podcast, 0)
	for _, p := range s.podcasts {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *GraphMemoryStorage) MarkGraphExists(ctx context.Context, podcastID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.podcasts[podcastID]
	if !ok {
		return store.ErrNotFound
	}
	p.GraphExists = true
	s.podcasts[podcastID] = p
	return nil
}

func (s *GraphMemoryStorage) CreateJob(ctx context.Context, job *common.IngestionJob) error {
	if job == nil || job.UserID == "" || job.PodcastID == "" {
		return fmt.Errorf("invalid job")
	}
	if err := ensureID(&job.ID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.timestamp()
	if job.Status == "" {
		job.Status = common.JobStatusPending
		job.Stage = common.JobStatusPending
	}
	job.CreatedAt = now
	job.UpdatedAt = now
	s.jobs[job.ID] = *job
	return nil
}

func (s *GraphMemoryStorage) GetJob(ctx context.Context, jobID string) (common.IngestionJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return common.IngestionJob{}, store.ErrNotFound
	}
	return j, nil
}

func (s *GraphMemoryStorage) UpdateJobStatus(ctx context.Context, jobID string, update store.JobUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return store.ErrNotFound
	}
	store.ApplyJobUpdate(&j, update, s.timestamp())
	s.jobs[jobID] = j
	return nil
}
