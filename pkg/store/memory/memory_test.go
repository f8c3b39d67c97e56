package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/podgraph/backend/pkg/common"
	"github.com/podgraph/backend/pkg/store"
)

var _ store.GraphStorage = (*GraphMemoryStorage)(nil)

func newFixedClockStore() *GraphMemoryStorage {
	s := NewGraphMemoryStorage()
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	return s
}

func TestListNodesOrder(t *testing.T) {
	ctx := context.Background()
	s := newFixedClockStore()

	for _, n := range []common.GraphNode{
		{ID: "c", UserID: "u1", ImpactScore: 0.5},
		{ID: "b", UserID: "u1", ImpactScore: 0.9},
		{ID: "a", UserID: "u1", ImpactScore: 0.5},
		{ID: "x", UserID: "u2", ImpactScore: 1.0},
	} {
		n := n
		if err := s.CreateNode(ctx, &n); err != nil {
			t.Fatalf("CreateNode(%s) error = %v", n.ID, err)
		}
	}

	nodes, err := s.ListNodes(ctx, "u1")
	if err != nil {
		t.Fatalf("ListNodes() error = %v", err)
	}
	// equal scores fall back to creation order, which the store keeps monotonic
	want := []string{"b", "c", "a"}
	if len(nodes) != len(want) {
		t.Fatalf("ListNodes() len = %d, want %d", len(nodes), len(want))
	}
	for i, id := range want {
		if nodes[i].ID != id {
			t.Fatalf("ListNodes()[%d] = %s, want %s", i, nodes[i].ID, id)
		}
	}
}

func TestGetNodeOwnership(t *testing.T) {
	ctx := context.Background()
	s := NewGraphMemoryStorage()
	n := common.GraphNode{ID: "n1", UserID: "u1"}
	if err := s.CreateNode(ctx, &n); err != nil {
		t.Fatalf("CreateNode() error = %v", err)
	}

	if _, err := s.GetNode(ctx, "u1", "n1"); err != nil {
		t.Fatalf("GetNode() owner error = %v", err)
	}
	if _, err := s.GetNode(ctx, "u2", "n1"); !errors.Is(err, store.ErrOwnership) {
		t.Fatalf("GetNode() other user error = %v, want ErrOwnership", err)
	}
	if _, err := s.GetNode(ctx, "u1", "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("GetNode() missing error = %v, want ErrNotFound", err)
	}
	if err := s.SetBookmark(ctx, "u2", "n1", true); !errors.Is(err, store.ErrOwnership) {
		t.Fatalf("SetBookmark() other user error = %v, want ErrOwnership", err)
	}
}

func TestBookmarks(t *testing.T) {
	ctx := context.Background()
	s := NewGraphMemoryStorage()
	for _, id := range []string{"n1", "n2"} {
		n := common.GraphNode{ID: id, UserID: "u1"}
		if err := s.CreateNode(ctx, &n); err != nil {
			t.Fatalf("CreateNode() error = %v", err)
		}
	}
	if err := s.SetBookmark(ctx, "u1", "n2", true); err != nil {
		t.Fatalf("SetBookmark() error = %v", err)
	}

	got, err := s.ListBookmarkedNodes(ctx, "u1")
	if err != nil {
		t.Fatalf("ListBookmarkedNodes() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "n2" || !got[0].IsBookmarked {
		t.Fatalf("ListBookmarkedNodes() = %+v", got)
	}

	if err := s.SetBookmark(ctx, "u1", "n2", false); err != nil {
		t.Fatalf("SetBookmark() error = %v", err)
	}
	got, _ = s.ListBookmarkedNodes(ctx, "u1")
	if len(got) != 0 {
		t.Fatalf("ListBookmarkedNodes() after unbookmark = %+v", got)
	}
}

func TestCreateEdgesKeepsMaxWeight(t *testing.T) {
	ctx := context.Background()
	s := NewGraphMemoryStorage()
	for _, n := range []common.GraphNode{{ID: "a", UserID: "u1"}, {ID: "b", UserID: "u1"}, {ID: "z", UserID: "u2"}} {
		n := n
		if err := s.CreateNode(ctx, &n); err != nil {
			t.Fatalf("CreateNode() error = %v", err)
		}
	}

	err := s.CreateEdges(ctx, []common.GraphEdge{
		{ID: "e1", UserID: "u1", SourceNodeID: "a", TargetNodeID: "b", Weight: 0.6},
		{ID: "e2", UserID: "u1", SourceNodeID: "a", TargetNodeID: "b", Weight: 0.9},
		{ID: "e3", UserID: "u1", SourceNodeID: "b", TargetNodeID: "a", Weight: 0.4},
	})
	if err != nil {
		t.Fatalf("CreateEdges() error = %v", err)
	}

	edges, _ := s.ListEdges(ctx, "u1")
	if len(edges) != 2 {
		t.Fatalf("ListEdges() len = %d, want 2", len(edges))
	}
	if edges[0].ID != "e1" || edges[0].Weight != 0.9 {
		t.Fatalf("ListEdges()[0] = %+v, want e1 with weight 0.9", edges[0])
	}

	err = s.CreateEdges(ctx, []common.GraphEdge{{UserID: "u1", SourceNodeID: "a", TargetNodeID: "z", Weight: 1}})
	if !errors.Is(err, store.ErrOwnership) {
		t.Fatalf("CreateEdges() cross user error = %v, want ErrOwnership", err)
	}
}

func TestCreateEdgesRejectsWholeBatch(t *testing.T) {
	ctx := context.Background()
	s := NewGraphMemoryStorage()
	for _, n := range []common.GraphNode{{ID: "a", UserID: "u1"}, {ID: "b", UserID: "u1"}} {
		n := n
		if err := s.CreateNode(ctx, &n); err != nil {
			t.Fatalf("CreateNode() error = %v", err)
		}
	}
	if err := s.CreateEdges(ctx, []common.GraphEdge{{ID: "e1", UserID: "u1", SourceNodeID: "a", TargetNodeID: "b", Weight: 0.5}}); err != nil {
		t.Fatalf("CreateEdges() error = %v", err)
	}

	err := s.CreateEdges(ctx, []common.GraphEdge{
		{UserID: "u1", SourceNodeID: "a", TargetNodeID: "b", Weight: 0.9},
		{UserID: "u1", SourceNodeID: "b", TargetNodeID: "missing", Weight: 0.9},
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("CreateEdges() error = %v, want ErrNotFound", err)
	}
	edges, _ := s.ListEdges(ctx, "u1")
	if len(edges) != 1 || edges[0].Weight != 0.5 {
		t.Fatalf("ListEdges() = %+v, want e1 unchanged", edges)
	}
}

func TestInTx(t *testing.T) {
	errAbort := errors.New("abort")

	tests := []struct {
		name         string
		fnErr        error
		wantNodes    int
		wantEdges    int
		wantWeight   float64
		wantSpeakers int
		wantCount    int32
	}{
		{name: "commit", fnErr: nil, wantNodes: 3, wantEdges: 2, wantWeight: 0.9, wantSpeakers: 2, wantCount: 3},
		{name: "rollback", fnErr: errAbort, wantNodes: 2, wantEdges: 1, wantWeight: 0.5, wantSpeakers: 1, wantCount: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := NewGraphMemoryStorage()
			for _, n := range []common.GraphNode{{ID: "a", UserID: "u1"}, {ID: "b", UserID: "u1"}} {
				n := n
				if err := s.CreateNode(ctx, &n); err != nil {
					t.Fatalf("CreateNode() error = %v", err)
				}
			}
			if err := s.CreateEdges(ctx, []common.GraphEdge{{ID: "e1", UserID: "u1", SourceNodeID: "a", TargetNodeID: "b", Weight: 0.5}}); err != nil {
				t.Fatalf("CreateEdges() error = %v", err)
			}
			sp := common.Speaker{ID: "s1", UserID: "u1", Name: "Lex Fridman", NormalizedName: "lexfridman"}
			if err := s.CreateSpeaker(ctx, &sp); err != nil {
				t.Fatalf("CreateSpeaker() error = %v", err)
			}

			err := s.InTx(ctx, func(tx store.GraphStorage) error {
				c := common.GraphNode{ID: "c", UserID: "u1"}
				if err := tx.CreateNode(ctx, &c); err != nil {
					return err
				}
				if err := tx.CreateEdges(ctx, []common.GraphEdge{
					{ID: "e2", UserID: "u1", SourceNodeID: "c", TargetNodeID: "a", Weight: 0.7},
					{UserID: "u1", SourceNodeID: "a", TargetNodeID: "b", Weight: 0.9},
				}); err != nil {
					return err
				}
				fresh := common.Speaker{ID: "s2", UserID: "u1", Name: "Andrew Huberman", NormalizedName: "andrewhuberman"}
				if err := tx.CreateSpeaker(ctx, &fresh); err != nil {
					return err
				}
				dup := common.Speaker{ID: "s3", UserID: "u1", Name: "lex fridman", NormalizedName: "lexfridman"}
				if err := tx.CreateSpeaker(ctx, &dup); err != nil {
					return err
				}
				if err := tx.IncrementSpeakerCount(ctx, "u1", "s1"); err != nil {
					return err
				}
				return tt.fnErr
			})
			if !errors.Is(err, tt.fnErr) {
				t.Fatalf("InTx() error = %v, want %v", err, tt.fnErr)
			}

			nodes, _ := s.ListNodes(ctx, "u1")
			if len(nodes) != tt.wantNodes {
				t.Fatalf("ListNodes() len = %d, want %d", len(nodes), tt.wantNodes)
			}
			edges, _ := s.ListEdges(ctx, "u1")
			if len(edges) != tt.wantEdges {
				t.Fatalf("ListEdges() len = %d, want %d", len(edges), tt.wantEdges)
			}
			if edges[0].ID != "e1" || edges[0].Weight != tt.wantWeight {
				t.Fatalf("ListEdges()[0] = %+v, want e1 with weight %v", edges[0], tt.wantWeight)
			}
			speakers, _ := s.ListSpeakers(ctx, "u1")
			if len(speakers) != tt.wantSpeakers {
				t.Fatalf("ListSpeakers() len = %d, want %d", len(speakers), tt.wantSpeakers)
			}
			got, _ := s.GetSpeakerByNormalizedName(ctx, "u1", "lexfridman")
			if got.DetectedCount != tt.wantCount {
				t.Fatalf("speaker count = %d, want %d", got.DetectedCount, tt.wantCount)
			}
		})
	}
}

func TestCreateSpeakerUpsert(t *testing.T) {
	ctx := context.Background()
	s := NewGraphMemoryStorage()

	first := common.Speaker{ID: "s1", UserID: "u1", Name: "Andrew Huberman", NormalizedName: "andrewhuberman"}
	if err := s.CreateSpeaker(ctx, &first); err != nil {
		t.Fatalf("CreateSpeaker() error = %v", err)
	}
	second := common.Speaker{ID: "s2", UserID: "u1", Name: "andrew huberman", NormalizedName: "andrewhuberman"}
	if err := s.CreateSpeaker(ctx, &second); err != nil {
		t.Fatalf("CreateSpeaker() error = %v", err)
	}
	if second.ID != "s1" || second.DetectedCount != 2 {
		t.Fatalf("CreateSpeaker() duplicate = %+v, want s1 with count 2", second)
	}

	other := common.Speaker{ID: "s3", UserID: "u2", Name: "Andrew Huberman", NormalizedName: "andrewhuberman"}
	if err := s.CreateSpeaker(ctx, &other); err != nil {
		t.Fatalf("CreateSpeaker() error = %v", err)
	}
	if other.ID != "s3" || other.DetectedCount != 1 {
		t.Fatalf("CreateSpeaker() other user = %+v", other)
	}
}

func TestJobLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewGraphMemoryStorage()

	job := common.IngestionJob{UserID: "u1", PodcastID: "p1"}
	if err := s.CreateJob(ctx, &job); err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}
	if job.ID == "" || job.Status != common.JobStatusPending {
		t.Fatalf("CreateJob() = %+v", job)
	}

	if err := s.UpdateJobStatus(ctx, job.ID, store.JobUpdate{Status: common.JobStatusProcessing, Stage: "Podcast verified", Progress: 15}); err != nil {
		t.Fatalf("UpdateJobStatus() error = %v", err)
	}
	got, _ := s.GetJob(ctx, job.ID)
	if got.CompletedAt != nil || got.Progress != 15 {
		t.Fatalf("GetJob() processing = %+v", got)
	}

	msg := "boom"
	if err := s.UpdateJobStatus(ctx, job.ID, store.JobUpdate{Status: common.JobStatusFailed, Stage: "Error", ErrorMessage: &msg}); err != nil {
		t.Fatalf("UpdateJobStatus() error = %v", err)
	}
	got, _ = s.GetJob(ctx, job.ID)
	if got.CompletedAt == nil || got.ErrorMessage == nil || *got.ErrorMessage != "boom" {
		t.Fatalf("GetJob() failed = %+v", got)
	}

	if err := s.UpdateJobStatus(ctx, "missing", store.JobUpdate{}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("UpdateJobStatus() missing error = %v", err)
	}
}

func TestPodcasts(t *testing.T) {
	ctx := context.Background()
	s := NewGraphMemoryStorage()

	p1 := common.Podcast{UserID: "u1", VideoID: "dQw4w9WgXcQ", Title: "First"}
	p2 := common.Podcast{UserID: "u1", VideoID: "9bZkp7q19f0", Title: "Second"}
	for _, p := range []*common.Podcast{&p1, &p2} {
		if err := s.CreatePodcast(ctx, p); err != nil {
			t.Fatalf("CreatePodcast() error = %v", err)
		}
	}
	dup := common.Podcast{UserID: "u1", VideoID: "dQw4w9WgXcQ"}
	if err := s.CreatePodcast(ctx, &dup); err == nil {
		t.Fatalf("CreatePodcast() expected error for duplicate video")
	}

	list, _ := s.ListPodcasts(ctx, "u1")
	if len(list) != 2 || list[0].ID != p2.ID {
		t.Fatalf("ListPodcasts() = %+v, want newest first", list)
	}

	found, err := s.FindPodcastByVideo(ctx, "u1", "dQw4w9WgXcQ")
	if err != nil || found.ID != p1.ID {
		t.Fatalf("FindPodcastByVideo() = %+v, %v", found, err)
	}
	if _, err := s.FindPodcastByVideo(ctx, "u2", "dQw4w9WgXcQ"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("FindPodcastByVideo() other user error = %v", err)
	}

	if err := s.MarkGraphExists(ctx, p1.ID); err != nil {
		t.Fatalf("MarkGraphExists() error = %v", err)
	}
	got, _ := s.GetPodcast(ctx, p1.ID)
	if !got.GraphExists {
		t.Fatalf("GetPodcast() graph_exists = false after MarkGraphExists")
	}
}
