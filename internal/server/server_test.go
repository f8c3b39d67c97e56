package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/podgraph/backend/internal/queue"
	mid "github.com/podgraph/backend/internal/server/middleware"
	"github.com/podgraph/backend/pkg/ai/aitest"
	"github.com/podgraph/backend/pkg/common"
	"github.com/podgraph/backend/pkg/graph"
	"github.com/podgraph/backend/pkg/store/memory"
	"github.com/podgraph/backend/pkg/youtube"

	"github.com/golang-jwt/jwt/v5"
)

const (
	testVideoURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"
	masterKey    = "master-secret"
	jwtSecret    = "jwt-secret"
)

type fakePublisher struct {
	mu   sync.Mutex
	msgs []queue.IngestMsg
	err  error
}

func (p *fakePublisher) PublishIngest(ctx context.Context, msg queue.IngestMsg) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

type testServer struct {
	store     *memory.GraphMemoryStorage
	publisher *fakePublisher
	ai        *aitest.FakeClient
	handler   http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/oembed", func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Query().Get("url"), "dQw4w9WgXcQ") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"title":         "Sleep Episode",
			"author_name":   "Huberman Lab",
			"thumbnail_url": "https://i.ytimg.com/vi/dQw4w9WgXcQ/hqdefault.jpg",
		})
	})
	yt := httptest.NewServer(mux)
	t.Cleanup(yt.Close)

	g, err := graph.NewGraphClient(graph.NewGraphClientParams{})
	if err != nil {
		t.Fatalf("NewGraphClient() error = %v", err)
	}

	s := memory.NewGraphMemoryStorage()
	p := &fakePublisher{}
	aiClient := &aitest.FakeClient{DefaultEmbedding: []float32{1, 0}}
	app := &mid.App{
		Store:        s,
		Publisher:    p,
		AiClient:     aiClient,
		Graph:        g,
		YouTube:      youtube.NewClient(youtube.WithBaseURL(yt.URL), youtube.WithRetry(1, 0)),
		MasterAPIKey: masterKey,
		MasterUserID: "u1",
		DemoUserID:   "demo",
		Keyfunc: func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(jwtSecret), nil
		},
	}

	return &testServer{store: s, publisher: p, ai: aiClient, handler: New(app)}
}

func (ts *testServer) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return token
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("json.Unmarshal(%s) error = %v", rec.Body.String(), err)
	}
	return out
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	if rec := ts.do(t, http.MethodGet, "/health", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", rec.Code)
	}
}

func TestAuthentication(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name    string
		method  string
		path    string
		body    string
		headers map[string]string
		want    int
	}{
		{"no header", http.MethodGet, "/api/podcasts", "", nil, http.StatusUnauthorized},
		{"not bearer", http.MethodGet, "/api/podcasts", "", map[string]string{"Authorization": "Basic abc"}, http.StatusUnauthorized},
		{"bad token", http.MethodGet, "/api/podcasts", "", bearer("garbage"), http.StatusUnauthorized},
		{"master key", http.MethodGet, "/api/podcasts", "", bearer(masterKey), http.StatusOK},
		{"jwt", http.MethodGet, "/api/podcasts", "", bearer(signToken(t, jwt.MapClaims{"sub": "u2"})), http.StatusOK},
		{"demo read", http.MethodGet, "/api/graph", "", map[string]string{"X-Demo": "true"}, http.StatusOK},
		{"demo write", http.MethodPost, "/api/podcasts", `{"youtube_url":"` + testVideoURL + `"}`, map[string]string{"X-Demo": "true"}, http.StatusForbidden},
		{
			"missing permission",
			http.MethodPost, "/api/podcasts", `{"youtube_url":"` + testVideoURL + `"}`,
			bearer(signToken(t, jwt.MapClaims{"id": "u2", "permissions": []string{"podcast.view"}})),
			http.StatusForbidden,
		},
		{
			"empty permissions",
			http.MethodPost, "/api/podcasts", `{"youtube_url":"` + testVideoURL + `"}`,
			bearer(signToken(t, jwt.MapClaims{"id": "u9", "permissions": []string{}})),
			http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, tt.method, tt.path, tt.body, tt.headers)
			if rec.Code != tt.want {
				t.Fatalf("%s %s = %d, want %d: %s", tt.method, tt.path, rec.Code, tt.want, rec.Body.String())
			}
		})
	}

	rec := ts.do(t, http.MethodPost, "/api/podcasts", `{"youtube_url":"`+testVideoURL+`"}`, map[string]string{"X-Demo": "true"})
	if got := decode[map[string]string](t, rec)["error"]; got != "Demo mode is read-only" {
		t.Fatalf("demo error = %q", got)
	}
}

func TestCreatePodcast(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	rec := ts.do(t, http.MethodPost, "/api/podcasts", `{"youtube_url":"`+testVideoURL+`"}`, bearer(masterKey))
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /api/podcasts = %d: %s", rec.Code, rec.Body.String())
	}
	job := decode[common.IngestionJob](t, rec)
	if job.Status != common.JobStatusPending || job.UserID != "u1" {
		t.Fatalf("job = %+v", job)
	}
	if len(ts.publisher.msgs) != 1 || ts.publisher.msgs[0].JobID != job.ID {
		t.Fatalf("published = %+v", ts.publisher.msgs)
	}

	podcast, err := ts.store.FindPodcastByVideo(ctx, "u1", "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("FindPodcastByVideo() error = %v", err)
	}
	if podcast.Title != "Sleep Episode" || podcast.ChannelName != "Huberman Lab" {
		t.Fatalf("podcast = %+v", podcast)
	}

	// Requeueing a podcast without a graph reuses the podcast row.
	rec = ts.do(t, http.MethodPost, "/api/podcasts", `{"youtube_url":"https://youtu.be/dQw4w9WgXcQ"}`, bearer(masterKey))
	if rec.Code != http.StatusCreated {
		t.Fatalf("second POST /api/podcasts = %d: %s", rec.Code, rec.Body.String())
	}
	if second := decode[common.IngestionJob](t, rec); second.PodcastID != podcast.ID {
		t.Fatalf("second job podcast = %s, want %s", second.PodcastID, podcast.ID)
	}

	if err := ts.store.MarkGraphExists(ctx, podcast.ID); err != nil {
		t.Fatalf("MarkGraphExists() error = %v", err)
	}
	rec = ts.do(t, http.MethodPost, "/api/podcasts", `{"youtube_url":"`+testVideoURL+`"}`, bearer(masterKey))
	if rec.Code != http.StatusConflict {
		t.Fatalf("POST existing graph = %d, want 409", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, "/api/podcasts", "", bearer(masterKey))
	if podcasts := decode[[]common.Podcast](t, rec); len(podcasts) != 1 {
		t.Fatalf("GET /api/podcasts = %+v", podcasts)
	}
}

func TestCreatePodcastErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		publishErr error
		want       int
	}{
		{"missing url", `{}`, nil, http.StatusBadRequest},
		{"invalid url", `{"youtube_url":"https://example.com/video"}`, nil, http.StatusBadRequest},
		{"unknown video", `{"youtube_url":"https://youtu.be/aaaaaaaaaaa"}`, nil, http.StatusBadGateway},
		{"publish failure", `{"youtube_url":"` + testVideoURL + `"}`, errors.New("broker down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.publisher.err = tt.publishErr
			rec := ts.do(t, http.MethodPost, "/api/podcasts", tt.body, bearer(masterKey))
			if rec.Code != tt.want {
				t.Fatalf("POST /api/podcasts = %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestCreatePodcastPublishFailureMarksJobFailed(t *testing.T) {
	ts := newTestServer(t)
	ts.publisher.err = errors.New("broker down")

	ts.do(t, http.MethodPost, "/api/podcasts", `{"youtube_url":"`+testVideoURL+`"}`, bearer(masterKey))

	if len(ts.publisher.msgs) != 1 {
		t.Fatalf("published = %+v", ts.publisher.msgs)
	}
	job, err := ts.store.GetJob(context.Background(), ts.publisher.msgs[0].JobID)
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if job.Status != common.JobStatusFailed || job.ErrorMessage == nil {
		t.Fatalf("job = %+v", job)
	}
}

func TestGetJob(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	job := common.IngestionJob{PodcastID: "p1", UserID: "u1"}
	if err := ts.store.CreateJob(ctx, &job); err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}

	rec := ts.do(t, http.MethodGet, "/api/jobs/"+job.ID, "", bearer(masterKey))
	if rec.Code != http.StatusOK || decode[common.IngestionJob](t, rec).ID != job.ID {
		t.Fatalf("GET own job = %d: %s", rec.Code, rec.Body.String())
	}

	other := bearer(signToken(t, jwt.MapClaims{"sub": "u2"}))
	if rec := ts.do(t, http.MethodGet, "/api/jobs/"+job.ID, "", other); rec.Code != http.StatusForbidden {
		t.Fatalf("GET foreign job = %d, want 403", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/api/jobs/missing", "", bearer(masterKey)); rec.Code != http.StatusNotFound {
		t.Fatalf("GET missing job = %d, want 404", rec.Code)
	}
}

func seedGraph(t *testing.T, s *memory.GraphMemoryStorage) common.Speaker {
	t.Helper()
	ctx := context.Background()

	speaker := common.Speaker{UserID: "u1", Name: "Andrew Huberman", NormalizedName: "andrew huberman"}
	if err := s.CreateSpeaker(ctx, &speaker); err != nil {
		t.Fatalf("CreateSpeaker() error = %v", err)
	}
	nodes := []common.GraphNode{
		{ID: "n1", UserID: "u1", PrimarySpeakerID: speaker.ID, Label: "Sleep", Summary: "Sleep matters", Embedding: []float32{1, 0}, ImpactScore: 0.9},
		{ID: "n2", UserID: "u1", PrimarySpeakerID: speaker.ID, Label: "Light", Summary: "Get light", Embedding: []float32{1, 0.2}, ImpactScore: 0.5},
		{ID: "n3", UserID: "u2", PrimarySpeakerID: "other", Label: "Foreign", Summary: "Not yours", Embedding: []float32{1, 0}},
	}
	for i := range nodes {
		if err := s.CreateNode(ctx, &nodes[i]); err != nil {
			t.Fatalf("CreateNode() error = %v", err)
		}
	}
	if err := s.CreateEdges(ctx, []common.GraphEdge{{ID: "e1", UserID: "u1", SourceNodeID: "n2", TargetNodeID: "n1", Weight: 0.9}}); err != nil {
		t.Fatalf("CreateEdges() error = %v", err)
	}
	return speaker
}

func TestGraphRoutes(t *testing.T) {
	ts := newTestServer(t)
	speaker := seedGraph(t, ts.store)
	auth := bearer(masterKey)

	rec := ts.do(t, http.MethodGet, "/api/graph", "", auth)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/graph = %d: %s", rec.Code, rec.Body.String())
	}
	body := decode[map[string]json.RawMessage](t, rec)
	if _, ok := body["graph_with_granularity"]; !ok {
		t.Fatalf("GET /api/graph body = %s", rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "Foreign") {
		t.Fatalf("graph leaks another user's node")
	}

	rec = ts.do(t, http.MethodPatch, "/api/graph/nodes/n1/bookmark", `{"is_bookmarked":true}`, auth)
	if rec.Code != http.StatusOK {
		t.Fatalf("PATCH bookmark = %d: %s", rec.Code, rec.Body.String())
	}
	rec = ts.do(t, http.MethodGet, "/api/graph/bookmarks", "", auth)
	if nodes := decode[[]common.GraphNode](t, rec); len(nodes) != 1 || nodes[0].ID != "n1" {
		t.Fatalf("GET bookmarks = %+v", nodes)
	}

	bookmarkTests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"missing flag", "/api/graph/nodes/n1/bookmark", `{}`, http.StatusBadRequest},
		{"unknown node", "/api/graph/nodes/nope/bookmark", `{"is_bookmarked":true}`, http.StatusNotFound},
		{"foreign node", "/api/graph/nodes/n3/bookmark", `{"is_bookmarked":true}`, http.StatusForbidden},
	}
	for _, tt := range bookmarkTests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := ts.do(t, http.MethodPatch, tt.path, tt.body, auth); rec.Code != tt.want {
				t.Fatalf("PATCH %s = %d, want %d", tt.path, rec.Code, tt.want)
			}
		})
	}

	rec = ts.do(t, http.MethodGet, "/api/speakers", "", auth)
	if speakers := decode[[]common.Speaker](t, rec); len(speakers) != 1 || speakers[0].ID != speaker.ID {
		t.Fatalf("GET /api/speakers = %+v", speakers)
	}
}

func TestAskRoute(t *testing.T) {
	ts := newTestServer(t)
	speaker := seedGraph(t, ts.store)
	ts.ai.Completion = "[Andrew Huberman] Sleep comes first."

	body := `{"question":"Why sleep?","speaker_id":"` + speaker.ID + `","speaker_name":"Andrew Huberman"}`
	rec := ts.do(t, http.MethodPost, "/api/ask", body, bearer(masterKey))
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /api/ask = %d: %s", rec.Code, rec.Body.String())
	}
	answer := decode[graph.Answer](t, rec)
	if answer.Text != "[Andrew Huberman] Sleep comes first." || len(answer.Context) == 0 {
		t.Fatalf("answer = %+v", answer)
	}

	rec = ts.do(t, http.MethodPost, "/api/ask", `{"question":"Why sleep?"}`, bearer(masterKey))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("POST /api/ask without speaker = %d, want 400", rec.Code)
	}

	ts.ai.CompletionErr = errors.New("model down")
	rec = ts.do(t, http.MethodPost, "/api/ask", body, bearer(masterKey))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("POST /api/ask with failing model = %d, want 502", rec.Code)
	}
}

func TestCoachRoutes(t *testing.T) {
	ts := newTestServer(t)
	ts.ai.Structured = aitest.MustJSON(map[string]any{"goals": []string{"Sleep eight hours"}})

	rec := ts.do(t, http.MethodPost, "/api/goals/rephrase", `{"prompt":"sleep more"}`, map[string]string{"X-Demo": "true"})
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /api/goals/rephrase = %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Sleep eight hours") {
		t.Fatalf("rephrase body = %s", rec.Body.String())
	}

	rec = ts.do(t, http.MethodPost, "/api/routine", `{}`, bearer(masterKey))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("POST /api/routine without prompt = %d, want 400", rec.Code)
	}
}
