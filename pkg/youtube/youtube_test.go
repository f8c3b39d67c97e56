package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestExtractVideoID(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{name: "watch", url: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{name: "watch with params", url: "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42s", want: "dQw4w9WgXcQ"},
		{name: "second param", url: "https://www.youtube.com/watch?feature=share&v=dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{name: "short", url: "https://youtu.be/dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{name: "short with query", url: "https://youtu.be/dQw4w9WgXcQ?si=abc", want: "dQw4w9WgXcQ"},
		{name: "embed", url: "https://www.youtube.com/embed/dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{name: "v path", url: "https://www.youtube.com/v/dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{name: "too short", url: "https://youtu.be/abc", wantErr: true},
		{name: "too long", url: "https://youtu.be/dQw4w9WgXcQX", wantErr: true},
		{name: "not youtube", url: "https://example.com/video", wantErr: true},
		{name: "empty", url: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractVideoID(tt.url)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidURL) {
					t.Fatalf("ExtractVideoID(%q) error = %v, want ErrInvalidURL", tt.url, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractVideoID(%q) error = %v", tt.url, err)
			}
			if got != tt.want {
				t.Fatalf("ExtractVideoID(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

const watchPage = `<html><script>var ytInitialPlayerResponse = {"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[` +
	`{"baseUrl":"/api/timedtext?v=dQw4w9WgXcQ&lang=en&kind=asr","name":{"runs":[{"text":"English (auto)"}]},"languageCode":"en","kind":"asr"},` +
	`{"baseUrl":"/api/timedtext?v=dQw4w9WgXcQ&lang=en","name":{"runs":[{"text":"English"}]},"languageCode":"en"}` +
	`],"audioTracks":[]}}};</script></html>`

const timedTextXML = `<?xml version="1.0" encoding="utf-8" ?><transcript>` +
	`<text start="0.5" dur="2.25">Welcome back to the show</text>` +
	`<text start="2.75" dur="3">today we talk about &amp;#39;sleep&amp;#39;</text>` +
	`<text start="6" dur="1">   </text>` +
	`</transcript>`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oembed", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("format") != "json" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if !strings.Contains(r.URL.Query().Get("url"), "dQw4w9WgXcQ") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"title":         " Sleep Episode ",
			"author_name":   "Huberman Lab",
			"thumbnail_url": "https://i.ytimg.com/vi/dQw4w9WgXcQ/hqdefault.jpg",
		})
	})
	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("v") != "dQw4w9WgXcQ" {
			_, _ = w.Write([]byte("<html>no captions</html>"))
			return
		}
		_, _ = w.Write([]byte(watchPage))
	})
	mux.HandleFunc("/api/timedtext", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("kind") == "asr" {
			_, _ = w.Write([]byte(`<transcript><text start="0" dur="1">auto</text></transcript>`))
			return
		}
		_, _ = w.Write([]byte(timedTextXML))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchMetadata(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(WithBaseURL(srv.URL), WithRetry(1, 0))

	meta, err := c.FetchMetadata(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("FetchMetadata() error = %v", err)
	}
	if meta.Title != "Sleep Episode" || meta.ChannelName != "Huberman Lab" || meta.ThumbnailURL == "" {
		t.Fatalf("FetchMetadata() = %+v", meta)
	}

	if _, err := c.FetchMetadata(context.Background(), "https://www.youtube.com/watch?v=aaaaaaaaaaa"); err == nil {
		t.Fatalf("FetchMetadata() expected error for unknown video")
	}
}

func TestFetchCaptions(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(WithBaseURL(srv.URL), WithRetry(1, 0))

	captions, err := c.FetchCaptions(context.Background(), "dQw4w9WgXcQ", "en")
	if err != nil {
		t.Fatalf("FetchCaptions() error = %v", err)
	}
	want := []Caption{
		{Text: "Welcome back to the show", Start: 0.5, End: 2.75},
		{Text: "today we talk about 'sleep'", Start: 2.75, End: 5.75},
	}
	if len(captions) != len(want) {
		t.Fatalf("FetchCaptions() = %+v, want %+v", captions, want)
	}
	for i := range want {
		if captions[i] != want[i] {
			t.Fatalf("FetchCaptions()[%d] = %+v, want %+v", i, captions[i], want[i])
		}
	}

	if _, err := c.FetchCaptions(context.Background(), "bbbbbbbbbbb", "en"); !errors.Is(err, ErrNoCaptions) {
		t.Fatalf("FetchCaptions() without tracks error = %v, want ErrNoCaptions", err)
	}
}

func TestPickTrack(t *testing.T) {
	tracks := []captionTrack{
		{BaseURL: "de", LanguageCode: "de"},
		{BaseURL: "en-asr", LanguageCode: "en", Kind: "asr"},
	}
	if got := pickTrack(tracks, "en"); got.BaseURL != "en-asr" {
		t.Fatalf("pickTrack(en) = %s, want en-asr", got.BaseURL)
	}
	if got := pickTrack(tracks, "fr"); got.BaseURL != "de" {
		t.Fatalf("pickTrack(fr) = %s, want first track", got.BaseURL)
	}
}

func TestUnavailableUpstream(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRetry(2, 0))
	_, err := c.FetchMetadata(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("FetchMetadata() error = %v, want ErrUnavailable", err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("calls = %d, want 2 retries", got)
	}
}

func TestCaptionsJSON(t *testing.T) {
	got, err := CaptionsJSON([]Caption{{Text: "hi", Start: 1, End: 2.5}}, 0)
	if err != nil {
		t.Fatalf("CaptionsJSON() error = %v", err)
	}
	if got != `[{"text":"hi","start":1,"end":2.5}]` {
		t.Fatalf("CaptionsJSON() = %s", got)
	}
}
