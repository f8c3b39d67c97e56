package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"math"
	"strconv"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Caption is one timed line of a caption track. Start and End are seconds.
type Caption struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
}

var captionTracksMarker = []byte(`"captionTracks":`)

type timedText struct {
	Texts []struct {
		Start string `xml:"start,attr"`
		Dur   string `xml:"dur,attr"`
		Body  string `xml:",chardata"`
	} `xml:"text"`
}

// FetchCaptions downloads the caption track of a video. A manual track in
// lang is preferred over an auto-generated one; without a track in lang the
// first listed track is used.
func (c *Client) FetchCaptions(ctx context.Context, videoID, lang string) ([]Caption, error) {
	page, err := c.get(ctx, fmt.Sprintf("%s/watch?v=%s", c.baseURL, videoID))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch watch page: %w", err)
	}

	tracks, err := parseCaptionTracks(page)
	if err != nil {
		return nil, err
	}
	track := pickTrack(tracks, lang)

	trackURL := track.BaseURL
	if strings.HasPrefix(trackURL, "/") {
		trackURL = c.baseURL + trackURL
	}
	body, err := c.get(ctx, trackURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch caption track: %w", err)
	}

	captions, err := parseTimedText(body)
	if err != nil {
		return nil, err
	}
	if len(captions) == 0 {
		return nil, fmt.Errorf("%w: video %s", ErrNoCaptions, videoID)
	}
	return captions, nil
}

func parseCaptionTracks(page []byte) ([]captionTrack, error) {
	idx := bytes.Index(page, captionTracksMarker)
	if idx < 0 {
		return nil, ErrNoCaptions
	}
	// the decoder stops after the array, the rest of the player response is ignored
	var tracks []captionTrack
	dec := json.NewDecoder(bytes.NewReader(page[idx+len(captionTracksMarker):]))
	if err := dec.Decode(&tracks); err != nil {
		return nil, fmt.Errorf("failed to decode caption tracks: %w", err)
	}
	out := tracks[:0]
	for _, t := range tracks {
		if t.BaseURL != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoCaptions
	}
	return out, nil
}

func pickTrack(tracks []captionTrack, lang string) captionTrack {
	var auto *captionTrack
	for i, t := range tracks {
		if !strings.EqualFold(t.LanguageCode, lang) {
			continue
		}
		if t.Kind != "asr" {
			return t
		}
		if auto == nil {
			auto = &tracks[i]
		}
	}
	if auto != nil {
		return *auto
	}
	return tracks[0]
}

func parseTimedText(data []byte) ([]Caption, error) {
	var doc timedText
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode caption track: %w", err)
	}

	captions := make([]Caption, 0, len(doc.Texts))
	for _, t := range doc.Texts {
		text := strings.Join(strings.Fields(html.UnescapeString(t.Body)), " ")
		if text == "" {
			continue
		}
		start, err := strconv.ParseFloat(t.Start, 64)
		if err != nil {
			continue
		}
		dur, _ := strconv.ParseFloat(t.Dur, 64)
		captions = append(captions, Caption{
			Text:  text,
			Start: round(start),
			End:   round(start + dur),
		})
	}
	return captions, nil
}

func round(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// CaptionsJSON serialises the captions for the extraction prompt. With a
// positive maxTokens, trailing captions are dropped until the JSON fits
// the budget under the o200k_base encoding.
func CaptionsJSON(captions []Caption, maxTokens int) (string, error) {
	b, err := json.Marshal(captions)
	if err != nil {
		return "", err
	}
	if maxTokens <= 0 {
		return string(b), nil
	}

	enc, err := tiktoken.GetEncoding("o200k_base")
	if err != nil {
		return "", fmt.Errorf("failed to load tokenizer: %w", err)
	}

	tokens := len(enc.Encode(string(b), nil, nil))
	if tokens <= maxTokens {
		return string(b), nil
	}

	// Binary search for the longest prefix that fits.
	lo, hi := 0, len(captions)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		pb, err := json.Marshal(captions[:mid])
		if err != nil {
			return "", err
		}
		if len(enc.Encode(string(pb), nil, nil)) <= maxTokens {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	pb, err := json.Marshal(captions[:lo])
	if err != nil {
		return "", err
	}
	return string(pb), nil
}
