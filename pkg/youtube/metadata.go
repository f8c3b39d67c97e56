package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Metadata is the part of the oEmbed response stored with a podcast.
type Metadata struct {
	Title        string `json:"title"`
	ChannelName  string `json:"author_name"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// FetchMetadata looks the video up through the oEmbed endpoint. Private or
// removed videos return a 4xx which surfaces as an error.
func (c *Client) FetchMetadata(ctx context.Context, youtubeURL string) (Metadata, error) {
	endpoint := fmt.Sprintf("%s/oembed?url=%s&format=json", c.baseURL, url.QueryEscape(youtubeURL))
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to fetch video metadata: %w", err)
	}

	var meta Metadata
	if err := json.Unmarshal(body, &meta); err != nil {
		return Metadata{}, fmt.Errorf("failed to decode video metadata: %w", err)
	}
	meta.Title = strings.TrimSpace(meta.Title)
	meta.ChannelName = strings.TrimSpace(meta.ChannelName)
	return meta, nil
}
