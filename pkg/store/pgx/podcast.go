package pgx

import (
	"context"
	"fmt"

	"github.com/podgraph/backend/internal/util"
	"github.com/podgraph/backend/pkg/common"
	"github.com/podgraph/backend/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

const podcastColumns = `id, user_id, youtube_url, video_id, title, channel_name, thumbnail_url, graph_exists, created_at`

func scanPodcast(row pgxv5.Row) (common.Podcast, error) {
	var p common.Podcast
	err := row.Scan(
		&p.ID, &p.UserID, &p.YoutubeURL, &p.VideoID, &p.Title, &p.ChannelName,
		&p.ThumbnailURL, &p.GraphExists, &p.CreatedAt,
	)
	return p, err
}

func (s *GraphDBStorage) CreatePodcast(ctx context.Context, podcast *common.Podcast) error {
	if podcast == nil || podcast.UserID == "" || podcast.VideoID == "" {
		return fmt.Errorf("invalid podcast")
	}
	if podcast.ID == "" {
		id, err := store.NewID()
		if err != nil {
			return err
		}
		podcast.ID = id
	}

	return s.conn.QueryRow(ctx, `
		INSERT INTO podcasts (id, user_id, youtube_url, video_id, title, channel_name, thumbnail_url, graph_exists)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`,
		podcast.ID,
		podcast.UserID,
		podcast.YoutubeURL,
		podcast.VideoID,
		util.SanitizePostgresText(podcast.Title),
		util.SanitizePostgresText(podcast.ChannelName),
		podcast.ThumbnailURL,
		podcast.GraphExists,
	).Scan(&podcast.CreatedAt)
}

func (s *GraphDBStorage) GetPodcast(ctx context.Context, podcastID string) (common.Podcast, error) {
	p, err := scanPodcast(s.conn.QueryRow(ctx,
		`SELECT `+podcastColumns+` FROM podcasts WHERE id = $1`, podcastID,
	))
	if err != nil {
		return common.Podcast{}, notFound(err)
	}
	return p, nil
}

func (s *GraphDBStorage) FindPodcastByVideo(ctx context.Context, userID, videoID string) (common.Podcast, error) {
	p, err := scanPodcast(s.conn.QueryRow(ctx,
		`SELECT `+podcastColumns+` FROM podcasts WHERE user_id = $1 AND video_id = $2`, userID, videoID,
	))
	if err != nil {
		return common.Podcast{}, notFound(err)
	}
	return p, nil
}

func (s *GraphDBStorage) ListPodcasts(ctx context.Context, userID string) ([]common.Podcast, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT `+podcastColumns+` FROM podcasts
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	podcasts := make([]common.Podcast, 0)
	for rows.Next() {
		p, err := scanPodcast(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan podcast row: %w", err)
		}
		podcasts = append(podcasts, p)
	}
	return podcasts, rows.Err()
}

func (s *GraphDBStorage) MarkGraphExists(ctx context.Context, podcastID string) error {
	tag, err := s.conn.Exec(ctx, `UPDATE podcasts SET graph_exists = TRUE WHERE id = $1`, podcastID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
