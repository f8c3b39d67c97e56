package pgx

import (
	"context"
	"fmt"

	"github.com/podgraph/backend/internal/util"
	"github.com/podgraph/backend/pkg/common"
	"github.com/podgraph/backend/pkg/store"
)

const speakerColumns = `id, user_id, name, normalized_name, detected_count, created_at, updated_at`

func (s *GraphDBStorage) GetSpeakerByNormalizedName(ctx context.Context, userID, normalizedName string) (common.Speaker, error) {
	var sp common.Speaker
	err := s.conn.QueryRow(ctx, `
		SELECT `+speakerColumns+` FROM speakers
		WHERE user_id = $1 AND normalized_name = $2
	`, userID, normalizedName).Scan(
		&sp.ID, &sp.UserID, &sp.Name, &sp.NormalizedName, &sp.DetectedCount, &sp.CreatedAt, &sp.UpdatedAt,
	)
	if err != nil {
		return common.Speaker{}, notFound(err)
	}
	return sp, nil
}

func (s *GraphDBStorage) CreateSpeaker(ctx context.Context, speaker *common.Speaker) error {
	if speaker == nil || speaker.UserID == "" || speaker.NormalizedName == "" {
		return fmt.Errorf("invalid speaker")
	}
	if speaker.ID == "" {
		id, err := store.NewID()
		if err != nil {
			return err
		}
		speaker.ID = id
	}

	return s.conn.QueryRow(ctx, `
		INSERT INTO speakers (id, user_id, name, normalized_name, detected_count)
		VALUES ($1, $2, $3, $4, 1)
		ON CONFLICT (user_id, normalized_name)
		DO UPDATE SET detected_count = speakers.detected_count + 1, updated_at = NOW()
		RETURNING `+speakerColumns,
		speaker.ID, speaker.UserID, util.SanitizePostgresText(speaker.Name), speaker.NormalizedName,
	).Scan(
		&speaker.ID, &speaker.UserID, &speaker.Name, &speaker.NormalizedName,
		&speaker.DetectedCount, &speaker.CreatedAt, &speaker.UpdatedAt,
	)
}

func (s *GraphDBStorage) IncrementSpeakerCount(ctx context.Context, userID, speakerID string) error {
	var owner string
	err := s.conn.QueryRow(ctx, `
		UPDATE speakers
		SET detected_count = CASE WHEN user_id = $2 THEN detected_count + 1 ELSE detected_count END,
			updated_at = CASE WHEN user_id = $2 THEN NOW() ELSE updated_at END
		WHERE id = $1
		RETURNING user_id
	`, speakerID, userID).Scan(&owner)
	if err != nil {
		return notFound(err)
	}
	if owner != userID {
		return store.ErrOwnership
	}
	return nil
}

func (s *GraphDBStorage) ListSpeakers(ctx context.Context, userID string) ([]common.Speaker, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT `+speakerColumns+` FROM speakers
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	speakers := make([]common.Speaker, 0)
	for rows.Next() {
		var sp common.Speaker
		if err := rows.Scan(
			&sp.ID, &sp.UserID, &sp.Name, &sp.NormalizedName, &sp.DetectedCount, &sp.CreatedAt, &sp.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan speaker row: %w", err)
		}
		speakers = append(speakers, sp)
	}
	return speakers, rows.Err()
}
