package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/podgraph/backend/pkg/common"
	"github.com/podgraph/backend/pkg/logger"
	"github.com/podgraph/backend/pkg/store"
)

// NormalizeSpeakerName lowercases name and removes all whitespace, so that
// "Andrew Huberman", "andrew huberman" and "AndrewHuberman" share one key.
func NormalizeSpeakerName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// SpeakerResolver maps raw speaker names to deduplicated speaker records.
type SpeakerResolver struct {
	store store.SpeakerStorage
	newID func() (string, error)
}

func NewSpeakerResolver(s store.SpeakerStorage) *SpeakerResolver {
	return &SpeakerResolver{store: s, newID: store.NewID}
}

// Resolve returns the id of the user's speaker matching rawName. An existing
// speaker has its detected count incremented; otherwise a new speaker is
// created with a count of one.
func (r *SpeakerResolver) Resolve(ctx context.Context, userID, rawName string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: user id", ErrMissingField)
	}
	normalized := NormalizeSpeakerName(rawName)
	if normalized == "" {
		return "", fmt.Errorf("%w: speaker name", ErrMissingField)
	}

	existing, err := r.store.GetSpeakerByNormalizedName(ctx, userID, normalized)
	switch {
	case err == nil:
		if err := r.store.IncrementSpeakerCount(ctx, userID, existing.ID); err != nil {
			return "", fmt.Errorf("failed to update speaker %s: %w", existing.ID, err)
		}
		return existing.ID, nil
	case !errors.Is(err, store.ErrNotFound):
		return "", fmt.Errorf("failed to look up speaker: %w", err)
	}

	id, err := r.newID()
	if err != nil {
		return "", fmt.Errorf("failed to generate ID for speaker: %w", err)
	}
	speaker := common.Speaker{
		ID:             id,
		UserID:         userID,
		Name:           strings.TrimSpace(rawName),
		NormalizedName: normalized,
		DetectedCount:  1,
	}
	if err := r.store.CreateSpeaker(ctx, &speaker); err != nil {
		return "", fmt.Errorf("failed to create speaker: %w", err)
	}

	logger.Debug("[Graph] Speaker created", "speaker_id", speaker.ID, "name", speaker.Name)
	return speaker.ID, nil
}

// ResolveAll resolves every distinct raw name once and returns a map from
// raw name to speaker id.
func (r *SpeakerResolver) ResolveAll(ctx context.Context, userID string, rawNames []string) (map[string]string, error) {
	out := make(map[string]string, len(rawNames))
	for _, name := range store.DedupeStrings(rawNames) {
		id, err := r.Resolve(ctx, userID, name)
		if err != nil {
			return nil, fmt.Errorf("speaker %q: %w", name, err)
		}
		out[name] = id
	}
	return out, nil
}
