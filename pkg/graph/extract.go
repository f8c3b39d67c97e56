package graph

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/podgraph/backend/pkg/ai"
	"github.com/podgraph/backend/pkg/common"
	"github.com/podgraph/backend/pkg/logger"
)

// ExtractParams describes the episode handed to the extraction model.
// Captions is the JSON encoded caption list.
type ExtractParams struct {
	VideoID     string
	YoutubeURL  string
	Title       string
	ChannelName string
	Captions    string
}

type extractedIdeas struct {
	Ideas []common.TranscriptIdea `json:"ideas" jsonschema_description:"Atomic semantic ideas discussed in the episode"`
}

// ExtractIdeas asks the model to segment the captions into ideas.
// Ideas without a label or summary are dropped and impact scores are
// clamped to [0, 1]. A response without any usable idea is ErrNoIdeas.
func (g *GraphClient) ExtractIdeas(
	ctx context.Context,
	params ExtractParams,
	aiClient ai.GraphAIClient,
) (common.SegmentedTranscript, error) {
	if strings.TrimSpace(params.Captions) == "" {
		return common.SegmentedTranscript{}, fmt.Errorf("%w: captions", ErrMissingField)
	}

	prompt := fmt.Sprintf(
		ai.ExtractIdeasPrompt,
		params.YoutubeURL,
		params.Title,
		params.ChannelName,
		params.Captions,
	)

	var out extractedIdeas
	err := aiClient.GenerateCompletionWithFormat(
		ctx,
		"segmented_transcript",
		"Atomic ideas extracted from a podcast transcript",
		prompt,
		&out,
	)
	if err != nil {
		return common.SegmentedTranscript{}, upstreamError("failed to extract ideas", err)
	}

	ideas := sanitizeIdeas(out.Ideas)
	logger.Debug("[Graph] Ideas extracted", "video_id", params.VideoID, "returned", len(out.Ideas), "kept", len(ideas))
	if len(ideas) == 0 {
		return common.SegmentedTranscript{}, ErrNoIdeas
	}

	return common.SegmentedTranscript{VideoID: params.VideoID, Ideas: ideas}, nil
}

func sanitizeIdeas(in []common.TranscriptIdea) []common.TranscriptIdea {
	out := make([]common.TranscriptIdea, 0, len(in))
	for _, idea := range in {
		idea.Label = strings.TrimSpace(idea.Label)
		idea.Summary = strings.TrimSpace(idea.Summary)
		if idea.Label == "" || idea.Summary == "" {
			continue
		}
		if math.IsNaN(idea.ImpactScore) {
			idea.ImpactScore = 0
		}
		idea.ImpactScore = math.Min(1, math.Max(0, idea.ImpactScore))
		if idea.References == nil {
			idea.References = []common.Reference{}
		}
		out = append(out, idea)
	}
	return out
}
