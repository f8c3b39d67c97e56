package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/podgraph/backend/pkg/ai"
	"github.com/podgraph/backend/pkg/common"
	"github.com/podgraph/backend/pkg/logger"
	"github.com/podgraph/backend/pkg/store"
)

// AskParams is a question to one speaker of the user's graph.
type AskParams struct {
	UserID      string
	SpeakerID   string
	SpeakerName string
	Question    string
}

// Answer is the reply to a question. Context holds the ideas the reply was
// grounded on and is empty when there was not enough context.
type Answer struct {
	Text    string             `json:"answer"`
	Context []common.GraphNode `json:"context"`
}

type contextEntry struct {
	Label      string   `json:"label"`
	Summary    string   `json:"summary"`
	References []string `json:"references"`
	VideoID    string   `json:"videoId"`
}

// Ask answers a question in the voice of a speaker using the speaker's
// closest ideas. When no idea is close enough the canned
// ai.InsufficientContextReply is returned without calling the model.
func (g *GraphClient) Ask(
	ctx context.Context,
	params AskParams,
	aiClient ai.GraphAIClient,
	storeClient store.NodeStorage,
) (Answer, error) {
	switch {
	case params.UserID == "":
		return Answer{}, fmt.Errorf("%w: user id", ErrMissingField)
	case strings.TrimSpace(params.Question) == "":
		return Answer{}, fmt.Errorf("%w: question", ErrMissingField)
	case params.SpeakerID == "":
		return Answer{}, fmt.Errorf("%w: speaker id", ErrMissingField)
	case strings.TrimSpace(params.SpeakerName) == "":
		return Answer{}, fmt.Errorf("%w: speaker name", ErrMissingField)
	}

	questionEmbedding, err := aiClient.GenerateEmbedding(ctx, []byte(params.Question))
	if err != nil {
		return Answer{}, upstreamError("failed to embed question", err)
	}

	candidates, err := storeClient.ListNodesBySpeaker(ctx, params.UserID, params.SpeakerID)
	if err != nil {
		return Answer{}, fmt.Errorf("failed to load speaker nodes: %w", err)
	}

	nodes, err := RetrieveContext(questionEmbedding, candidates)
	if errors.Is(err, ErrInsufficientContext) {
		logger.Debug("[Graph] Not enough context", "speaker_id", params.SpeakerID, "candidates", len(candidates))
		return Answer{
			Text:    fmt.Sprintf(ai.InsufficientContextReply, params.SpeakerName),
			Context: []common.GraphNode{},
		}, nil
	}
	if err != nil {
		return Answer{}, err
	}

	contextText, err := BuildAnswerContext(nodes)
	if err != nil {
		return Answer{}, err
	}
	prompt := fmt.Sprintf(ai.AnswerPrompt, params.SpeakerName, params.Question, contextText)

	text, err := aiClient.GenerateCompletion(ctx, prompt, ai.WithSystemPrompts(ai.AnswerSystemPrompt))
	if err != nil {
		return Answer{}, upstreamError("failed to generate answer", err)
	}

	return Answer{Text: strings.TrimSpace(text), Context: nodes}, nil
}

// BuildAnswerContext renders the retrieved ideas as the indented JSON list
// embedded in the answer prompt.
func BuildAnswerContext(nodes []common.GraphNode) (string, error) {
	entries := make([]contextEntry, 0, len(nodes))
	for _, n := range nodes {
		refs := make([]string, 0, len(n.References))
		for _, r := range n.References {
			b, err := json.Marshal(r)
			if err != nil {
				return "", err
			}
			refs = append(refs, string(b))
		}
		entries = append(entries, contextEntry{
			Label:      n.Label,
			Summary:    n.Summary,
			References: refs,
			VideoID:    n.VideoID,
		})
	}
	b, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
