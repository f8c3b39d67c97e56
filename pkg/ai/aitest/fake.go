// Package aitest provides a scripted ai.GraphAIClient for tests.
package aitest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/podgraph/backend/pkg/ai"
)

// FakeClient answers embeddings from a lookup table and completions from
// fixed strings. It records every prompt it receives.
type FakeClient struct {
	mu sync.Mutex

	// Embeddings maps an input text to its vector. Unknown inputs get
	// DefaultEmbedding.
	Embeddings       map[string][]float32
	DefaultEmbedding []float32
	// Completion is returned by GenerateCompletion.
	Completion string
	// Structured is the JSON decoded into out by GenerateCompletionWithFormat.
	Structured string

	EmbedErr      error
	CompletionErr error

	Prompts        []string
	SystemPrompts  [][]string
	EmbeddingCalls int
}

var ErrNoStructured = errors.New("aitest: no structured response configured")

func (f *FakeClient) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	options := &ai.GenerateOptions{}
	for _, opt := range opts {
		opt(options)
	}
	f.Prompts = append(f.Prompts, prompt)
	f.SystemPrompts = append(f.SystemPrompts, options.SystemPrompts)
	if f.CompletionErr != nil {
		return "", f.CompletionErr
	}
	return f.Completion, nil
}

func (f *FakeClient) GenerateCompletionWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...ai.GenerateOption,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Prompts = append(f.Prompts, prompt)
	if f.CompletionErr != nil {
		return f.CompletionErr
	}
	if f.Structured == "" {
		return ErrNoStructured
	}
	return ai.UnmarshalFlexible(f.Structured, out)
}

func (f *FakeClient) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.EmbeddingCalls++
	return f.lookup(string(input))
}

func (f *FakeClient) GenerateEmbeddings(ctx context.Context, inputs [][]byte) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.EmbeddingCalls++
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		v, err := f.lookup(string(in))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *FakeClient) lookup(text string) ([]float32, error) {
	if f.EmbedErr != nil {
		return nil, f.EmbedErr
	}
	if v, ok := f.Embeddings[text]; ok {
		return append([]float32(nil), v...), nil
	}
	return append([]float32(nil), f.DefaultEmbedding...), nil
}

func (f *FakeClient) LoadModel(ctx context.Context, opts ...ai.GenerateOption) error { return nil }
func (f *FakeClient) ResetMetrics()                                                  {}
func (f *FakeClient) GetMetrics() ai.ModelMetrics                                    { return ai.ModelMetrics{} }

// MustJSON encodes v for use as FakeClient.Structured.
func MustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

var _ ai.GraphAIClient = (*FakeClient)(nil)
