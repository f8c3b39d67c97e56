package util

import (
	"github.com/podgraph/backend/pkg/ai"
	oai "github.com/podgraph/backend/pkg/ai/ollama"
	gai "github.com/podgraph/backend/pkg/ai/openai"
)

// NewAIClient builds the model client selected by AI_ADAPTER.
func NewAIClient() (ai.GraphAIClient, error) {
	switch GetEnvString("AI_ADAPTER", "openai") {
	case "ollama":
		client, err := oai.NewGraphOllamaClient(oai.NewGraphOllamaClientParams{
			EmbeddingModel:  GetEnv("AI_EMBED_MODEL"),
			ChatModel:       GetEnv("AI_CHAT_MODEL"),
			ExtractionModel: GetEnv("AI_CHAT_EXTRACT_MODEL"),
			EmbeddingDim:    GetEnvInt("AI_EMBED_DIM", 768),

			BaseURL: GetEnv("AI_CHAT_URL"),
			ApiKey:  GetEnv("AI_CHAT_KEY"),

			MaxConcurrentRequests: int64(GetEnvNumeric("AI_PARALLEL_REQ", 15)),
			TimeoutMin:            GetEnvInt("AI_TIMEOUT_MIN", 10),
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return gai.NewGraphOpenAIClient(gai.NewGraphOpenAIClientParams{
			EmbeddingModel:  GetEnv("AI_EMBED_MODEL"),
			ChatModel:       GetEnv("AI_CHAT_MODEL"),
			ExtractionModel: GetEnv("AI_CHAT_EXTRACT_MODEL"),
			EmbeddingDim:    GetEnvInt("AI_EMBED_DIM", 768),

			EmbeddingURL: GetEnv("AI_EMBED_URL"),
			EmbeddingKey: GetEnv("AI_EMBED_KEY"),
			ChatURL:      GetEnv("AI_CHAT_URL"),
			ChatKey:      GetEnv("AI_CHAT_KEY"),

			MaxConcurrentRequests: int64(GetEnvNumeric("AI_PARALLEL_REQ", 15)),
			TimeoutMin:            GetEnvInt("AI_TIMEOUT_MIN", 10),
		}), nil
	}
}
