package providers

import (
	"fmt"
	"strings"
)

// NewEmbedding builds the embedding backend named in configuration.
func NewEmbedding(name string, dim int) (EmbeddingProvider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mock", "":
		return NewMockProvider(dim), nil
	case "openai":
		return NewOpenAIProvider(), nil
	case "ollama":
		return NewOllamaEmbeddingProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", name)
	}
}

// NewLLM builds the generation backend named in configuration.
func NewLLM(name string, dim int) (LLMProvider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mock", "":
		return NewMockProvider(dim), nil
	case "openai":
		return NewOpenAIProvider(), nil
	case "groq":
		return NewGroqProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", name)
	}
}
