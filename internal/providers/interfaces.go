package providers

import "context"

type ProviderInfo struct {
	Name  string `json:"name"`
	Model string `json:"model"`
}

type GenerateRequest struct {
	Operation string   `json:"operation"`
	Prompt    string   `json:"prompt"`
	Context   []string `json:"context"`
	History   []Turn   `json:"history,omitempty"`
}

// Turn is one prior chat exchange passed to the generative model.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type GenerateResponse struct {
	Text string `json:"text"`
}

type EmbedRequest struct {
	Operation string   `json:"operation"`
	Inputs    []string `json:"inputs"`
	Dimension int      `json:"dimension"`
}

// LLMProvider turns a prompt plus retrieved context into answer text.
// One implementation exists per backend; the backend is chosen once at
// process configuration time.
type LLMProvider interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error)
}

// EmbeddingProvider converts a batch of texts into fixed-dimension
// vectors, same length and order as the inputs. Embedding is
// all-or-nothing per batch: a failed call yields no vectors at all.
type EmbeddingProvider interface {
	Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error)
}
