package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMockEmbedDeterministicAndOrdered(t *testing.T) {
	m := NewMockProvider(16)
	req := EmbedRequest{Inputs: []string{"first text", "second text"}, Dimension: 16}

	a, _, err := m.Embed(context.Background(), req)
	require.NoError(t, err)
	b, _, err := m.Embed(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, a, 2)
	require.Len(t, a[0], 16)
	require.Equal(t, a, b)
	require.NotEqual(t, a[0], a[1])
}

func TestMockEmbedUnitNorm(t *testing.T) {
	m := NewMockProvider(32)
	vecs, _, err := m.Embed(context.Background(), EmbedRequest{Inputs: []string{"anything"}, Dimension: 32})
	require.NoError(t, err)

	var sum float64
	for _, x := range vecs[0] {
		sum += float64(x) * float64(x)
	}
	require.InDelta(t, 1.0, sum, 1e-3)
}

func TestFactorySelectsBackendByName(t *testing.T) {
	e, err := NewEmbedding("mock", 384)
	require.NoError(t, err)
	require.IsType(t, &MockProvider{}, e)

	l, err := NewLLM("groq", 384)
	require.NoError(t, err)
	require.IsType(t, &GroqProvider{}, l)

	_, err = NewLLM("claude-shannon", 384)
	require.Error(t, err)
}
