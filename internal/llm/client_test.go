package llm

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedClient counts calls and returns canned responses per prompt.
type scriptedClient struct {
	responses map[string]string
	calls     int
	err       error
}

func (s *scriptedClient) Complete(ctx context.Context, prompt string) (string, error) {
	return s.CompleteWithMaxTokens(ctx, prompt, 0)
}

func (s *scriptedClient) CompleteWithMaxTokens(ctx context.Context, prompt string, maxTokens int) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	resp, ok := s.responses[prompt]
	if !ok {
		return "", fmt.Errorf("unexpected prompt: %q", prompt)
	}
	return resp, nil
}

func TestCachingClientMemoizes(t *testing.T) {
	inner := &scriptedClient{responses: map[string]string{
		"map this component": `{"modus-alert.tsx": {"new_tag": "modus-wc-alert"}}`,
	}}
	client := NewCachingClient(inner)

	first, err := client.Complete(context.Background(), "map this component")
	require.NoError(t, err)

	second, err := client.Complete(context.Background(), "map this component")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls, "second call should be served from cache")

	stats := client.Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestCachingClientDistinctPrompts(t *testing.T) {
	inner := &scriptedClient{responses: map[string]string{
		"prompt a": "response a",
		"prompt b": "response b",
	}}
	client := NewCachingClient(inner)

	a, err := client.Complete(context.Background(), "prompt a")
	require.NoError(t, err)
	b, err := client.Complete(context.Background(), "prompt b")
	require.NoError(t, err)

	assert.Equal(t, "response a", a)
	assert.Equal(t, "response b", b)
	assert.Equal(t, 2, inner.calls)
}

func TestCachingClientDoesNotCacheErrors(t *testing.T) {
	inner := &scriptedClient{err: fmt.Errorf("transient failure")}
	client := NewCachingClient(inner)

	_, err := client.Complete(context.Background(), "prompt")
	require.Error(t, err)

	inner.err = nil
	inner.responses = map[string]string{"prompt": "recovered"}

	resp, err := client.Complete(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp)
	assert.Equal(t, 2, inner.calls)
}

func TestGeminiClientRequiresAPIKey(t *testing.T) {
	client := NewGeminiClient("")
	_, err := client.Complete(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestDefaultGeminiConfig(t *testing.T) {
	config := DefaultGeminiConfig("test-key")
	assert.Equal(t, "test-key", config.APIKey)
	assert.Equal(t, "gemini-2.5-flash", config.Model)
	assert.NotZero(t, config.Timeout)
	assert.NotZero(t, config.MaxOutputTokens)
}
