package llm

import (
	"context"
	"sync"

	"github.com/ElishaSamPeterPrabhu/MigrateModusApi/internal/logging"
)

// CachingClient wraps a Client and memoizes completions by exact prompt.
// Entries live for the lifetime of the process and are never evicted, so
// repeating a pipeline stage with identical inputs costs no model calls.
type CachingClient struct {
	inner   Client
	mu      sync.RWMutex
	entries map[string]string
	hits    int64
	misses  int64
}

// CacheStats reports cache effectiveness counters.
type CacheStats struct {
	Entries int
	Hits    int64
	Misses  int64
}

// NewCachingClient wraps inner in a prompt-keyed memoizing cache.
func NewCachingClient(inner Client) *CachingClient {
	return &CachingClient{
		inner:   inner,
		entries: make(map[string]string),
	}
}

// Complete returns the cached completion for prompt if present, otherwise
// delegates to the wrapped client and stores the result.
func (c *CachingClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithMaxTokens(ctx, prompt, 0)
}

// CompleteWithMaxTokens is cached on the prompt alone. Callers that vary
// the token budget for the same prompt get the first completion back.
func (c *CachingClient) CompleteWithMaxTokens(ctx context.Context, prompt string, maxTokens int) (string, error) {
	c.mu.RLock()
	cached, ok := c.entries[prompt]
	c.mu.RUnlock()
	if ok {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		logging.APIDebug("[Cache] hit prompt_len=%d", len(prompt))
		return cached, nil
	}

	response, err := c.inner.CompleteWithMaxTokens(ctx, prompt, maxTokens)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.misses++
	c.entries[prompt] = response
	c.mu.Unlock()
	logging.APIDebug("[Cache] miss prompt_len=%d entries=%d", len(prompt), len(c.entries))
	return response, nil
}

// Stats returns a snapshot of cache counters.
func (c *CachingClient) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CacheStats{
		Entries: len(c.entries),
		Hits:    c.hits,
		Misses:  c.misses,
	}
}
