package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ElishaSamPeterPrabhu/MigrateModusApi/internal/logging"
)

// OllamaEngine embeds migration context chunks against a local Ollama
// server. It is the offline option for indexing checked-out component
// repositories without a cloud API key.
type OllamaEngine struct {
	endpoint string
	model    string
	maxChars int
	client   *http.Client
}

// NewOllamaEngine creates an Ollama-backed engine from cfg. Empty endpoint
// and model fields fall back to the package defaults.
func NewOllamaEngine(cfg Config) (*OllamaEngine, error) {
	endpoint := cfg.OllamaEndpoint
	if endpoint == "" {
		endpoint = DefaultConfig().OllamaEndpoint
	}
	model := cfg.OllamaModel
	if model == "" {
		model = DefaultConfig().OllamaModel
	}

	return &OllamaEngine{
		endpoint: endpoint,
		model:    model,
		maxChars: cfg.maxCharsOrDefault(),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

type ollamaEmbedding struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// Embed embeds one text, truncating it to the configured cap first.
func (e *OllamaEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	capped := Truncate(text, e.maxChars)
	if len(capped) < len(text) {
		logging.EmbeddingDebug("[Ollama] input clipped from %d to %d chars", len(text), len(capped))
	}

	body, err := json.Marshal(ollamaEmbedding{Model: e.model, Prompt: capped})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(detail))
	}

	var result struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode embed response: %w", err)
	}
	return result.Embedding, nil
}

// EmbedBatch embeds texts sequentially; the Ollama embeddings endpoint has
// no batch form.
func (e *OllamaEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed text %d of %d: %w", i+1, len(texts), err)
		}
		vectors[i] = vec
	}
	logging.EmbeddingDebug("[Ollama] embedded batch of %d", len(texts))
	return vectors, nil
}

// Dimensions returns 768, the embeddinggemma vector width the index and
// snapshots are built with.
func (e *OllamaEngine) Dimensions() int {
	return 768
}

func (e *OllamaEngine) Name() string {
	return fmt.Sprintf("ollama:%s", e.model)
}
