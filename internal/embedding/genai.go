package embedding

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/ElishaSamPeterPrabhu/MigrateModusApi/internal/logging"
)

// genaiTaskTypes maps the config task-type strings the retrieval index
// cares about onto the SDK task-type values. Component docs embed as
// RETRIEVAL_DOCUMENT; snippet queries may use RETRIEVAL_QUERY or
// CODE_RETRIEVAL_QUERY.
var genaiTaskTypes = map[string]string{
	"RETRIEVAL_DOCUMENT":   "RETRIEVAL_DOCUMENT",
	"RETRIEVAL_QUERY":      "RETRIEVAL_QUERY",
	"SEMANTIC_SIMILARITY":  "SEMANTIC_SIMILARITY",
	"CODE_RETRIEVAL_QUERY": "CODE_RETRIEVAL_QUERY",
}

func resolveTaskType(name string) string {
	if task, ok := genaiTaskTypes[name]; ok {
		return task
	}
	return "RETRIEVAL_DOCUMENT"
}

// GenAIEngine embeds migration context through the Gemini embedding API.
// This is the default backend; indexing and serving must share it (or any
// engine with the same dimensionality) or snapshot loads fail.
type GenAIEngine struct {
	client   *genai.Client
	model    string
	taskType string
	maxChars int
}

// NewGenAIEngine creates a Gemini-backed engine from cfg.
func NewGenAIEngine(cfg Config) (*GenAIEngine, error) {
	if cfg.GenAIAPIKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	model := cfg.GenAIModel
	if model == "" {
		model = DefaultConfig().GenAIModel
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: cfg.GenAIAPIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAIEngine{
		client:   client,
		model:    model,
		taskType: resolveTaskType(cfg.TaskType),
		maxChars: cfg.maxCharsOrDefault(),
	}, nil
}

// Embed embeds one text, truncating it to the configured cap first.
func (e *GenAIEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in a single request; the API accepts multiple
// contents natively.
func (e *GenAIEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := e.embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	logging.EmbeddingDebug("[GenAI] embedded batch of %d", len(texts))
	return vectors, nil
}

func (e *GenAIEngine) embed(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		capped := Truncate(text, e.maxChars)
		if len(capped) < len(text) {
			logging.EmbeddingDebug("[GenAI] input %d clipped from %d to %d chars", i, len(text), len(capped))
		}
		contents[i] = genai.NewContentFromText(capped, genai.RoleUser)
	}

	result, err := e.client.Models.EmbedContent(ctx,
		e.model,
		contents,
		&genai.EmbedContentConfig{
			TaskType: e.taskType,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("GenAI embed failed: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("GenAI returned %d embeddings for %d texts", len(result.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		vectors[i] = emb.Values
	}
	return vectors, nil
}

// Dimensions returns 768, the gemini-embedding-001 vector width the index
// and snapshots are built with.
func (e *GenAIEngine) Dimensions() int {
	return 768
}

func (e *GenAIEngine) Name() string {
	return fmt.Sprintf("genai:%s", e.model)
}
