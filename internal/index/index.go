package index

import (
	"context"
	"fmt"
	"sort"

	"github.com/ElishaSamPeterPrabhu/MigrateModusApi/internal/embedding"
	"github.com/ElishaSamPeterPrabhu/MigrateModusApi/internal/logging"
)

// VectorIndex holds embedded chunks in insertion order and answers nearest
// neighbor queries by exact cosine distance scan. Corpus sizes here are a
// few thousand chunks, so a flat scan beats maintaining an ANN structure.
type VectorIndex struct {
	engine    embedding.Engine
	chunks    []ContextChunk
	dimension int
}

// New creates an empty index bound to an embedding engine.
func New(engine embedding.Engine) *VectorIndex {
	return &VectorIndex{
		engine:    engine,
		dimension: engine.Dimensions(),
	}
}

// Len returns the number of indexed chunks.
func (idx *VectorIndex) Len() int {
	return len(idx.chunks)
}

// Dimension returns the embedding dimension of the index.
func (idx *VectorIndex) Dimension() int {
	return idx.dimension
}

// Chunks returns the indexed chunks in insertion order. Callers must not
// mutate the returned slice.
func (idx *VectorIndex) Chunks() []ContextChunk {
	return idx.chunks
}

// Add appends pre-embedded chunks to the index.
func (idx *VectorIndex) Add(chunks ...ContextChunk) error {
	for _, c := range chunks {
		if len(c.Embedding) != idx.dimension {
			return fmt.Errorf("%w: chunk %s has %d dims, index has %d",
				ErrDimensionMismatch, c.ID, len(c.Embedding), idx.dimension)
		}
		idx.chunks = append(idx.chunks, c)
	}
	return nil
}

// Build embeds the given chunks in batches and adds them to the index.
// Chunks that already carry an embedding of the right dimension are kept
// as-is.
func (idx *VectorIndex) Build(ctx context.Context, chunks []ContextChunk, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 32
	}

	timer := logging.StartTimer(logging.CategoryIndex, "Build")
	defer timer.Stop()

	var pending []int
	for i := range chunks {
		if len(chunks[i].Embedding) != idx.dimension {
			pending = append(pending, i)
		}
	}

	for start := 0; start < len(pending); start += batchSize {
		end := start + batchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		texts := make([]string, len(batch))
		for j, i := range batch {
			texts[j] = chunks[i].Text
		}

		embeddings, err := idx.engine.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed batch at %d: %w", start, err)
		}
		if len(embeddings) != len(batch) {
			return fmt.Errorf("engine returned %d embeddings for %d texts", len(embeddings), len(batch))
		}
		for j, i := range batch {
			chunks[i].Embedding = embeddings[j]
		}
	}

	if err := idx.Add(chunks...); err != nil {
		return err
	}

	logging.Index("[Index] built %d chunks (%d embedded, dim=%d)", len(chunks), len(pending), idx.dimension)
	return nil
}

type scored struct {
	pos      int
	distance float64
}

// Query returns the k chunks nearest to the query text by cosine distance.
// Ties preserve insertion order. An empty query skips the embedding call
// and returns the first k chunks in insertion order, which gives callers a
// cheap bounded corpus scan.
func (idx *VectorIndex) Query(ctx context.Context, query string, k int) ([]ContextChunk, error) {
	if k <= 0 || len(idx.chunks) == 0 {
		return nil, nil
	}
	if k > len(idx.chunks) {
		k = len(idx.chunks)
	}

	if query == "" {
		out := make([]ContextChunk, k)
		copy(out, idx.chunks[:k])
		return out, nil
	}

	queryVec, err := idx.engine.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	scores := make([]scored, len(idx.chunks))
	for i := range idx.chunks {
		dist, err := embedding.CosineDistance(queryVec, idx.chunks[i].Embedding)
		if err != nil {
			return nil, fmt.Errorf("failed to score chunk %s: %w", idx.chunks[i].ID, err)
		}
		scores[i] = scored{pos: i, distance: dist}
	}

	sort.SliceStable(scores, func(a, b int) bool {
		return scores[a].distance < scores[b].distance
	})

	out := make([]ContextChunk, k)
	for i := 0; i < k; i++ {
		out[i] = idx.chunks[scores[i].pos]
	}

	logging.RetrievalDebug("[Index] query len=%d k=%d best_dist=%.4f", len(query), k, scores[0].distance)
	return out, nil
}
