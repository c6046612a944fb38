package ingest

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ElishaSamPeterPrabhu/MigrateModusApi/internal/embedding"
	"github.com/ElishaSamPeterPrabhu/MigrateModusApi/internal/index"
	"github.com/ElishaSamPeterPrabhu/MigrateModusApi/internal/logging"
	"github.com/ElishaSamPeterPrabhu/MigrateModusApi/internal/store"
)

// BuildConfig controls index construction.
type BuildConfig struct {
	BatchSize    int
	Parallelism  int
	SnapshotPath string
}

// DefaultBuildConfig returns build defaults.
func DefaultBuildConfig(snapshotPath string) BuildConfig {
	return BuildConfig{
		BatchSize:    32,
		Parallelism:  4,
		SnapshotPath: snapshotPath,
	}
}

// categoryToSection maps stored unit categories to chunk section types.
var categoryToSection = map[string]string{
	store.CategoryV1Components:      index.SectionV1Component,
	store.CategoryV2Components:      index.SectionV2Component,
	store.CategoryV1Docs:            index.SectionDoc,
	store.CategoryV2Docs:            index.SectionDoc,
	store.CategoryMigrationPlan:     index.SectionMigrationPlan,
	store.CategoryVerificationRules: index.SectionVerificationRules,
	store.CategoryConstraints:       index.SectionMisc,
}

// indexedCategories is the build order. Component sections first so empty
// query scans surface them early.
var indexedCategories = []string{
	store.CategoryV1Components,
	store.CategoryV2Components,
	store.CategoryV1Docs,
	store.CategoryV2Docs,
	store.CategoryMigrationPlan,
	store.CategoryVerificationRules,
	store.CategoryConstraints,
}

// BuildIndex chunks every stored unit, embeds the chunks in parallel
// batches, and writes the snapshot. Returns the built index.
func BuildIndex(ctx context.Context, contextStore *store.ContextStore, engine embedding.Engine, cfg BuildConfig) (*index.VectorIndex, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}

	timer := logging.StartTimer(logging.CategoryIngest, "BuildIndex")
	defer timer.Stop()

	chunker := NewChunker()
	var chunks []index.ContextChunk
	for _, category := range indexedCategories {
		units, err := contextStore.LoadUnitsByCategory(ctx, category)
		if err != nil {
			return nil, fmt.Errorf("build index: %w", err)
		}
		section := categoryToSection[category]
		for _, u := range units {
			chunks = append(chunks, chunker.Chunk(section, u.Name, u.Content)...)
		}
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("build index: no context units to index")
	}

	if err := embedChunks(ctx, engine, chunks, cfg.BatchSize, cfg.Parallelism); err != nil {
		return nil, err
	}

	idx := index.New(engine)
	if err := idx.Add(chunks...); err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}

	if cfg.SnapshotPath != "" {
		if err := idx.Save(ctx, cfg.SnapshotPath); err != nil {
			return nil, fmt.Errorf("build index: %w", err)
		}
	}

	logging.Ingest("[Build] indexed %d chunks", idx.Len())
	return idx, nil
}

// embedChunks fills chunk embeddings batch by batch with bounded
// parallelism. Each goroutine writes only its own batch's slots.
func embedChunks(ctx context.Context, engine embedding.Engine, chunks []index.ContextChunk, batchSize, parallelism int) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		g.Go(func() error {
			texts := make([]string, len(batch))
			for i := range batch {
				texts[i] = batch[i].Text
			}
			vectors, err := engine.EmbedBatch(ctx, texts)
			if err != nil {
				return fmt.Errorf("failed to embed batch: %w", err)
			}
			if len(vectors) != len(batch) {
				return fmt.Errorf("engine returned %d embeddings for %d texts", len(vectors), len(batch))
			}
			for i := range batch {
				batch[i].Embedding = vectors[i]
			}
			return nil
		})
	}

	return g.Wait()
}
