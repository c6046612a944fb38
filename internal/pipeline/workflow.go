package pipeline

import (
	"context"
	"fmt"

	"github.com/ElishaSamPeterPrabhu/MigrateModusApi/internal/llm"
	"github.com/ElishaSamPeterPrabhu/MigrateModusApi/internal/logging"
	"github.com/ElishaSamPeterPrabhu/MigrateModusApi/internal/store"
)

// Workflow owns the collaborators of a migration run and accumulates its
// metrics. A Workflow serves one run at a time; the client may be shared
// across workflows, and each run reports only its own cache hits.
type Workflow struct {
	store         *store.ContextStore
	client        llm.Client
	metrics       RunMetrics
	baseCacheHits int64
}

// New creates a workflow over a metadata store and a model client.
func New(contextStore *store.ContextStore, client llm.Client) *Workflow {
	return &Workflow{
		store:  contextStore,
		client: client,
	}
}

type stage struct {
	name string
	fn   func(context.Context, *MigrationState) error
}

// defaultStages is the wired chain. MigrateCode and VerifyMigration form
// an optional tail appended by RunFile.
func (w *Workflow) defaultStages() []stage {
	return []stage{
		{"load_context", w.LoadContext},
		{"analyze_components", w.AnalyzeComponents},
		{"generate_mapping", w.GenerateMapping},
		{"generate_constraints", w.GenerateConstraints},
		{"generate_plan", w.GeneratePlan},
		{"generate_verification_rules", w.GenerateVerificationRules},
	}
}

// Run executes the default chain and returns the accumulated state.
func (w *Workflow) Run(ctx context.Context) (*MigrationState, RunMetrics, error) {
	w.beginRun()
	state := NewState()
	if err := w.runStages(ctx, state, w.defaultStages()); err != nil {
		return nil, w.finishMetrics(), err
	}
	return state, w.finishMetrics(), nil
}

// RunFile executes the full chain including code migration and
// verification for a single file.
func (w *Workflow) RunFile(ctx context.Context, file, code string) (*MigrationState, RunMetrics, error) {
	w.beginRun()
	state := NewState()
	state.CurrentFile = file
	state.ModifiedCode[file] = code

	stages := append(w.defaultStages(),
		stage{"migrate_code", w.MigrateCode},
		stage{"verify_migration", w.VerifyMigration},
	)
	if err := w.runStages(ctx, state, stages); err != nil {
		return nil, w.finishMetrics(), err
	}
	return state, w.finishMetrics(), nil
}

func (w *Workflow) runStages(ctx context.Context, state *MigrationState, stages []stage) error {
	timer := logging.StartTimer(logging.CategoryPipeline, "run")
	defer timer.Stop()

	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("stage %s: %w", s.name, err)
		}
		logging.Pipeline("[Workflow] stage %s", s.name)
		if err := s.fn(ctx, state); err != nil {
			return fmt.Errorf("stage %s: %w", s.name, err)
		}
	}
	return nil
}

// invoke routes all stage model calls through one place so the run can
// count them.
func (w *Workflow) invoke(ctx context.Context, prompt string, maxTokens int) (string, error) {
	w.metrics.ModelCalls++
	if maxTokens > 0 {
		return w.client.CompleteWithMaxTokens(ctx, prompt, maxTokens)
	}
	return w.client.Complete(ctx, prompt)
}

// beginRun resets the metrics and snapshots the shared client's hit
// counter so finishMetrics can report this run's hits alone.
func (w *Workflow) beginRun() {
	w.metrics = RunMetrics{}
	w.baseCacheHits = 0
	if caching, ok := w.client.(*llm.CachingClient); ok {
		w.baseCacheHits = caching.Stats().Hits
	}
}

func (w *Workflow) finishMetrics() RunMetrics {
	if caching, ok := w.client.(*llm.CachingClient); ok {
		w.metrics.CacheHits = caching.Stats().Hits - w.baseCacheHits
	}
	return w.metrics
}
