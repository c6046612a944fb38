package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ElishaSamPeterPrabhu/MigrateModusApi/internal/config"
	"github.com/ElishaSamPeterPrabhu/MigrateModusApi/internal/embedding"
	"github.com/ElishaSamPeterPrabhu/MigrateModusApi/internal/index"
	"github.com/ElishaSamPeterPrabhu/MigrateModusApi/internal/ingest"
	"github.com/ElishaSamPeterPrabhu/MigrateModusApi/internal/llm"
	"github.com/ElishaSamPeterPrabhu/MigrateModusApi/internal/logging"
	"github.com/ElishaSamPeterPrabhu/MigrateModusApi/internal/pipeline"
	"github.com/ElishaSamPeterPrabhu/MigrateModusApi/internal/retrieval"
	"github.com/ElishaSamPeterPrabhu/MigrateModusApi/internal/server"
	"github.com/ElishaSamPeterPrabhu/MigrateModusApi/internal/store"
)

var (
	verbose   bool
	workspace string

	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "modusmigrate",
	Short: "Migration context service for Modus 1.0 to 2.0 component upgrades",
	Long: `modusmigrate ingests the Modus component libraries, builds a semantic
retrieval index over them, and drives an LLM pipeline that produces a
component mapping, constraints, a migration plan, and verification rules.
It can migrate individual files and serve retrieval over HTTP.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapConfig := zap.NewProductionConfig()
		if verbose {
			zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapConfig.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if err := logging.Initialize(workspace); err != nil {
			return err
		}

		cfg, err = config.Load(workspace)
		if err != nil {
			return err
		}
		return cfg.Validate()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest [v1|v2] [repo-dir]",
	Short: "Analyze a component repository and store its context units",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		version := ingest.RepoVersion(args[0])
		if version != ingest.VersionV1 && version != ingest.VersionV2 {
			return fmt.Errorf("version must be v1 or v2, got %q", args[0])
		}

		contextStore, err := store.Open(cfg.Store.DatabasePath)
		if err != nil {
			return err
		}
		defer contextStore.Close()

		analyzer := ingest.NewAnalyzer()
		defer analyzer.Close()

		count, err := ingest.IngestRepo(cmd.Context(), contextStore, analyzer, args[1], version)
		if err != nil {
			return err
		}
		fmt.Printf("Ingested %d components from %s\n", count, args[1])
		return nil
	},
}

var buildIndexCmd = &cobra.Command{
	Use:   "build-index",
	Short: "Chunk and embed the stored context units into a snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		contextStore, err := store.Open(cfg.Store.DatabasePath)
		if err != nil {
			return err
		}
		defer contextStore.Close()

		engine, err := newEmbedder()
		if err != nil {
			return err
		}

		buildCfg := ingest.DefaultBuildConfig(cfg.Index.SnapshotPath)
		buildCfg.BatchSize = cfg.Embedding.BatchSize
		idx, err := ingest.BuildIndex(cmd.Context(), contextStore, engine, buildCfg)
		if err != nil {
			return err
		}
		fmt.Printf("Indexed %d chunks into %s\n", idx.Len(), cfg.Index.SnapshotPath)
		return nil
	},
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Run the migration pipeline and print the resulting state",
	RunE: func(cmd *cobra.Command, args []string) error {
		workflow, contextStore, err := newWorkflow()
		if err != nil {
			return err
		}
		defer contextStore.Close()

		state, metrics, err := workflow.Run(cmd.Context())
		if err != nil {
			return err
		}
		return printRunResult(cmd, state, metrics)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate [file]",
	Short: "Run the full pipeline and migrate a single file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}

		workflow, contextStore, err := newWorkflow()
		if err != nil {
			return err
		}
		defer contextStore.Close()

		state, metrics, err := workflow.RunFile(cmd.Context(), args[0], string(code))
		if err != nil {
			return err
		}

		fmt.Println(state.ModifiedCode[args[0]])
		logger.Info("migration run finished",
			zap.Int("model_calls", metrics.ModelCalls),
			zap.Int64("cache_hits", metrics.CacheHits),
			zap.Int("decode_failures", metrics.DecodeFailures))
		return nil
	},
}

var (
	retrieveK       int
	retrieveSection bool
	statePath       string
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve [query]",
	Short: "Retrieve migration context for a query or code snippet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEmbedder()
		if err != nil {
			return err
		}

		if !retrieveSection {
			// One-off flat lookups query the snapshot directly; builds
			// tagged sqlite_vec answer them without a resident load.
			chunks, err := index.SearchSnapshot(cmd.Context(), engine, cfg.Index.SnapshotPath, args[0], retrieveK)
			if err != nil {
				return err
			}
			texts := make([]string, len(chunks))
			for i, c := range chunks {
				texts[i] = c.Text
			}
			fmt.Println(strings.Join(texts, "\n\n"))
			return nil
		}

		idx, err := index.Load(cmd.Context(), engine, cfg.Index.SnapshotPath)
		if err != nil {
			return err
		}
		retriever, err := retrieval.NewEngine(idx, cfg.Retrieval.ScanCap)
		if err != nil {
			return err
		}

		state := pipeline.NewState()
		if statePath != "" {
			data, err := os.ReadFile(statePath)
			if err != nil {
				return fmt.Errorf("failed to read state file: %w", err)
			}
			if err := json.Unmarshal(data, state); err != nil {
				return fmt.Errorf("failed to parse state file: %w", err)
			}
		}
		out, err := retriever.RetrieveBySection(cmd.Context(), args[0], cfg.Retrieval.KSearch, retrieveK, state)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve retrieval and migration over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEmbedder()
		if err != nil {
			return err
		}

		srv, err := server.New(cmd.Context(), cfg, engine, newClient(), logger)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return srv.ListenAndServe(ctx)
	},
}

func newEmbedder() (embedding.Engine, error) {
	return embedding.NewEngine(embedding.Config{
		Provider:       cfg.Embedding.Provider,
		OllamaEndpoint: cfg.Embedding.OllamaEndpoint,
		OllamaModel:    cfg.Embedding.OllamaModel,
		GenAIAPIKey:    cfg.Embedding.GenAIAPIKey,
		GenAIModel:     cfg.Embedding.GenAIModel,
		TaskType:       cfg.Embedding.TaskType,
		MaxChars:       cfg.Embedding.MaxChars,
	})
}

func newClient() llm.Client {
	geminiCfg := llm.GeminiConfig{
		APIKey:          cfg.LLM.APIKey,
		BaseURL:         cfg.LLM.BaseURL,
		Model:           cfg.LLM.Model,
		Timeout:         cfg.LLMTimeout(),
		MaxOutputTokens: cfg.LLM.MaxOutputTokens,
	}
	client := llm.Client(llm.NewGeminiClientWithConfig(geminiCfg))
	if cfg.LLM.CacheEnabled {
		client = llm.NewCachingClient(client)
	}
	return client
}

func newWorkflow() (*pipeline.Workflow, *store.ContextStore, error) {
	contextStore, err := store.Open(cfg.Store.DatabasePath)
	if err != nil {
		return nil, nil, err
	}
	return pipeline.New(contextStore, newClient()), contextStore, nil
}

func printRunResult(cmd *cobra.Command, state *pipeline.MigrationState, metrics pipeline.RunMetrics) error {
	out, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	logger.Info("pipeline run finished",
		zap.Int("model_calls", metrics.ModelCalls),
		zap.Int64("cache_hits", metrics.CacheHits),
		zap.Int("decode_failures", metrics.DecodeFailures))
	return nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", ".", "Workspace directory")

	retrieveCmd.Flags().IntVarP(&retrieveK, "k", "k", 5, "Number of chunks to retrieve")
	retrieveCmd.Flags().BoolVar(&retrieveSection, "by-section", false, "Use section-aware retrieval")
	retrieveCmd.Flags().StringVar(&statePath, "state", "", "Workflow state JSON for section-aware retrieval")

	rootCmd.AddCommand(ingestCmd, buildIndexCmd, planCmd, migrateCmd, retrieveCmd, serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
