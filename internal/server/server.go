// Package server exposes the retrieval engine and single-snippet migration
// over HTTP.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ElishaSamPeterPrabhu/MigrateModusApi/internal/config"
	"github.com/ElishaSamPeterPrabhu/MigrateModusApi/internal/embedding"
	"github.com/ElishaSamPeterPrabhu/MigrateModusApi/internal/index"
	"github.com/ElishaSamPeterPrabhu/MigrateModusApi/internal/llm"
	"github.com/ElishaSamPeterPrabhu/MigrateModusApi/internal/pipeline"
	"github.com/ElishaSamPeterPrabhu/MigrateModusApi/internal/retrieval"
)

// Server serves retrieval and migration requests against one loaded index.
// The engine pointer swaps atomically when the snapshot is rebuilt, so
// in-flight requests keep the index they started with.
type Server struct {
	cfg      config.Config
	embedder embedding.Engine
	client   llm.Client
	engine   atomic.Pointer[retrieval.Engine]
	state    *pipeline.MigrationState
	logger   *zap.Logger
	mux      *http.ServeMux
}

// New loads the snapshot and workflow state and prepares the HTTP surface.
func New(ctx context.Context, cfg config.Config, embedder embedding.Engine, client llm.Client, logger *zap.Logger) (*Server, error) {
	s := &Server{
		cfg:      cfg,
		embedder: embedder,
		client:   client,
		logger:   logger,
		mux:      http.NewServeMux(),
	}

	if err := s.reloadIndex(ctx); err != nil {
		return nil, err
	}

	state, err := loadState(cfg.Server.StatePath)
	if err != nil {
		return nil, err
	}
	s.state = state

	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/retrieve", s.handleRetrieve)
	s.mux.HandleFunc("/retrieve_by_section", s.handleRetrieveBySection)
	s.mux.HandleFunc("/migrate", s.handleMigrate)
	return s, nil
}

// ServeHTTP implements http.Handler with access logging.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r)
	s.logger.Info("request",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", rec.status),
		zap.Duration("duration", time.Since(start)),
	)
}

// ListenAndServe starts the server and the snapshot watcher, blocking
// until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	watcherDone, err := s.watchSnapshot(ctx)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", s.cfg.Server.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		<-watcherDone
		return nil
	case err := <-errCh:
		<-watcherDone
		return err
	}
}

// reloadIndex loads the snapshot and swaps in a fresh retrieval engine.
func (s *Server) reloadIndex(ctx context.Context) error {
	idx, err := index.Load(ctx, s.embedder, s.cfg.Index.SnapshotPath)
	if err != nil {
		return fmt.Errorf("server startup: %w", err)
	}
	engine, err := retrieval.NewEngine(idx, s.cfg.Retrieval.ScanCap)
	if err != nil {
		return err
	}
	s.engine.Store(engine)
	return nil
}

func loadState(path string) (*pipeline.MigrationState, error) {
	state := pipeline.NewState()
	if path == "" {
		return state, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return state, nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("failed to parse state file %s: %w", path, err)
	}
	return state, nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
