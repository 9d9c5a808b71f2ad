package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"finsight/backend/features/companies"
	"finsight/backend/features/document"
	"finsight/backend/features/job"
	"finsight/backend/features/query"
	"finsight/backend/features/stats"
	"finsight/backend/internal/adapter/ade"
	"finsight/backend/internal/adapter/embedder"
	"finsight/backend/internal/adapter/gemini"
	wstore "finsight/backend/internal/adapter/weaviate"
	"finsight/backend/internal/config"
	"finsight/backend/internal/ingest"
	"finsight/backend/internal/middleware"
	"finsight/backend/internal/retrieval"
)

// TaskPublisher is what features need from the NSQ producer.
type TaskPublisher interface {
	Publish(topic string, body []byte) error
}

type App struct {
	Handler      http.Handler
	TaskConsumer *ingest.TaskConsumer

	port int
}

func New(
	ctx context.Context,
	cfg *config.Config,
	db *sql.DB,
	vecStore *wstore.Store,
	taskPub TaskPublisher,
) (*App, error) {
	// Adapters
	adeClient := ade.NewClient(cfg.ADEURL, cfg.ADEAPIKey, cfg.RemoteCallTimeout())
	embedderClient := embedder.NewClient(cfg.EmbedderURL, cfg.RemoteCallTimeout())

	generator, err := gemini.NewGenerator(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return nil, fmt.Errorf("gemini generator error: %w", err)
	}

	// Feature: Job
	jobRepo := job.NewPostgresRepo(db)
	jobService := job.NewService(jobRepo, taskPub)
	jobHandler := job.NewHandler(jobService)

	// Feature: Document
	docRepo := document.NewPostgresRepo(db)
	docService := document.NewService(docRepo, jobService, taskPub, vecStore)
	docHandler := document.NewHandler(docService, cfg.UploadDir, cfg.MaxUploadSizeMB*1024*1024)

	// Feature: Companies
	companyRepo := companies.NewPostgresRepo(db)
	companyHandler := companies.NewHandler(companyRepo)

	// Feature: Stats
	statsHandler := stats.NewHandler(docRepo, jobRepo, companyRepo, vecStore)

	// Feature: Query
	queryLogger, err := retrieval.NewFileQueryLogger(cfg.QueryLogPath)
	if err != nil {
		slog.Warn("failed to create query logger, falling back to stdout", "error", err)
		queryLogger = retrieval.NewQueryLogger(os.Stdout)
	}
	retrievalService := retrieval.NewService(embedderClient, vecStore, generator, queryLogger)
	queryHandler := query.NewHandler(retrievalService)

	// Ingestion worker
	pipeline := ingest.NewPipeline(
		adeClient,
		embedderClient,
		vecStore,
		jobService,
		docRepo,
		companyRepo,
		ingest.PollPolicy{
			InitialDelay: cfg.PollInitialDelay(),
			DelayStep:    cfg.PollDelayStep(),
			MaxDelay:     cfg.PollMaxDelay(),
			Ceiling:      cfg.PollCeiling(),
		},
		cfg.ChunkSize,
		cfg.ChunkOverlap,
	)
	taskConsumer := ingest.NewTaskConsumer(pipeline)

	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	// Routes
	mux := http.NewServeMux()

	mux.Handle("POST /documents", middleware.CorrelationID(enableCORS(docHandler.Upload)))
	mux.Handle("GET /documents", middleware.CorrelationID(enableCORS(docHandler.List)))
	mux.Handle("GET /documents/{id}", middleware.CorrelationID(enableCORS(docHandler.Get)))
	mux.Handle("DELETE /documents/{id}", middleware.CorrelationID(enableCORS(docHandler.Delete)))

	mux.Handle("GET /jobs", middleware.CorrelationID(enableCORS(jobHandler.List)))
	mux.Handle("GET /jobs/{id}", middleware.CorrelationID(enableCORS(jobHandler.Get)))
	mux.Handle("POST /jobs/{id}/retry", middleware.CorrelationID(enableCORS(jobHandler.Retry)))

	mux.Handle("POST /query", middleware.CorrelationID(enableCORS(queryHandler.Ask)))

	mux.Handle("GET /companies", middleware.CorrelationID(enableCORS(companyHandler.List)))
	mux.Handle("GET /stats", middleware.CorrelationID(enableCORS(statsHandler.GetStats)))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	return &App{
		Handler:      mux,
		TaskConsumer: taskConsumer,
		port:         cfg.ServerPort,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.port),
		Handler: a.Handler,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
