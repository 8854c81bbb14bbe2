package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/nsqio/go-nsq"

	"ragline/features/stats"
	"ragline/features/task"
	"ragline/internal/adapter/gemini"
	"ragline/internal/config"
	"ragline/internal/middleware"
	"ragline/internal/retrieval"
	"ragline/internal/text"
	"ragline/internal/worker"
)

// VectorStore is everything the application needs from the vector index.
type VectorStore interface {
	StoreChunks(ctx context.Context, chunks []worker.Chunk) error
	DeleteChunksByTask(ctx context.Context, taskID int64) error
	Search(ctx context.Context, queryVector []float32, limit int) ([]retrieval.Hit, error)
	CountChunks(ctx context.Context) (int, error)
}

type TaskPublisher interface {
	Publish(topic string, body []byte) error
}

type App struct {
	Handler  http.Handler
	Consumer *worker.Consumer

	cfg *config.Config
}

func New(cfg *config.Config, db *sql.DB, vecStore VectorStore, pub TaskPublisher) (*App, error) {
	ctx := context.Background()

	embedder, err := gemini.NewEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbedModel)
	if err != nil {
		return nil, fmt.Errorf("embedder init error: %w", err)
	}
	generator, err := gemini.NewGenerator(ctx, cfg.GeminiAPIKey, cfg.GenerateModel)
	if err != nil {
		return nil, fmt.Errorf("generator init error: %w", err)
	}

	// Feature: Task
	taskRepo := task.NewPostgresRepo(db)
	taskService := task.NewService(taskRepo, pub, vecStore)
	taskHandler := task.NewHandler(taskService)

	// Feature: Retrieval
	queryLogger, err := retrieval.NewFileQueryLogger(cfg.QueryLogPath)
	if err != nil {
		slog.Warn("failed to create query logger, falling back to stdout", "error", err)
		queryLogger = retrieval.NewQueryLogger(os.Stdout)
	}
	retrievalService := retrieval.NewService(embedder, vecStore, taskRepo, generator, queryLogger)
	retrievalHandler := retrieval.NewHandler(retrievalService)

	// Feature: Stats
	statsHandler := stats.NewHandler(taskRepo, vecStore)

	// Worker
	chunker := text.NewChunker(cfg.ChunkMaxChars, cfg.ChunkOverlapChars)
	consumer := worker.NewConsumer(
		taskRepo,
		embedder,
		vecStore,
		chunker,
		time.Duration(cfg.EmbedTimeoutSeconds)*time.Second,
		uint16(cfg.WorkerMaxAttempts), // #nosec G115 -- validated >= 1, bounded by config
	)

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

	mux := http.NewServeMux()

	mux.Handle("POST /api/v1/embedding-tasks", middleware.CorrelationID(enableCORS(taskHandler.Create)))
	mux.Handle("GET /api/v1/embedding-tasks", middleware.CorrelationID(enableCORS(taskHandler.List)))
	mux.Handle("GET /api/v1/embedding-tasks/{id}", middleware.CorrelationID(enableCORS(taskHandler.Get)))
	mux.Handle("PUT /api/v1/embedding-tasks/{id}", middleware.CorrelationID(enableCORS(taskHandler.Update)))
	mux.Handle("DELETE /api/v1/embedding-tasks/{id}", middleware.CorrelationID(enableCORS(taskHandler.Delete)))

	mux.Handle("POST /api/v1/search", middleware.CorrelationID(enableCORS(retrievalHandler.Search)))
	mux.Handle("POST /api/v1/query", middleware.CorrelationID(enableCORS(retrievalHandler.Query)))

	mux.Handle("GET /api/v1/stats", middleware.CorrelationID(enableCORS(statsHandler.GetStats)))

	mux.HandleFunc("GET /api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"status":"ok","service":"ragline"}`)); err != nil {
			slog.Error("failed to write health response", "error", err)
		}
	})

	return &App{
		Handler:  mux,
		Consumer: consumer,
		cfg:      cfg,
	}, nil
}

// StartConsumer subscribes the worker to the submission topic. Concurrency is
// per-instance; correctness under concurrent workers comes from the task
// store's transition guard, not from partitioning the channel.
func (a *App) StartConsumer() (*nsq.Consumer, error) {
	nsqCfg := nsq.NewConfig()
	nsqCfg.MaxAttempts = uint16(a.cfg.WorkerMaxAttempts) // #nosec G115 -- validated >= 1, bounded by config

	consumer, err := nsq.NewConsumer(config.TopicTaskSubmitted, config.ChannelWorker, nsqCfg)
	if err != nil {
		return nil, fmt.Errorf("nsq consumer error: %w", err)
	}
	consumer.AddConcurrentHandlers(nsq.HandlerFunc(a.Consumer.HandleMessage), a.cfg.WorkerConcurrency)

	if err := consumer.ConnectToNSQLookupd(a.cfg.NSQLookupd); err != nil {
		return nil, fmt.Errorf("nsq lookupd connect error: %w", err)
	}
	slog.Info("task consumer connected", "topic", config.TopicTaskSubmitted, "channel", config.ChannelWorker)
	return consumer, nil
}

// Run serves HTTP until the context is cancelled, then shuts down cleanly.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.ServerPort),
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.cfg.ServerPort)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
