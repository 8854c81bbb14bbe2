package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nsqio/go-nsq"

	"ragline/internal/app"
	"ragline/internal/config"
	"ragline/internal/logger"
)

func main() {
	handler := logger.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(slog.New(handler))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer deps.DB.Close()

	a, err := app.New(cfg, deps.DB, deps.VectorStore, deps.NSQProducer)
	if err != nil {
		slog.Error("failed to build app", "error", err)
		os.Exit(1)
	}

	var consumer *nsq.Consumer
	if cfg.EnableWorker {
		consumer, err = a.StartConsumer()
		if err != nil {
			slog.Error("failed to start consumer", "error", err)
			os.Exit(1)
		}
	}

	if cfg.EnableAPI {
		if err := a.Run(ctx); err != nil {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	} else {
		<-ctx.Done()
	}

	// Drain the in-flight message before exiting; unconsumed events stay
	// queued for the next worker instance.
	if consumer != nil {
		slog.Info("stopping task consumer...")
		consumer.Stop()
		<-consumer.StopChan
	}

	deps.NSQProducer.Stop()
	slog.Info("shutdown complete")
}
