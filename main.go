package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"finsight/backend/internal/app"
	"finsight/backend/internal/config"
	"finsight/backend/internal/logger"

	"github.com/nsqio/go-nsq"
)

func main() {
	log := slog.New(logger.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil)))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
	slog.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config) error {
	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.DB.Close()

	application, err := app.New(ctx, cfg, deps.DB, deps.VectorStore, deps.NSQProducer)
	if err != nil {
		return err
	}

	var consumer *nsq.Consumer
	if cfg.EnableIngestWorker {
		nsqCfg := nsq.NewConfig()
		nsqCfg.MaxInFlight = cfg.IngestionConcurrency

		consumer, err = nsq.NewConsumer(config.TopicIngestTask, config.IngestChannel, nsqCfg)
		if err != nil {
			return err
		}
		consumer.AddConcurrentHandlers(application.TaskConsumer, cfg.IngestionConcurrency)

		// Lookupd is the normal discovery path; a direct nsqd connection
		// covers single-node setups with no lookupd configured.
		if cfg.NSQLookupd != "" {
			err = consumer.ConnectToNSQLookupd(cfg.NSQLookupd)
		} else {
			err = consumer.ConnectToNSQD(cfg.NSQDHost)
		}
		if err != nil {
			return err
		}
		slog.Info("ingestion worker started", "topic", config.TopicIngestTask, "concurrency", cfg.IngestionConcurrency)
	}

	if cfg.EnableAPI {
		err = application.Run(ctx)
	} else {
		<-ctx.Done()
	}

	if consumer != nil {
		consumer.Stop()
		<-consumer.StopChan
	}
	deps.NSQProducer.Stop()
	return err
}
