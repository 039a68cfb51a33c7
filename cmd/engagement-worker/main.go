package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/princekumarofficial/catalog-service/internal/config"
	"github.com/princekumarofficial/catalog-service/internal/logger"
	"github.com/princekumarofficial/catalog-service/internal/storage"
	"github.com/princekumarofficial/catalog-service/internal/storage/mongodb"
	"github.com/princekumarofficial/catalog-service/internal/storage/postgres"
	"github.com/princekumarofficial/catalog-service/internal/tasks"
)

// EngagementWorker consumes the task topic and applies view counts, watch
// history and cascade deletes to the catalog.
type EngagementWorker struct {
	consumer *tasks.Consumer
	backoff  time.Duration
	logger   *zap.Logger
}

func NewEngagementWorker(consumer *tasks.Consumer, logger *zap.Logger) *EngagementWorker {
	return &EngagementWorker{
		consumer: consumer,
		backoff:  5 * time.Second,
		logger:   logger,
	}
}

// Start consumes until ctx is cancelled, reconnecting after reader errors.
func (ew *EngagementWorker) Start(ctx context.Context) {
	ew.logger.Info("Engagement worker started")

	for {
		err := ew.consumer.Run(ctx)
		if ctx.Err() != nil {
			ew.logger.Info("Engagement worker shutting down")
			return
		}
		ew.logger.Error("Consumer stopped, retrying", zap.Error(err), zap.Duration("backoff", ew.backoff))

		select {
		case <-ctx.Done():
			return
		case <-time.After(ew.backoff):
		}
	}
}

func main() {
	// Load config
	cfg := config.MustLoad()

	lg, err := logger.New(cfg.Development(), cfg.Log.Level)
	if err != nil {
		log.Fatalf("failed to build logger: %s", err)
	}
	defer lg.Sync()

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer cancel()

	var store storage.Storage
	switch cfg.Storage.Backend {
	case "postgres":
		pg, err := postgres.NewPostgres(cfg)
		if err != nil {
			lg.Fatal("Failed to initialize database", zap.Error(err))
		}
		defer pg.Close()
		store = pg
	default:
		m, err := mongodb.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			lg.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		defer m.Close(context.Background())
		store = m
	}

	handler := tasks.NewHandler(store, lg.Named("tasks"))
	consumer := tasks.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID, handler, lg.Named("consumer"))
	defer consumer.Close()

	NewEngagementWorker(consumer, lg).Start(ctx)

	lg.Info("Engagement worker stopped")
}
