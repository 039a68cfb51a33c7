package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	_ "github.com/princekumarofficial/catalog-service/docs"
	"github.com/princekumarofficial/catalog-service/internal/blobstore"
	"github.com/princekumarofficial/catalog-service/internal/cache"
	"github.com/princekumarofficial/catalog-service/internal/catalog"
	"github.com/princekumarofficial/catalog-service/internal/config"
	"github.com/princekumarofficial/catalog-service/internal/http/handlers/assets"
	"github.com/princekumarofficial/catalog-service/internal/http/middleware"
	"github.com/princekumarofficial/catalog-service/internal/logger"
	"github.com/princekumarofficial/catalog-service/internal/storage"
	"github.com/princekumarofficial/catalog-service/internal/storage/memory"
	"github.com/princekumarofficial/catalog-service/internal/storage/mongodb"
	"github.com/princekumarofficial/catalog-service/internal/storage/postgres"
	"github.com/princekumarofficial/catalog-service/internal/tasks"
	"github.com/princekumarofficial/catalog-service/internal/utils/response"
)

// @title Catalog Service API
// @version 1.0
// @description Video catalog with saga based asset ingestion.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// load config
	cfg := config.MustLoad()

	lg, err := logger.New(cfg.Development(), cfg.Log.Level)
	if err != nil {
		log.Fatalf("failed to build logger: %s", err)
	}
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// database setup
	store, closeStore, err := openStorage(ctx, cfg, lg)
	if err != nil {
		lg.Fatal("failed to initialize storage", zap.String("backend", cfg.Storage.Backend), zap.Error(err))
	}
	defer closeStore()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			lg.Warn("redis unreachable, caching and rate limits degraded", zap.Error(err))
		}
		store = cache.NewCacheService(store, redisClient, cfg.Cache.ListTTL, lg.Named("cache"))
	}

	blobs, err := openBlobs(ctx, cfg, lg)
	if err != nil {
		lg.Fatal("failed to initialize blob store", zap.String("driver", cfg.Blob.Driver), zap.Error(err))
	}

	dispatcher, closeTasks := openTasks(cfg, store, lg)
	defer closeTasks()

	limits := catalog.LimitsFromConfig(cfg.Media)
	ingestor := catalog.NewIngestor(store, blobs, dispatcher, limits, lg.Named("ingest"))
	engine := catalog.NewEngine(store, dispatcher, lg.Named("query"))
	assetHandlers := assets.NewAssetHandlers(ingestor, engine, limits, lg.Named("http"))

	auth := middleware.AuthMiddleware(cfg.JWTSecret)
	optionalAuth := middleware.OptionalAuthMiddleware(cfg.JWTSecret)
	rateLimits := middleware.NewRateLimitConfig(redisClient, cfg.RateLimit, lg.Named("ratelimit"))

	// setup router
	router := http.NewServeMux()

	router.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		response.WriteJSON(w, http.StatusOK, response.RequestOK("ok", nil))
	})
	router.Handle("GET /swagger/", httpSwagger.WrapHandler)

	router.Handle("GET /assets", assetHandlers.List())
	router.Handle("GET /assets/{id}", optionalAuth(assetHandlers.Get()))
	router.Handle("GET /owners/{id}/assets", optionalAuth(assetHandlers.ListByOwner()))
	router.Handle("POST /assets", auth(rateLimits.RateLimitedHandler(middleware.ActionUpload, assetHandlers.Create())))
	router.Handle("PUT /assets/{id}", auth(rateLimits.RateLimitedHandler(middleware.ActionUpload, assetHandlers.Update())))
	router.Handle("DELETE /assets/{id}", auth(rateLimits.RateLimitedHandler(middleware.ActionMutation, assetHandlers.Delete())))
	router.Handle("PATCH /assets/{id}/publish", auth(rateLimits.RateLimitedHandler(middleware.ActionMutation, assetHandlers.Publish())))

	if redisClient != nil {
		router.Handle("GET /debug/cache", cache.GetCacheStats(redisClient))
		router.Handle("DELETE /debug/cache", auth(cache.ClearCache(redisClient)))
	}

	server := http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
	}

	go func() {
		lg.Info("server started", zap.String("address", cfg.HTTPServer.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()

	lg.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		lg.Error("failed to gracefully shutdown server", zap.Error(err))
		return
	}

	lg.Info("server stopped")
}

func openStorage(ctx context.Context, cfg *config.Config, lg *zap.Logger) (storage.Storage, func(), error) {
	switch cfg.Storage.Backend {
	case "mongo", "mongodb":
		m, err := mongodb.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, nil, err
		}
		lg.Info("connected to MongoDB", zap.String("database", cfg.Mongo.Database))
		return m, func() { m.Close(context.Background()) }, nil

	case "postgres":
		pg, err := postgres.NewPostgres(cfg)
		if err != nil {
			return nil, nil, err
		}
		lg.Info("connected to Postgres database", zap.String("database", cfg.PGSQL.DBName))
		return pg, func() { pg.Close() }, nil

	case "memory":
		lg.Warn("using in-memory storage, data is lost on restart")
		return memory.New(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}

func openBlobs(ctx context.Context, cfg *config.Config, lg *zap.Logger) (blobstore.Store, error) {
	prober := blobstore.FFProbe{Timeout: cfg.Media.ProbeTimeout}
	switch cfg.Blob.Driver {
	case "minio":
		return blobstore.NewMinIOStore(ctx, cfg.MinIO, prober, lg.Named("minio"))
	case "s3":
		return blobstore.NewS3Store(ctx, cfg.S3, prober, lg.Named("s3"))
	}
	return nil, fmt.Errorf("unknown blob driver %q", cfg.Blob.Driver)
}

// openTasks returns the dispatcher for fire-and-forget work. With the kafka
// driver the work runs in cmd/engagement-worker instead of this process.
func openTasks(cfg *config.Config, store storage.Storage, lg *zap.Logger) (tasks.Dispatcher, func()) {
	if cfg.Tasks.Driver == "kafka" {
		d := tasks.NewKafkaDispatcher(cfg.Kafka.Brokers, cfg.Kafka.Topic, lg.Named("tasks"))
		return d, func() { d.Close() }
	}
	pool := tasks.NewPool(tasks.NewHandler(store, lg.Named("tasks")), cfg.Tasks.Workers, cfg.Tasks.QueueSize, lg.Named("tasks"))
	return pool, pool.Close
}
