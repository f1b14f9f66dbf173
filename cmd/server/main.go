package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bigyann/lumina/backend/internal/events"
	"github.com/bigyann/lumina/backend/internal/realtime"
	"github.com/bigyann/lumina/backend/internal/router"
	"github.com/bigyann/lumina/backend/internal/scheduler"
	"github.com/bigyann/lumina/backend/pkg/config"
	"github.com/bigyann/lumina/backend/pkg/firebase"
	"github.com/bigyann/lumina/backend/pkg/logger"
	"github.com/bigyann/lumina/backend/pkg/metrics"
	"github.com/bigyann/lumina/backend/pkg/storage"
	"github.com/bigyann/lumina/backend/validators"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log := logger.Must(!cfg.IsProduction())
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database connections
	db, err := config.InitDB(cfg, log)
	if err != nil {
		log.Fatal("failed to initialize databases", zap.Error(err))
	}
	defer db.CloseDB()

	infra := router.Infra{
		Postgres:  db.Postgres,
		Mongo:     db.Mongo.Database(cfg.MongoDatabase),
		Hub:       realtime.NewHub(log),
		Publisher: events.NopPublisher{},
		Metrics:   metrics.New(),
	}

	// Firebase sign-in is optional; email/password accounts work without it.
	firebaseApp, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath)
	if err != nil {
		log.Warn("firebase disabled", zap.Error(err))
	} else {
		infra.Firebase = firebaseApp.AuthClient
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()

		bridge := realtime.NewRedisBridge(rdb, infra.Hub, log)
		go func() {
			if err := bridge.Run(ctx); err != nil {
				log.Error("redis bridge stopped", zap.Error(err))
			}
		}()
	}

	if len(cfg.KafkaBrokers) > 0 {
		infra.Publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		log.Info("publishing events to kafka", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}
	defer infra.Publisher.Close()

	if cfg.S3Bucket != "" {
		store, err := storage.NewS3Store(ctx, storage.S3Options{
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PublicURL: cfg.S3PublicURL,
		})
		if err != nil {
			log.Fatal("failed to initialize object storage", zap.Error(err))
		}
		infra.Store = store
	} else {
		log.Warn("S3_BUCKET not set, uploads are kept in memory")
		infra.Store = storage.NewMemoryStore("http://localhost:" + cfg.Port + "/files")
	}

	repos, err := router.NewRepositories(ctx, infra, log)
	if err != nil {
		log.Fatal("failed to prepare repositories", zap.Error(err))
	}
	app := router.NewApp(cfg, infra, repos, log)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = validators.NewValidator()

	config.SetupMiddleware(e, cfg, log)
	router.SetupRoutes(e, cfg, app, log)

	jobs := scheduler.New(log)
	err = scheduler.StartMaintenanceJobs(jobs, app.Services.Calls, cfg.CallSweepSchedule, app.Services.Sitemap, cfg.SitemapSchedule)
	if err != nil {
		log.Fatal("failed to schedule jobs", zap.Error(err))
	}

	go func() {
		log.Info("server starting", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
	jobs.Stop(shutdownCtx)
}
