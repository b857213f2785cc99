package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fabriclens/engine/internal/export"
	"github.com/fabriclens/engine/internal/loader"
	"github.com/fabriclens/engine/internal/queue/tasks"
	"github.com/fabriclens/engine/internal/services"
	"github.com/fabriclens/engine/internal/store"
	"github.com/fabriclens/engine/pkg/config"
	"github.com/fabriclens/engine/pkg/database"
	"github.com/fabriclens/engine/pkg/logger"
)

func main() {
	cfg := config.MustLoad()

	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	log.Info("starting lineage worker",
		zap.String("env", cfg.AppEnv),
		zap.Int("concurrency", cfg.AsynqConcurrency),
	)

	ctx := context.Background()

	// Fail fast when redis is unreachable rather than letting asynq spin.
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		cancel()
		log.Fatal("redis unreachable", zap.Error(err))
	}
	cancel()
	_ = rdb.Close()

	db, err := database.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	graphStore := store.NewPostgresStore(db)
	snapshotRepo := store.NewSnapshotRepository(db)

	svc := services.NewLineageService(export.NewReader(), loader.New(graphStore), services.Options{
		ExportURL:     cfg.ExportURL,
		SnapshotTTL:   cfg.SnapshotTTL,
		ProbeInterval: cfg.ProbeInterval,
		Store:         graphStore,
		Snapshots:     snapshotRepo,
	})

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		},
		asynq.Config{
			Concurrency: cfg.AsynqConcurrency,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			Logger: asynqZapLogger{log.Sugar()},
		},
	)

	mux := asynq.NewServeMux()
	refreshHandler := tasks.NewRefreshTaskHandler(svc)
	mux.HandleFunc(tasks.TypeRefresh, refreshHandler.HandleRefresh)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Run(mux); err != nil {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Fatal("worker error", zap.Error(err))
	}

	srv.Shutdown()
	log.Info("worker exited gracefully")
}

// asynqZapLogger adapts zap's sugared logger to asynq's logger interface.
type asynqZapLogger struct {
	s *zap.SugaredLogger
}

func (l asynqZapLogger) Debug(args ...interface{}) { l.s.Debug(args...) }
func (l asynqZapLogger) Info(args ...interface{})  { l.s.Info(args...) }
func (l asynqZapLogger) Warn(args ...interface{})  { l.s.Warn(args...) }
func (l asynqZapLogger) Error(args ...interface{}) { l.s.Error(args...) }
func (l asynqZapLogger) Fatal(args ...interface{}) { l.s.Fatal(args...) }
