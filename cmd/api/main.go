package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/fabriclens/engine/internal/api"
	"github.com/fabriclens/engine/internal/api/handlers"
	"github.com/fabriclens/engine/internal/export"
	"github.com/fabriclens/engine/internal/loader"
	"github.com/fabriclens/engine/internal/queue/tasks"
	"github.com/fabriclens/engine/internal/services"
	"github.com/fabriclens/engine/internal/store"
	"github.com/fabriclens/engine/pkg/config"
	"github.com/fabriclens/engine/pkg/database"
	"github.com/fabriclens/engine/pkg/logger"
	appErr "github.com/fabriclens/engine/pkg/errors"
)

// asynqEnqueuer hands refresh requests to the background queue.
type asynqEnqueuer struct {
	client *asynq.Client
}

func (e *asynqEnqueuer) EnqueueRefresh(ctx context.Context, clearExisting bool) error {
	task, err := tasks.NewRefreshTask(clearExisting)
	if err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "build refresh task")
	}
	if _, err := e.client.EnqueueContext(ctx, task); err != nil {
		return appErr.Wrap(err, appErr.CodeUnavailable, "enqueue refresh task")
	}
	return nil
}

func main() {
	cfg := config.MustLoad()

	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	log.Info("starting lineage engine",
		zap.String("env", cfg.AppEnv),
		zap.String("addr", cfg.HTTPAddr),
		zap.String("export", cfg.ExportURL),
	)

	ctx := context.Background()
	db, err := database.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	log.Info("database connected")

	graphStore := store.NewPostgresStore(db)
	snapshotRepo := store.NewSnapshotRepository(db)

	svc := services.NewLineageService(export.NewReader(), loader.New(graphStore), services.Options{
		ExportURL:     cfg.ExportURL,
		SnapshotTTL:   cfg.SnapshotTTL,
		ProbeInterval: cfg.ProbeInterval,
		Store:         graphStore,
		Snapshots:     snapshotRepo,
	})

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer asynqClient.Close()

	lineageHandler := handlers.NewLineageHandler(svc, &asynqEnqueuer{client: asynqClient})

	router := api.NewRouter(api.Dependencies{
		APIToken:        cfg.APIToken,
		LineageHandler:  lineageHandler,
		SnapshotHandler: handlers.NewSnapshotHandler(snapshotRepo),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	} else {
		log.Info("server exited gracefully")
	}
}
