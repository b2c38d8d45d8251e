package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joshu-sajeev/claimqueue/internal/clock"
	"github.com/joshu-sajeev/claimqueue/internal/config"
	"github.com/joshu-sajeev/claimqueue/internal/job"
	"github.com/joshu-sajeev/claimqueue/internal/observability"
	"github.com/joshu-sajeev/claimqueue/internal/storage/postgres"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	boot, _ := zap.NewProduction()

	cfg, err := config.Load(ctx)
	if err != nil {
		boot.Fatal("failed to load config", zap.Error(err))
	}

	log, err := observability.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		boot.Fatal("failed to build logger", zap.Error(err))
	}
	defer func() { _ = log.Sync() }()

	dbCfg, err := postgres.LoadConfigFromEnv(ctx)
	if err != nil {
		log.Fatal("failed to load database config", zap.Error(err))
	}

	db, err := postgres.ConnectDB(ctx, dbCfg, log)
	if err != nil {
		log.Fatal("connection failed", zap.Error(err))
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal("database handle", zap.Error(err))
	}
	defer sqlDB.Close()

	service := job.NewJobService(
		postgres.NewJobRepository(db),
		postgres.NewFailureRepository(db),
		clock.RealClock{},
	)

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           newRouter(job.NewJobHandler(service), sqlDB, log, 5*time.Second),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("api listening", zap.String("addr", cfg.APIAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("api server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
