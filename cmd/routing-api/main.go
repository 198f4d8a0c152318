package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	_ "github.com/noah-isme/case-routing-api/api/swagger"
	"github.com/noah-isme/case-routing-api/internal/bootstrap"
	"github.com/noah-isme/case-routing-api/internal/service"
	"github.com/noah-isme/case-routing-api/pkg/config"
	"github.com/noah-isme/case-routing-api/pkg/jobs"
	"github.com/noah-isme/case-routing-api/pkg/logger"
)

// @title Case Routing API
// @version 1.0.0
// @description Routes licensing cases to team queues and runs the daily SLA clock.
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := bootstrap.New(ctx, cfg, logr)
	if err != nil {
		logr.Fatal("failed to build services", zap.Error(err))
	}
	defer container.Close()

	if cfg.SLA.SchedulerEnabled {
		queue := jobs.NewQueue("sla", container.Scheduler.HandleJob, jobs.QueueConfig{
			Workers:    1,
			MaxRetries: cfg.SLA.MaxRetries,
			RetryDelay: cfg.SLA.RetryDelay,
			Logger:     logr,
			OnGiveUp: func(job jobs.Job, err error) {
				logr.Error("sla update abandoned", zap.String("job_id", job.ID), zap.Int("attempts", job.Attempt), zap.Error(err))
			},
		})
		queue.Start(ctx)
		defer queue.Stop()
		container.Scheduler.AttachQueue(queue)
		go container.Scheduler.Run(ctx)
		logr.Info("sla scheduler enabled", zap.String("timezone", cfg.SLA.Timezone), zap.String("job", service.SLAJobType))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           bootstrap.NewRouter(container),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
