// Package bootstrap wires configuration, storage and services for the API server and the CLI.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/case-routing-api/internal/repository"
	"github.com/noah-isme/case-routing-api/internal/service"
	"github.com/noah-isme/case-routing-api/pkg/cache"
	"github.com/noah-isme/case-routing-api/pkg/config"
	"github.com/noah-isme/case-routing-api/pkg/database"
)

// Container holds the long-lived dependencies of one process.
type Container struct {
	Config  *config.Config
	Logger  *zap.Logger
	DB      *sqlx.DB
	Redis   *redis.Client
	Metrics *service.MetricsService

	Cases      *repository.CaseRepository
	Calendar   *service.CalendarService
	Routing    *service.RoutingService
	Reconciler *service.QueueReconciler
	Workflow   *service.CaseWorkflowService
	SLA        *service.SLAService
	Scheduler  *service.SLAScheduler
}

// New connects to PostgreSQL and, when enabled, Redis, then builds every service.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logger.Warn("redis unavailable, holiday snapshot sharing disabled", zap.Error(err))
		redisClient = nil
	}

	c, err := Build(cfg, logger, db, redisClient)
	if err != nil {
		partial := &Container{Logger: logger, DB: db, Redis: redisClient}
		partial.Close()
		return nil, err
	}
	return c, nil
}

// Build assembles services over already opened connections. redisClient may be nil.
func Build(cfg *config.Config, logger *zap.Logger, db *sqlx.DB, redisClient *redis.Client) (*Container, error) {
	metrics := service.NewMetricsService()
	tx := database.NewTxManager(db)

	cases := repository.NewCaseRepository(db)
	queues := repository.NewCaseQueueRepository(db)
	assignments := repository.NewAssignmentRepository(db)
	statuses := repository.NewCaseStatusRepository(db)

	var snapshots service.SnapshotRepository
	if redisClient != nil {
		snapshots = repository.NewSnapshotRepository(redisClient)
	}
	holidayCache := service.NewHolidayCache(snapshots, cfg.Calendar.RedisKey, cfg.Calendar.RedisTTL, metrics, logger)
	provider := service.NewGovUKHolidayProvider(cfg.Calendar.HolidaysURL, cfg.Calendar.Division, cfg.Calendar.FetchTimeout, logger)
	calendar := service.NewCalendarService(provider, holidayCache, service.CalendarOptions{
		Location:        cfg.SLA.Location,
		CacheFile:       cfg.Calendar.CacheFile,
		RefreshInterval: cfg.Calendar.RefreshInterval,
		FailOpen:        cfg.Calendar.FailOpen,
	}, metrics, logger)

	routing := service.NewRoutingService(service.RoutingDependencies{
		Rules:       repository.NewRoutingRuleRepository(db),
		Statuses:    statuses,
		Cases:       cases,
		Queues:      queues,
		Assignments: assignments,
		History:     repository.NewRoutingHistoryRepository(db),
		Tx:          tx,
	}, metrics, logger, cfg.Routing.SystemUserID)

	reconciler := service.NewQueueReconciler(queues, assignments, cases, statuses, tx, metrics, logger)
	workflow := service.NewCaseWorkflowService(cases, statuses, assignments, queues, routing, reconciler, tx, validator.New(), logger)

	sla := service.NewSLAService(repository.NewSLARepository(db), calendar, tx, service.SLAOptions{
		Location:     cfg.SLA.Location,
		CutoffHour:   cfg.SLA.CutoffHour,
		CutoffMinute: cfg.SLA.CutoffMinute,
	}, metrics, logger)
	scheduler, err := service.NewSLAScheduler(sla, service.SLASchedulerOptions{
		Location:  cfg.SLA.Location,
		RunHour:   cfg.SLA.RunHour,
		RunMinute: cfg.SLA.RunMinute,
	}, logger)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:     cfg,
		Logger:     logger,
		DB:         db,
		Redis:      redisClient,
		Metrics:    metrics,
		Cases:      cases,
		Calendar:   calendar,
		Routing:    routing,
		Reconciler: reconciler,
		Workflow:   workflow,
		SLA:        sla,
		Scheduler:  scheduler,
	}, nil
}

// Close releases the database and Redis connections.
func (c *Container) Close() {
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Logger.Warn("close redis", zap.Error(err))
		}
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			c.Logger.Warn("close postgres", zap.Error(err))
		}
	}
}
