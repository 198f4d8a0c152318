package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/case-routing-api/internal/models"
	"github.com/noah-isme/case-routing-api/pkg/jobs"
)

// SLAJobType identifies the daily SLA update on the job queue.
const SLAJobType = "sla.daily_update"

type slaRunner interface {
	RunDailyUpdate(ctx context.Context, now time.Time) (*models.SLAUpdateResult, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// SLAJobPayload pins a queued run to the calendar date it was scheduled for.
type SLAJobPayload struct {
	Date string `json:"date"`
}

// SLASchedulerOptions configures when the daily run fires.
type SLASchedulerOptions struct {
	Location  *time.Location
	RunHour   int
	RunMinute int
	// Spec overrides RunHour and RunMinute with a standard cron expression.
	Spec string
}

// SLAScheduler fires the SLA update once a day and dispatches it through the job queue, which owns retries.
type SLAScheduler struct {
	runner   slaRunner
	opts     SLASchedulerOptions
	schedule cron.Schedule
	logger   *zap.Logger
	now      func() time.Time

	mu    sync.RWMutex
	queue jobDispatcher
}

// NewSLAScheduler constructs the scheduler. AttachQueue must be called before Run.
func NewSLAScheduler(runner slaRunner, opts SLASchedulerOptions, logger *zap.Logger) (*SLAScheduler, error) {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Spec == "" {
		opts.Spec = fmt.Sprintf("%d %d * * *", opts.RunMinute, opts.RunHour)
	}
	schedule, err := cron.ParseStandard(opts.Spec)
	if err != nil {
		return nil, fmt.Errorf("parse sla schedule %q: %w", opts.Spec, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SLAScheduler{runner: runner, opts: opts, schedule: schedule, logger: logger, now: time.Now}, nil
}

// AttachQueue sets the dispatcher used for scheduled runs.
func (s *SLAScheduler) AttachQueue(queue jobDispatcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = queue
}

// NextRun returns the first scheduled run strictly after now, in the scheduler's location.
func (s *SLAScheduler) NextRun(now time.Time) time.Time {
	return s.schedule.Next(now.In(s.opts.Location))
}

// Run blocks, enqueuing one SLA job per scheduled firing until ctx is cancelled.
func (s *SLAScheduler) Run(ctx context.Context) {
	c := cron.New(cron.WithLocation(s.opts.Location))
	c.Schedule(s.schedule, cron.FuncJob(func() {
		if err := s.Dispatch(s.now()); err != nil {
			s.logger.Error("failed to enqueue sla update", zap.Error(err))
		}
	}))
	c.Start()
	s.logger.Info("sla update scheduled", zap.String("spec", s.opts.Spec), zap.Time("next_run", s.NextRun(s.now())))

	<-ctx.Done()
	<-c.Stop().Done()
}

// Dispatch enqueues an SLA update for the date of at.
func (s *SLAScheduler) Dispatch(at time.Time) error {
	s.mu.RLock()
	queue := s.queue
	s.mu.RUnlock()
	if queue == nil {
		return fmt.Errorf("sla scheduler has no job queue")
	}
	return queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    SLAJobType,
		Payload: SLAJobPayload{Date: at.In(s.opts.Location).Format(models.HolidayDateLayout)},
	})
}

// HandleJob runs the SLA update for a queued job. Retries landing on a later date are dropped,
// since that date gets its own run.
func (s *SLAScheduler) HandleJob(ctx context.Context, job jobs.Job) error {
	now := s.now().In(s.opts.Location)
	if payload, ok := job.Payload.(SLAJobPayload); ok && payload.Date != "" {
		if today := now.Format(models.HolidayDateLayout); payload.Date != today {
			s.logger.Warn("dropping stale sla update",
				zap.String("job_id", job.ID),
				zap.String("scheduled_for", payload.Date),
				zap.String("today", today),
				zap.Int("attempt", job.Attempt),
			)
			return nil
		}
	}

	result, err := s.runner.RunDailyUpdate(ctx, now)
	if err != nil {
		s.logger.Warn("sla update attempt failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
		return err
	}
	s.logger.Info("sla job finished", zap.String("job_id", job.ID), zap.Bool("ran", result.Ran), zap.Int64("cases", result.CasesUpdated))
	return nil
}
