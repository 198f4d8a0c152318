package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/case-routing-api/internal/models"
	appErrors "github.com/noah-isme/case-routing-api/pkg/errors"
)

type slaStore interface {
	LockCandidates(ctx context.Context, filter models.SLACandidateFilter) ([]string, error)
	IncrementQueueSLAs(ctx context.Context, caseIDs []string) (int64, error)
	IncrementDepartmentSLAs(ctx context.Context, caseIDs []string) (int64, error)
	IncrementCaseSLAs(ctx context.Context, caseIDs []string, today time.Time) (int64, error)
}

type workingDayCalendar interface {
	IsWorkingDay(ctx context.Context, day time.Time) bool
	PreviousWorkingDay(ctx context.Context, day time.Time) time.Time
}

// SLAOptions places the daily cutoff in wall-clock time.
type SLAOptions struct {
	Location     *time.Location
	CutoffHour   int
	CutoffMinute int
}

// SLAService advances the SLA counters of every eligible open case once per working day.
type SLAService struct {
	store    slaStore
	calendar workingDayCalendar
	tx       transactor
	opts     SLAOptions
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewSLAService constructs the SLA clock.
func NewSLAService(store slaStore, calendar workingDayCalendar, tx transactor, opts SLAOptions, metrics *MetricsService, logger *zap.Logger) *SLAService {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SLAService{store: store, calendar: calendar, tx: tx, opts: opts, metrics: metrics, logger: logger}
}

// Cutoffs returns today's cutoff and the cutoff of the previous working day for now.
func (s *SLAService) Cutoffs(ctx context.Context, now time.Time) (time.Time, time.Time) {
	today := dateOf(now.In(s.opts.Location))
	previous := s.calendar.PreviousWorkingDay(ctx, today)
	return s.cutoffOn(today), s.cutoffOn(previous)
}

// RunDailyUpdate increments sla_days and decrements sla_remaining_days for every eligible case,
// together with the per-queue and per-department counters, in one transaction.
// Cases already updated today are skipped, so a repeated run on the same day changes nothing.
func (s *SLAService) RunDailyUpdate(ctx context.Context, now time.Time) (*models.SLAUpdateResult, error) {
	local := now.In(s.opts.Location)
	result := &models.SLAUpdateResult{RunAt: local}

	if !s.calendar.IsWorkingDay(ctx, local) {
		result.Reason = "non-working day"
		s.metrics.RecordSLARun("skipped", 0, now)
		s.logger.Info("sla update skipped on non-working day", zap.String("date", local.Format(models.HolidayDateLayout)))
		return result, nil
	}

	todayCutoff, previousCutoff := s.Cutoffs(ctx, local)
	filter := models.SLACandidateFilter{
		Today:          dateOf(local),
		TodayCutoff:    todayCutoff,
		PreviousCutoff: previousCutoff,
	}

	start := time.Now()
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		caseIDs, err := s.store.LockCandidates(ctx, filter)
		if err != nil {
			return err
		}
		if len(caseIDs) == 0 {
			return nil
		}
		if result.QueueSLAsUpdated, err = s.store.IncrementQueueSLAs(ctx, caseIDs); err != nil {
			return err
		}
		if result.DepartmentUpdates, err = s.store.IncrementDepartmentSLAs(ctx, caseIDs); err != nil {
			return err
		}
		result.CasesUpdated, err = s.store.IncrementCaseSLAs(ctx, caseIDs, filter.Today)
		return err
	})
	s.metrics.ObserveDBQuery("sla_daily_update", time.Since(start))
	if err != nil {
		s.metrics.RecordSLARun("failure", 0, now)
		s.logger.Error("sla update failed", zap.String("date", local.Format(models.HolidayDateLayout)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrSLARunFailed.Code, appErrors.ErrSLARunFailed.Status, appErrors.ErrSLARunFailed.Message)
	}

	result.Ran = true
	s.metrics.RecordSLARun("success", result.CasesUpdated, now)
	s.logger.Info("sla update complete",
		zap.String("date", local.Format(models.HolidayDateLayout)),
		zap.Int64("cases", result.CasesUpdated),
		zap.Int64("queue_slas", result.QueueSLAsUpdated),
		zap.Int64("department_slas", result.DepartmentUpdates),
	)
	return result, nil
}

func (s *SLAService) cutoffOn(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, s.opts.CutoffHour, s.opts.CutoffMinute, 0, 0, s.opts.Location)
}
