package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/case-routing-api/internal/models"
	appErrors "github.com/noah-isme/case-routing-api/pkg/errors"
)

// maxCalendarWalk bounds day-by-day searches so a corrupt holiday list cannot loop forever.
const maxCalendarWalk = 366

// minRefreshRetry spaces out provider retries after a failed refresh.
const minRefreshRetry = 5 * time.Minute

// HolidayProvider supplies the authoritative bank holiday list.
type HolidayProvider interface {
	Fetch(ctx context.Context) (*models.HolidaySnapshot, error)
}

type holidaySnapshotCache interface {
	Load(ctx context.Context) (*models.HolidaySnapshot, bool, error)
	Save(ctx context.Context, snapshot *models.HolidaySnapshot) error
	Invalidate(ctx context.Context) error
}

// CalendarOptions configures the working-day calendar.
type CalendarOptions struct {
	Location        *time.Location
	CacheFile       string
	RefreshInterval time.Duration
	// FailOpen treats weekdays as working days when no holiday data is available at all.
	FailOpen bool
}

// CalendarService answers working-day questions from a bank holiday list refreshed at most once per interval.
// When the provider fails it falls back to the shared cache, then the local file, then the fail-open policy.
type CalendarService struct {
	provider HolidayProvider
	cache    holidaySnapshotCache
	opts     CalendarOptions
	metrics  *MetricsService
	logger   *zap.Logger
	now      func() time.Time

	refreshMu   sync.Mutex
	mu          sync.RWMutex
	snapshot    *models.HolidaySnapshot
	holidays    map[string]bool
	loadedAt    time.Time
	lastAttempt time.Time
}

// NewCalendarService constructs the calendar. cache may be nil.
func NewCalendarService(provider HolidayProvider, cache holidaySnapshotCache, opts CalendarOptions, metrics *MetricsService, logger *zap.Logger) *CalendarService {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalendarService{
		provider: provider,
		cache:    cache,
		opts:     opts,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// IsWorkingDay reports whether day is neither a weekend nor a bank holiday.
func (s *CalendarService) IsWorkingDay(ctx context.Context, day time.Time) bool {
	local := day.In(s.opts.Location)
	if isWeekend(local) {
		return false
	}
	holidays, ok := s.ensureLoaded(ctx)
	if !ok {
		s.metrics.RecordCalendarFallback("policy")
		s.logger.Warn("no bank holiday data available, applying fail policy",
			zap.String("date", local.Format(models.HolidayDateLayout)),
			zap.Bool("fail_open", s.opts.FailOpen),
		)
		return s.opts.FailOpen
	}
	return !holidays[local.Format(models.HolidayDateLayout)]
}

// PreviousWorkingDay returns the latest working day strictly before day, at midnight in the calendar location.
// Without holiday data only weekends are skipped.
func (s *CalendarService) PreviousWorkingDay(ctx context.Context, day time.Time) time.Time {
	holidays, _ := s.ensureLoaded(ctx)
	candidate := dateOf(day.In(s.opts.Location))
	for i := 0; i < maxCalendarWalk; i++ {
		candidate = candidate.AddDate(0, 0, -1)
		if isWeekend(candidate) || holidays[candidate.Format(models.HolidayDateLayout)] {
			continue
		}
		return candidate
	}
	s.logger.Error("no working day found within a year", zap.Time("from", day))
	return candidate
}

// WorkingDaysBetween counts working days in the inclusive range [from, to].
func (s *CalendarService) WorkingDaysBetween(ctx context.Context, from, to time.Time) int {
	start := dateOf(from.In(s.opts.Location))
	end := dateOf(to.In(s.opts.Location))
	count := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if s.IsWorkingDay(ctx, d) {
			count++
		}
	}
	return count
}

// HolidaysBetween lists bank holidays in the inclusive range [from, to], ordered by date.
func (s *CalendarService) HolidaysBetween(ctx context.Context, from, to time.Time) []models.BankHoliday {
	s.ensureLoaded(ctx)
	s.mu.RLock()
	snapshot := s.snapshot
	s.mu.RUnlock()
	if snapshot == nil {
		return nil
	}

	lo := from.In(s.opts.Location).Format(models.HolidayDateLayout)
	hi := to.In(s.opts.Location).Format(models.HolidayDateLayout)
	var out []models.BankHoliday
	for _, h := range snapshot.Holidays {
		if h.Date >= lo && h.Date <= hi {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Refresh fetches the holiday list from the provider and stores it in every fallback tier.
func (s *CalendarService) Refresh(ctx context.Context) (*models.HolidaySnapshot, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	return s.refreshLocked(ctx)
}

// Snapshot returns the holiday list currently in use, or nil.
func (s *CalendarService) Snapshot() *models.HolidaySnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

func (s *CalendarService) refreshLocked(ctx context.Context) (*models.HolidaySnapshot, error) {
	s.mu.Lock()
	s.lastAttempt = s.now()
	s.mu.Unlock()

	if s.provider == nil {
		return nil, appErrors.Clone(appErrors.ErrCalendarUnavailable, "no bank holiday provider configured")
	}
	snapshot, err := s.provider.Fetch(ctx)
	if err != nil {
		s.metrics.RecordCalendarRefresh("failure")
		return nil, appErrors.Wrap(err, appErrors.ErrCalendarUnavailable.Code, appErrors.ErrCalendarUnavailable.Status, "failed to refresh bank holidays")
	}
	s.metrics.RecordCalendarRefresh("success")
	s.install(snapshot)

	if s.cache != nil {
		if err := s.cache.Save(ctx, snapshot); err != nil {
			s.logger.Warn("failed to store bank holidays in cache", zap.Error(err))
		}
	}
	if err := s.writeFile(snapshot); err != nil {
		s.logger.Warn("failed to write bank holiday file", zap.String("path", s.opts.CacheFile), zap.Error(err))
	}
	s.logger.Info("bank holidays refreshed", zap.String("division", snapshot.Division), zap.Int("holidays", len(snapshot.Holidays)))
	return snapshot, nil
}

// ensureLoaded returns the current holiday index, refreshing it when stale. ok is false when no data exists.
func (s *CalendarService) ensureLoaded(ctx context.Context) (map[string]bool, bool) {
	if holidays, fresh := s.current(); fresh {
		return holidays, true
	}

	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	if holidays, fresh := s.current(); fresh {
		return holidays, true
	}

	s.mu.RLock()
	retryDue := s.lastAttempt.IsZero() || s.now().Sub(s.lastAttempt) >= minRefreshRetry
	s.mu.RUnlock()
	if retryDue {
		_, err := s.refreshLocked(ctx)
		if err == nil {
			holidays, _ := s.current()
			return holidays, true
		}
		s.logger.Warn("bank holiday refresh failed, using fallback", zap.Error(err))
	}

	s.mu.RLock()
	holidays, loaded := s.holidays, s.snapshot != nil
	s.mu.RUnlock()
	if loaded {
		s.metrics.RecordCalendarFallback("stale")
		return holidays, true
	}

	if s.cache != nil {
		snapshot, ok, err := s.cache.Load(ctx)
		if err != nil {
			s.logger.Warn("failed to read bank holidays from cache", zap.Error(err))
		}
		if ok && len(snapshot.Holidays) == 0 {
			// An empty list would silently make every weekday a working day.
			s.logger.Warn("discarding empty bank holiday snapshot from cache")
			if err := s.cache.Invalidate(ctx); err != nil {
				s.logger.Warn("failed to drop empty bank holiday snapshot", zap.Error(err))
			}
			ok = false
		}
		if ok {
			s.metrics.RecordCalendarFallback(models.HolidaySourceRedis)
			s.installStale(snapshot)
			return snapshot.Dates(), true
		}
	}

	snapshot, err := s.readFile()
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read bank holiday file", zap.String("path", s.opts.CacheFile), zap.Error(err))
		}
		return nil, false
	}
	s.metrics.RecordCalendarFallback(models.HolidaySourceFile)
	s.installStale(snapshot)
	return snapshot.Dates(), true
}

func (s *CalendarService) current() (map[string]bool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil || s.loadedAt.IsZero() {
		return nil, false
	}
	return s.holidays, s.now().Sub(s.loadedAt) < s.opts.RefreshInterval
}

func (s *CalendarService) install(snapshot *models.HolidaySnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = snapshot
	s.holidays = snapshot.Dates()
	s.loadedAt = s.now()
}

// installStale keeps fallback data without marking it fresh, so the provider is retried later.
func (s *CalendarService) installStale(snapshot *models.HolidaySnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = snapshot
	s.holidays = snapshot.Dates()
}

func (s *CalendarService) readFile() (*models.HolidaySnapshot, error) {
	if s.opts.CacheFile == "" {
		return nil, os.ErrNotExist
	}
	raw, err := os.ReadFile(s.opts.CacheFile)
	if err != nil {
		return nil, err
	}
	var snapshot models.HolidaySnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.opts.CacheFile, err)
	}
	snapshot.Source = models.HolidaySourceFile
	return &snapshot, nil
}

func (s *CalendarService) writeFile(snapshot *models.HolidaySnapshot) error {
	if s.opts.CacheFile == "" {
		return nil
	}
	payload, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.opts.CacheFile); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := s.opts.CacheFile + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.opts.CacheFile)
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
