package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/case-routing-api/internal/models"
	appErrors "github.com/noah-isme/case-routing-api/pkg/errors"
)

// SnapshotRepository abstracts the key/value store holding serialised snapshots.
type SnapshotRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// HolidayCache keeps the last good bank holiday snapshot in a shared store so that
// every replica can fall back to it when the provider is unreachable.
type HolidayCache struct {
	repo    SnapshotRepository
	key     string
	ttl     time.Duration
	metrics *MetricsService
	logger  *zap.Logger
}

// NewHolidayCache constructs the cache. A nil repo disables it.
func NewHolidayCache(repo SnapshotRepository, key string, ttl time.Duration, metrics *MetricsService, logger *zap.Logger) *HolidayCache {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HolidayCache{repo: repo, key: key, ttl: ttl, metrics: metrics, logger: logger}
}

// Enabled indicates whether a backing store is configured.
func (c *HolidayCache) Enabled() bool {
	return c != nil && c.repo != nil
}

// Load returns the cached snapshot; ok is false on a miss.
func (c *HolidayCache) Load(ctx context.Context) (*models.HolidaySnapshot, bool, error) {
	if !c.Enabled() {
		return nil, false, nil
	}
	start := time.Now()
	var snapshot models.HolidaySnapshot
	err := c.repo.Get(ctx, c.key, &snapshot)
	duration := time.Since(start)
	if err != nil {
		c.metrics.RecordCacheOperation(false, duration)
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return nil, false, nil
		}
		c.logger.Warn("holiday cache get failed", zap.String("key", c.key), zap.Error(err))
		return nil, false, err
	}
	c.metrics.RecordCacheOperation(true, duration)
	snapshot.Source = models.HolidaySourceRedis
	return &snapshot, true, nil
}

// Save stores snapshot for the configured TTL.
func (c *HolidayCache) Save(ctx context.Context, snapshot *models.HolidaySnapshot) error {
	if !c.Enabled() || snapshot == nil {
		return nil
	}
	if err := c.repo.Set(ctx, c.key, snapshot, c.ttl); err != nil {
		c.logger.Warn("holiday cache set failed", zap.String("key", c.key), zap.Error(err))
		return err
	}
	return nil
}

// Invalidate drops the cached snapshot.
func (c *HolidayCache) Invalidate(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	if err := c.repo.Delete(ctx, c.key); err != nil {
		c.logger.Warn("holiday cache invalidate failed", zap.String("key", c.key), zap.Error(err))
		return err
	}
	return nil
}
