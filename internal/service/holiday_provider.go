package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/noah-isme/case-routing-api/internal/models"
)

type govUKDivision struct {
	Division string               `json:"division"`
	Events   []models.BankHoliday `json:"events"`
}

// GovUKHolidayProvider fetches bank holidays from the gov.uk bank-holidays feed.
type GovUKHolidayProvider struct {
	client   *resty.Client
	url      string
	division string
	logger   *zap.Logger
	now      func() time.Time
}

// NewGovUKHolidayProvider builds a provider for one division, e.g. england-and-wales.
func NewGovUKHolidayProvider(url, division string, timeout time.Duration, logger *zap.Logger) *GovUKHolidayProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200*time.Millisecond).
		SetRetryMaxWaitTime(time.Second).
		SetHeader("Accept", "application/json")

	return &GovUKHolidayProvider{client: client, url: url, division: division, logger: logger, now: time.Now}
}

// Fetch downloads the feed and returns the configured division's holidays.
func (p *GovUKHolidayProvider) Fetch(ctx context.Context) (*models.HolidaySnapshot, error) {
	var payload map[string]govUKDivision
	resp, err := p.client.R().
		SetContext(ctx).
		SetResult(&payload).
		Get(p.url)
	if err != nil {
		return nil, fmt.Errorf("fetch bank holidays: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch bank holidays: unexpected status %d", resp.StatusCode())
	}

	division, ok := payload[p.division]
	if !ok {
		return nil, fmt.Errorf("fetch bank holidays: division %q missing from feed", p.division)
	}
	for _, h := range division.Events {
		if _, err := time.Parse(models.HolidayDateLayout, h.Date); err != nil {
			return nil, fmt.Errorf("fetch bank holidays: bad date %q: %w", h.Date, err)
		}
	}

	p.logger.Debug("bank holidays fetched", zap.String("division", p.division), zap.Int("count", len(division.Events)))
	return &models.HolidaySnapshot{
		Division:  p.division,
		Holidays:  division.Events,
		FetchedAt: p.now().UTC(),
		Source:    models.HolidaySourceProvider,
	}, nil
}
