package models

import "time"

// Holiday snapshot sources.
const (
	HolidaySourceProvider = "provider"
	HolidaySourceRedis    = "redis"
	HolidaySourceFile     = "file"
)

// HolidayDateLayout is the calendar date format used for bank holidays.
const HolidayDateLayout = "2006-01-02"

// BankHoliday is a single public holiday for a division.
type BankHoliday struct {
	Title string `json:"title"`
	Date  string `json:"date"`
}

// HolidaySnapshot is the full set of bank holidays for a division at a point in time.
type HolidaySnapshot struct {
	Division  string        `json:"division"`
	Holidays  []BankHoliday `json:"holidays"`
	FetchedAt time.Time     `json:"fetched_at"`
	Source    string        `json:"source,omitempty"`
}

// Dates indexes the snapshot by holiday date.
func (s *HolidaySnapshot) Dates() map[string]bool {
	out := make(map[string]bool, len(s.Holidays))
	for _, h := range s.Holidays {
		out[h.Date] = true
	}
	return out
}
