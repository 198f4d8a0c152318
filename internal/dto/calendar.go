package dto

import "time"

// WorkingDayResponse answers a working-day lookup.
type WorkingDayResponse struct {
	Date               string `json:"date"`
	WorkingDay         bool   `json:"working_day"`
	PreviousWorkingDay string `json:"previous_working_day"`
}

// HolidayRefreshResponse reports a forced holiday refresh.
type HolidayRefreshResponse struct {
	Division  string    `json:"division"`
	Holidays  int       `json:"holidays"`
	Source    string    `json:"source"`
	FetchedAt time.Time `json:"fetched_at"`
}
