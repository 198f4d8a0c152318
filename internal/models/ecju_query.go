package models

import "time"

// EcjuQuery is a question raised to the exporter; while open it pauses the SLA clock.
type EcjuQuery struct {
	ID          string     `db:"id" json:"id"`
	CaseID      string     `db:"case_id" json:"case_id"`
	Question    string     `db:"question" json:"question"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	RespondedAt *time.Time `db:"responded_at" json:"responded_at,omitempty"`
}
