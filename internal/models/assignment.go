package models

import "time"

// User statuses for government caseworkers.
const (
	UserStatusActive      = "Active"
	UserStatusDeactivated = "Deactivated"
)

// CaseAssignment records a user actively working a case on a queue.
type CaseAssignment struct {
	ID        string    `db:"id" json:"id"`
	CaseID    string    `db:"case_id" json:"case_id"`
	QueueID   string    `db:"queue_id" json:"queue_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
