package models

import "time"

// Routing history actions and orchestrators.
const (
	RoutingActionAdd    = "add"
	RoutingActionRemove = "remove"

	OrchestratorRoutingEngine = "routing_engine"
	OrchestratorManual        = "manual"
)

// RoutingHistory records a queue movement applied to a case.
type RoutingHistory struct {
	ID               string    `db:"id" json:"id"`
	CaseID           string    `db:"case_id" json:"case_id"`
	QueueID          string    `db:"queue_id" json:"queue_id"`
	Action           string    `db:"action" json:"action"`
	OrchestratorType string    `db:"orchestrator_type" json:"orchestrator_type"`
	OrchestratorID   string    `db:"orchestrator_id" json:"orchestrator_id"`
	CaseStatus       string    `db:"case_status" json:"case_status"`
	CaseFlags        []string  `db:"-" json:"case_flags"`
	CaseQueues       []string  `db:"-" json:"case_queues"`
	RuleIdentifier   string    `db:"rule_identifier" json:"rule_identifier"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}
