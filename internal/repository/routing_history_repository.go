package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/case-routing-api/internal/models"
	"github.com/noah-isme/case-routing-api/pkg/database"
)

// RoutingHistoryRepository appends queue movement records.
type RoutingHistoryRepository struct {
	db *sqlx.DB
}

// NewRoutingHistoryRepository constructs the repository.
func NewRoutingHistoryRepository(db *sqlx.DB) *RoutingHistoryRepository {
	return &RoutingHistoryRepository{db: db}
}

// Record inserts one history entry.
func (r *RoutingHistoryRepository) Record(ctx context.Context, entry *models.RoutingHistory) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	const query = `INSERT INTO routing_history (id, case_id, queue_id, action, orchestrator_type, orchestrator_id, case_status, case_flags, case_queues, rule_identifier, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, query,
		entry.ID,
		entry.CaseID,
		entry.QueueID,
		entry.Action,
		entry.OrchestratorType,
		entry.OrchestratorID,
		entry.CaseStatus,
		pq.Array(entry.CaseFlags),
		pq.Array(entry.CaseQueues),
		entry.RuleIdentifier,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record routing history: %w", err)
	}
	return nil
}
