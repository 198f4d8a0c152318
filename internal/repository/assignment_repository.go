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

// AssignmentRepository manages case assignments.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// Create persists an assignment. An identical (case, queue, user) assignment is left untouched.
func (r *AssignmentRepository) Create(ctx context.Context, a *models.CaseAssignment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	const query = `INSERT INTO case_assignments (id, case_id, queue_id, user_id, created_at) VALUES (:id, :case_id, :queue_id, :user_id, :created_at) ON CONFLICT (case_id, queue_id, user_id) DO NOTHING`
	if _, err := database.Conn(ctx, r.db).NamedExecContext(ctx, query, a); err != nil {
		return fmt.Errorf("create case assignment: %w", err)
	}
	return nil
}

// DeleteByCase removes every assignment on a case.
func (r *AssignmentRepository) DeleteByCase(ctx context.Context, caseID string) (int64, error) {
	res, err := database.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM case_assignments WHERE case_id = $1`, caseID)
	if err != nil {
		return 0, fmt.Errorf("clear case assignments: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear case assignments: %w", err)
	}
	return affected, nil
}

// DeleteForUser removes a user's assignments on the given queues and returns the queues released.
func (r *AssignmentRepository) DeleteForUser(ctx context.Context, caseID, userID string, queueIDs []string) ([]string, error) {
	const query = `DELETE FROM case_assignments WHERE case_id = $1 AND user_id = $2 AND queue_id = ANY($3) RETURNING queue_id`
	released := []string{}
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &released, query, caseID, userID, pq.Array(queueIDs)); err != nil {
		return nil, fmt.Errorf("release case assignments: %w", err)
	}
	return released, nil
}

// QueuesWithAssignments returns the subset of queueIDs on which someone is still assigned to the case.
func (r *AssignmentRepository) QueuesWithAssignments(ctx context.Context, caseID string, queueIDs []string) ([]string, error) {
	const query = `SELECT DISTINCT queue_id FROM case_assignments WHERE case_id = $1 AND queue_id = ANY($2) ORDER BY queue_id`
	queues := []string{}
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &queues, query, caseID, pq.Array(queueIDs)); err != nil {
		return nil, fmt.Errorf("list assigned queues: %w", err)
	}
	return queues, nil
}

// ListByCase returns a case's assignments.
func (r *AssignmentRepository) ListByCase(ctx context.Context, caseID string) ([]models.CaseAssignment, error) {
	const query = `SELECT id, case_id, queue_id, user_id, created_at FROM case_assignments WHERE case_id = $1 ORDER BY created_at`
	var out []models.CaseAssignment
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &out, query, caseID); err != nil {
		return nil, fmt.Errorf("list case assignments: %w", err)
	}
	return out, nil
}
