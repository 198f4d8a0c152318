package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/case-routing-api/pkg/database"
)

// CaseQueueRepository manages case membership of work queues.
type CaseQueueRepository struct {
	db *sqlx.DB
}

// NewCaseQueueRepository constructs the repository.
func NewCaseQueueRepository(db *sqlx.DB) *CaseQueueRepository {
	return &CaseQueueRepository{db: db}
}

// AddToQueue places a case on a queue. Adding it twice is a no-op.
func (r *CaseQueueRepository) AddToQueue(ctx context.Context, caseID, queueID string) error {
	const query = `INSERT INTO case_queues (case_id, queue_id, created_at) VALUES ($1, $2, NOW()) ON CONFLICT (case_id, queue_id) DO NOTHING`
	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, caseID, queueID); err != nil {
		return fmt.Errorf("add case to queue: %w", err)
	}
	return nil
}

// RemoveFromAllQueues takes a case off every queue.
func (r *CaseQueueRepository) RemoveFromAllQueues(ctx context.Context, caseID string) (int64, error) {
	res, err := database.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM case_queues WHERE case_id = $1`, caseID)
	if err != nil {
		return 0, fmt.Errorf("clear case queues: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear case queues: %w", err)
	}
	return affected, nil
}

// RemoveFromQueues takes a case off the given queues and returns the ones it was actually on.
func (r *CaseQueueRepository) RemoveFromQueues(ctx context.Context, caseID string, queueIDs []string) ([]string, error) {
	const query = `DELETE FROM case_queues WHERE case_id = $1 AND queue_id = ANY($2) RETURNING queue_id`
	removed := []string{}
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &removed, query, caseID, pq.Array(queueIDs)); err != nil {
		return nil, fmt.Errorf("remove case from queues: %w", err)
	}
	return removed, nil
}

// ListQueues returns the queues a case currently sits on.
func (r *CaseQueueRepository) ListQueues(ctx context.Context, caseID string) ([]string, error) {
	const query = `SELECT queue_id FROM case_queues WHERE case_id = $1 ORDER BY queue_id`
	queues := []string{}
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &queues, query, caseID); err != nil {
		return nil, fmt.Errorf("list case queues: %w", err)
	}
	return queues, nil
}
