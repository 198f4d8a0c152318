package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/case-routing-api/internal/models"
	"github.com/noah-isme/case-routing-api/pkg/database"
)

// SLARepository holds the statements of the daily SLA run. Every method is meant to run
// inside the same transaction.
type SLARepository struct {
	db *sqlx.DB
}

// NewSLARepository constructs the repository.
func NewSLARepository(db *sqlx.DB) *SLARepository {
	return &SLARepository{db: db}
}

// LockCandidates selects and row-locks the cases eligible for today's SLA increment: submitted
// before today's cutoff, never closed, SLA tracked, not yet updated today, in a non-terminal status
// and not paused by an ECJU query.
func (r *SLARepository) LockCandidates(ctx context.Context, filter models.SLACandidateFilter) ([]string, error) {
	const query = `
SELECT c.id
FROM cases c
JOIN case_statuses cs ON cs.status = c.status
WHERE c.submitted_at IS NOT NULL
	AND c.submitted_at < $1
	AND c.last_closed_at IS NULL
	AND c.sla_remaining_days IS NOT NULL
	AND (c.sla_updated_at IS NULL OR c.sla_updated_at <> $2::date)
	AND cs.is_terminal = FALSE
	AND NOT EXISTS (
		SELECT 1 FROM ecju_queries q
		WHERE q.case_id = c.id
			AND (
				(q.responded_at IS NULL AND q.created_at < $1)
				OR (q.responded_at >= $3 AND q.responded_at <= $1)
			)
	)
ORDER BY c.id
FOR UPDATE OF c`

	ids := []string{}
	err := database.Conn(ctx, r.db).SelectContext(ctx, &ids, query,
		filter.TodayCutoff,
		filter.Today.Format(models.HolidayDateLayout),
		filter.PreviousCutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("lock sla candidates: %w", err)
	}
	return ids, nil
}

// IncrementQueueSLAs adds a day to the case/queue counter of every queue the cases sit on.
func (r *SLARepository) IncrementQueueSLAs(ctx context.Context, caseIDs []string) (int64, error) {
	const query = `
INSERT INTO case_queue_slas (case_id, queue_id, sla_days)
SELECT cq.case_id, cq.queue_id, 1
FROM case_queues cq
WHERE cq.case_id = ANY($1)
ON CONFLICT (case_id, queue_id) DO UPDATE SET sla_days = case_queue_slas.sla_days + 1`
	return r.exec(ctx, "increment queue slas", query, pq.Array(caseIDs))
}

// IncrementDepartmentSLAs adds a day to the case/department counter once per department owning
// one of the case's queues.
func (r *SLARepository) IncrementDepartmentSLAs(ctx context.Context, caseIDs []string) (int64, error) {
	const query = `
INSERT INTO department_slas (case_id, department_id, sla_days)
SELECT DISTINCT cq.case_id, t.department_id, 1
FROM case_queues cq
JOIN queues q ON q.id = cq.queue_id
JOIN teams t ON t.id = q.team_id
WHERE cq.case_id = ANY($1) AND t.department_id IS NOT NULL
ON CONFLICT (case_id, department_id) DO UPDATE SET sla_days = department_slas.sla_days + 1`
	return r.exec(ctx, "increment department slas", query, pq.Array(caseIDs))
}

// IncrementCaseSLAs advances the case counters and stamps today as the last update.
func (r *SLARepository) IncrementCaseSLAs(ctx context.Context, caseIDs []string, today time.Time) (int64, error) {
	const query = `
UPDATE cases
SET sla_days = sla_days + 1,
	sla_remaining_days = sla_remaining_days - 1,
	sla_updated_at = $2::date
WHERE id = ANY($1)`
	return r.exec(ctx, "increment case slas", query, pq.Array(caseIDs), today.Format(models.HolidayDateLayout))
}

func (r *SLARepository) exec(ctx context.Context, label, query string, args ...interface{}) (int64, error) {
	res, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", label, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", label, err)
	}
	return affected, nil
}
