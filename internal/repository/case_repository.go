package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/case-routing-api/internal/models"
	"github.com/noah-isme/case-routing-api/pkg/database"
)

const caseColumns = `c.id, c.reference, c.status, c.case_type, c.destination_country, c.submitted_at, c.last_closed_at, c.sla_days, c.sla_remaining_days, c.sla_updated_at, c.created_at, c.updated_at`

// CaseRepository manages persistence for cases.
type CaseRepository struct {
	db *sqlx.DB
}

// NewCaseRepository constructs a case repository.
func NewCaseRepository(db *sqlx.DB) *CaseRepository {
	return &CaseRepository{db: db}
}

// FindByID returns a case with its flags.
func (r *CaseRepository) FindByID(ctx context.Context, id string) (*models.Case, error) {
	return r.get(ctx, `SELECT `+caseColumns+` FROM cases c WHERE c.id = $1`, id)
}

// GetForUpdate returns a case with its flags, locking the case row until the surrounding transaction ends.
func (r *CaseRepository) GetForUpdate(ctx context.Context, id string) (*models.Case, error) {
	return r.get(ctx, `SELECT `+caseColumns+` FROM cases c WHERE c.id = $1 FOR UPDATE`, id)
}

func (r *CaseRepository) get(ctx context.Context, query, id string) (*models.Case, error) {
	conn := database.Conn(ctx, r.db)
	var c models.Case
	if err := conn.GetContext(ctx, &c, query, id); err != nil {
		return nil, fmt.Errorf("get case %s: %w", id, err)
	}
	flags, err := r.Flags(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Flags = flags
	return &c, nil
}

// Flags lists the flag ids attached to a case.
func (r *CaseRepository) Flags(ctx context.Context, caseID string) ([]string, error) {
	const query = `SELECT flag_id FROM case_flags WHERE case_id = $1 ORDER BY flag_id`
	flags := []string{}
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &flags, query, caseID); err != nil {
		return nil, fmt.Errorf("list case flags: %w", err)
	}
	return flags, nil
}

// UpdateStatus sets the case status.
func (r *CaseRepository) UpdateStatus(ctx context.Context, caseID, status string) error {
	const query = `UPDATE cases SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, caseID, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update case status: %w", err)
	}
	return nil
}

// MarkSubmitted persists the submission of a draft case with its seeded SLA counters.
// It affects nothing when the case was already submitted.
func (r *CaseRepository) MarkSubmitted(ctx context.Context, c *models.Case) error {
	const query = `UPDATE cases SET status = $2, submitted_at = $3, sla_days = $4, sla_remaining_days = $5, updated_at = $3
WHERE id = $1 AND submitted_at IS NULL`
	if c.SubmittedAt == nil {
		return fmt.Errorf("mark case %s submitted: submission time is required", c.ID)
	}
	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, c.ID, c.Status, *c.SubmittedAt, c.SLADays, c.SLARemainingDays); err != nil {
		return fmt.Errorf("mark case submitted: %w", err)
	}
	return nil
}

// MarkClosed stamps last_closed_at unless the case was already closed once.
func (r *CaseRepository) MarkClosed(ctx context.Context, caseID string, at time.Time) error {
	const query = `UPDATE cases SET last_closed_at = $2, updated_at = $2 WHERE id = $1 AND last_closed_at IS NULL`
	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, caseID, at); err != nil {
		return fmt.Errorf("mark case closed: %w", err)
	}
	return nil
}
