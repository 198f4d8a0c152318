package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/case-routing-api/internal/models"
	"github.com/noah-isme/case-routing-api/pkg/database"
)

// CaseStatusRepository reads the workflow status table.
type CaseStatusRepository struct {
	db *sqlx.DB
}

// NewCaseStatusRepository constructs the repository.
func NewCaseStatusRepository(db *sqlx.DB) *CaseStatusRepository {
	return &CaseStatusRepository{db: db}
}

// List returns every status ordered by priority.
func (r *CaseStatusRepository) List(ctx context.Context) ([]models.CaseStatus, error) {
	const query = `SELECT id, status, priority, is_terminal FROM case_statuses ORDER BY priority`
	var statuses []models.CaseStatus
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &statuses, query); err != nil {
		return nil, fmt.Errorf("list case statuses: %w", err)
	}
	return statuses, nil
}
