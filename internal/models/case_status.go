package models

// Well-known workflow statuses.
const (
	StatusSubmitted        = "submitted"
	StatusInitialChecks    = "initial_checks"
	StatusUnderReview      = "under_review"
	StatusOGDAdvice        = "ogd_advice"
	StatusUnderFinalReview = "under_final_review"
	StatusFinalised        = "finalised"
	StatusWithdrawn        = "withdrawn"
	StatusClosed           = "closed"
	StatusApplicantEditing = "applicant_editing"
)

// CaseStatus is a node in the workflow graph.
type CaseStatus struct {
	ID         string `db:"id" json:"id"`
	Status     string `db:"status" json:"status"`
	Priority   int    `db:"priority" json:"priority"`
	IsTerminal bool   `db:"is_terminal" json:"is_terminal"`
}
