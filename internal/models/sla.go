package models

import "time"

// SLA target days by case type.
const (
	StandardApplicationTargetDays = 20
	OpenApplicationTargetDays     = 60
	HMRCQueryTargetDays           = 2
	MODClearanceTargetDays        = 30
)

// SLATargetDays returns the licensing target for a case type; false means the type is not SLA tracked.
func SLATargetDays(t CaseType) (int, bool) {
	switch t {
	case CaseTypeStandard:
		return StandardApplicationTargetDays, true
	case CaseTypeOpen:
		return OpenApplicationTargetDays, true
	case CaseTypeHMRC:
		return HMRCQueryTargetDays, true
	case CaseTypeExhibition, CaseTypeF680, CaseTypeGifting:
		return MODClearanceTargetDays, true
	default:
		return 0, false
	}
}

// SLACandidateFilter captures the time boundaries of one daily SLA run.
type SLACandidateFilter struct {
	Today          time.Time
	TodayCutoff    time.Time
	PreviousCutoff time.Time
}

// SLAUpdateResult summarises one daily SLA run.
type SLAUpdateResult struct {
	Ran               bool      `json:"ran"`
	Reason            string    `json:"reason,omitempty"`
	RunAt             time.Time `json:"run_at"`
	CasesUpdated      int64     `json:"cases_updated"`
	QueueSLAsUpdated  int64     `json:"queue_slas_updated"`
	DepartmentUpdates int64     `json:"department_slas_updated"`
}

// CaseQueueSLA counts SLA days a case has spent on a particular queue.
type CaseQueueSLA struct {
	CaseID  string `db:"case_id" json:"case_id"`
	QueueID string `db:"queue_id" json:"queue_id"`
	SLADays int    `db:"sla_days" json:"sla_days"`
}

// DepartmentSLA counts SLA days a case has spent with a department.
type DepartmentSLA struct {
	CaseID       string `db:"case_id" json:"case_id"`
	DepartmentID string `db:"department_id" json:"department_id"`
	SLADays      int    `db:"sla_days" json:"sla_days"`
}
