package models

import "time"

// CaseType enumerates the kinds of case handled by the licensing workflow.
type CaseType string

const (
	CaseTypeStandard        CaseType = "standard"
	CaseTypeOpen            CaseType = "open"
	CaseTypeExhibition      CaseType = "exhibition"
	CaseTypeF680            CaseType = "f680"
	CaseTypeGifting         CaseType = "gifting"
	CaseTypeHMRC            CaseType = "hmrc"
	CaseTypeGoodsQuery      CaseType = "goods_query"
	CaseTypeEndUserAdvisory CaseType = "end_user_advisory"
)

// HasDestination reports whether cases of this type carry a destination country.
func (t CaseType) HasDestination() bool {
	switch t {
	case CaseTypeGoodsQuery, CaseTypeEndUserAdvisory:
		return false
	default:
		return true
	}
}

// Case is the unit routed through team queues and counted against the SLA clock.
type Case struct {
	ID                 string     `db:"id" json:"id"`
	Reference          string     `db:"reference" json:"reference"`
	Status             string     `db:"status" json:"status"`
	CaseType           CaseType   `db:"case_type" json:"case_type"`
	DestinationCountry *string    `db:"destination_country" json:"destination_country,omitempty"`
	Flags              []string   `db:"-" json:"flags"`
	SubmittedAt        *time.Time `db:"submitted_at" json:"submitted_at,omitempty"`
	LastClosedAt       *time.Time `db:"last_closed_at" json:"last_closed_at,omitempty"`
	SLADays            int        `db:"sla_days" json:"sla_days"`
	SLARemainingDays   *int       `db:"sla_remaining_days" json:"sla_remaining_days,omitempty"`
	SLAUpdatedAt       *time.Time `db:"sla_updated_at" json:"sla_updated_at,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// Submitted reports whether the case has left draft and participates in the workflow.
func (c *Case) Submitted() bool {
	return c != nil && c.SubmittedAt != nil
}

// SeedSLA initialises the remaining-days counter from the case type target.
// Case types without a target are left untracked.
func (c *Case) SeedSLA() {
	days, ok := SLATargetDays(c.CaseType)
	if !ok {
		c.SLARemainingDays = nil
		return
	}
	c.SLADays = 0
	c.SLARemainingDays = &days
}
