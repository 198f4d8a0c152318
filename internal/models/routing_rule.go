package models

import "time"

// RuleField names an optional constraint a routing rule may opt into.
type RuleField string

const (
	RuleFieldUsers     RuleField = "users"
	RuleFieldCaseTypes RuleField = "case_types"
	RuleFieldFlags     RuleField = "flags"
	RuleFieldCountry   RuleField = "country"
)

// RoutingRule is a declarative, team-owned rule placing cases on a queue.
// TeamName, QueueName and AssignedUserRef are nil when the referenced row no longer exists.
type RoutingRule struct {
	ID                 string      `db:"id" json:"id"`
	TeamID             string      `db:"team_id" json:"team_id"`
	TeamName           *string     `db:"team_name" json:"team_name,omitempty"`
	QueueID            string      `db:"queue_id" json:"queue_id"`
	QueueName          *string     `db:"queue_name" json:"queue_name,omitempty"`
	Status             string      `db:"status" json:"status"`
	Tier               int         `db:"tier" json:"tier"`
	Active             bool        `db:"active" json:"active"`
	AdditionalFields   []RuleField `db:"-" json:"additional_rules"`
	AssignedUserID     *string     `db:"user_id" json:"user_id,omitempty"`
	AssignedUserRef    *string     `db:"user_ref" json:"-"`
	AssignedUserStatus *string     `db:"user_status" json:"-"`
	CaseTypes          []CaseType  `db:"-" json:"case_types,omitempty"`
	Flags              []string    `db:"-" json:"flags,omitempty"`
	Country            *string     `db:"country_id" json:"country,omitempty"`
	CreatedAt          time.Time   `db:"created_at" json:"created_at"`
}

// Selects reports whether the rule constrains the given field.
func (r RoutingRule) Selects(field RuleField) bool {
	for _, f := range r.AdditionalFields {
		if f == field {
			return true
		}
	}
	return false
}

// AssigneeActive reports whether the rule's user may receive case assignments.
func (r RoutingRule) AssigneeActive() bool {
	if r.AssignedUserID == nil || r.AssignedUserRef == nil || r.AssignedUserStatus == nil {
		return false
	}
	return *r.AssignedUserStatus == UserStatusActive
}
