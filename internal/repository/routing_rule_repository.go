package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/case-routing-api/internal/models"
	"github.com/noah-isme/case-routing-api/pkg/database"
)

type routingRuleRow struct {
	models.RoutingRule
	AdditionalRules pq.StringArray `db:"additional_rules"`
}

type ruleValueRow struct {
	RuleID string `db:"routing_rule_id"`
	Value  string `db:"value"`
}

// RoutingRuleRepository reads routing rules.
type RoutingRuleRepository struct {
	db *sqlx.DB
}

// NewRoutingRuleRepository constructs the repository.
func NewRoutingRuleRepository(db *sqlx.DB) *RoutingRuleRepository {
	return &RoutingRuleRepository{db: db}
}

// ListActive returns active rules ordered by team, status and tier. Team, queue and user
// names are left-joined so that dangling references surface as nil fields.
func (r *RoutingRuleRepository) ListActive(ctx context.Context) ([]models.RoutingRule, error) {
	const query = `
SELECT
	rr.id,
	rr.team_id,
	t.name AS team_name,
	rr.queue_id,
	q.name AS queue_name,
	rr.status,
	rr.tier,
	rr.active,
	rr.additional_rules,
	rr.user_id,
	u.id AS user_ref,
	u.status AS user_status,
	rr.country_id,
	rr.created_at
FROM routing_rules rr
LEFT JOIN teams t ON t.id = rr.team_id
LEFT JOIN queues q ON q.id = rr.queue_id
LEFT JOIN gov_users u ON u.id = rr.user_id
WHERE rr.active = TRUE
ORDER BY rr.team_id, rr.status, rr.tier, rr.created_at, rr.id`

	conn := database.Conn(ctx, r.db)
	var rows []routingRuleRow
	if err := conn.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list routing rules: %w", err)
	}
	if len(rows) == 0 {
		return []models.RoutingRule{}, nil
	}

	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	caseTypes, err := r.ruleValues(ctx, conn, `SELECT routing_rule_id, case_type AS value FROM routing_rule_case_types WHERE routing_rule_id = ANY($1) ORDER BY routing_rule_id, case_type`, ids)
	if err != nil {
		return nil, fmt.Errorf("list routing rule case types: %w", err)
	}
	flags, err := r.ruleValues(ctx, conn, `SELECT routing_rule_id, flag_id AS value FROM routing_rule_flags WHERE routing_rule_id = ANY($1) ORDER BY routing_rule_id, flag_id`, ids)
	if err != nil {
		return nil, fmt.Errorf("list routing rule flags: %w", err)
	}

	rules := make([]models.RoutingRule, 0, len(rows))
	for _, row := range rows {
		rule := row.RoutingRule
		for _, field := range row.AdditionalRules {
			rule.AdditionalFields = append(rule.AdditionalFields, models.RuleField(field))
		}
		for _, ct := range caseTypes[rule.ID] {
			rule.CaseTypes = append(rule.CaseTypes, models.CaseType(ct))
		}
		rule.Flags = flags[rule.ID]
		rules = append(rules, rule)
	}
	return rules, nil
}

func (r *RoutingRuleRepository) ruleValues(ctx context.Context, conn database.Queryer, query string, ids []string) (map[string][]string, error) {
	var rows []ruleValueRow
	if err := conn.SelectContext(ctx, &rows, query, pq.Array(ids)); err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(rows))
	for _, row := range rows {
		out[row.RuleID] = append(out[row.RuleID], row.Value)
	}
	return out, nil
}
