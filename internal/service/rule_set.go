package service

import (
	"fmt"
	"sort"

	"github.com/noah-isme/case-routing-api/internal/models"
	appErrors "github.com/noah-isme/case-routing-api/pkg/errors"
)

// ParameterKind distinguishes the case facts a routing rule can require.
type ParameterKind string

const (
	ParameterCaseType ParameterKind = "case_type"
	ParameterFlag     ParameterKind = "flag"
	ParameterCountry  ParameterKind = "country"
)

// Parameter is a single case fact such as a flag id or the case type.
type Parameter struct {
	Kind  ParameterKind
	Value string
}

// ParameterSet is an unordered set of case facts.
type ParameterSet map[Parameter]struct{}

// NewParameterSet builds a set from params.
func NewParameterSet(params ...Parameter) ParameterSet {
	set := make(ParameterSet, len(params))
	for _, p := range params {
		set[p] = struct{}{}
	}
	return set
}

// IsSubsetOf reports whether every parameter in p is present in other. The empty set is a subset of every set.
func (p ParameterSet) IsSubsetOf(other ParameterSet) bool {
	for param := range p {
		if _, ok := other[param]; !ok {
			return false
		}
	}
	return true
}

func (p ParameterSet) with(param Parameter) ParameterSet {
	next := make(ParameterSet, len(p)+1)
	for existing := range p {
		next[existing] = struct{}{}
	}
	next[param] = struct{}{}
	return next
}

// CaseParameterSet returns the facts of c that routing rules match against.
func CaseParameterSet(c *models.Case) ParameterSet {
	set := NewParameterSet(Parameter{Kind: ParameterCaseType, Value: string(c.CaseType)})
	for _, flag := range c.Flags {
		set[Parameter{Kind: ParameterFlag, Value: flag}] = struct{}{}
	}
	if c.CaseType.HasDestination() && c.DestinationCountry != nil && *c.DestinationCountry != "" {
		set[Parameter{Kind: ParameterCountry, Value: *c.DestinationCountry}] = struct{}{}
	}
	return set
}

// ParameterSets expands a rule into the cartesian product of its selected fields.
// Unselected fields are wildcards; a rule selecting nothing yields one empty set.
func ParameterSets(rule models.RoutingRule) []ParameterSet {
	var factors [][]Parameter
	if rule.Selects(models.RuleFieldCaseTypes) {
		values := make([]Parameter, 0, len(rule.CaseTypes))
		for _, ct := range rule.CaseTypes {
			values = append(values, Parameter{Kind: ParameterCaseType, Value: string(ct)})
		}
		factors = append(factors, values)
	}
	if rule.Selects(models.RuleFieldFlags) {
		values := make([]Parameter, 0, len(rule.Flags))
		for _, flag := range rule.Flags {
			values = append(values, Parameter{Kind: ParameterFlag, Value: flag})
		}
		factors = append(factors, values)
	}
	if rule.Selects(models.RuleFieldCountry) && rule.Country != nil {
		factors = append(factors, []Parameter{{Kind: ParameterCountry, Value: *rule.Country}})
	}

	sets := []ParameterSet{NewParameterSet()}
	for _, values := range factors {
		expanded := make([]ParameterSet, 0, len(sets)*len(values))
		for _, set := range sets {
			for _, v := range values {
				expanded = append(expanded, set.with(v))
			}
		}
		sets = expanded
	}
	return sets
}

type ruleKey struct {
	team   string
	status string
}

// RuleSet is an immutable snapshot of active routing rules, built once per routing pass.
type RuleSet struct {
	teams []string
	rules map[ruleKey][]models.RoutingRule
}

// NewRuleSet validates and indexes rules by team and status, ascending by tier.
// Inactive rules are dropped. Rules sharing a tier keep their declaration order.
func NewRuleSet(rules []models.RoutingRule) (*RuleSet, error) {
	rs := &RuleSet{rules: make(map[ruleKey][]models.RoutingRule)}
	seenTeam := make(map[string]bool)
	for _, rule := range rules {
		if !rule.Active {
			continue
		}
		if err := validateRule(rule); err != nil {
			return nil, err
		}
		key := ruleKey{team: rule.TeamID, status: rule.Status}
		rs.rules[key] = append(rs.rules[key], rule)
		if !seenTeam[rule.TeamID] {
			seenTeam[rule.TeamID] = true
			rs.teams = append(rs.teams, rule.TeamID)
		}
	}
	for key := range rs.rules {
		bucket := rs.rules[key]
		sort.SliceStable(bucket, func(i, j int) bool { return bucket[i].Tier < bucket[j].Tier })
	}
	return rs, nil
}

// Teams returns every team owning at least one active rule.
func (rs *RuleSet) Teams() []string {
	out := make([]string, len(rs.teams))
	copy(out, rs.teams)
	return out
}

// RulesFor returns the team's active rules for status, ascending by tier.
func (rs *RuleSet) RulesFor(team, status string) []models.RoutingRule {
	return rs.rules[ruleKey{team: team, status: status}]
}

// Len returns the number of active rules.
func (rs *RuleSet) Len() int {
	n := 0
	for _, bucket := range rs.rules {
		n += len(bucket)
	}
	return n
}

func validateRule(rule models.RoutingRule) error {
	fail := func(reason string) error {
		return appErrors.Clone(appErrors.ErrRuleConfiguration, fmt.Sprintf("routing rule %s: %s", rule.ID, reason))
	}
	switch {
	case rule.TeamID == "" || rule.TeamName == nil:
		return fail("references a missing team")
	case rule.QueueID == "" || rule.QueueName == nil:
		return fail("references a missing queue")
	case rule.Status == "":
		return fail("has no target status")
	case rule.Tier < 1:
		return fail(fmt.Sprintf("tier %d is not positive", rule.Tier))
	case rule.AssignedUserID != nil && rule.AssignedUserRef == nil:
		return fail("references a missing user")
	case rule.Selects(models.RuleFieldUsers) && rule.AssignedUserID == nil:
		return fail("selects users but has no user")
	case rule.Selects(models.RuleFieldCaseTypes) && len(rule.CaseTypes) == 0:
		return fail("selects case types but lists none")
	case rule.Selects(models.RuleFieldFlags) && len(rule.Flags) == 0:
		return fail("selects flags but lists none")
	case rule.Selects(models.RuleFieldCountry) && (rule.Country == nil || *rule.Country == ""):
		return fail("selects country but has none")
	}
	return nil
}
