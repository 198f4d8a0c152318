package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/case-routing-api/internal/models"
	appErrors "github.com/noah-isme/case-routing-api/pkg/errors"
)

type transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type routingRuleSource interface {
	ListActive(ctx context.Context) ([]models.RoutingRule, error)
}

type caseStatusSource interface {
	List(ctx context.Context) ([]models.CaseStatus, error)
}

type caseStatusWriter interface {
	UpdateStatus(ctx context.Context, caseID, status string) error
}

type caseQueueStore interface {
	AddToQueue(ctx context.Context, caseID, queueID string) error
	RemoveFromAllQueues(ctx context.Context, caseID string) (int64, error)
}

type routingAssignmentStore interface {
	DeleteByCase(ctx context.Context, caseID string) (int64, error)
	Create(ctx context.Context, assignment *models.CaseAssignment) error
}

type routingHistoryStore interface {
	Record(ctx context.Context, entry *models.RoutingHistory) error
}

// RoutingDependencies groups the stores the routing engine reads and writes.
type RoutingDependencies struct {
	Rules       routingRuleSource
	Statuses    caseStatusSource
	Cases       caseStatusWriter
	Queues      caseQueueStore
	Assignments routingAssignmentStore
	History     routingHistoryStore
	Tx          transactor
}

// RoutingOptions tunes a single routing pass.
type RoutingOptions struct {
	// KeepStatus stops the pass at the current status instead of advancing when no team claims the case.
	KeepStatus bool
}

// RoutingResult describes the outcome of one routing pass.
type RoutingResult struct {
	CaseID        string                  `json:"case_id"`
	InitialStatus string                  `json:"initial_status"`
	Status        string                  `json:"status"`
	StatusPath    []string                `json:"status_path,omitempty"`
	Queues        []string                `json:"queues"`
	Assignments   []models.CaseAssignment `json:"assignments"`
	MatchedRules  []string                `json:"matched_rules"`
	RoutingGap    bool                    `json:"routing_gap"`
}

// RoutingService places cases on team queues by evaluating tiered routing rules.
// Callers must serialise passes per case; the pass joins any transaction already carried by ctx.
type RoutingService struct {
	deps         RoutingDependencies
	metrics      *MetricsService
	logger       *zap.Logger
	systemUserID string
	now          func() time.Time
}

// NewRoutingService constructs the routing engine.
func NewRoutingService(deps RoutingDependencies, metrics *MetricsService, logger *zap.Logger, systemUserID string) *RoutingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoutingService{deps: deps, metrics: metrics, logger: logger, systemUserID: systemUserID, now: time.Now}
}

// RunRoutingRules clears the case's queues and assignments and re-routes it from its current status,
// advancing through the workflow until a team claims it or no further non-terminal status exists.
func (s *RoutingService) RunRoutingRules(ctx context.Context, c *models.Case, opts RoutingOptions) (*RoutingResult, error) {
	if c == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "case is required")
	}
	if !c.Submitted() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("case %s has not been submitted", c.ID))
	}

	initialStatus := c.Status
	var result *RoutingResult
	err := s.deps.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		rules, err := s.deps.Rules.ListActive(ctx)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load routing rules")
		}
		ruleSet, err := NewRuleSet(rules)
		if err != nil {
			return err
		}
		statuses, err := s.deps.Statuses.List(ctx)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load case statuses")
		}
		graph, err := NewStatusGraph(statuses)
		if err != nil {
			return err
		}
		if _, ok := graph.Lookup(c.Status); !ok {
			return appErrors.Clone(appErrors.ErrStatusGraph, fmt.Sprintf("case %s has unknown status %q", c.ID, c.Status))
		}
		result, err = s.route(ctx, c, ruleSet, graph, opts)
		return err
	})
	if err != nil {
		// The advance was rolled back with the transaction.
		c.Status = initialStatus
		s.metrics.RecordRoutingPass("error")
		s.logger.Error("routing pass failed", zap.String("case_id", c.ID), zap.String("status", c.Status), zap.Error(err))
		return nil, err
	}

	outcome := "matched"
	if result.RoutingGap {
		outcome = "gap"
	}
	s.metrics.RecordRoutingPass(outcome)
	return result, nil
}

type routingPass struct {
	result      *RoutingResult
	queued      map[string]bool
	assigned    map[string]bool
	caseParams  ParameterSet
	currentCase *models.Case
}

func (s *RoutingService) route(ctx context.Context, c *models.Case, ruleSet *RuleSet, graph *StatusGraph, opts RoutingOptions) (*RoutingResult, error) {
	if _, err := s.deps.Assignments.DeleteByCase(ctx, c.ID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear case assignments")
	}
	if _, err := s.deps.Queues.RemoveFromAllQueues(ctx, c.ID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear case queues")
	}

	pass := &routingPass{
		result: &RoutingResult{
			CaseID:        c.ID,
			InitialStatus: c.Status,
			Queues:        []string{},
			Assignments:   []models.CaseAssignment{},
			MatchedRules:  []string{},
		},
		queued:      make(map[string]bool),
		assigned:    make(map[string]bool),
		currentCase: c,
	}

	// Each advance moves to a strictly higher priority, so the graph size bounds the loop.
	for step := 0; step <= graph.Len(); step++ {
		pass.caseParams = CaseParameterSet(c)

		matched, err := s.evaluateTeams(ctx, pass, ruleSet)
		if err != nil {
			return nil, err
		}
		if matched {
			pass.result.Status = c.Status
			return pass.result, nil
		}

		if opts.KeepStatus {
			return s.gap(pass), nil
		}
		next, ok := graph.NextNonTerminal(c.Status)
		if !ok {
			return s.gap(pass), nil
		}
		if err := s.deps.Cases.UpdateStatus(ctx, c.ID, next.Status); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to advance case status")
		}
		s.logger.Info("no routing rule matched, advancing status",
			zap.String("case_id", c.ID),
			zap.String("from", c.Status),
			zap.String("to", next.Status),
		)
		s.metrics.RecordStatusAdvance(c.Status, next.Status)
		c.Status = next.Status
		pass.result.StatusPath = append(pass.result.StatusPath, next.Status)
	}

	return nil, appErrors.Clone(appErrors.ErrStatusGraph, fmt.Sprintf("routing for case %s did not converge", c.ID))
}

// evaluateTeams applies every team's lowest matching tier. Teams are independent of each other.
func (s *RoutingService) evaluateTeams(ctx context.Context, pass *routingPass, ruleSet *RuleSet) (bool, error) {
	matched := false
	for _, team := range ruleSet.Teams() {
		currentTier := 0
		for _, rule := range ruleSet.RulesFor(team, pass.currentCase.Status) {
			if currentTier != 0 && rule.Tier != currentTier {
				break
			}
			for _, params := range ParameterSets(rule) {
				if !params.IsSubsetOf(pass.caseParams) {
					continue
				}
				if err := s.apply(ctx, pass, rule); err != nil {
					return false, err
				}
				currentTier = rule.Tier
				matched = true
				break
			}
		}
	}
	return matched, nil
}

func (s *RoutingService) apply(ctx context.Context, pass *routingPass, rule models.RoutingRule) error {
	c := pass.currentCase
	pass.result.MatchedRules = append(pass.result.MatchedRules, rule.ID)

	if !pass.queued[rule.QueueID] {
		if err := s.deps.Queues.AddToQueue(ctx, c.ID, rule.QueueID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add case to queue")
		}
		pass.queued[rule.QueueID] = true
		pass.result.Queues = append(pass.result.Queues, rule.QueueID)

		entry := &models.RoutingHistory{
			ID:               uuid.NewString(),
			CaseID:           c.ID,
			QueueID:          rule.QueueID,
			Action:           models.RoutingActionAdd,
			OrchestratorType: models.OrchestratorRoutingEngine,
			OrchestratorID:   s.systemUserID,
			CaseStatus:       c.Status,
			CaseFlags:        append([]string{}, c.Flags...),
			CaseQueues:       append([]string{}, pass.result.Queues...),
			RuleIdentifier:   rule.ID,
			CreatedAt:        s.now().UTC(),
		}
		if err := s.deps.History.Record(ctx, entry); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record routing history")
		}
	}

	if rule.AssignedUserID == nil {
		return nil
	}
	if !rule.AssigneeActive() {
		s.logger.Info("skipping assignment to inactive user",
			zap.String("case_id", c.ID),
			zap.String("rule_id", rule.ID),
			zap.String("user_id", *rule.AssignedUserID),
		)
		return nil
	}
	key := rule.QueueID + "|" + *rule.AssignedUserID
	if pass.assigned[key] {
		return nil
	}
	assignment := models.CaseAssignment{
		ID:        uuid.NewString(),
		CaseID:    c.ID,
		QueueID:   rule.QueueID,
		UserID:    *rule.AssignedUserID,
		CreatedAt: s.now().UTC(),
	}
	if err := s.deps.Assignments.Create(ctx, &assignment); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign case")
	}
	pass.assigned[key] = true
	pass.result.Assignments = append(pass.result.Assignments, assignment)
	return nil
}

func (s *RoutingService) gap(pass *routingPass) *RoutingResult {
	c := pass.currentCase
	pass.result.Status = c.Status
	pass.result.RoutingGap = true
	s.metrics.RecordRoutingGap(c.Status)
	s.logger.Info("routing gap: no team claimed case",
		zap.String("case_id", c.ID),
		zap.String("status", c.Status),
		zap.Strings("status_path", pass.result.StatusPath),
	)
	return pass.result
}
