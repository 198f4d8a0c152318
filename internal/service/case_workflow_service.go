package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/case-routing-api/internal/dto"
	"github.com/noah-isme/case-routing-api/internal/models"
	appErrors "github.com/noah-isme/case-routing-api/pkg/errors"
)

type workflowCaseStore interface {
	FindByID(ctx context.Context, id string) (*models.Case, error)
	GetForUpdate(ctx context.Context, id string) (*models.Case, error)
	UpdateStatus(ctx context.Context, caseID, status string) error
	MarkClosed(ctx context.Context, caseID string, at time.Time) error
	MarkSubmitted(ctx context.Context, c *models.Case) error
}

type workflowAssignmentStore interface {
	DeleteForUser(ctx context.Context, caseID, userID string, queueIDs []string) ([]string, error)
	ListByCase(ctx context.Context, caseID string) ([]models.CaseAssignment, error)
}

type workflowQueueReader interface {
	ListQueues(ctx context.Context, caseID string) ([]string, error)
}

type caseRouter interface {
	RunRoutingRules(ctx context.Context, c *models.Case, opts RoutingOptions) (*RoutingResult, error)
}

type queueReconciler interface {
	Reconcile(ctx context.Context, queueIDs []string, c *models.Case) (*ReconcileResult, error)
}

// StatusChangeResult reports an explicit status change and the routing pass that followed it.
type StatusChangeResult struct {
	CaseID         string         `json:"case_id"`
	PreviousStatus string         `json:"previous_status"`
	Status         string         `json:"status"`
	Routing        *RoutingResult `json:"routing,omitempty"`
}

// SubmitResult reports a submitted case and its first routing pass.
type SubmitResult struct {
	Case    *models.Case   `json:"case"`
	Routing *RoutingResult `json:"routing"`
}

// CaseRoutingView is the current routing state of a case.
type CaseRoutingView struct {
	Case        *models.Case            `json:"case"`
	Queues      []string                `json:"queues"`
	Assignments []models.CaseAssignment `json:"assignments"`
}

// MarkDoneResult reports the assignments released by a caseworker and the reconciliation outcome.
type MarkDoneResult struct {
	ReleasedQueues []string         `json:"released_queues"`
	Reconcile      *ReconcileResult `json:"reconcile"`
	Routing        *RoutingResult   `json:"routing,omitempty"`
}

// CaseWorkflowService runs the case-level operations that lock a case and hand it to the routing engine or reconciler.
type CaseWorkflowService struct {
	cases       workflowCaseStore
	statuses    caseStatusSource
	assignments workflowAssignmentStore
	queues      workflowQueueReader
	router      caseRouter
	reconciler  queueReconciler
	tx          transactor
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewCaseWorkflowService constructs the service.
func NewCaseWorkflowService(cases workflowCaseStore, statuses caseStatusSource, assignments workflowAssignmentStore, queues workflowQueueReader, router caseRouter, reconciler queueReconciler, tx transactor, validate *validator.Validate, logger *zap.Logger) *CaseWorkflowService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CaseWorkflowService{
		cases:       cases,
		statuses:    statuses,
		assignments: assignments,
		queues:      queues,
		router:      router,
		reconciler:  reconciler,
		tx:          tx,
		validator:   validate,
		logger:      logger,
		now:         time.Now,
	}
}

// Submit moves a draft case into the workflow at the submitted status, seeds its SLA
// counters from the case type and runs the first routing pass.
func (s *CaseWorkflowService) Submit(ctx context.Context, caseID string) (*SubmitResult, error) {
	var result *SubmitResult
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		c, err := s.lockCase(ctx, caseID)
		if err != nil {
			return err
		}
		if c.Submitted() {
			return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("case %s is already submitted", c.ID))
		}
		submittedAt := s.now().UTC()
		c.SubmittedAt = &submittedAt
		c.Status = models.StatusSubmitted
		c.SeedSLA()
		if err := s.cases.MarkSubmitted(ctx, c); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to submit case")
		}
		routing, err := s.router.RunRoutingRules(ctx, c, RoutingOptions{})
		if err != nil {
			return err
		}
		result = &SubmitResult{Case: c, Routing: routing}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("case submitted", zap.String("case_id", result.Case.ID), zap.String("status", result.Case.Status))
	return result, nil
}

// GetRouting returns the case with the queues it sits on and who is assigned.
func (s *CaseWorkflowService) GetRouting(ctx context.Context, caseID string) (*CaseRoutingView, error) {
	if caseID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "case id is required")
	}
	c, err := s.cases.FindByID(ctx, caseID)
	if err != nil {
		return nil, caseLoadError(err)
	}
	queues, err := s.queues.ListQueues(ctx, caseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list case queues")
	}
	assignments, err := s.assignments.ListByCase(ctx, caseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list case assignments")
	}
	if assignments == nil {
		assignments = []models.CaseAssignment{}
	}
	return &CaseRoutingView{Case: c, Queues: queues, Assignments: assignments}, nil
}

// RunRouting locks the case and runs a routing pass.
func (s *CaseWorkflowService) RunRouting(ctx context.Context, caseID string, req dto.RunRoutingRequest) (*RoutingResult, error) {
	var result *RoutingResult
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		c, err := s.lockCase(ctx, caseID)
		if err != nil {
			return err
		}
		result, err = s.router.RunRoutingRules(ctx, c, RoutingOptions{KeepStatus: req.KeepStatus})
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ChangeStatus moves a case to an explicit status, stamps the first close when the status is terminal
// and re-routes the case without advancing further.
func (s *CaseWorkflowService) ChangeStatus(ctx context.Context, caseID string, req dto.ChangeStatusRequest) (*StatusChangeResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status change payload")
	}

	var result *StatusChangeResult
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		c, err := s.lockCase(ctx, caseID)
		if err != nil {
			return err
		}
		statuses, err := s.statuses.List(ctx)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load case statuses")
		}
		graph, err := NewStatusGraph(statuses)
		if err != nil {
			return err
		}
		target, ok := graph.Lookup(req.Status)
		if !ok {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", req.Status))
		}

		result = &StatusChangeResult{CaseID: c.ID, PreviousStatus: c.Status, Status: target.Status}
		if c.Status == target.Status {
			return nil
		}
		if err := s.cases.UpdateStatus(ctx, c.ID, target.Status); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update case status")
		}
		c.Status = target.Status
		if target.IsTerminal && c.LastClosedAt == nil {
			closedAt := s.now().UTC()
			if err := s.cases.MarkClosed(ctx, c.ID, closedAt); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to close case")
			}
			c.LastClosedAt = &closedAt
		}

		routing, err := s.router.RunRoutingRules(ctx, c, RoutingOptions{KeepStatus: true})
		if err != nil {
			return err
		}
		result.Routing = routing
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("case status changed",
		zap.String("case_id", result.CaseID),
		zap.String("from", result.PreviousStatus),
		zap.String("to", result.Status),
	)
	return result, nil
}

// MarkDone releases the user's assignments on the given queues and reconciles them.
// Without any assignment to release only a single queue may be named.
// When the reconciler advances the status the case is routed again for its new status.
func (s *CaseWorkflowService) MarkDone(ctx context.Context, caseID string, req dto.MarkDoneRequest) (*MarkDoneResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid mark done payload")
	}
	queueIDs := uniqueStrings(req.QueueIDs)

	var result *MarkDoneResult
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		c, err := s.lockCase(ctx, caseID)
		if err != nil {
			return err
		}
		released, err := s.assignments.DeleteForUser(ctx, c.ID, req.UserID, queueIDs)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to release assignments")
		}
		if len(released) == 0 && len(queueIDs) != 1 {
			return appErrors.Clone(appErrors.ErrValidation, "a single queue must be named when the user holds no assignment")
		}

		reconciled, err := s.reconciler.Reconcile(ctx, queueIDs, c)
		if err != nil {
			return err
		}
		result = &MarkDoneResult{ReleasedQueues: uniqueStrings(released), Reconcile: reconciled}
		if !reconciled.StatusAdvanced {
			return nil
		}
		routing, err := s.router.RunRoutingRules(ctx, c, RoutingOptions{KeepStatus: true})
		if err != nil {
			return err
		}
		result.Routing = routing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *CaseWorkflowService) lockCase(ctx context.Context, caseID string) (*models.Case, error) {
	if caseID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "case id is required")
	}
	c, err := s.cases.GetForUpdate(ctx, caseID)
	if err != nil {
		return nil, caseLoadError(err)
	}
	return c, nil
}

func caseLoadError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.ErrCaseNotFound
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load case")
}
