package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/case-routing-api/internal/models"
	appErrors "github.com/noah-isme/case-routing-api/pkg/errors"
)

type reconcileQueueStore interface {
	RemoveFromQueues(ctx context.Context, caseID string, queueIDs []string) ([]string, error)
	ListQueues(ctx context.Context, caseID string) ([]string, error)
}

type reconcileAssignmentReader interface {
	QueuesWithAssignments(ctx context.Context, caseID string, queueIDs []string) ([]string, error)
}

// ReconcileResult reports what a reconciliation changed.
type ReconcileResult struct {
	CaseID          string   `json:"case_id"`
	RemovedQueues   []string `json:"removed_queues"`
	RetainedQueues  []string `json:"retained_queues"`
	RemainingQueues []string `json:"remaining_queues"`
	PreviousStatus  string   `json:"previous_status"`
	Status          string   `json:"status"`
	StatusAdvanced  bool     `json:"status_advanced"`
}

// QueueReconciler removes a case from queues nobody is working it on and advances the
// case once it sits on no queue at all. It never runs the routing engine itself.
type QueueReconciler struct {
	queues      reconcileQueueStore
	assignments reconcileAssignmentReader
	cases       caseStatusWriter
	statuses    caseStatusSource
	tx          transactor
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewQueueReconciler constructs the reconciler.
func NewQueueReconciler(queues reconcileQueueStore, assignments reconcileAssignmentReader, cases caseStatusWriter, statuses caseStatusSource, tx transactor, metrics *MetricsService, logger *zap.Logger) *QueueReconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueueReconciler{
		queues:      queues,
		assignments: assignments,
		cases:       cases,
		statuses:    statuses,
		tx:          tx,
		metrics:     metrics,
		logger:      logger,
	}
}

// Reconcile drops c from every queue in queueIDs that has no remaining assignment. The status only
// advances when this call emptied the case's queues, so repeating it without intervening changes is a no-op.
func (r *QueueReconciler) Reconcile(ctx context.Context, queueIDs []string, c *models.Case) (*ReconcileResult, error) {
	if c == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "case is required")
	}
	result := &ReconcileResult{
		CaseID:          c.ID,
		RemovedQueues:   []string{},
		RetainedQueues:  []string{},
		RemainingQueues: []string{},
		PreviousStatus:  c.Status,
		Status:          c.Status,
	}
	queueIDs = uniqueStrings(queueIDs)
	if len(queueIDs) == 0 {
		r.metrics.RecordQueueReconcile("noop")
		return result, nil
	}

	err := r.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		active, err := r.assignments.QueuesWithAssignments(ctx, c.ID, queueIDs)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load queue assignments")
		}
		stillWorked := make(map[string]bool, len(active))
		for _, id := range active {
			stillWorked[id] = true
		}

		var idle []string
		for _, id := range queueIDs {
			if stillWorked[id] {
				result.RetainedQueues = append(result.RetainedQueues, id)
				continue
			}
			idle = append(idle, id)
		}
		if len(idle) > 0 {
			removed, err := r.queues.RemoveFromQueues(ctx, c.ID, idle)
			if err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove case from queues")
			}
			result.RemovedQueues = append(result.RemovedQueues, removed...)
		}

		remaining, err := r.queues.ListQueues(ctx, c.ID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list case queues")
		}
		result.RemainingQueues = append(result.RemainingQueues, remaining...)
		if len(result.RemovedQueues) == 0 || len(remaining) > 0 {
			return nil
		}
		return r.advance(ctx, c, result)
	})
	if err != nil {
		c.Status = result.PreviousStatus
		r.metrics.RecordQueueReconcile("error")
		r.logger.Error("queue reconciliation failed", zap.String("case_id", c.ID), zap.Error(err))
		return nil, err
	}

	switch {
	case result.StatusAdvanced:
		r.metrics.RecordQueueReconcile("advanced")
	case len(result.RemovedQueues) > 0:
		r.metrics.RecordQueueReconcile("removed")
	default:
		r.metrics.RecordQueueReconcile("noop")
	}
	return result, nil
}

func (r *QueueReconciler) advance(ctx context.Context, c *models.Case, result *ReconcileResult) error {
	statuses, err := r.statuses.List(ctx)
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
	next, ok := graph.NextNonTerminal(c.Status)
	if !ok {
		r.logger.Info("case left all queues with no further status", zap.String("case_id", c.ID), zap.String("status", c.Status))
		return nil
	}
	if err := r.cases.UpdateStatus(ctx, c.ID, next.Status); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to advance case status")
	}
	r.metrics.RecordStatusAdvance(c.Status, next.Status)
	r.logger.Info("case left all queues, advancing status",
		zap.String("case_id", c.ID),
		zap.String("from", c.Status),
		zap.String("to", next.Status),
	)
	c.Status = next.Status
	result.Status = next.Status
	result.StatusAdvanced = true
	return nil
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
