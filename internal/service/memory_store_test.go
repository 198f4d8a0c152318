package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/case-routing-api/internal/models"
)

// memoryStore backs the routing, reconciler and workflow stores in tests.
type memoryStore struct {
	mu          sync.Mutex
	rules       []models.RoutingRule
	statuses    []models.CaseStatus
	cases       map[string]*models.Case
	queues      map[string]map[string]bool
	assignments []models.CaseAssignment
	history     []models.RoutingHistory
	closedAt    map[string]time.Time
	rulesErr    error
	addErr      error
}

func newMemoryStore(statuses []models.CaseStatus, rules ...models.RoutingRule) *memoryStore {
	return &memoryStore{
		rules:    rules,
		statuses: statuses,
		cases:    make(map[string]*models.Case),
		queues:   make(map[string]map[string]bool),
		closedAt: make(map[string]time.Time),
	}
}

func (m *memoryStore) putCase(c *models.Case, queues ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *c
	m.cases[c.ID] = &stored
	for _, q := range queues {
		m.addQueueLocked(c.ID, q)
	}
}

func (m *memoryStore) addQueueLocked(caseID, queueID string) {
	if m.queues[caseID] == nil {
		m.queues[caseID] = make(map[string]bool)
	}
	m.queues[caseID][queueID] = true
}

func (m *memoryStore) assign(caseID, queueID, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignments = append(m.assignments, models.CaseAssignment{ID: caseID + queueID + userID, CaseID: caseID, QueueID: queueID, UserID: userID})
}

func (m *memoryStore) queuesOf(caseID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []string{}
	for q := range m.queues[caseID] {
		out = append(out, q)
	}
	sort.Strings(out)
	return out
}

func (m *memoryStore) statusOf(caseID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cases[caseID].Status
}

func (m *memoryStore) assignmentsOf(caseID string) []models.CaseAssignment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.CaseAssignment
	for _, a := range m.assignments {
		if a.CaseID == caseID {
			out = append(out, a)
		}
	}
	return out
}

func (m *memoryStore) ListActive(ctx context.Context) ([]models.RoutingRule, error) {
	if m.rulesErr != nil {
		return nil, m.rulesErr
	}
	out := make([]models.RoutingRule, len(m.rules))
	copy(out, m.rules)
	return out, nil
}

func (m *memoryStore) List(ctx context.Context) ([]models.CaseStatus, error) {
	return m.statuses, nil
}

func (m *memoryStore) GetForUpdate(ctx context.Context, id string) (*models.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cases[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *c
	return &copied, nil
}

func (m *memoryStore) FindByID(ctx context.Context, id string) (*models.Case, error) {
	return m.GetForUpdate(ctx, id)
}

func (m *memoryStore) MarkSubmitted(ctx context.Context, c *models.Case) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.cases[c.ID]
	if !ok || stored.SubmittedAt != nil {
		return nil
	}
	stored.Status = c.Status
	stored.SubmittedAt = c.SubmittedAt
	stored.SLADays = c.SLADays
	stored.SLARemainingDays = c.SLARemainingDays
	return nil
}

func (m *memoryStore) caseOf(caseID string) models.Case {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.cases[caseID]
}

func (m *memoryStore) ListByCase(ctx context.Context, caseID string) ([]models.CaseAssignment, error) {
	return m.assignmentsOf(caseID), nil
}

func (m *memoryStore) UpdateStatus(ctx context.Context, caseID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.cases[caseID]; ok {
		c.Status = status
	}
	return nil
}

func (m *memoryStore) MarkClosed(ctx context.Context, caseID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, done := m.closedAt[caseID]; !done {
		m.closedAt[caseID] = at
	}
	return nil
}

func (m *memoryStore) AddToQueue(ctx context.Context, caseID, queueID string) error {
	if m.addErr != nil {
		return m.addErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addQueueLocked(caseID, queueID)
	return nil
}

func (m *memoryStore) RemoveFromAllQueues(ctx context.Context, caseID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.queues[caseID]))
	delete(m.queues, caseID)
	return n, nil
}

func (m *memoryStore) RemoveFromQueues(ctx context.Context, caseID string, queueIDs []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := []string{}
	for _, q := range queueIDs {
		if m.queues[caseID][q] {
			delete(m.queues[caseID], q)
			removed = append(removed, q)
		}
	}
	return removed, nil
}

func (m *memoryStore) ListQueues(ctx context.Context, caseID string) ([]string, error) {
	return m.queuesOf(caseID), nil
}

func (m *memoryStore) DeleteByCase(ctx context.Context, caseID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.assignments[:0]
	var n int64
	for _, a := range m.assignments {
		if a.CaseID == caseID {
			n++
			continue
		}
		kept = append(kept, a)
	}
	m.assignments = kept
	return n, nil
}

func (m *memoryStore) Create(ctx context.Context, a *models.CaseAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignments = append(m.assignments, *a)
	return nil
}

func (m *memoryStore) DeleteForUser(ctx context.Context, caseID, userID string, queueIDs []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wanted := make(map[string]bool, len(queueIDs))
	for _, q := range queueIDs {
		wanted[q] = true
	}
	released := []string{}
	kept := m.assignments[:0]
	for _, a := range m.assignments {
		if a.CaseID == caseID && a.UserID == userID && wanted[a.QueueID] {
			released = append(released, a.QueueID)
			continue
		}
		kept = append(kept, a)
	}
	m.assignments = kept
	return released, nil
}

func (m *memoryStore) QueuesWithAssignments(ctx context.Context, caseID string, queueIDs []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wanted := make(map[string]bool, len(queueIDs))
	for _, q := range queueIDs {
		wanted[q] = true
	}
	seen := make(map[string]bool)
	out := []string{}
	for _, a := range m.assignments {
		if a.CaseID == caseID && wanted[a.QueueID] && !seen[a.QueueID] {
			seen[a.QueueID] = true
			out = append(out, a.QueueID)
		}
	}
	return out, nil
}

func (m *memoryStore) Record(ctx context.Context, entry *models.RoutingHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, *entry)
	return nil
}

type passthroughTx struct {
	calls int
}

func (t *passthroughTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	return fn(ctx)
}

// commitFailTx runs fn and then fails as a rejected commit would.
type commitFailTx struct{}

func (commitFailTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := fn(ctx); err != nil {
		return err
	}
	return errors.New("commit failed")
}

func strPtr(s string) *string {
	return &s
}

func standardWorkflow() []models.CaseStatus {
	return []models.CaseStatus{
		{ID: "1", Status: models.StatusSubmitted, Priority: 1},
		{ID: "2", Status: models.StatusInitialChecks, Priority: 2},
		{ID: "3", Status: models.StatusUnderReview, Priority: 3},
		{ID: "4", Status: models.StatusUnderFinalReview, Priority: 4},
		{ID: "5", Status: models.StatusFinalised, Priority: 5, IsTerminal: true},
		{ID: "6", Status: models.StatusWithdrawn, Priority: 6, IsTerminal: true},
	}
}

// terminalMidWorkflow places a terminal status before a later non-terminal one.
func terminalMidWorkflow() []models.CaseStatus {
	return []models.CaseStatus{
		{ID: "1", Status: models.StatusSubmitted, Priority: 1},
		{ID: "2", Status: models.StatusFinalised, Priority: 2, IsTerminal: true},
		{ID: "3", Status: models.StatusClosed, Priority: 3},
	}
}

func newRule(id, team, queue, status string, tier int) models.RoutingRule {
	return models.RoutingRule{
		ID:        id,
		TeamID:    team,
		TeamName:  strPtr("team " + team),
		QueueID:   queue,
		QueueName: strPtr("queue " + queue),
		Status:    status,
		Tier:      tier,
		Active:    true,
	}
}

func submittedCase(id, status string, caseType models.CaseType) *models.Case {
	submitted := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	return &models.Case{ID: id, Status: status, CaseType: caseType, SubmittedAt: &submitted, Flags: []string{}}
}

func newRoutingServiceFor(store *memoryStore) *RoutingService {
	return NewRoutingService(RoutingDependencies{
		Rules:       store,
		Statuses:    store,
		Cases:       store,
		Queues:      store,
		Assignments: store,
		History:     store,
		Tx:          &passthroughTx{},
	}, NewMetricsService(), nil, "system-user")
}
