package service

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/case-routing-api/internal/models"
	appErrors "github.com/noah-isme/case-routing-api/pkg/errors"
)

func TestRunRoutingRulesUnconstrainedRuleQueuesCase(t *testing.T) {
	store := newMemoryStore(standardWorkflow(), newRule("r1", "team-a", "Q1", models.StatusSubmitted, 1))
	c := submittedCase("case-1", models.StatusSubmitted, models.CaseTypeStandard)
	store.putCase(c)

	result, err := newRoutingServiceFor(store).RunRoutingRules(context.Background(), c, RoutingOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"Q1"}, store.queuesOf("case-1"))
	assert.Equal(t, models.StatusSubmitted, store.statusOf("case-1"))
	assert.Equal(t, models.StatusSubmitted, result.Status)
	assert.False(t, result.RoutingGap)
	assert.Empty(t, result.StatusPath)
	require.Len(t, store.history, 1)
	assert.Equal(t, "r1", store.history[0].RuleIdentifier)
	assert.Equal(t, models.OrchestratorRoutingEngine, store.history[0].OrchestratorType)
	assert.Equal(t, "system-user", store.history[0].OrchestratorID)
}

func TestRunRoutingRulesAdvancesToNextStatusWithMatchingRule(t *testing.T) {
	statuses := []models.CaseStatus{
		{Status: models.StatusSubmitted, Priority: 1},
		{Status: models.StatusUnderReview, Priority: 2},
		{Status: models.StatusFinalised, Priority: 3, IsTerminal: true},
	}
	store := newMemoryStore(statuses, newRule("r1", "team-a", "Q-review", models.StatusUnderReview, 1))
	c := submittedCase("case-1", models.StatusSubmitted, models.CaseTypeStandard)
	store.putCase(c)

	result, err := newRoutingServiceFor(store).RunRoutingRules(context.Background(), c, RoutingOptions{})
	require.NoError(t, err)

	assert.Equal(t, models.StatusUnderReview, store.statusOf("case-1"))
	assert.Equal(t, models.StatusUnderReview, c.Status)
	assert.Equal(t, []string{"Q-review"}, store.queuesOf("case-1"))
	assert.Equal(t, []string{models.StatusUnderReview}, result.StatusPath)
	assert.Equal(t, models.StatusSubmitted, result.InitialStatus)
}

func TestRunRoutingRulesLowerTierBlocksHigherTier(t *testing.T) {
	store := newMemoryStore(standardWorkflow(),
		newRule("tier2", "team-a", "Q2", models.StatusSubmitted, 2),
		newRule("tier1", "team-a", "Q1", models.StatusSubmitted, 1),
	)
	c := submittedCase("case-1", models.StatusSubmitted, models.CaseTypeStandard)
	store.putCase(c)

	_, err := newRoutingServiceFor(store).RunRoutingRules(context.Background(), c, RoutingOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Q1"}, store.queuesOf("case-1"))
}

func TestRunRoutingRulesNonMatchingTierFallsThrough(t *testing.T) {
	openOnly := newRule("tier1", "team-a", "Q1", models.StatusSubmitted, 1)
	openOnly.AdditionalFields = []models.RuleField{models.RuleFieldCaseTypes}
	openOnly.CaseTypes = []models.CaseType{models.CaseTypeOpen}
	store := newMemoryStore(standardWorkflow(), openOnly, newRule("tier2", "team-a", "Q2", models.StatusSubmitted, 2))
	c := submittedCase("case-1", models.StatusSubmitted, models.CaseTypeStandard)
	store.putCase(c)

	_, err := newRoutingServiceFor(store).RunRoutingRules(context.Background(), c, RoutingOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Q2"}, store.queuesOf("case-1"))
}

func TestRunRoutingRulesSameTierAppliesEveryMatch(t *testing.T) {
	withUser := newRule("r-user", "team-a", "Q1", models.StatusSubmitted, 1)
	withUser.AdditionalFields = []models.RuleField{models.RuleFieldUsers}
	withUser.AssignedUserID = strPtr("user-1")
	withUser.AssignedUserRef = strPtr("user-1")
	withUser.AssignedUserStatus = strPtr(models.UserStatusActive)
	store := newMemoryStore(standardWorkflow(), withUser, newRule("r-plain", "team-a", "Q2", models.StatusSubmitted, 1))
	c := submittedCase("case-1", models.StatusSubmitted, models.CaseTypeStandard)
	store.putCase(c)

	result, err := newRoutingServiceFor(store).RunRoutingRules(context.Background(), c, RoutingOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"Q1", "Q2"}, store.queuesOf("case-1"))
	assignments := store.assignmentsOf("case-1")
	require.Len(t, assignments, 1)
	assert.Equal(t, "user-1", assignments[0].UserID)
	assert.Equal(t, "Q1", assignments[0].QueueID)
	assert.Equal(t, []string{"r-user", "r-plain"}, result.MatchedRules)
}

func TestRunRoutingRulesCaseTypeSubset(t *testing.T) {
	rule := newRule("r1", "team-a", "Q1", models.StatusSubmitted, 1)
	rule.AdditionalFields = []models.RuleField{models.RuleFieldCaseTypes}
	rule.CaseTypes = []models.CaseType{models.CaseTypeStandard}

	cases := map[models.CaseType][]string{
		models.CaseTypeStandard: {"Q1"},
		models.CaseTypeOpen:     {},
	}
	for caseType, want := range cases {
		t.Run(string(caseType), func(t *testing.T) {
			store := newMemoryStore(standardWorkflow(), rule)
			c := submittedCase("case-1", models.StatusSubmitted, caseType)
			store.putCase(c)

			_, err := newRoutingServiceFor(store).RunRoutingRules(context.Background(), c, RoutingOptions{KeepStatus: true})
			require.NoError(t, err)
			assert.Equal(t, want, store.queuesOf("case-1"))
		})
	}
}

func TestRunRoutingRulesFlagsMatchAnySelectedFlag(t *testing.T) {
	rule := newRule("r1", "team-a", "Q1", models.StatusSubmitted, 1)
	rule.AdditionalFields = []models.RuleField{models.RuleFieldFlags}
	rule.Flags = []string{"flag-a", "flag-b"}
	store := newMemoryStore(standardWorkflow(), rule)
	c := submittedCase("case-1", models.StatusSubmitted, models.CaseTypeStandard)
	c.Flags = []string{"flag-b", "flag-z"}
	store.putCase(c)

	_, err := newRoutingServiceFor(store).RunRoutingRules(context.Background(), c, RoutingOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Q1"}, store.queuesOf("case-1"))
}

func TestRunRoutingRulesCountryOnlyForDestinationCaseTypes(t *testing.T) {
	rule := newRule("r1", "team-a", "Q1", models.StatusSubmitted, 1)
	rule.AdditionalFields = []models.RuleField{models.RuleFieldCountry}
	rule.Country = strPtr("FR")

	store := newMemoryStore(standardWorkflow(), rule)
	standard := submittedCase("case-1", models.StatusSubmitted, models.CaseTypeStandard)
	standard.DestinationCountry = strPtr("FR")
	query := submittedCase("case-2", models.StatusSubmitted, models.CaseTypeGoodsQuery)
	query.DestinationCountry = strPtr("FR")
	store.putCase(standard)
	store.putCase(query)
	svc := newRoutingServiceFor(store)

	_, err := svc.RunRoutingRules(context.Background(), standard, RoutingOptions{KeepStatus: true})
	require.NoError(t, err)
	_, err = svc.RunRoutingRules(context.Background(), query, RoutingOptions{KeepStatus: true})
	require.NoError(t, err)

	assert.Equal(t, []string{"Q1"}, store.queuesOf("case-1"))
	assert.Empty(t, store.queuesOf("case-2"))
}

func TestRunRoutingRulesTerminatesWhenNothingMatches(t *testing.T) {
	store := newMemoryStore(standardWorkflow(), newRule("r1", "team-a", "Q1", models.StatusFinalised, 1))
	c := submittedCase("case-1", models.StatusSubmitted, models.CaseTypeStandard)
	store.putCase(c)

	result, err := newRoutingServiceFor(store).RunRoutingRules(context.Background(), c, RoutingOptions{})
	require.NoError(t, err)

	assert.True(t, result.RoutingGap)
	assert.Equal(t, models.StatusUnderFinalReview, result.Status)
	assert.Equal(t, []string{models.StatusInitialChecks, models.StatusUnderReview, models.StatusUnderFinalReview}, result.StatusPath)
	assert.Equal(t, models.StatusUnderFinalReview, store.statusOf("case-1"))
	assert.Empty(t, store.queuesOf("case-1"))
}

func TestRunRoutingRulesKeepStatusNeverAdvances(t *testing.T) {
	store := newMemoryStore(standardWorkflow(), newRule("r1", "team-a", "Q1", models.StatusUnderReview, 1))
	c := submittedCase("case-1", models.StatusSubmitted, models.CaseTypeStandard)
	store.putCase(c)

	result, err := newRoutingServiceFor(store).RunRoutingRules(context.Background(), c, RoutingOptions{KeepStatus: true})
	require.NoError(t, err)
	assert.True(t, result.RoutingGap)
	assert.Equal(t, models.StatusSubmitted, store.statusOf("case-1"))
	assert.Empty(t, result.StatusPath)
}

func TestRunRoutingRulesSkipsInactiveAssignee(t *testing.T) {
	rule := newRule("r1", "team-a", "Q1", models.StatusSubmitted, 1)
	rule.AssignedUserID = strPtr("user-1")
	rule.AssignedUserRef = strPtr("user-1")
	rule.AssignedUserStatus = strPtr(models.UserStatusDeactivated)
	store := newMemoryStore(standardWorkflow(), rule)
	c := submittedCase("case-1", models.StatusSubmitted, models.CaseTypeStandard)
	store.putCase(c)

	_, err := newRoutingServiceFor(store).RunRoutingRules(context.Background(), c, RoutingOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Q1"}, store.queuesOf("case-1"))
	assert.Empty(t, store.assignmentsOf("case-1"))
}

func TestRunRoutingRulesClearsPreviousPass(t *testing.T) {
	store := newMemoryStore(standardWorkflow(), newRule("r1", "team-a", "Q1", models.StatusSubmitted, 1))
	c := submittedCase("case-1", models.StatusSubmitted, models.CaseTypeStandard)
	store.putCase(c, "Q-old")
	store.assign("case-1", "Q-old", "user-9")

	_, err := newRoutingServiceFor(store).RunRoutingRules(context.Background(), c, RoutingOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Q1"}, store.queuesOf("case-1"))
	assert.Empty(t, store.assignmentsOf("case-1"))
}

func TestRunRoutingRulesBrokenRuleAbortsPass(t *testing.T) {
	broken := newRule("r1", "team-a", "Q1", models.StatusSubmitted, 1)
	broken.QueueName = nil
	store := newMemoryStore(standardWorkflow(), broken)
	c := submittedCase("case-1", models.StatusSubmitted, models.CaseTypeStandard)
	store.putCase(c, "Q-old")

	_, err := newRoutingServiceFor(store).RunRoutingRules(context.Background(), c, RoutingOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrRuleConfiguration))
	assert.Equal(t, []string{"Q-old"}, store.queuesOf("case-1"), "aborted pass must not touch queues")
}

func TestRunRoutingRulesRejectsDraftCase(t *testing.T) {
	store := newMemoryStore(standardWorkflow())
	c := &models.Case{ID: "case-1", Status: models.StatusSubmitted, CaseType: models.CaseTypeStandard}

	_, err := newRoutingServiceFor(store).RunRoutingRules(context.Background(), c, RoutingOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestRunRoutingRulesUnknownStatus(t *testing.T) {
	store := newMemoryStore(standardWorkflow())
	c := submittedCase("case-1", "mystery", models.CaseTypeStandard)
	store.putCase(c)

	_, err := newRoutingServiceFor(store).RunRoutingRules(context.Background(), c, RoutingOptions{})
	assert.True(t, errors.Is(err, appErrors.ErrStatusGraph))
}

func TestRunRoutingRulesTeamOrderIndependent(t *testing.T) {
	flagged := newRule("b1", "team-b", "QB1", models.StatusSubmitted, 1)
	flagged.AdditionalFields = []models.RuleField{models.RuleFieldFlags}
	flagged.Flags = []string{"flag-x"}

	rules := []models.RoutingRule{
		newRule("a1", "team-a", "QA1", models.StatusSubmitted, 1),
		newRule("a2", "team-a", "QA2", models.StatusSubmitted, 2),
		flagged,
		newRule("b2", "team-b", "QB2", models.StatusSubmitted, 2),
		newRule("c1", "team-c", "QC1", models.StatusUnderReview, 1),
		newRule("d3", "team-d", "QD3", models.StatusSubmitted, 3),
	}
	want := []string{"QA1", "QB2", "QD3"}

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 25; i++ {
		shuffled := make([]models.RoutingRule, len(rules))
		copy(shuffled, rules)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		store := newMemoryStore(standardWorkflow(), shuffled...)
		c := submittedCase("case-1", models.StatusSubmitted, models.CaseTypeStandard)
		store.putCase(c)

		_, err := newRoutingServiceFor(store).RunRoutingRules(context.Background(), c, RoutingOptions{})
		require.NoError(t, err)
		assert.Equal(t, want, store.queuesOf("case-1"), "iteration %d", i)
	}
}

func TestRunRoutingRulesStoreFailure(t *testing.T) {
	store := newMemoryStore(standardWorkflow(), newRule("r1", "team-a", "Q1", models.StatusSubmitted, 1))
	store.addErr = errors.New("connection reset")
	c := submittedCase("case-1", models.StatusSubmitted, models.CaseTypeStandard)
	store.putCase(c)

	_, err := newRoutingServiceFor(store).RunRoutingRules(context.Background(), c, RoutingOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
}

func TestRunRoutingRulesNeverLeavesTerminalStatus(t *testing.T) {
	store := newMemoryStore(terminalMidWorkflow(), newRule("r1", "team-a", "Q1", models.StatusClosed, 1))
	c := submittedCase("case-1", models.StatusFinalised, models.CaseTypeStandard)
	store.putCase(c)

	result, err := newRoutingServiceFor(store).RunRoutingRules(context.Background(), c, RoutingOptions{})
	require.NoError(t, err)
	assert.True(t, result.RoutingGap)
	assert.Equal(t, models.StatusFinalised, result.Status)
	assert.Empty(t, result.StatusPath)
	assert.Equal(t, models.StatusFinalised, c.Status)
	assert.Equal(t, models.StatusFinalised, store.statusOf("case-1"))
	assert.Empty(t, store.queuesOf("case-1"))
}

func TestRunRoutingRulesFailureRestoresCaseStatus(t *testing.T) {
	statuses := []models.CaseStatus{
		{Status: models.StatusSubmitted, Priority: 1},
		{Status: models.StatusUnderReview, Priority: 2},
	}
	store := newMemoryStore(statuses, newRule("r1", "team-a", "Q-review", models.StatusUnderReview, 1))
	store.addErr = errors.New("connection reset")
	c := submittedCase("case-1", models.StatusSubmitted, models.CaseTypeStandard)
	store.putCase(c)

	_, err := newRoutingServiceFor(store).RunRoutingRules(context.Background(), c, RoutingOptions{})
	require.Error(t, err)
	assert.Equal(t, models.StatusSubmitted, c.Status)
}

func TestRunRoutingRulesDeletedAssigneeIsConfigurationError(t *testing.T) {
	rule := newRule("r1", "team-a", "Q1", models.StatusSubmitted, 1)
	rule.AssignedUserID = strPtr("user-gone")
	store := newMemoryStore(standardWorkflow(), rule)
	c := submittedCase("case-1", models.StatusSubmitted, models.CaseTypeStandard)
	store.putCase(c, "Q-old")

	_, err := newRoutingServiceFor(store).RunRoutingRules(context.Background(), c, RoutingOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrRuleConfiguration))
	assert.Equal(t, []string{"Q-old"}, store.queuesOf("case-1"))
	assert.Empty(t, store.assignmentsOf("case-1"))
}
