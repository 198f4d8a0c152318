package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSLATargetDays(t *testing.T) {
	cases := []struct {
		caseType CaseType
		days     int
		tracked  bool
	}{
		{CaseTypeStandard, 20, true},
		{CaseTypeOpen, 60, true},
		{CaseTypeHMRC, 2, true},
		{CaseTypeExhibition, 30, true},
		{CaseTypeF680, 30, true},
		{CaseTypeGifting, 30, true},
		{CaseTypeGoodsQuery, 0, false},
		{CaseTypeEndUserAdvisory, 0, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.caseType), func(t *testing.T) {
			days, ok := SLATargetDays(tc.caseType)
			assert.Equal(t, tc.tracked, ok)
			assert.Equal(t, tc.days, days)
		})
	}
}

func TestCaseSeedSLA(t *testing.T) {
	c := &Case{CaseType: CaseTypeStandard, SLADays: 4}
	c.SeedSLA()
	require.NotNil(t, c.SLARemainingDays)
	assert.Equal(t, 20, *c.SLARemainingDays)
	assert.Zero(t, c.SLADays)

	remaining := 3
	untracked := &Case{CaseType: CaseTypeGoodsQuery, SLARemainingDays: &remaining}
	untracked.SeedSLA()
	assert.Nil(t, untracked.SLARemainingDays)
}

func TestCaseSubmittedAndDestination(t *testing.T) {
	var nilCase *Case
	assert.False(t, nilCase.Submitted())
	assert.False(t, (&Case{}).Submitted())
	now := time.Now()
	assert.True(t, (&Case{SubmittedAt: &now}).Submitted())

	assert.True(t, CaseTypeStandard.HasDestination())
	assert.False(t, CaseTypeGoodsQuery.HasDestination())
	assert.False(t, CaseTypeEndUserAdvisory.HasDestination())
}
