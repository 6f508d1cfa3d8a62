package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionFrozenAfterFinish(t *testing.T) {
	s := NewUpdateSession("workstation")
	require.False(t, s.Terminal())

	s.AppendStep(StepResult{StepName: "fetch", Status: StepStatusOk})
	s.Finish(OutcomeSuccess)

	require.True(t, s.Terminal())
	assert.False(t, s.FinishedAt.IsZero())

	// Mutations after the outcome is fixed are ignored.
	s.Finish(OutcomeAborted)
	s.AppendStep(StepResult{StepName: "late", Status: StepStatusFailed})
	s.AppendRemediation(RemediationAttempt{AttemptNumber: 1})
	s.Note("late note")

	assert.Equal(t, OutcomeSuccess, s.Outcome)
	assert.Len(t, s.Steps, 1)
	assert.Empty(t, s.RemediationAttempts)
	assert.Empty(t, s.Notes)
}

func TestLastFailure(t *testing.T) {
	s := NewUpdateSession("router")
	assert.Empty(t, s.LastFailure())

	s.AppendStep(StepResult{StepName: "fetch", Status: StepStatusOk})
	s.AppendStep(StepResult{StepName: "build", Status: StepStatusFailed, FailureClass: FailureClassBuild})
	s.AppendStep(StepResult{StepName: "build", Status: StepStatusFailed, FailureClass: FailureClassSwitch})

	assert.Equal(t, FailureClassSwitch, s.LastFailure())
}

func TestRevisionWithPatch(t *testing.T) {
	r := Revision{ID: "r1", Components: []string{"kernel"}, PayloadRef: "cfg/r1"}
	patched := r.WithPatch("pin-missing-dependency", "--arg extraDeps openssl")

	assert.Equal(t, "r1+pin-missing-dependency", patched.ID)
	assert.Equal(t, []string{"--arg extraDeps openssl"}, patched.Patches)
	assert.False(t, patched.Equal(r))

	// The parent revision is untouched.
	assert.Empty(t, r.Patches)
	assert.Equal(t, "r1", r.ID)
}

func TestRiskVerdictAggregation(t *testing.T) {
	v := RiskVerdict{Reports: []IssueReport{
		{Component: "kernel", Severity: SeverityLow, Recommendation: RecommendationProceed},
		{Component: "openssl", Severity: SeverityCritical, Recommendation: RecommendationAbort},
		{Component: "dbus", Severity: SeverityMedium, Recommendation: RecommendationCaution},
	}}

	assert.Equal(t, SeverityCritical, v.WorstSeverity())
	assert.True(t, v.ShouldAbort(false))
	assert.False(t, v.ShouldAbort(true), "auto-proceed overrides the abort recommendation")
}

func TestRiskVerdictNonCriticalDoesNotBlock(t *testing.T) {
	v := RiskVerdict{Reports: []IssueReport{
		{Component: "dbus", Severity: SeverityHigh, Recommendation: RecommendationDelay},
	}}
	assert.False(t, v.ShouldAbort(false))
}
