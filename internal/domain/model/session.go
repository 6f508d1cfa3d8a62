package model

import (
	"time"

	"github.com/google/uuid"
)

// Outcome is the terminal result of an update session.
type Outcome string

const (
	// OutcomeRunning is the zero state before the session terminates.
	OutcomeRunning Outcome = "running"
	// OutcomeSuccess indicates the new generation was activated.
	OutcomeSuccess Outcome = "success"
	// OutcomeRolledBack indicates the session reverted to the prior generation.
	OutcomeRolledBack Outcome = "rolled_back"
	// OutcomeAborted indicates the session stopped before touching the store.
	OutcomeAborted Outcome = "aborted"
)

// StepStatus is the result of a single orchestration step.
type StepStatus string

const (
	StepStatusOk     StepStatus = "ok"
	StepStatusFailed StepStatus = "failed"
)

// StepResult is one append-only audit log entry for an orchestration step.
type StepResult struct {
	StepName     string       `json:"step_name"`
	StartedAt    time.Time    `json:"started_at"`
	EndedAt      time.Time    `json:"ended_at"`
	Status       StepStatus   `json:"status"`
	FailureClass FailureClass `json:"failure_class,omitempty"`
	Detail       string       `json:"detail,omitempty"`
}

// RemediationAttempt records one bounded corrective pass over a failed build.
type RemediationAttempt struct {
	AttemptNumber       int        `json:"attempt_number"`
	MatchedFailureClass string     `json:"matched_failure_class,omitempty"`
	TransformApplied    string     `json:"transform_applied,omitempty"`
	Result              StepResult `json:"result"`
}

// UpdateSession is the audit record of one orchestration run. It is owned
// exclusively by the orchestrator, mutated only by appending, and frozen
// once the outcome is set.
type UpdateSession struct {
	SessionID           string               `json:"session_id"`
	TargetID            string               `json:"target_id"`
	Revision            Revision             `json:"revision"`
	StartedAt           time.Time            `json:"started_at"`
	FinishedAt          time.Time            `json:"finished_at,omitzero"`
	Steps               []StepResult         `json:"steps"`
	RemediationAttempts []RemediationAttempt `json:"remediation_attempts,omitempty"`
	Notes               []string             `json:"notes,omitempty"`
	Outcome             Outcome              `json:"outcome"`
}

// NewUpdateSession creates a fresh session for the given target.
func NewUpdateSession(targetID string) *UpdateSession {
	return &UpdateSession{
		SessionID: uuid.NewString(),
		TargetID:  targetID,
		StartedAt: time.Now().UTC(),
		Outcome:   OutcomeRunning,
	}
}

// Terminal reports whether the session outcome has been fixed.
func (s *UpdateSession) Terminal() bool {
	return s.Outcome != OutcomeRunning
}

// AppendStep records a step result; it is a no-op on a terminal session.
func (s *UpdateSession) AppendStep(step StepResult) {
	if s.Terminal() {
		return
	}
	s.Steps = append(s.Steps, step)
}

// AppendRemediation records one remediation attempt; no-op once terminal.
func (s *UpdateSession) AppendRemediation(attempt RemediationAttempt) {
	if s.Terminal() {
		return
	}
	s.RemediationAttempts = append(s.RemediationAttempts, attempt)
}

// Note attaches a free-form notice surfaced in the final report, such as
// "risk assessment skipped".
func (s *UpdateSession) Note(note string) {
	if s.Terminal() {
		return
	}
	s.Notes = append(s.Notes, note)
}

// Finish fixes the session outcome. The first call wins; later calls are
// ignored so a terminal session is never reused or rewritten.
func (s *UpdateSession) Finish(outcome Outcome) {
	if s.Terminal() {
		return
	}
	s.Outcome = outcome
	s.FinishedAt = time.Now().UTC()
}

// LastFailure returns the failure class of the most recent failed step, or
// the empty string when every step succeeded.
func (s *UpdateSession) LastFailure() FailureClass {
	for i := len(s.Steps) - 1; i >= 0; i-- {
		if s.Steps[i].Status == StepStatusFailed {
			return s.Steps[i].FailureClass
		}
	}
	return ""
}
