// Package report renders an update session's audit trail into the
// human-readable summary delivered by the notifier and shown by the CLI.
package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"genflow-agent/internal/domain/model"
	"genflow-agent/pkg/yaml"
)

// Subject returns the one-line notification subject for a session.
func Subject(s *model.UpdateSession) string {
	return fmt.Sprintf("[genflow] %s update %s: %s", s.TargetID, shortID(s.SessionID), outcomeLabel(s.Outcome))
}

// Format renders the full step trail, remediation history and notes of a
// terminal session as human-readable text.
func Format(s *model.UpdateSession) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Update session %s\n", s.SessionID)
	fmt.Fprintf(&b, "Target:   %s\n", s.TargetID)
	if s.Revision.ID != "" {
		fmt.Fprintf(&b, "Revision: %s\n", s.Revision.ID)
	}
	fmt.Fprintf(&b, "Outcome:  %s\n", outcomeLabel(s.Outcome))
	fmt.Fprintf(&b, "Started:  %s\n", s.StartedAt.Format("2006-01-02 15:04:05 MST"))
	if !s.FinishedAt.IsZero() {
		fmt.Fprintf(&b, "Duration: %s\n", s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond).String())
	}

	b.WriteString("\nSteps:\n")
	for i, step := range s.Steps {
		status := "ok"
		if step.Status == model.StepStatusFailed {
			status = "FAILED"
			if step.FailureClass != "" {
				status = fmt.Sprintf("FAILED (%s)", step.FailureClass)
			}
		}
		fmt.Fprintf(&b, "  %d. %-12s %s", i+1, step.StepName, status)
		if step.Detail != "" {
			fmt.Fprintf(&b, " - %s", firstLine(step.Detail))
		}
		b.WriteByte('\n')
	}

	if len(s.RemediationAttempts) > 0 {
		b.WriteString("\nRemediation attempts:\n")
		for _, a := range s.RemediationAttempts {
			transform := a.TransformApplied
			if transform == "" {
				transform = "no matching fix"
			}
			fmt.Fprintf(&b, "  #%d %s", a.AttemptNumber, transform)
			if a.MatchedFailureClass != "" {
				fmt.Fprintf(&b, " (matched %s)", a.MatchedFailureClass)
			}
			fmt.Fprintf(&b, " -> %s\n", a.Result.Status)
		}
	}

	if len(s.Notes) > 0 {
		b.WriteString("\nNotices:\n")
		for _, note := range s.Notes {
			fmt.Fprintf(&b, "  - %s\n", note)
		}
	}

	if s.Outcome == model.OutcomeRolledBack || s.Outcome == model.OutcomeAborted {
		if class := s.LastFailure(); class != "" {
			fmt.Fprintf(&b, "\nFinal failure class: %s\n", class)
			if class == model.FailureClassSwitch {
				b.WriteString("MANUAL ACTION REQUIRED: the activation pointer could not be switched automatically.\n")
			}
		}
	}

	return b.String()
}

// Attachment renders the session as YAML for machine consumption alongside
// the text summary.
func Attachment(s *model.UpdateSession) ([]byte, error) {
	j, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session %s: %w", s.SessionID, err)
	}
	return yaml.JSONToYAML(j)
}

func outcomeLabel(o model.Outcome) string {
	switch o {
	case model.OutcomeSuccess:
		return "success"
	case model.OutcomeRolledBack:
		return "rolled back"
	case model.OutcomeAborted:
		return "aborted"
	default:
		return string(o)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
