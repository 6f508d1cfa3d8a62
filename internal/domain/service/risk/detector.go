// Package risk evaluates an incoming revision against the issue registry
// and condenses the findings into a single verdict.
package risk

import (
	"context"
	"errors"

	"genflow-agent/internal/domain/model"
	"genflow-agent/internal/domain/repository"
	"genflow-agent/pkg/log"
)

// Detector aggregates issue reports for the components of a revision.
type Detector struct {
	registry repository.IssueRegistry
}

// NewDetector creates a Detector backed by the given registry.
func NewDetector(registry repository.IssueRegistry) *Detector {
	return &Detector{registry: registry}
}

// Evaluate queries the registry for every component named in the revision
// and aggregates the reports into one verdict. An unreachable registry is
// non-fatal: routine updates must not block on registry downtime, so the
// verdict comes back empty with the Skipped flag set and the session report
// carries the notice.
func (d *Detector) Evaluate(ctx context.Context, revision model.Revision) model.RiskVerdict {
	reports, err := d.registry.QueryIssues(ctx, revision.Components)
	if err != nil {
		if errors.Is(err, repository.ErrRegistryUnreachable) {
			log.Warn("issue registry unreachable, proceeding without risk assessment",
				"revision", revision.ID, "error", err)
			return model.RiskVerdict{Skipped: true}
		}
		// Malformed registry responses get the same fail-open treatment as
		// downtime, but at error level since they point at a registry bug.
		log.Error("issue registry query failed, proceeding without risk assessment",
			"revision", revision.ID, "error", err)
		return model.RiskVerdict{Skipped: true}
	}

	verdict := model.RiskVerdict{Reports: reports}
	if len(reports) > 0 {
		log.Info("risk assessment complete",
			"revision", revision.ID,
			"reports", len(reports),
			"worst_severity", string(verdict.WorstSeverity()))
	}
	return verdict
}
