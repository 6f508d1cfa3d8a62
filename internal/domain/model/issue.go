package model

// Severity grades how serious a known issue is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// severityRank orders severities so the worst one can be selected.
var severityRank = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Rank returns a comparable weight for the severity; unknown values rank lowest.
func (s Severity) Rank() int {
	return severityRank[s]
}

// Recommendation is the registry's advice for a reported issue.
type Recommendation string

const (
	RecommendationProceed Recommendation = "proceed"
	RecommendationCaution Recommendation = "caution"
	RecommendationDelay   Recommendation = "delay"
	RecommendationAbort   Recommendation = "abort"
)

// IssueReport is one known defect reported by the issue registry for a
// component of the incoming revision.
type IssueReport struct {
	Component      string         `json:"component"`
	Severity       Severity       `json:"severity"`
	Summary        string         `json:"summary"`
	Recommendation Recommendation `json:"recommendation"`
}

// RiskVerdict aggregates all issue reports gathered for one revision.
type RiskVerdict struct {
	Reports []IssueReport `json:"reports"`
	// Skipped is set when the issue registry was unreachable and the
	// assessment proceeded fail-open with an empty verdict.
	Skipped bool `json:"skipped"`
}

// WorstSeverity returns the highest severity among the reports, or the empty
// string when there are none.
func (v RiskVerdict) WorstSeverity() Severity {
	var worst Severity
	for _, r := range v.Reports {
		if r.Severity.Rank() > worst.Rank() {
			worst = r.Severity
		}
	}
	return worst
}

// ShouldAbort reports whether the verdict blocks the update. A critical
// issue with an abort recommendation blocks unless the auto-proceed policy
// flag is set.
func (v RiskVerdict) ShouldAbort(autoProceedOnCritical bool) bool {
	if autoProceedOnCritical {
		return false
	}
	for _, r := range v.Reports {
		if r.Severity == SeverityCritical && r.Recommendation == RecommendationAbort {
			return true
		}
	}
	return false
}
