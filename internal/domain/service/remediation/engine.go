// Package remediation maps classified build failures to a bounded, ordered
// set of corrective revision rewrites.
package remediation

import (
	"errors"
	"fmt"

	"genflow-agent/internal/domain/model"
	"genflow-agent/pkg/log"
)

// ErrNoMatch is returned when no rule recognizes the failure, or when the
// attempt bound is exhausted. The orchestrator must stop remediating on it
// rather than guess.
var ErrNoMatch = errors.New("no remediation rule matches the failure")

// Rule is one known failure signature and its corrective rewrite.
type Rule struct {
	// Name identifies the rule in remediation attempt records.
	Name string
	// Match reports whether the rule recognizes the build failure.
	Match func(failure *model.BuildError) bool
	// Apply rewrites the revision so the next build can succeed.
	Apply func(revision model.Revision) (model.Revision, error)
}

// Engine applies the first matching rule from an ordered list. The rule
// table is closed: failure handling stays enumerable and bounded instead of
// open-ended log grepping.
type Engine struct {
	rules []Rule
}

// NewEngine creates an engine with the given ordered rule list.
func NewEngine(rules []Rule) *Engine {
	return &Engine{rules: rules}
}

// Result describes one applied remediation.
type Result struct {
	// Revision is the corrected revision to rebuild.
	Revision model.Revision
	// Rule is the name of the rule that matched.
	Rule string
	// MatchedClass is the failure classification the rule acted on.
	MatchedClass string
}

// Remediate applies the first rule matching the failure to the revision.
// attemptNumber is 1-based; a value above maxAttempts forces ErrNoMatch
// regardless of any pattern match, guaranteeing termination.
func (e *Engine) Remediate(revision model.Revision, failure *model.BuildError, attemptNumber, maxAttempts int) (Result, error) {
	if failure == nil {
		return Result{}, errors.New("remediate called without a build failure")
	}
	if attemptNumber > maxAttempts {
		log.Warn("remediation attempt bound reached",
			"revision", revision.ID, "attempt", attemptNumber, "max", maxAttempts)
		return Result{}, ErrNoMatch
	}

	for _, rule := range e.rules {
		if !rule.Match(failure) {
			continue
		}
		corrected, err := rule.Apply(revision)
		if err != nil {
			return Result{}, fmt.Errorf("applying remediation rule %s: %w", rule.Name, err)
		}
		log.Info("remediation rule applied",
			"rule", rule.Name, "revision", revision.ID, "corrected", corrected.ID, "attempt", attemptNumber)
		return Result{
			Revision:     corrected,
			Rule:         rule.Name,
			MatchedClass: failure.Class,
		}, nil
	}

	return Result{}, ErrNoMatch
}
