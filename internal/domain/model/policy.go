package model

import "time"

const (
	// DefaultMaxRemediationAttempts bounds the remediation loop.
	DefaultMaxRemediationAttempts = 3
	// DefaultSessionTimeout bounds one full orchestration run.
	DefaultSessionTimeout = 30 * time.Minute
)

// Policy holds the per-session knobs of the orchestrator.
type Policy struct {
	// MaxRemediationAttempts caps how many corrective rebuilds a session
	// may perform before rolling back.
	MaxRemediationAttempts int `json:"max_remediation_attempts" yaml:"max_remediation_attempts"`
	// AutoProceedOnCritical lets the session continue past a critical
	// issue with an abort recommendation. Off by default: blocking is the
	// safe side of this policy decision.
	AutoProceedOnCritical bool `json:"auto_proceed_on_critical" yaml:"auto_proceed_on_critical"`
	// Timeout cancels the session when exceeded.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// Normalized returns a copy with zero values replaced by defaults.
func (p Policy) Normalized() Policy {
	if p.MaxRemediationAttempts <= 0 {
		p.MaxRemediationAttempts = DefaultMaxRemediationAttempts
	}
	if p.Timeout <= 0 {
		p.Timeout = DefaultSessionTimeout
	}
	return p
}
