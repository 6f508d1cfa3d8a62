package model

import "fmt"

// FailureClass classifies a failed step for remediation and reporting.
type FailureClass string

const (
	FailureClassFetch      FailureClass = "fetch_error"
	FailureClassBuild      FailureClass = "build_error"
	FailureClassValidation FailureClass = "validation_error"
	FailureClassSwitch     FailureClass = "switch_error"
)

// BuildError is a classified build failure. It carries the raw build log so
// the remediation engine can pattern-match known failure signatures.
type BuildError struct {
	// Class is a short classification hint derived from the log, e.g.
	// "missing-dependency". Empty when the failure was not recognized.
	Class string `json:"class,omitempty"`
	// ExitCode is the build command's exit code, or -1 when the process
	// was killed by a signal or never started.
	ExitCode int `json:"exit_code"`
	// Log is the combined build output.
	Log string `json:"log"`
}

func (e *BuildError) Error() string {
	if e.Class != "" {
		return fmt.Sprintf("build failed (%s, exit code %d)", e.Class, e.ExitCode)
	}
	return fmt.Sprintf("build failed (exit code %d)", e.ExitCode)
}

// SwitchError is a failed activation or rollback. It is always fatal: the
// pointer swap never self-heals and requires human intervention.
type SwitchError struct {
	Op     string // "activate" or "rollback"
	Reason string
	Err    error
}

func (e *SwitchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s failed: %s", e.Op, e.Reason)
}

func (e *SwitchError) Unwrap() error { return e.Err }
