// Package get_sessions returns archived update sessions for a target,
// newest first.
package get_sessions

// GetSessionsQuery requests recent update sessions for one target.
type GetSessionsQuery struct {
	TargetID string
	// Limit caps the number of sessions returned; a non-positive value
	// falls back to the handler default.
	Limit int
}

func (q GetSessionsQuery) Name() string {
	return "GetSessions"
}
