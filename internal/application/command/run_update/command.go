package run_update

import (
	"context"

	"genflow-agent/internal/domain/model"
)

// RunUpdateCommand requests one full update orchestration run for a target.
type RunUpdateCommand struct {
	// Ctx carries the caller's cancellation signal; nil means Background.
	Ctx context.Context
	// TargetID names the target system to update.
	TargetID string
	// Policy overrides the handler's defaults; zero fields keep them.
	Policy model.Policy
	// Result, when non-nil, receives the terminal session. The channel
	// should be buffered; the handler never blocks on it.
	Result chan<- *model.UpdateSession
}

// Name returns the name of the command
func (c RunUpdateCommand) Name() string {
	return "RunUpdate"
}
