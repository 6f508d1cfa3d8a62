package repository

import (
	"context"
	"errors"

	"genflow-agent/internal/domain/model"
)

// ErrRegistryUnreachable signals that the issue registry could not be
// queried at all. The risk check treats this as fail-open.
var ErrRegistryUnreachable = errors.New("issue registry unreachable")

// ConfigurationSource supplies new desired-state revisions for a target.
type ConfigurationSource interface {
	// FetchLatest returns the newest revision for the target. Any failure
	// here is fatal for the session; the store is never touched.
	FetchLatest(ctx context.Context, targetID string) (model.Revision, error)
}

// Builder compiles a revision into a deployable artifact. The build is an
// opaque, potentially slow external operation; it must honor context
// cancellation and must not retry internally; retry policy belongs to the
// remediation loop.
type Builder interface {
	// Build returns an opaque artifact reference, or a *model.BuildError
	// carrying the raw log for remediation pattern matching.
	Build(ctx context.Context, revision model.Revision) (string, error)
}

// IssueRegistry reports known defects for a set of component names.
type IssueRegistry interface {
	// QueryIssues returns all known issue reports for the components.
	// ErrRegistryUnreachable indicates the registry itself was unavailable.
	QueryIssues(ctx context.Context, components []string) ([]model.IssueReport, error)
}

// Notifier delivers a human-readable session report. Delivery is
// best-effort: failures are logged and never alter the session outcome.
type Notifier interface {
	Send(ctx context.Context, subject, body string) error
}

// SessionArchive persists terminal update sessions for audit queries.
type SessionArchive interface {
	// Save stores a terminal session. Sessions are never deleted.
	Save(session *model.UpdateSession) error

	// Recent returns up to limit sessions for the target, newest first.
	Recent(targetID string, limit int) ([]model.UpdateSession, error)
}
