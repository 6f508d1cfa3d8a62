// Package run_update implements the update orchestrator: the state machine
// that fetches a revision, assesses risk, builds with bounded remediation,
// and atomically activates the new generation or rolls back.
package run_update

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"genflow-agent/internal/domain/model"
	"genflow-agent/internal/domain/repository"
	"genflow-agent/internal/domain/service/remediation"
	"genflow-agent/internal/domain/service/report"
	"genflow-agent/internal/domain/service/risk"
	"genflow-agent/pkg/log"
)

// StoreProvider resolves the generation store for a target. Each target has
// its own store; the provider is expected to return the same instance for
// the same target so the store's internal lock serializes pointer writes.
type StoreProvider func(targetID string) (repository.GenerationStore, error)

// RunUpdateHandler handles the RunUpdateCommand. It owns the session state
// machine, the per-target exclusivity lock, the timeout, and the guarantee
// that every terminal session produces exactly one report.
type RunUpdateHandler struct {
	source   repository.ConfigurationSource
	detector *risk.Detector
	builder  repository.Builder
	engine   *remediation.Engine
	stores   StoreProvider
	archive  repository.SessionArchive
	notifier repository.Notifier
	defaults model.Policy

	mu          sync.Mutex
	targetLocks map[string]*sync.Mutex
}

// NewRunUpdateHandler creates a new RunUpdateHandler.
func NewRunUpdateHandler(
	source repository.ConfigurationSource,
	detector *risk.Detector,
	builder repository.Builder,
	engine *remediation.Engine,
	stores StoreProvider,
	archive repository.SessionArchive,
	notifier repository.Notifier,
	defaults model.Policy,
) *RunUpdateHandler {
	return &RunUpdateHandler{
		source:      source,
		detector:    detector,
		builder:     builder,
		engine:      engine,
		stores:      stores,
		archive:     archive,
		notifier:    notifier,
		defaults:    defaults.Normalized(),
		targetLocks: make(map[string]*sync.Mutex),
	}
}

// Handle executes the RunUpdateCommand.
func (h *RunUpdateHandler) Handle(cmd RunUpdateCommand) error {
	ctx := cmd.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if cmd.TargetID == "" {
		return errors.New("target id is required for run update command")
	}

	session := h.Run(ctx, cmd.TargetID, cmd.Policy)
	if cmd.Result != nil {
		select {
		case cmd.Result <- session:
		default:
			log.Warn("run update result channel full, dropping session handle", "session", session.SessionID)
		}
	}

	// A switch failure is the one condition the agent must escalate: the
	// store needs human attention before the next cycle can be trusted.
	if session.LastFailure() == model.FailureClassSwitch {
		return fmt.Errorf("update session %s for %s requires manual intervention: activation pointer is unhealthy", session.SessionID, cmd.TargetID)
	}
	return nil
}

// Run executes one update session for the target and returns it once a
// terminal outcome is reached. It is synchronous from the caller's view and
// safe for concurrent use across different targets; runs for the same
// target are serialized.
func (h *RunUpdateHandler) Run(ctx context.Context, targetID string, policy model.Policy) *model.UpdateSession {
	policy = h.mergePolicy(policy)

	lock := h.targetLock(targetID)
	lock.Lock()
	defer lock.Unlock()

	ctx, cancel := context.WithTimeout(ctx, policy.Timeout)
	defer cancel()

	session := model.NewUpdateSession(targetID)
	log.Info("update session started", "session", session.SessionID, "target", targetID)

	h.execute(ctx, session, targetID, policy)

	log.Info("update session finished",
		"session", session.SessionID,
		"target", targetID,
		"outcome", string(session.Outcome),
		"remediation_attempts", len(session.RemediationAttempts))

	h.finalize(session)
	return session
}

func (h *RunUpdateHandler) mergePolicy(p model.Policy) model.Policy {
	if p.MaxRemediationAttempts <= 0 {
		p.MaxRemediationAttempts = h.defaults.MaxRemediationAttempts
	}
	if p.Timeout <= 0 {
		p.Timeout = h.defaults.Timeout
	}
	return p.Normalized()
}

func (h *RunUpdateHandler) targetLock(targetID string) *sync.Mutex {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.targetLocks[targetID]; !ok {
		h.targetLocks[targetID] = &sync.Mutex{}
	}
	return h.targetLocks[targetID]
}

// run is the session's working state, private to one execute call.
type run struct {
	store     repository.GenerationStore
	baseline  *model.Generation // active generation before the session, nil on first run
	revision  model.Revision
	staged    *model.Generation
	activated bool
}

// execute drives the session through the state machine until the outcome is
// fixed. States: fetching -> risk check -> building <-> remediating ->
// activating -> done, with side exits to rolling back and aborted.
func (h *RunUpdateHandler) execute(ctx context.Context, session *model.UpdateSession, targetID string, policy model.Policy) {
	r := &run{}

	store, err := h.stores(targetID)
	if err != nil {
		h.failStep(session, "open-store", model.FailureClassSwitch, err.Error())
		session.Finish(model.OutcomeAborted)
		return
	}
	r.store = store

	if cur, err := store.Current(); err == nil {
		baseline := cur
		r.baseline = &baseline
	} else if !errors.Is(err, repository.ErrEmptyStore) {
		// Store corruption: nothing can be trusted, stop before fetching.
		h.failStep(session, "open-store", model.FailureClassSwitch, err.Error())
		session.Finish(model.OutcomeAborted)
		return
	}

	// Fetching
	if !h.fetch(ctx, session, targetID, r) {
		return
	}

	// Idempotent no-op: the source returned what is already active.
	if r.baseline != nil && r.revision.Equal(r.baseline.Revision) {
		session.Note(fmt.Sprintf("revision %s is already active, nothing to do", r.revision.ID))
		session.Finish(model.OutcomeSuccess)
		return
	}

	// RiskCheck
	if !h.riskCheck(ctx, session, policy, r) {
		return
	}

	// Building / Remediating cycle, bounded by the policy.
	if !h.buildLoop(ctx, session, policy, r) {
		return
	}

	// Activating
	h.activate(ctx, session, r)
}

// fetch obtains the revision; any failure here is fatal and the store is
// never touched. Returns false when the session terminated.
func (h *RunUpdateHandler) fetch(ctx context.Context, session *model.UpdateSession, targetID string, r *run) bool {
	started := time.Now().UTC()
	rev, err := h.source.FetchLatest(ctx, targetID)
	if err != nil {
		session.AppendStep(model.StepResult{
			StepName:     "fetch",
			StartedAt:    started,
			EndedAt:      time.Now().UTC(),
			Status:       model.StepStatusFailed,
			FailureClass: model.FailureClassFetch,
			Detail:       err.Error(),
		})
		session.Finish(model.OutcomeAborted)
		return false
	}

	r.revision = rev
	session.Revision = rev
	session.AppendStep(model.StepResult{
		StepName:  "fetch",
		StartedAt: started,
		EndedAt:   time.Now().UTC(),
		Status:    model.StepStatusOk,
		Detail:    fmt.Sprintf("revision %s (%d components)", rev.ID, len(rev.Components)),
	})
	return true
}

// riskCheck evaluates the revision against the issue registry. Returns
// false when the session terminated.
func (h *RunUpdateHandler) riskCheck(ctx context.Context, session *model.UpdateSession, policy model.Policy, r *run) bool {
	started := time.Now().UTC()
	verdict := h.detector.Evaluate(ctx, r.revision)

	if verdict.Skipped {
		session.Note("risk assessment skipped: issue registry unreachable")
	}
	for _, rep := range verdict.Reports {
		session.Note(fmt.Sprintf("issue [%s/%s] %s: %s", rep.Severity, rep.Recommendation, rep.Component, rep.Summary))
	}

	if verdict.ShouldAbort(policy.AutoProceedOnCritical) {
		session.AppendStep(model.StepResult{
			StepName:     "risk-check",
			StartedAt:    started,
			EndedAt:      time.Now().UTC(),
			Status:       model.StepStatusFailed,
			FailureClass: model.FailureClassValidation,
			Detail:       fmt.Sprintf("critical issue with abort recommendation (worst severity %s)", verdict.WorstSeverity()),
		})
		session.Finish(model.OutcomeAborted)
		return false
	}

	if policy.AutoProceedOnCritical && verdict.ShouldAbort(false) {
		session.Note("auto-proceed on critical issues is enabled: continuing despite abort recommendation")
	}

	detail := fmt.Sprintf("%d issue reports", len(verdict.Reports))
	if verdict.Skipped {
		detail = "skipped (registry unreachable)"
	}
	session.AppendStep(model.StepResult{
		StepName:  "risk-check",
		StartedAt: started,
		EndedAt:   time.Now().UTC(),
		Status:    model.StepStatusOk,
		Detail:    detail,
	})
	return true
}

// buildLoop alternates building and remediating until a build succeeds, the
// attempt bound is reached, or no rule matches. Returns false when the
// session terminated.
func (h *RunUpdateHandler) buildLoop(ctx context.Context, session *model.UpdateSession, policy model.Policy, r *run) bool {
	for {
		if ctx.Err() != nil {
			h.cancelled(session, r, ctx.Err())
			return false
		}

		started := time.Now().UTC()
		artifact, err := h.builder.Build(ctx, r.revision)
		if err == nil {
			session.AppendStep(model.StepResult{
				StepName:  "build",
				StartedAt: started,
				EndedAt:   time.Now().UTC(),
				Status:    model.StepStatusOk,
				Detail:    fmt.Sprintf("artifact %s", artifact),
			})

			staged, stageErr := r.store.Stage(r.revision, artifact)
			if stageErr != nil {
				// Stage never touches the pointer, so there is nothing to
				// roll back.
				h.failStep(session, "stage", model.FailureClassSwitch, stageErr.Error())
				session.Finish(model.OutcomeAborted)
				return false
			}
			r.staged = &staged
			return true
		}

		if ctx.Err() != nil {
			h.cancelled(session, r, ctx.Err())
			return false
		}

		var buildErr *model.BuildError
		if !errors.As(err, &buildErr) {
			buildErr = &model.BuildError{ExitCode: -1, Log: err.Error()}
		}
		session.AppendStep(model.StepResult{
			StepName:     "build",
			StartedAt:    started,
			EndedAt:      time.Now().UTC(),
			Status:       model.StepStatusFailed,
			FailureClass: model.FailureClassBuild,
			Detail:       buildErr.Error(),
		})

		if len(session.RemediationAttempts) >= policy.MaxRemediationAttempts {
			session.Note(fmt.Sprintf("remediation attempt bound (%d) reached", policy.MaxRemediationAttempts))
			h.rollBack(session, r)
			return false
		}

		// Remediating
		attemptNumber := len(session.RemediationAttempts) + 1
		attemptStarted := time.Now().UTC()
		result, remErr := h.engine.Remediate(r.revision, buildErr, attemptNumber, policy.MaxRemediationAttempts)
		if remErr != nil {
			detail := "no matching remediation rule"
			if !errors.Is(remErr, remediation.ErrNoMatch) {
				detail = remErr.Error()
			}
			session.AppendRemediation(model.RemediationAttempt{
				AttemptNumber:       attemptNumber,
				MatchedFailureClass: buildErr.Class,
				Result: model.StepResult{
					StepName:     "remediate",
					StartedAt:    attemptStarted,
					EndedAt:      time.Now().UTC(),
					Status:       model.StepStatusFailed,
					FailureClass: model.FailureClassBuild,
					Detail:       detail,
				},
			})
			h.rollBack(session, r)
			return false
		}

		session.AppendRemediation(model.RemediationAttempt{
			AttemptNumber:       attemptNumber,
			MatchedFailureClass: result.MatchedClass,
			TransformApplied:    result.Rule,
			Result: model.StepResult{
				StepName:  "remediate",
				StartedAt: attemptStarted,
				EndedAt:   time.Now().UTC(),
				Status:    model.StepStatusOk,
				Detail:    fmt.Sprintf("corrected revision %s", result.Revision.ID),
			},
		})
		r.revision = result.Revision
		session.Revision = result.Revision
	}
}

// activate performs the atomic pointer swap and fixes the session outcome.
func (h *RunUpdateHandler) activate(ctx context.Context, session *model.UpdateSession, r *run) {
	if ctx.Err() != nil {
		h.cancelled(session, r, ctx.Err())
		return
	}

	started := time.Now().UTC()
	if err := r.store.Activate(*r.staged); err != nil {
		session.AppendStep(model.StepResult{
			StepName:     "activate",
			StartedAt:    started,
			EndedAt:      time.Now().UTC(),
			Status:       model.StepStatusFailed,
			FailureClass: model.FailureClassSwitch,
			Detail:       err.Error(),
		})
		h.rollBack(session, r)
		return
	}
	r.activated = true

	session.AppendStep(model.StepResult{
		StepName:  "activate",
		StartedAt: started,
		EndedAt:   time.Now().UTC(),
		Status:    model.StepStatusOk,
		Detail:    fmt.Sprintf("generation %d is now active", r.staged.ID),
	})
	session.Finish(model.OutcomeSuccess)
}

// cancelled handles an external cancellation or timeout: roll back if a
// generation reached activation, abort otherwise. After the outcome is
// fixed, cancellation is a no-op by construction (the session is frozen).
func (h *RunUpdateHandler) cancelled(session *model.UpdateSession, r *run, cause error) {
	session.Note(fmt.Sprintf("session cancelled: %v", cause))
	if r.activated {
		h.rollBack(session, r)
		return
	}
	if r.staged != nil {
		if err := r.store.Discard(*r.staged); err != nil {
			log.Warn("failed to discard staged generation after cancellation", "generation", r.staged.ID, "error", err)
		}
	}
	session.Finish(model.OutcomeAborted)
}

// rollBack drives the rolling-back state. The session outcome becomes
// rolled back (or aborted when the store never had an active generation),
// regardless of whether the rollback itself succeeds; a rollback failure is
// logged as a separate fatal step requiring human intervention.
func (h *RunUpdateHandler) rollBack(session *model.UpdateSession, r *run) {
	if r.staged != nil && !r.activated {
		if err := r.store.Discard(*r.staged); err != nil {
			log.Warn("failed to discard staged generation", "generation", r.staged.ID, "error", err)
		}
	}

	if r.activated {
		started := time.Now().UTC()
		if err := r.store.Rollback(); err != nil {
			session.AppendStep(model.StepResult{
				StepName:     "rollback",
				StartedAt:    started,
				EndedAt:      time.Now().UTC(),
				Status:       model.StepStatusFailed,
				FailureClass: model.FailureClassSwitch,
				Detail:       err.Error(),
			})
			session.Note("rollback failed: manual intervention required")
		} else {
			session.AppendStep(model.StepResult{
				StepName:  "rollback",
				StartedAt: started,
				EndedAt:   time.Now().UTC(),
				Status:    model.StepStatusOk,
				Detail:    "restored prior generation",
			})
		}
	}

	if r.baseline == nil && !r.activated {
		session.Finish(model.OutcomeAborted)
		return
	}
	session.Finish(model.OutcomeRolledBack)
}

// failStep appends an untimed failed step.
func (h *RunUpdateHandler) failStep(session *model.UpdateSession, name string, class model.FailureClass, detail string) {
	now := time.Now().UTC()
	session.AppendStep(model.StepResult{
		StepName:     name,
		StartedAt:    now,
		EndedAt:      now,
		Status:       model.StepStatusFailed,
		FailureClass: class,
		Detail:       detail,
	})
}

// finalize archives the terminal session and dispatches its report exactly
// once. Neither archiving nor notification failures can alter the outcome.
func (h *RunUpdateHandler) finalize(session *model.UpdateSession) {
	if h.archive != nil {
		if err := h.archive.Save(session); err != nil {
			log.Error("failed to archive session", "session", session.SessionID, "error", err)
		}
	}

	if h.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	subject := report.Subject(session)
	body := report.Format(session)
	if err := h.notifier.Send(ctx, subject, body); err != nil {
		log.Warn("failed to deliver session report",
			"session", session.SessionID,
			"error", err,
			"report", strings.SplitN(body, "\n", 2)[0])
	}
}
