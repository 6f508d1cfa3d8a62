package run_update

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genflow-agent/internal/domain/model"
	"genflow-agent/internal/domain/repository"
	"genflow-agent/internal/domain/service/remediation"
	"genflow-agent/internal/domain/service/risk"
	"genflow-agent/internal/infra/store"
)

type fakeSource struct {
	revision model.Revision
	err      error
	calls    int
}

func (f *fakeSource) FetchLatest(ctx context.Context, targetID string) (model.Revision, error) {
	f.calls++
	return f.revision, f.err
}

// fakeBuilder replays a scripted sequence of build results and records every
// revision it was asked to build.
type fakeBuilder struct {
	results []error // nil means success
	built   []model.Revision
}

func (f *fakeBuilder) Build(ctx context.Context, revision model.Revision) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.built = append(f.built, revision)
	i := len(f.built) - 1
	if i < len(f.results) && f.results[i] != nil {
		return "", f.results[i]
	}
	return fmt.Sprintf("artifact-%s", revision.ID), nil
}

type fakeRegistry struct {
	reports []model.IssueReport
	err     error
	calls   int
}

func (f *fakeRegistry) QueryIssues(ctx context.Context, components []string) ([]model.IssueReport, error) {
	f.calls++
	return f.reports, f.err
}

type fakeNotifier struct {
	mu       sync.Mutex
	subjects []string
	bodies   []string
}

func (f *fakeNotifier) Send(ctx context.Context, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjects = append(f.subjects, subject)
	f.bodies = append(f.bodies, body)
	return nil
}

type fakeArchive struct {
	mu       sync.Mutex
	sessions []*model.UpdateSession
}

func (f *fakeArchive) Save(session *model.UpdateSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append(f.sessions, session)
	return nil
}

func (f *fakeArchive) Recent(targetID string, limit int) ([]model.UpdateSession, error) {
	return nil, nil
}

type harness struct {
	source   *fakeSource
	builder  *fakeBuilder
	registry *fakeRegistry
	notifier *fakeNotifier
	archive  *fakeArchive
	store    *store.Store
	handler  *RunUpdateHandler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		source:   &fakeSource{revision: model.Revision{ID: "r1", Components: []string{"core", "shell"}, PayloadRef: "ref-r1"}},
		builder:  &fakeBuilder{},
		registry: &fakeRegistry{},
		notifier: &fakeNotifier{},
		archive:  &fakeArchive{},
	}
	s, err := store.New(t.TempDir(), "workstation")
	require.NoError(t, err)
	h.store = s

	h.handler = NewRunUpdateHandler(
		h.source,
		risk.NewDetector(h.registry),
		h.builder,
		remediation.NewEngine(remediation.DefaultRules()),
		func(targetID string) (repository.GenerationStore, error) { return s, nil },
		h.archive,
		h.notifier,
		model.Policy{},
	)
	return h
}

// seedBaseline installs an active generation so rollback has somewhere to go.
func (h *harness) seedBaseline(t *testing.T, rev model.Revision) model.Generation {
	t.Helper()
	gen, err := h.store.Stage(rev, "artifact-"+rev.ID)
	require.NoError(t, err)
	require.NoError(t, h.store.Activate(gen))
	return gen
}

func (h *harness) run(t *testing.T) *model.UpdateSession {
	t.Helper()
	return h.handler.Run(context.Background(), "workstation", model.Policy{})
}

func TestSuccessfulFirstRun(t *testing.T) {
	h := newHarness(t)

	session := h.run(t)

	assert.Equal(t, model.OutcomeSuccess, session.Outcome)
	assert.True(t, session.Terminal())
	assert.Empty(t, session.RemediationAttempts)

	cur, err := h.store.Current()
	require.NoError(t, err)
	assert.Equal(t, "r1", cur.Revision.ID)

	require.Len(t, h.archive.sessions, 1)
	require.Len(t, h.notifier.bodies, 1)
	assert.Contains(t, h.notifier.subjects[0], "workstation")
}

func TestNoOpWhenRevisionAlreadyActive(t *testing.T) {
	h := newHarness(t)
	h.seedBaseline(t, model.Revision{ID: "r1"})

	session := h.run(t)

	assert.Equal(t, model.OutcomeSuccess, session.Outcome)
	assert.Empty(t, h.builder.built, "builder must not run for an already-active revision")
	assert.Zero(t, h.registry.calls, "risk check must not run for a no-op session")

	found := false
	for _, note := range session.Notes {
		if strings.Contains(note, "already active") {
			found = true
		}
	}
	assert.True(t, found, "session must record the no-op notice")

	gens, err := h.store.Generations()
	require.NoError(t, err)
	assert.Len(t, gens, 1, "no new generation may be created")
}

func TestFetchFailureAborts(t *testing.T) {
	h := newHarness(t)
	h.source.err = errors.New("source unavailable")

	session := h.run(t)

	assert.Equal(t, model.OutcomeAborted, session.Outcome)
	assert.Equal(t, model.FailureClassFetch, session.LastFailure())
	assert.Empty(t, h.builder.built)

	_, err := h.store.Current()
	assert.ErrorIs(t, err, repository.ErrEmptyStore, "the store must stay untouched")
}

func TestCriticalIssueAbortsBeforeBuild(t *testing.T) {
	h := newHarness(t)
	baseline := h.seedBaseline(t, model.Revision{ID: "r0"})
	h.registry.reports = []model.IssueReport{{
		Component:      "core",
		Severity:       model.SeverityCritical,
		Recommendation: model.RecommendationAbort,
		Summary:        "core dumps on startup",
	}}

	session := h.run(t)

	assert.Equal(t, model.OutcomeAborted, session.Outcome)
	assert.Equal(t, model.FailureClassValidation, session.LastFailure())
	assert.Empty(t, h.builder.built, "builder must never run after an abort verdict")

	cur, err := h.store.Current()
	require.NoError(t, err)
	assert.Equal(t, baseline.ID, cur.ID)
	gens, err := h.store.Generations()
	require.NoError(t, err)
	assert.Len(t, gens, 1, "the store must not be mutated")
}

func TestAutoProceedOverridesCriticalIssue(t *testing.T) {
	h := newHarness(t)
	h.registry.reports = []model.IssueReport{{
		Component:      "core",
		Severity:       model.SeverityCritical,
		Recommendation: model.RecommendationAbort,
		Summary:        "core dumps on startup",
	}}

	session := h.handler.Run(context.Background(), "workstation", model.Policy{AutoProceedOnCritical: true})

	assert.Equal(t, model.OutcomeSuccess, session.Outcome)
	require.Len(t, h.builder.built, 1)
}

func TestUnreachableRegistryFailsOpen(t *testing.T) {
	h := newHarness(t)
	h.registry.err = repository.ErrRegistryUnreachable

	session := h.run(t)

	assert.Equal(t, model.OutcomeSuccess, session.Outcome)
	found := false
	for _, note := range session.Notes {
		if strings.Contains(note, "risk assessment skipped") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestRemediationFixesMissingDependency(t *testing.T) {
	h := newHarness(t)
	h.seedBaseline(t, model.Revision{ID: "r0"})
	h.builder.results = []error{
		&model.BuildError{Class: "missing-dependency", ExitCode: 1, Log: "error: missing dependency 'libfoo'"},
		nil,
	}

	session := h.run(t)

	assert.Equal(t, model.OutcomeSuccess, session.Outcome)
	require.Len(t, session.RemediationAttempts, 1)
	attempt := session.RemediationAttempts[0]
	assert.Equal(t, 1, attempt.AttemptNumber)
	assert.Equal(t, "missing-dependency", attempt.MatchedFailureClass)
	assert.Equal(t, "pin-missing-dependency", attempt.TransformApplied)

	require.Len(t, h.builder.built, 2)
	assert.Equal(t, "r1", h.builder.built[0].ID)
	assert.Equal(t, "r1+pin-missing-dependency", h.builder.built[1].ID)

	cur, err := h.store.Current()
	require.NoError(t, err)
	assert.Equal(t, "r1+pin-missing-dependency", cur.Revision.ID,
		"the corrected revision, not the original, must be active")
}

func TestUnmatchedBuildFailureRollsBack(t *testing.T) {
	h := newHarness(t)
	baseline := h.seedBaseline(t, model.Revision{ID: "r0"})
	h.builder.results = []error{
		&model.BuildError{ExitCode: 1, Log: "segfault in compiler pass 7"},
	}

	session := h.run(t)

	assert.Equal(t, model.OutcomeRolledBack, session.Outcome)
	require.Len(t, session.RemediationAttempts, 1, "exactly one no-match attempt is recorded, then remediation stops")
	assert.Equal(t, model.StepStatusFailed, session.RemediationAttempts[0].Result.Status)
	assert.Empty(t, session.RemediationAttempts[0].TransformApplied)
	require.Len(t, h.builder.built, 1, "no rebuild after a no-match")

	cur, err := h.store.Current()
	require.NoError(t, err)
	assert.Equal(t, baseline.ID, cur.ID, "the active generation must be unchanged")
}

func TestRemediationAttemptBound(t *testing.T) {
	h := newHarness(t)
	baseline := h.seedBaseline(t, model.Revision{ID: "r0"})
	// Every build fails with a matchable failure: the bound, not the rule
	// table, must stop the loop.
	stubborn := &model.BuildError{Class: "stale-lock", ExitCode: 1, Log: "could not acquire lock"}
	h.builder.results = []error{stubborn, stubborn, stubborn, stubborn, stubborn}

	session := h.handler.Run(context.Background(), "workstation", model.Policy{MaxRemediationAttempts: 2})

	assert.Equal(t, model.OutcomeRolledBack, session.Outcome)
	assert.Len(t, session.RemediationAttempts, 2)
	assert.Len(t, h.builder.built, 3, "initial build plus one rebuild per attempt")

	cur, err := h.store.Current()
	require.NoError(t, err)
	assert.Equal(t, baseline.ID, cur.ID)
}

func TestBuildFailureWithoutBaselineAborts(t *testing.T) {
	h := newHarness(t)
	h.builder.results = []error{
		&model.BuildError{ExitCode: 1, Log: "segfault in compiler pass 7"},
	}

	session := h.run(t)

	assert.Equal(t, model.OutcomeAborted, session.Outcome, "nothing to roll back to on a first run")
	_, err := h.store.Current()
	assert.ErrorIs(t, err, repository.ErrEmptyStore)
}

func TestCancellationBeforeActivationAborts(t *testing.T) {
	h := newHarness(t)
	h.seedBaseline(t, model.Revision{ID: "r0"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	session := h.handler.Run(ctx, "workstation", model.Policy{})

	assert.Equal(t, model.OutcomeAborted, session.Outcome)
	assert.Empty(t, h.builder.built)
	gens, err := h.store.Generations()
	require.NoError(t, err)
	assert.Len(t, gens, 1, "no staged generation may survive a cancelled session")
}

func TestSwitchFailureDemandsManualAction(t *testing.T) {
	h := newHarness(t)
	h.seedBaseline(t, model.Revision{ID: "r0"})

	failing := &activateFailingStore{GenerationStore: h.store}
	handler := NewRunUpdateHandler(
		h.source,
		risk.NewDetector(h.registry),
		h.builder,
		remediation.NewEngine(remediation.DefaultRules()),
		func(targetID string) (repository.GenerationStore, error) { return failing, nil },
		h.archive,
		h.notifier,
		model.Policy{},
	)

	session := handler.Run(context.Background(), "workstation", model.Policy{})

	assert.Equal(t, model.OutcomeRolledBack, session.Outcome)
	assert.Equal(t, model.FailureClassSwitch, session.LastFailure())
	require.Len(t, h.notifier.bodies, 1)
	assert.Contains(t, h.notifier.bodies[0], "MANUAL ACTION REQUIRED")

	cmd := RunUpdateCommand{Ctx: context.Background(), TargetID: "workstation"}
	err := handler.Handle(cmd)
	assert.Error(t, err, "a switch failure must surface to the caller")
}

type activateFailingStore struct {
	repository.GenerationStore
}

func (s *activateFailingStore) Activate(generation model.Generation) error {
	return &model.SwitchError{Op: "activate", Reason: "pointer write rejected"}
}

func TestEveryTerminalSessionIsArchivedAndReported(t *testing.T) {
	h := newHarness(t)
	h.source.err = errors.New("source unavailable")

	session := h.run(t)

	require.Len(t, h.archive.sessions, 1)
	assert.Equal(t, session.SessionID, h.archive.sessions[0].SessionID)
	require.Len(t, h.notifier.bodies, 1)
	assert.Contains(t, h.notifier.bodies[0], session.SessionID)
	assert.False(t, session.FinishedAt.IsZero())
}

func TestHandleDeliversSessionOnResultChannel(t *testing.T) {
	h := newHarness(t)

	results := make(chan *model.UpdateSession, 1)
	err := h.handler.Handle(RunUpdateCommand{
		Ctx:      context.Background(),
		TargetID: "workstation",
		Result:   results,
	})
	require.NoError(t, err)

	select {
	case session := <-results:
		assert.Equal(t, model.OutcomeSuccess, session.Outcome)
	default:
		t.Fatal("expected a session on the result channel")
	}
}

func TestHandleRejectsEmptyTarget(t *testing.T) {
	h := newHarness(t)
	assert.Error(t, h.handler.Handle(RunUpdateCommand{Ctx: context.Background()}))
}

func TestTimeoutFromPolicyIsApplied(t *testing.T) {
	h := newHarness(t)
	h.seedBaseline(t, model.Revision{ID: "r0"})

	slow := &slowBuilder{delay: 200 * time.Millisecond}
	handler := NewRunUpdateHandler(
		h.source,
		risk.NewDetector(h.registry),
		slow,
		remediation.NewEngine(remediation.DefaultRules()),
		func(targetID string) (repository.GenerationStore, error) { return h.store, nil },
		h.archive,
		h.notifier,
		model.Policy{},
	)

	session := handler.Run(context.Background(), "workstation", model.Policy{Timeout: 20 * time.Millisecond})

	assert.Equal(t, model.OutcomeAborted, session.Outcome)
}

type slowBuilder struct {
	delay time.Duration
}

func (b *slowBuilder) Build(ctx context.Context, revision model.Revision) (string, error) {
	select {
	case <-time.After(b.delay):
		return "artifact", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
