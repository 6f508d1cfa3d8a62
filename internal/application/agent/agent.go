// Package agent runs the long-lived update daemon: one update cycle per
// configured target on a fixed interval, with exponential backoff after
// failed cycles.
package agent

import (
	"context"
	"sync"
	"time"

	"genflow-agent/internal/application"
	"genflow-agent/internal/application/command/run_update"
	"genflow-agent/internal/config"
	"genflow-agent/internal/domain/model"
	"genflow-agent/pkg/backoff"
	"genflow-agent/pkg/cqrs"
	"genflow-agent/pkg/log"
)

// Agent is the daemon. It owns the application container and the command
// and query buses.
type Agent struct {
	cfg        *config.Config
	container  *application.Container
	commandBus *cqrs.DefaultCommandBus
	queryBus   *cqrs.DefaultQueryBus

	mu sync.RWMutex
	wg sync.WaitGroup
}

// NewAgent wires the container and buses for daemon operation.
func NewAgent(ctx context.Context, cfg *config.Config) (*Agent, error) {
	container, err := application.NewContainer(cfg)
	if err != nil {
		return nil, err
	}

	commandBus := cqrs.NewCommandBus(ctx)
	if err := container.RegisterCommandHandlers(commandBus); err != nil {
		container.Close()
		return nil, err
	}

	queryBus := cqrs.NewQueryBus()
	if err := container.RegisterQueryHandlers(queryBus); err != nil {
		container.Close()
		return nil, err
	}

	return &Agent{
		cfg:        cfg,
		container:  container,
		commandBus: commandBus,
		queryBus:   queryBus,
	}, nil
}

// QueryBus exposes the query bus for status endpoints and tooling.
func (a *Agent) QueryBus() cqrs.QueryBus {
	return a.queryBus
}

// Reload swaps in a new configuration for subsequent cycles. Targets are
// not re-resolved; interval and policy changes take effect on the next
// tick, anything structural needs a restart.
func (a *Agent) Reload(cfg *config.Config) {
	a.mu.Lock()
	a.cfg = cfg
	a.mu.Unlock()
	log.InitLog(cfg.LogLevel)
	log.Info("agent configuration reloaded", "targets", len(cfg.Targets))
}

func (a *Agent) snapshot() *config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

// Run starts one update loop per target and blocks until ctx is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	targets := a.snapshot().Targets
	log.Info("agent started",
		"targets", len(targets),
		"interval", time.Duration(a.snapshot().UpdateInterval).String())

	for _, target := range targets {
		a.wg.Add(1)
		go func(t config.TargetConfig) {
			defer a.wg.Done()
			a.targetLoop(ctx, t.ID)
		}(target)
	}

	<-ctx.Done()
	a.wg.Wait()
	return nil
}

// targetLoop runs update cycles for one target until the context ends. The
// first cycle starts immediately; later cycles follow the configured
// interval, stretched by exponential backoff while cycles keep failing.
func (a *Agent) targetLoop(ctx context.Context, targetID string) {
	retry := backoff.New(time.Minute, 6*time.Hour)

	for {
		outcome := a.cycle(ctx, targetID)

		var pause time.Duration
		if outcome == model.OutcomeSuccess {
			retry.Reset()
			pause = time.Duration(a.snapshot().UpdateInterval)
		} else {
			pause = retry.Next()
			log.Warn("update cycle did not succeed, backing off",
				"target", targetID, "outcome", string(outcome), "pause", pause.String())
		}

		select {
		case <-time.After(pause):
		case <-ctx.Done():
			return
		}
	}
}

// cycle dispatches one RunUpdateCommand and waits for the session result.
func (a *Agent) cycle(ctx context.Context, targetID string) model.Outcome {
	if ctx.Err() != nil {
		return model.OutcomeAborted
	}

	policy := model.Policy{}
	if t, ok := a.snapshot().Target(targetID); ok {
		policy = t.Policy()
	}

	results := make(chan *model.UpdateSession, 1)
	err := a.commandBus.Dispatch(run_update.RunUpdateCommand{
		Ctx:      ctx,
		TargetID: targetID,
		Policy:   policy,
		Result:   results,
	})
	if err != nil {
		// The handler reports a switch failure through its error return, but
		// the session itself still arrives on the result channel.
		log.Error("update cycle failed", "target", targetID, "error", err)
	}

	select {
	case session := <-results:
		return session.Outcome
	default:
		// Dispatch is synchronous; the handler always sends before returning.
		return model.OutcomeAborted
	}
}

// Close drains the buses and releases the container.
func (a *Agent) Close() {
	a.commandBus.Shutdown()
	a.commandBus.WaitForCompletion()
	a.queryBus.Shutdown()
	a.queryBus.WaitForCompletion()

	if err := a.container.Close(); err != nil {
		log.Warn("failed to close application container", "error", err)
	}
	log.Info("agent stopped")
}
