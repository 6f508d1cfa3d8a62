// Package application wires the domain services and infrastructure
// adapters together and registers the command and query handlers on the
// buses.
package application

import (
	"context"
	"sync"

	"genflow-agent/internal/application/command/run_update"
	"genflow-agent/internal/application/query/get_generation"
	"genflow-agent/internal/application/query/get_sessions"
	"genflow-agent/internal/config"
	"genflow-agent/internal/domain/model"
	"genflow-agent/internal/domain/repository"
	"genflow-agent/internal/domain/service/remediation"
	"genflow-agent/internal/domain/service/risk"
	"genflow-agent/internal/infra/archive"
	"genflow-agent/internal/infra/builder"
	"genflow-agent/internal/infra/notify"
	"genflow-agent/internal/infra/registry"
	"genflow-agent/internal/infra/source"
	"genflow-agent/internal/infra/store"
	"genflow-agent/pkg/cqrs"
	"genflow-agent/pkg/log"
)

// Container owns the infrastructure adapters shared by every handler: the
// per-target generation stores, the session archive and the API clients.
type Container struct {
	cfg     *config.Config
	archive *archive.Archive
	updater *run_update.RunUpdateHandler

	mu     sync.Mutex
	stores map[string]*store.Store
}

// NewContainer builds the adapters from the configuration. The session
// archive is opened eagerly since it holds an exclusive filesystem lock.
func NewContainer(cfg *config.Config) (*Container, error) {
	arc, err := archive.Open(cfg.ArchivePath())
	if err != nil {
		return nil, log.Errorf("failed to open session archive: %v", err)
	}

	buildRunner, err := builder.New(builder.Config{
		Command:  cfg.Builder.Command,
		WorkDir:  cfg.Builder.WorkDir,
		EnvFile:  cfg.Builder.EnvFile,
		LogsPath: cfg.BuildLogsPath(),
	})
	if err != nil {
		arc.Close()
		return nil, log.Errorf("failed to configure builder: %v", err)
	}

	var issues repository.IssueRegistry
	if cfg.RegistryURL != "" {
		issues = registry.NewClient(cfg.RegistryURL)
	} else {
		issues = offlineRegistry{}
	}

	var notifier repository.Notifier
	if cfg.WebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.WebhookURL)
	} else {
		notifier = notify.NewLogNotifier()
	}

	c := &Container{
		cfg:     cfg,
		archive: arc,
		stores:  make(map[string]*store.Store),
	}
	c.updater = run_update.NewRunUpdateHandler(
		source.NewClient(cfg.SourceURL),
		risk.NewDetector(issues),
		buildRunner,
		remediation.NewEngine(remediation.DefaultRules()),
		c.Store,
		arc,
		notifier,
		model.Policy{},
	)
	return c, nil
}

// Store returns the generation store for a target, creating it on first
// use. The same instance is returned for the same target so its internal
// lock serializes pointer writes.
func (c *Container) Store(targetID string) (repository.GenerationStore, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.stores[targetID]; ok {
		return s, nil
	}
	s, err := store.New(c.cfg.StatePath(), targetID)
	if err != nil {
		return nil, err
	}
	c.stores[targetID] = s
	return s, nil
}

// Close releases the session archive.
func (c *Container) Close() error {
	return c.archive.Close()
}

// RunUpdate executes one update session synchronously, bypassing the bus.
// One-shot CLI invocations use it directly; the daemon dispatches commands.
func (c *Container) RunUpdate(ctx context.Context, targetID string, policy model.Policy) *model.UpdateSession {
	return c.updater.Run(ctx, targetID, policy)
}

// RegisterCommandHandlers registers all command handlers with the command bus.
func (c *Container) RegisterCommandHandlers(b cqrs.CommandBus) error {
	if err := b.Register(c.updater); err != nil {
		return log.Errorf("failed to register run update handler: %v", err)
	}
	return nil
}

// RegisterQueryHandlers registers all query handlers with the query bus.
func (c *Container) RegisterQueryHandlers(b cqrs.QueryBus) error {
	if err := b.Register(get_sessions.NewGetSessionsHandler(c.archive)); err != nil {
		return log.Errorf("failed to register get sessions handler: %v", err)
	}
	if err := b.Register(get_generation.NewGetGenerationHandler(get_generation.StoreProvider(c.Store))); err != nil {
		return log.Errorf("failed to register get generation handler: %v", err)
	}
	return nil
}

// offlineRegistry is used when no issue registry is configured: every
// revision gets an empty verdict and updates proceed unexamined.
type offlineRegistry struct{}

func (offlineRegistry) QueryIssues(ctx context.Context, components []string) ([]model.IssueReport, error) {
	return nil, nil
}
