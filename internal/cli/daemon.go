package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"genflow-agent/internal/application/agent"
	"genflow-agent/internal/config"
	"genflow-agent/pkg/log"
)

func newDaemonCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run continuous update cycles for every configured target",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := agent.NewAgent(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			watcher := config.NewWatcher(*configPath, func(newCfg *config.Config) {
				a.Reload(newCfg)
			})
			if err := watcher.Start(ctx); err != nil {
				log.Warn("config watcher unavailable, continuing without hot reload", "error", err)
			} else {
				defer watcher.Stop()
			}

			return a.Run(ctx)
		},
	}
}
