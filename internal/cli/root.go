// Package cli defines the genflow-agent command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"genflow-agent/internal/config"
	"genflow-agent/pkg/log"
)

// DefaultConfigPath is where the agent looks for its configuration unless
// --config overrides it.
const DefaultConfigPath = "/etc/genflow/agent.yaml"

// NewRootCommand builds the genflow-agent command tree.
func NewRootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "genflow-agent",
		Short: "Keeps declaratively configured systems on their latest buildable revision",
		Long: "genflow-agent fetches configuration revisions, screens them against an issue\n" +
			"registry, builds them with bounded automatic remediation and atomically\n" +
			"activates the result, rolling back on any failure.",
	}
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", DefaultConfigPath, "path to configuration file")

	rootCmd.AddCommand(
		newRunCmd(&configPath),
		newDaemonCmd(&configPath),
		newHistoryCmd(&configPath),
		newCurrentCmd(&configPath),
		newDoctorCmd(&configPath),
		newVersionCmd(),
	)
	return rootCmd
}

// loadConfig reads the configuration and initializes logging from it.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	log.InitLog(cfg.LogLevel)
	return cfg, nil
}

// resolveTarget maps an optional positional argument to a configured
// target. With no argument a single-target configuration is unambiguous.
func resolveTarget(cfg *config.Config, args []string) (string, error) {
	if len(args) > 0 {
		if _, ok := cfg.Target(args[0]); !ok {
			return "", fmt.Errorf("target %q is not configured", args[0])
		}
		return args[0], nil
	}
	if len(cfg.Targets) == 1 {
		return cfg.Targets[0].ID, nil
	}
	return "", fmt.Errorf("multiple targets configured, specify one")
}
