package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"genflow-agent/internal/application"
	"genflow-agent/internal/domain/model"
	"genflow-agent/internal/domain/service/report"
)

func newRunCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run [target]",
		Short: "Run one update session and print its report",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			targetID, err := resolveTarget(cfg, args)
			if err != nil {
				return err
			}

			container, err := application.NewContainer(cfg)
			if err != nil {
				return err
			}
			defer container.Close()

			policy := model.Policy{}
			if t, ok := cfg.Target(targetID); ok {
				policy = t.Policy()
			}

			session := container.RunUpdate(cmd.Context(), targetID, policy)
			fmt.Fprintln(cmd.OutOrStdout(), report.Format(session))

			switch session.Outcome {
			case model.OutcomeSuccess:
				return nil
			case model.OutcomeRolledBack:
				return fmt.Errorf("update rolled back (%s)", session.LastFailure())
			default:
				return fmt.Errorf("update aborted (%s)", session.LastFailure())
			}
		},
	}
}
