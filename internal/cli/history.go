package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"genflow-agent/internal/application/query/get_sessions"
	"genflow-agent/internal/domain/model"
	"genflow-agent/internal/domain/service/report"
	"genflow-agent/internal/infra/archive"
	"genflow-agent/pkg/cqrs"
)

func newHistoryCmd(configPath *string) *cobra.Command {
	var (
		limit int
		full  bool
	)

	cmd := &cobra.Command{
		Use:   "history [target]",
		Short: "Show recent update sessions, newest first",
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

			arc, err := archive.Open(cfg.ArchivePath())
			if err != nil {
				return err
			}
			defer arc.Close()

			queryBus := cqrs.NewQueryBus()
			if err := queryBus.Register(get_sessions.NewGetSessionsHandler(arc)); err != nil {
				return err
			}

			result, err := queryBus.Dispatch(get_sessions.GetSessionsQuery{TargetID: targetID, Limit: limit})
			if err != nil {
				return err
			}
			sessions := result.([]model.UpdateSession)
			if len(sessions) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no recorded sessions for %s\n", targetID)
				return nil
			}

			for _, s := range sessions {
				if full {
					data, err := report.Attachment(&s)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "---\n%s", data)
					continue
				}
				line := fmt.Sprintf("%s  %-11s %s",
					s.StartedAt.Format("2006-01-02 15:04:05"), s.Outcome, s.Revision.ID)
				if n := len(s.RemediationAttempts); n > 0 {
					line += fmt.Sprintf("  (%d remediation attempts)", n)
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum number of sessions to show")
	cmd.Flags().BoolVar(&full, "full", false, "print full session records as YAML")
	return cmd
}
