package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"genflow-agent/internal/application/query/get_generation"
	"genflow-agent/internal/domain/model"
	"genflow-agent/internal/domain/repository"
	"genflow-agent/internal/infra/store"
	"genflow-agent/pkg/cqrs"
)

func newCurrentCmd(configPath *string) *cobra.Command {
	var showHistory bool

	cmd := &cobra.Command{
		Use:   "current [target]",
		Short: "Show the active generation of a target",
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

			provider := func(id string) (repository.GenerationStore, error) {
				return store.New(cfg.StatePath(), id)
			}
			queryBus := cqrs.NewQueryBus()
			if err := queryBus.Register(get_generation.NewGetGenerationHandler(provider)); err != nil {
				return err
			}

			raw, err := queryBus.Dispatch(get_generation.GetGenerationQuery{TargetID: targetID, History: showHistory})
			if err != nil {
				return err
			}
			result := raw.(get_generation.Result)

			if result.Current == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "no generation has been activated for %s\n", targetID)
			} else {
				printGeneration(cmd, *result.Current)
			}

			if showHistory && len(result.History) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "\nGeneration log:")
				for _, g := range result.History {
					fmt.Fprintf(cmd.OutOrStdout(), "  #%d  %-11s %s  (%s)\n",
						g.ID, g.Status, g.Revision.ID, g.CreatedAt.Format("2006-01-02 15:04:05"))
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showHistory, "history", false, "include the full generation log")
	return cmd
}

func printGeneration(cmd *cobra.Command, g model.Generation) {
	fmt.Fprintf(cmd.OutOrStdout(), "Generation: #%d\n", g.ID)
	fmt.Fprintf(cmd.OutOrStdout(), "Revision:   %s\n", g.Revision.ID)
	fmt.Fprintf(cmd.OutOrStdout(), "Artifact:   %s\n", g.ArtifactRef)
	fmt.Fprintf(cmd.OutOrStdout(), "Activated:  %s\n", g.CreatedAt.Format("2006-01-02 15:04:05 MST"))
}
