package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"genflow-agent/internal/application/doctor"
)

func newDoctorCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the environment an update session depends on",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			results := doctor.Run(cmd.Context(), doctor.Probes(cfg))
			for _, r := range results {
				if r.Ok() {
					fmt.Fprintf(cmd.OutOrStdout(), "ok    %-22s %s\n", r.Name, r.Detail)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "FAIL  %-22s %v\n", r.Name, r.Err)
				}
			}

			if !doctor.Healthy(results) {
				return fmt.Errorf("environment checks failed")
			}
			return nil
		},
	}
}
