package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"genflow-agent/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "genflow-agent %s (#%d) %s/%s\n",
				version.GetVersion(), version.GetNumericVersion(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
