package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.trai.ch/kiln/internal/app"
)

func (c *CLI) newInstallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install RECIPE",
		Short: "Build a recipe and install it into its prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keepBuild, _ := cmd.Flags().GetBool("keep-build")

			report, err := c.app.Install(cmd.Context(), args[0], app.InstallOptions{
				SnapshotOptions: snapshotOptions(cmd),
				WorkDir:         workDir(cmd),
				KeepBuild:       keepBuild,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "%s %s installed into %s\n",
				report.Plan.Recipe, report.Plan.Version, report.Receipt.Prefix)
			if report.Caveats != "" {
				_, _ = fmt.Fprintf(out, "\n==> Caveats\n%s\n", strings.TrimRight(report.Caveats, "\n"))
			}
			return nil
		},
	}
	addSnapshotFlags(cmd)
	cmd.Flags().Bool("keep-build", false, "Keep the build tree after a successful install")
	return cmd
}
