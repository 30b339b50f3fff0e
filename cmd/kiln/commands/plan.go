package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (c *CLI) newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan RECIPE",
		Short: "Print the resolved build plan without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := c.app.Plan(cmd.Context(), args[0], snapshotOptions(cmd))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprint(out, plan.Render())
			_, _ = fmt.Fprintf(out, "fingerprint %s\n", plan.Fingerprint)
			return nil
		},
	}
	addSnapshotFlags(cmd)
	return cmd
}
