package commands

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (c *CLI) newDepsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deps RECIPE",
		Short: "List the active dependencies of a recipe and whether they are installed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := c.app.Deps(cmd.Context(), args[0], snapshotOptions(cmd))
			if results == nil && err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, r := range results {
				status := "missing"
				if r.Found {
					status = r.Location
				}
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Dependency.Kind, r.Dependency.Name, status)
			}
			return errors.Join(tw.Flush(), err)
		},
	}
	addSnapshotFlags(cmd)
	return cmd
}
