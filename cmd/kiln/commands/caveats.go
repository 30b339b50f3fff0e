package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func (c *CLI) newCaveatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "caveats RECIPE",
		Short: "Print the advisory text for a recipe and option selection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := c.app.Caveats(cmd.Context(), args[0], snapshotOptions(cmd))
			if err != nil {
				return err
			}
			if text != "" {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(text, "\n"))
			}
			return nil
		},
	}
	addSnapshotFlags(cmd)
	return cmd
}
