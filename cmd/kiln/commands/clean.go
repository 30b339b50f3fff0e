package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/kiln/internal/app"
)

func (c *CLI) newCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove build trees and downloaded sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cache, _ := cmd.Flags().GetBool("cache")
			all, _ := cmd.Flags().GetBool("all")

			opts := app.CleanOptions{WorkDir: workDir(cmd)}

			switch {
			case all:
				opts.Build = true
				opts.Cache = true
			case cache:
				opts.Cache = true
			default:
				// Default behavior: clean build trees
				opts.Build = true
			}

			return c.app.Clean(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolP("cache", "c", false, "Clean the download cache")
	cmd.Flags().BoolP("all", "a", false, "Clean build trees and the download cache")

	return cmd
}
