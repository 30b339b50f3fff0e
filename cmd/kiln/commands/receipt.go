package commands

import (
	"encoding/json"

	"github.com/spf13/cobra"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/zerr"
)

func (c *CLI) newReceiptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "receipt NAME",
		Short: "Print the install receipt of a recipe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			receipt, err := c.app.Receipt(cmd.Context(), workDir(cmd), args[0])
			if err != nil {
				return err
			}
			if receipt == nil {
				return zerr.With(domain.ErrReceiptNotFound, "recipe", args[0])
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(receipt)
		},
	}
}
