// Package commands implements the CLI commands for kiln.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.trai.ch/kiln/internal/app"
	"go.trai.ch/kiln/internal/build"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/engine/depcheck"
)

// CLI represents the command line interface for kiln.
type CLI struct {
	app     Application
	rootCmd *cobra.Command
}

// Application represents the application logic interface.
type Application interface {
	Install(ctx context.Context, ref string, opts app.InstallOptions) (*app.InstallReport, error)
	Plan(ctx context.Context, ref string, opts app.SnapshotOptions) (*domain.Plan, error)
	Deps(ctx context.Context, ref string, opts app.SnapshotOptions) ([]depcheck.Result, error)
	Caveats(ctx context.Context, ref string, opts app.SnapshotOptions) (string, error)
	Receipt(ctx context.Context, workDir, name string) (*domain.Receipt, error)
	Clean(ctx context.Context, opts app.CleanOptions) error
	ConfigureOutput(jsonMode bool, colorMode string)
}

// New creates a new CLI instance with the given app.
func New(a Application) *CLI {
	rootCmd := &cobra.Command{
		Use:           "kiln",
		Short:         "Build and install packages from declarative recipes",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			jsonMode, _ := cmd.Flags().GetBool("json")
			colorMode, _ := cmd.Flags().GetString("color")
			a.ConfigureOutput(jsonMode, colorMode)
		},
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"{{.Name}} version {{.Version}} (commit: %s, date: %s)\n",
		build.Commit,
		build.Date,
	))
	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	flags := rootCmd.PersistentFlags()
	flags.Bool("json", false, "Write logs as JSON")
	flags.String("color", "auto", "Colorize logs: auto, always, or never")
	flags.StringP("work-dir", "w", ".", "Directory holding the .kiln work area")

	c := &CLI{
		app:     a,
		rootCmd: rootCmd,
	}

	rootCmd.AddCommand(c.newInstallCmd())
	rootCmd.AddCommand(c.newPlanCmd())
	rootCmd.AddCommand(c.newDepsCmd())
	rootCmd.AddCommand(c.newCaveatsCmd())
	rootCmd.AddCommand(c.newReceiptCmd())
	rootCmd.AddCommand(c.newCleanCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}
