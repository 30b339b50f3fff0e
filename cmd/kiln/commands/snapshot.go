package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/kiln/internal/app"
)

// addSnapshotFlags registers the option selection and platform override flags.
func addSnapshotFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("with", nil, "Select a recipe option (repeatable, e.g. --with without-fltk)")
	cmd.Flags().String("os", "", "Override the detected operating system")
	cmd.Flags().String("platform-version", "", "Override the detected platform version (e.g. 10.8)")
	cmd.Flags().Int("bits", 0, "Override the target word size: 32 or 64")
	cmd.Flags().IntP("jobs", "j", 0, "Parallel make jobs (default: number of CPUs)")
	cmd.Flags().String("prefix", "", "Installation prefix (default: <store-prefix>/Cellar/<name>/<version>)")
	cmd.Flags().String("store-prefix", "", "Prefix holding installed dependencies (default: /usr/local)")
}

func snapshotOptions(cmd *cobra.Command) app.SnapshotOptions {
	with, _ := cmd.Flags().GetStringSlice("with")
	osName, _ := cmd.Flags().GetString("os")
	platformVersion, _ := cmd.Flags().GetString("platform-version")
	bits, _ := cmd.Flags().GetInt("bits")
	jobs, _ := cmd.Flags().GetInt("jobs")
	prefix, _ := cmd.Flags().GetString("prefix")
	storePrefix, _ := cmd.Flags().GetString("store-prefix")

	return app.SnapshotOptions{
		Options:         with,
		OS:              osName,
		PlatformVersion: platformVersion,
		Bits:            bits,
		Jobs:            jobs,
		Prefix:          prefix,
		StorePrefix:     storePrefix,
	}
}

func workDir(cmd *cobra.Command) string {
	dir, _ := cmd.Flags().GetString("work-dir")
	return dir
}
