package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jude27mad/tax-prep-app/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "efilectl",
		Short: "Operational tooling for the EFILE transmission core",
		Long: `efilectl drives the EFILE core's public operations for operators:
replaying stored envelopes against the certification endpoint, scanning
recorded rejections for triage, purging retention records past their
purge-eligible date, and inspecting the health surface.`,
	}

	rootCmd.PersistentFlags().String("config", "efile.yaml", "Path to the YAML configuration file")

	rootCmd.AddCommand(cli.HealthCmd())
	rootCmd.AddCommand(cli.ReplayCmd())
	rootCmd.AddCommand(cli.RejectsCmd())
	rootCmd.AddCommand(cli.PurgeCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
