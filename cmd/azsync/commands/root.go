package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	logLevel  string
	logFormat string
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "azsync",
		Short: "Azure to NetBox inventory synchronization",
		Long: `azsync discovers Azure network topology and reconciles it into NetBox.

It enumerates subscriptions, virtual networks, subnets, virtual machines and
network interfaces, then creates or updates the matching NetBox prefixes,
devices, interfaces and IP addresses. Objects it manages carry a provenance
tag; runs are idempotent and a run that changes nothing writes nothing.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	defaultLevel := os.Getenv("LOG_LEVEL")
	if defaultLevel == "" {
		defaultLevel = "info"
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", defaultLevel, "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log output format (console, json)")

	rootCmd.AddCommand(newSyncCommand())

	return rootCmd
}
