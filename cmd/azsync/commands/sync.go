package commands

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/azsync/azsync/pkg/config"
	"github.com/azsync/azsync/pkg/netbox"
	"github.com/azsync/azsync/pkg/source"
	"github.com/azsync/azsync/pkg/source/azure"
	"github.com/azsync/azsync/pkg/sync"
	"github.com/azsync/azsync/pkg/telemetry"
)

func newSyncCommand() *cobra.Command {
	var (
		netboxURL      string
		netboxToken    string
		subscriptionID string
		interactive    bool
		parallelism    int
		timeout        time.Duration
		metricsAddr    string
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one synchronization pass",
		Long: `Run one full synchronization pass against NetBox.

This command:
  - Authenticates against Azure (default credential chain, or browser login)
  - Enumerates subscriptions, or only the one given with --subscription
  - Lists virtual networks, subnets, virtual machines and network interfaces
  - Reconciles prefixes, devices, interfaces and IP addresses in NetBox
  - Prints a per-kind summary of created, updated, unchanged, failed, skipped

The NetBox URL and token fall back to the NETBOX_URL and NETBOX_TOKEN
environment variables when the flags are unset.`,
		Example: `  # Sync everything the credential can see
  azsync sync --netbox-url https://netbox.example.com --netbox-token $TOKEN

  # Sync a single subscription with browser login
  azsync sync --subscription 00000000-0000-0000-0000-000000000000 --interactive

  # Bound the run to ten minutes
  azsync sync --timeout 10m`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			cfg.NetBoxURL = netboxURL
			cfg.NetBoxToken = netboxToken
			cfg.SubscriptionID = subscriptionID
			if interactive {
				cfg.AuthMode = source.AuthModeInteractive
			}
			if parallelism > 0 {
				cfg.MaxParallel = parallelism
			}
			cfg.Timeout = timeout
			cfg.ApplyEnv()
			if err := cfg.Validate(); err != nil {
				return err
			}

			logCfg := telemetry.DefaultLoggingConfig()
			if logLevel != "" {
				logCfg.Level = logLevel
			}
			if logFormat != "" {
				logCfg.Format = logFormat
			}
			logger := telemetry.NewLogger(logCfg)

			metricsCfg := telemetry.DefaultMetricsConfig()
			metricsCfg.Enabled = metricsAddr != ""
			metrics, err := telemetry.NewMetrics(metricsCfg)
			if err != nil {
				return fmt.Errorf("initializing metrics: %w", err)
			}
			if metricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", metrics.Handler())
				go func() {
					if err := http.ListenAndServe(metricsAddr, mux); err != nil {
						logger.Error().Err(err).Str("addr", metricsAddr).Msg("metrics listener stopped")
					}
				}()
			}

			provider, err := azure.NewProvider(cfg.AuthMode, logger)
			if err != nil {
				return err
			}

			store, err := netbox.NewClient(netbox.ClientConfig{
				URL:   cfg.NetBoxURL,
				Token: cfg.NetBoxToken,
			}, logger, metrics)
			if err != nil {
				return err
			}

			orchestrator := sync.NewOrchestrator(provider, store, cfg, logger, metrics)
			report, err := orchestrator.Run(cmd.Context())
			if report != nil {
				fmt.Fprint(cmd.OutOrStdout(), report.Render())
			}
			if err != nil {
				return err
			}
			return reportError(report)
		},
	}

	cmd.Flags().StringVar(&netboxURL, "netbox-url", "", "NetBox base URL (falls back to NETBOX_URL)")
	cmd.Flags().StringVar(&netboxToken, "netbox-token", "", "NetBox API token (falls back to NETBOX_TOKEN)")
	cmd.Flags().StringVar(&subscriptionID, "subscription", "", "limit the run to one subscription id")
	cmd.Flags().BoolVar(&interactive, "interactive", false, "authenticate with a browser login instead of the default chain")
	cmd.Flags().IntVar(&parallelism, "parallelism", 0, "max parallel NetBox writes per phase (default 4)")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "wall-clock budget for the whole run (0 disables)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address during the run")

	return cmd
}

// reportError maps the finished report onto the process exit contract: only a
// complete run with zero per-object failures exits 0.
func reportError(report *sync.Report) error {
	if report.Status() == "incomplete" {
		return fmt.Errorf("run budget exhausted before completion (%d objects failed)", report.FailureCount())
	}
	if n := report.FailureCount(); n > 0 {
		return fmt.Errorf("%d objects failed to reconcile", n)
	}
	return nil
}
