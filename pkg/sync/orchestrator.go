package sync

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/azsync/azsync/pkg/config"
	"github.com/azsync/azsync/pkg/naming"
	"github.com/azsync/azsync/pkg/netbox"
	"github.com/azsync/azsync/pkg/source"
	"github.com/azsync/azsync/pkg/telemetry"
	"github.com/azsync/azsync/pkg/topology"
)

// Orchestrator drives one full run: enumerate source resources, build the
// graph, reconcile in dependency order, return the report. Runs are best
// effort: partial completion is reported, never rolled back; every write is
// idempotent and converges on the next run.
type Orchestrator struct {
	provider source.Provider
	store    netbox.Store
	cfg      config.Config
	logger   zerolog.Logger
	metrics  *telemetry.Metrics
}

// NewOrchestrator wires the collaborators for a run.
func NewOrchestrator(
	provider source.Provider,
	store netbox.Store,
	cfg config.Config,
	logger zerolog.Logger,
	metrics *telemetry.Metrics,
) *Orchestrator {
	return &Orchestrator{
		provider: provider,
		store:    store,
		cfg:      cfg,
		logger:   logger.With().Str("component", "orchestrator").Logger(),
		metrics:  metrics,
	}
}

// Run executes one sync. The returned error is non-nil only for fatal
// conditions (authentication, target store unavailable); per-object failures
// land in the report.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	report := NewReport(uuid.New().String())
	o.logger.Info().Str("run_id", report.RunID).Msg("sync run started")

	if o.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.Timeout)
		defer cancel()
	}

	accounts, err := o.accounts(ctx)
	if err != nil {
		return report, err
	}

	inventories, err := o.discover(ctx, accounts, report)
	if err != nil {
		return report, err
	}

	graph := topology.NewMapper(o.logger).Build(inventories)
	for _, skip := range graph.Skips {
		report.AddWarning(fmt.Sprintf("mapping skipped %s: %s", skip.SourceID, skip.Reason))
	}
	for _, warning := range graph.Warnings {
		report.AddWarning(warning)
	}

	tags := NewTagManager(o.store)
	if err := tags.Ensure(ctx); err != nil {
		return report, err
	}

	reconciler := NewReconciler(o.store, tags, naming.NewNormalizer(), o.cfg.MaxParallel, o.logger, o.metrics)
	reconciler.Reconcile(ctx, graph, report)

	report.Finalize()
	o.metrics.ObserveRunDuration(report.Status(), report.Duration())
	o.logger.Info().
		Str("run_id", report.RunID).
		Str("status", report.Status()).
		Dur("duration", report.Duration()).
		Int("failures", report.FailureCount()).
		Msg("sync run finished")
	return report, nil
}

// accounts resolves the account scope: the configured subscription, or every
// subscription the credential can see. A credential that cannot enumerate any
// account is fatal.
func (o *Orchestrator) accounts(ctx context.Context) ([]source.Account, error) {
	if o.cfg.SubscriptionID != "" {
		return []source.Account{{
			ID:   o.cfg.SubscriptionID,
			Name: "Subscription " + o.cfg.SubscriptionID,
		}}, nil
	}

	o.metrics.IncSourceList("accounts")
	accounts, err := o.provider.ListAccounts(ctx)
	if err != nil {
		return nil, NewAuthError("enumerating accounts", err)
	}
	return accounts, nil
}

// discover enumerates each account. One failing account degrades the run and
// is skipped; the others proceed. A credential failure is not an account
// problem and aborts discovery outright.
func (o *Orchestrator) discover(ctx context.Context, accounts []source.Account, report *Report) ([]topology.Inventory, error) {
	var inventories []topology.Inventory
	for _, account := range accounts {
		o.metrics.IncSourceList("virtual_networks")
		vnets, err := o.provider.ListVirtualNetworks(ctx, account.ID)
		if err != nil {
			if source.IsAuthError(err) {
				return nil, NewAuthError("source credential rejected", err)
			}
			o.degrade(report, account, err)
			continue
		}

		o.metrics.IncSourceList("compute_instances")
		instances, err := o.provider.ListComputeInstances(ctx, account.ID)
		if err != nil {
			if source.IsAuthError(err) {
				return nil, NewAuthError("source credential rejected", err)
			}
			o.degrade(report, account, err)
			continue
		}

		inventories = append(inventories, topology.Inventory{
			Account:         account,
			VirtualNetworks: vnets,
			Instances:       instances,
		})
	}
	return inventories, nil
}

func (o *Orchestrator) degrade(report *Report, account source.Account, err error) {
	report.MarkDegraded()
	report.AddWarning(NewDiscoveryError(fmt.Sprintf("account %s skipped", account.ID), err).Error())
	o.logger.Error().Err(err).Str("account", account.ID).Msg("discovery failed, account skipped")
}
