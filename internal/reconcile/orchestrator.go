package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/olsontechllc/netbox-pdns/internal/domain"
	"github.com/olsontechllc/netbox-pdns/internal/gate"
	"github.com/olsontechllc/netbox-pdns/internal/metrics"
)

// ZoneOutcome is one zone's result within a full sync.
type ZoneOutcome struct {
	Zone string
	Err  error
}

// Orchestrator enumerates every owned zone, reconciles each, and prunes
// replica zones no longer owned (§4.5). It acquires the gate once for the
// whole run so individual webhook-triggered reconciles cannot interleave
// with a full sync (§4.5 Concurrency).
type Orchestrator struct {
	source       SourceClient
	replica      ReplicaClient
	reconciler   *Reconciler
	gate         *gate.Gate
	nameserverID int
	logger       *slog.Logger
}

func NewOrchestrator(source SourceClient, replica ReplicaClient, reconciler *Reconciler, g *gate.Gate, nameserverID int, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{source: source, replica: replica, reconciler: reconciler, gate: g, nameserverID: nameserverID, logger: logger}
}

// FullSync reconciles every owned zone and prunes orphaned replica zones.
// It takes the gate for its whole duration (§4.5 Concurrency). If listing
// owned zones fails, pruning is skipped entirely — conservative behavior
// per the Open Question in §9: never delete when ownership is ambiguous.
func (o *Orchestrator) FullSync(ctx context.Context, source domain.IntentSource) ([]ZoneOutcome, error) {
	h, err := o.gate.Acquire(ctx, "full_sync:"+string(source), gate.DefaultTimeout)
	if err != nil {
		metrics.FullSyncsTotal.WithLabelValues(string(source), "gate_timeout").Inc()
		return nil, err
	}
	defer h.Release()

	start := time.Now()
	o.logger.Info("full sync starting", "source", source)

	owned, err := o.source.ListOwnedZones(ctx, o.nameserverID)
	if err != nil {
		metrics.FullSyncsTotal.WithLabelValues(string(source), "error").Inc()
		o.logger.Error("full sync aborted: could not list owned zones, skipping prune", "error", err)
		return nil, err
	}

	outcomes := make([]ZoneOutcome, 0, len(owned))
	for _, z := range owned {
		err := o.reconciler.Reconcile(ctx, z.Name, source)
		outcomes = append(outcomes, ZoneOutcome{Zone: z.Name, Err: err})
		if err != nil {
			o.logger.Error("zone reconcile failed during full sync", "zone", z.Name, "error", err)
		}
	}

	ownedSet := make(map[string]bool, len(owned))
	for _, z := range owned {
		ownedSet[domain.NormalizeReplicaZoneName(z.Name)] = true
	}

	replicaAll, err := o.replica.ListZones(ctx)
	if err != nil {
		o.logger.Error("could not list replica zones, skipping orphan prune", "error", err)
		metrics.FullSyncsTotal.WithLabelValues(string(source), "partial").Inc()
		o.logger.Info("full sync finished without prune", "duration", time.Since(start), "zones", len(owned))
		return outcomes, nil
	}

	for _, rz := range replicaAll {
		name := domain.NormalizeReplicaZoneName(rz.Name)
		if ownedSet[name] {
			continue
		}

		// list_zones returns name and kind only (§4.2); nameservers must be
		// read from the full zone, or ownership is always false and nothing
		// is ever pruned.
		full, err := o.replica.GetZone(ctx, name)
		if err != nil {
			o.logger.Error("failed to fetch orphan zone detail, skipping prune", "zone", name, "error", err)
			continue
		}
		if !o.reconciler.IsManagedByUs(*full) {
			o.logger.Debug("skipping foreign orphan zone", "zone", name)
			continue
		}
		if err := o.replica.DeleteZone(ctx, name); err != nil {
			o.logger.Error("failed to prune orphaned zone", "zone", name, "error", err)
			continue
		}
		o.logger.Info("pruned orphaned replica zone", "zone", name)
	}

	metrics.FullSyncsTotal.WithLabelValues(string(source), "success").Inc()
	o.logger.Info("full sync finished", "duration", time.Since(start), "zones", len(owned))
	return outcomes, nil
}

// ReconcileZone gates a single-zone reconcile triggered by the webhook or
// message bus (§4.6: every replica-mutating call path must acquire the
// gate). FullSync's own per-zone loop calls the reconciler directly
// instead, since it already holds the gate for its whole run and the gate
// is not reentrant.
func (o *Orchestrator) ReconcileZone(ctx context.Context, zoneName string, source domain.IntentSource) error {
	h, err := o.gate.Acquire(ctx, "reconcile:"+zoneName, gate.DefaultTimeout)
	if err != nil {
		return err
	}
	defer h.Release()
	return o.reconciler.Reconcile(ctx, zoneName, source)
}
