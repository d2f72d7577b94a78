// Package reconcile implements the Zone Reconciler and Full-Sync
// Orchestrator: the components that actually converge replica state to
// source state, one zone at a time or across the whole owned set.
package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/olsontechllc/netbox-pdns/internal/diff"
	"github.com/olsontechllc/netbox-pdns/internal/domain"
	"github.com/olsontechllc/netbox-pdns/internal/metrics"
)

// SourceClient is the subset of sourceclient.Client the reconciler needs.
type SourceClient interface {
	ListOwnedZones(ctx context.Context, nameserverID int) ([]SourceZone, error)
	GetZoneRecords(ctx context.Context, zone SourceZone) ([]domain.RecordSet, error)
}

// SourceZone is the reconciler's view of a source-side zone summary.
type SourceZone struct {
	ID          int
	Name        string
	Nameservers []string
	DefaultTTL  int
}

// ReplicaClient is the subset of replicaclient.Client the reconciler needs.
type ReplicaClient interface {
	GetZone(ctx context.Context, name string) (*domain.Zone, error)
	ListZones(ctx context.Context) ([]domain.Zone, error)
	CreateZone(ctx context.Context, zone domain.Zone) error
	PatchZone(ctx context.Context, name string, changes []ReplicaChange) error
	DeleteZone(ctx context.Context, name string) error
}

// ReplicaChange mirrors replicaclient.RRSetChange without importing that
// package, keeping the reconciler decoupled from the HTTP client's wire
// types (§4.4 is a pure orchestration contract).
type ReplicaChange struct {
	Name    string
	Type    string
	TTL     int
	Delete  bool
	Records []domain.Record
}

// Reconciler synchronizes a single zone end-to-end (§4.4).
type Reconciler struct {
	source       SourceClient
	replica      ReplicaClient
	nameserverID int
	selfFQDN     string // this engine's configured nameserver identity, normalized
	managedTypes map[string]bool
	logger       *slog.Logger
}

func New(source SourceClient, replica ReplicaClient, nameserverID int, selfFQDN string, managedTypes map[string]bool, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	if managedTypes == nil {
		managedTypes = diff.DefaultManagedTypes()
	}
	return &Reconciler{
		source:       source,
		replica:      replica,
		nameserverID: nameserverID,
		selfFQDN:     domain.NormalizeReplicaZoneName(selfFQDN),
		managedTypes: managedTypes,
		logger:       logger,
	}
}

// Reconcile synchronizes one zone, identified by its source-side (no
// trailing dot) or replica-side (trailing dot) name; both are accepted
// since triggers arrive from either side.
func (r *Reconciler) Reconcile(ctx context.Context, zoneName string, source domain.IntentSource) (err error) {
	start := time.Now()
	defer func() {
		result := "success"
		if err != nil {
			result = "error"
		}
		metrics.ReconcilesTotal.WithLabelValues(result).Inc()
		metrics.ReconcileDuration.WithLabelValues(string(source)).Observe(time.Since(start).Seconds())
	}()

	sourceName := domain.NormalizeSourceZoneName(zoneName)
	replicaName := domain.NormalizeReplicaZoneName(zoneName)

	owned, srcZone, srcRecords, lookupErr := r.lookupSource(ctx, sourceName)
	if lookupErr != nil {
		r.logger.Error("reconcile aborted: source lookup failed", "zone", sourceName, "error", lookupErr)
		return lookupErr
	}

	if !owned {
		return r.reconcileDeletePath(ctx, replicaName)
	}

	existing, err := r.replica.GetZone(ctx, replicaName)
	if err != nil && !errors.Is(err, domain.ErrReplicaNotFound) {
		r.logger.Error("reconcile aborted: replica lookup failed", "zone", replicaName, "error", err)
		return err
	}

	if existing == nil {
		zone := domain.Zone{
			Name:        replicaName,
			Kind:        domain.KindNative,
			Nameservers: domain.NormalizeNameservers(srcZone.Nameservers),
			SOAEditAPI:  domain.DefaultSOAEditAPI,
			RecordSets:  srcRecords,
		}
		if err := r.replica.CreateZone(ctx, zone); err != nil {
			r.logger.Error("reconcile aborted: create failed", "zone", replicaName, "error", err)
			return err
		}
		r.logger.Info("created replica zone", "zone", replicaName)
		return nil
	}

	changes := diff.Compute(srcRecords, existing.RecordSets, r.managedTypes)
	if len(changes) == 0 {
		r.logger.Debug("zone already converged", "zone", replicaName)
		return nil
	}

	patch := make([]ReplicaChange, len(changes))
	for i, c := range changes {
		patch[i] = ReplicaChange{
			Name:    c.Key.Name,
			Type:    c.Key.Type,
			TTL:     c.RRSet.TTL,
			Delete:  c.Op == diff.OpDelete,
			Records: c.RRSet.Records,
		}
	}
	if err := r.replica.PatchZone(ctx, replicaName, patch); err != nil {
		r.logger.Error("reconcile aborted: patch failed", "zone", replicaName, "error", err)
		return err
	}
	r.logger.Info("patched replica zone", "zone", replicaName, "changes", len(changes))
	return nil
}

// lookupSource returns (owned, zone, records, err). owned=false with a nil
// err means the zone is genuinely absent from source (proceed to the
// delete path); a non-nil err means the lookup itself failed.
func (r *Reconciler) lookupSource(ctx context.Context, sourceName string) (bool, SourceZone, []domain.RecordSet, error) {
	owned, err := r.source.ListOwnedZones(ctx, r.nameserverID)
	if err != nil {
		return false, SourceZone{}, nil, err
	}
	for _, z := range owned {
		if z.Name == sourceName {
			records, err := r.source.GetZoneRecords(ctx, z)
			if errors.Is(err, domain.ErrSourceNotFound) {
				return false, SourceZone{}, nil, nil
			}
			if err != nil {
				return false, SourceZone{}, nil, err
			}
			return true, z, records, nil
		}
	}
	return false, SourceZone{}, nil, nil
}

// reconcileDeletePath deletes the replica zone if it exists and is owned
// by this engine (§4.4 step 6, §4.5's is_managed_by_us test).
func (r *Reconciler) reconcileDeletePath(ctx context.Context, replicaName string) error {
	existing, err := r.replica.GetZone(ctx, replicaName)
	if errors.Is(err, domain.ErrReplicaNotFound) {
		return nil
	}
	if err != nil {
		r.logger.Error("reconcile aborted: replica lookup failed on delete path", "zone", replicaName, "error", err)
		return err
	}

	if !existing.HasNameserver(r.selfFQDN) {
		r.logger.Debug("zone absent from source but not owned by us, skipping delete", "zone", replicaName)
		return nil
	}

	if err := r.replica.DeleteZone(ctx, replicaName); err != nil {
		r.logger.Error("reconcile aborted: delete failed", "zone", replicaName, "error", err)
		return err
	}
	r.logger.Info("deleted orphaned replica zone", "zone", replicaName)
	return nil
}

// IsManagedByUs reports whether a replica zone's nameserver list contains
// this engine's configured identity (§4.5). Exported for the orchestrator's
// orphan-prune pass.
func (r *Reconciler) IsManagedByUs(zone domain.Zone) bool {
	return zone.HasNameserver(r.selfFQDN)
}
