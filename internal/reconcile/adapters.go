package reconcile

import (
	"context"

	"github.com/olsontechllc/netbox-pdns/internal/domain"
	"github.com/olsontechllc/netbox-pdns/internal/replicaclient"
	"github.com/olsontechllc/netbox-pdns/internal/sourceclient"
)

// SourceClientAdapter adapts *sourceclient.Client to the reconciler's
// SourceClient port, translating wire-shaped zone summaries into the
// reconciler's SourceZone.
type SourceClientAdapter struct {
	Client *sourceclient.Client
}

func (a SourceClientAdapter) ListOwnedZones(ctx context.Context, nameserverID int) ([]SourceZone, error) {
	zones, err := a.Client.ListOwnedZones(ctx, nameserverID)
	if err != nil {
		return nil, err
	}
	out := make([]SourceZone, len(zones))
	for i, z := range zones {
		out[i] = SourceZone{ID: z.ID, Name: z.Name, Nameservers: z.Nameservers, DefaultTTL: z.DefaultTTL}
	}
	return out, nil
}

func (a SourceClientAdapter) GetZoneRecords(ctx context.Context, zone SourceZone) ([]domain.RecordSet, error) {
	return a.Client.GetZoneRecords(ctx, sourceclient.ZoneSummary{
		ID: zone.ID, Name: zone.Name, Nameservers: zone.Nameservers, DefaultTTL: zone.DefaultTTL,
	})
}

// ReplicaClientAdapter adapts *replicaclient.Client to the reconciler's
// ReplicaClient port.
type ReplicaClientAdapter struct {
	Client *replicaclient.Client
}

func (a ReplicaClientAdapter) GetZone(ctx context.Context, name string) (*domain.Zone, error) {
	return a.Client.GetZone(ctx, name)
}

func (a ReplicaClientAdapter) ListZones(ctx context.Context) ([]domain.Zone, error) {
	return a.Client.ListZones(ctx)
}

func (a ReplicaClientAdapter) CreateZone(ctx context.Context, zone domain.Zone) error {
	return a.Client.CreateZone(ctx, zone)
}

func (a ReplicaClientAdapter) PatchZone(ctx context.Context, name string, changes []ReplicaChange) error {
	wireChanges := make([]replicaclient.RRSetChange, len(changes))
	for i, c := range changes {
		wireChanges[i] = replicaclient.RRSetChange{
			Name: c.Name, Type: c.Type, TTL: c.TTL, Delete: c.Delete, Records: c.Records,
		}
	}
	return a.Client.PatchZone(ctx, name, wireChanges)
}

func (a ReplicaClientAdapter) DeleteZone(ctx context.Context, name string) error {
	return a.Client.DeleteZone(ctx, name)
}
