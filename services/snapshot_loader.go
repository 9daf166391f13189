package services

import (
	"context"

	"friendZoneAPI/internal/reconcile"
)

// SnapshotLoader reads everything one owner's view is derived from.
type SnapshotLoader struct {
	friends  *FriendService
	requests *RequestService
	zones    *ZoneService
}

func NewSnapshotLoader(friends *FriendService, requests *RequestService, zones *ZoneService) *SnapshotLoader {
	return &SnapshotLoader{friends: friends, requests: requests, zones: zones}
}

// LoadSnapshot leaves Seq at zero; the feed stamps it.
func (l *SnapshotLoader) LoadSnapshot(ctx context.Context, ownerID string) (reconcile.Snapshot, error) {
	records, err := l.friends.ListRecords(ctx, ownerID)
	if err != nil {
		return reconcile.Snapshot{}, err
	}
	incoming, err := l.requests.ListIncoming(ctx, ownerID)
	if err != nil {
		return reconcile.Snapshot{}, err
	}
	outgoing, err := l.requests.ListOutgoing(ctx, ownerID)
	if err != nil {
		return reconcile.Snapshot{}, err
	}
	zones, err := l.zones.ListZones(ctx, ownerID)
	if err != nil {
		return reconcile.Snapshot{}, err
	}

	// Incoming requests name zones owned by someone else.
	known := make(map[string]bool, len(zones))
	for _, z := range zones {
		known[z.ID] = true
	}
	var foreign []string
	for _, req := range incoming {
		for _, id := range req.RequestedZoneIDs {
			if !known[id] {
				foreign = append(foreign, id)
			}
		}
	}
	if len(foreign) > 0 {
		extra, err := l.zones.GetZonesByIDs(ctx, foreign)
		if err != nil {
			return reconcile.Snapshot{}, err
		}
		zones = append(zones, extra...)
	}

	return reconcile.Snapshot{
		OwnerID:  ownerID,
		Friends:  records,
		Incoming: incoming,
		Outgoing: outgoing,
		Zones:    zones,
	}, nil
}
