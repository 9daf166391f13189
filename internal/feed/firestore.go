package feed

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"friendZoneAPI/internal/reconcile"
)

const mirrorCollection = "friendViews"

type mirrorPresence struct {
	ZoneID     string `firestore:"zoneId"`
	State      string `firestore:"state"`
	Stale      bool   `firestore:"stale"`
	AgeMinutes int    `firestore:"ageMinutes"`
}

type mirrorCounterpart struct {
	Key               string           `firestore:"key"`
	DisplayName       string           `firestore:"displayName"`
	IsFriend          bool             `firestore:"isFriend"`
	ActiveZoneIDs     []string         `firestore:"activeZoneIds"`
	PendingZoneIDs    []string         `firestore:"pendingZoneIds"`
	PendingRequestIDs []string         `firestore:"pendingRequestIds"`
	Presence          []mirrorPresence `firestore:"presence"`
}

// mirrorDoc is the client-facing projection of a view. Firestore rejects
// unsigned integers, so Seq is stored signed.
type mirrorDoc struct {
	OwnerID            string              `firestore:"ownerId"`
	Seq                int64               `firestore:"seq"`
	ComputedAt         time.Time           `firestore:"computedAt"`
	Counterparts       []mirrorCounterpart `firestore:"counterparts"`
	IncomingRequestIDs []string            `firestore:"incomingRequestIds"`
	ZoneNames          map[string]string   `firestore:"zoneNames"`
	ZoneOccupants      map[string][]string `firestore:"zoneOccupants"`
}

func toMirrorDoc(view *reconcile.View) mirrorDoc {
	doc := mirrorDoc{
		OwnerID:            view.OwnerID,
		Seq:                int64(view.Seq),
		ComputedAt:         view.ComputedAt,
		Counterparts:       make([]mirrorCounterpart, 0, len(view.Counterparts)),
		IncomingRequestIDs: make([]string, 0, len(view.StandaloneIncoming)),
		ZoneNames:          view.ZoneNames,
		ZoneOccupants:      view.ZoneOccupants,
	}
	for _, c := range view.Counterparts {
		mc := mirrorCounterpart{
			Key:               c.Key,
			DisplayName:       c.DisplayName,
			IsFriend:          c.ActiveFriend != nil,
			ActiveZoneIDs:     c.ActiveZoneIDs,
			PendingZoneIDs:    c.PendingZoneIDs,
			PendingRequestIDs: make([]string, 0, len(c.PendingRequests)),
			Presence:          make([]mirrorPresence, 0, len(c.Presence)),
		}
		for _, r := range c.PendingRequests {
			mc.PendingRequestIDs = append(mc.PendingRequestIDs, r.ID)
		}
		for _, p := range c.Presence {
			mc.Presence = append(mc.Presence, mirrorPresence{
				ZoneID:     p.ZoneID,
				State:      string(p.State),
				Stale:      p.Stale,
				AgeMinutes: p.AgeMinutes,
			})
		}
		doc.Counterparts = append(doc.Counterparts, mc)
	}
	for _, r := range view.StandaloneIncoming {
		doc.IncomingRequestIDs = append(doc.IncomingRequestIDs, r.ID)
	}
	return doc
}

// FirestoreMirror writes each view to friendViews/{ownerId} so clients can
// listen for changes. A document with a higher seq is never overwritten.
type FirestoreMirror struct {
	client *firestore.Client
}

func NewFirestoreMirror(client *firestore.Client) *FirestoreMirror {
	return &FirestoreMirror{client: client}
}

func (m *FirestoreMirror) Publish(ctx context.Context, view *reconcile.View) error {
	ref := m.client.Collection(mirrorCollection).Doc(view.OwnerID)
	doc := toMirrorDoc(view)

	err := m.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if err == nil {
			if existing, err := snap.DataAt("seq"); err == nil {
				if seq, ok := existing.(int64); ok && seq > doc.Seq {
					return nil
				}
			}
		}
		return tx.Set(ref, doc)
	})
	if err != nil {
		return fmt.Errorf("mirror view to firestore: %w", err)
	}
	return nil
}

// RemoveOwner deletes the mirrored view of ownerID.
func (m *FirestoreMirror) RemoveOwner(ctx context.Context, ownerID string) error {
	if _, err := m.client.Collection(mirrorCollection).Doc(ownerID).Delete(ctx); err != nil {
		return fmt.Errorf("remove mirrored view: %w", err)
	}
	return nil
}
