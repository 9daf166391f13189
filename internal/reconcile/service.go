package reconcile

import (
	"sync"
	"time"

	"friendZoneAPI/internal/types/friend"
	"friendZoneAPI/internal/types/zone"
	"friendZoneAPI/internal/types/zonerequest"
)

// Snapshot is everything the view of one owner is derived from. Seq grows
// with every change the feed observes for the owner.
type Snapshot struct {
	OwnerID      string
	Seq          uint64
	Friends      []*friend.Record
	Incoming     []*zonerequest.Request
	Outgoing     []*zonerequest.Request
	Zones        []*zone.Zone
	ContactNames map[string]string
}

type View struct {
	OwnerID            string                      `json:"ownerId"`
	Seq                uint64                      `json:"seq"`
	ComputedAt         time.Time                   `json:"computedAt"`
	Counterparts       []*friend.MergedCounterpart `json:"counterparts"`
	StandaloneIncoming []*zonerequest.Request      `json:"standaloneIncoming"`
	SkippedOutgoing    []*zonerequest.Request      `json:"skippedOutgoing,omitempty"`
	Rejected           []RejectedRecord            `json:"rejected,omitempty"`
	ZoneNames          map[string]string           `json:"zoneNames"`
	// ZoneOccupants maps each known zone to the keys of counterparts present in it.
	ZoneOccupants map[string][]string `json:"zoneOccupants"`
}

// Compute derives a view from a snapshot. It has no side effects.
func Compute(snap Snapshot, now time.Time, policy Policy) *View {
	consolidated := Consolidate(snap.Friends)

	merged := MergeRequests(MergeInput{
		Friends:      consolidated.Records,
		Incoming:     snap.Incoming,
		Outgoing:     snap.Outgoing,
		Zones:        snap.Zones,
		ContactNames: snap.ContactNames,
	})

	for _, c := range merged.Counterparts {
		if c.ActiveFriend != nil {
			c.Presence = ZonePresences(c.ActiveFriend, now, policy)
		}
	}

	occupants := make(map[string][]string, len(snap.Zones))
	for _, z := range snap.Zones {
		if z == nil {
			continue
		}
		keys := []string{}
		for _, r := range OccupantsOf(z.ID, consolidated.Records, now, policy) {
			if k, ok := RecordKey(r); ok {
				keys = append(keys, k)
			}
		}
		occupants[z.ID] = keys
	}

	return &View{
		OwnerID:            snap.OwnerID,
		Seq:                snap.Seq,
		ComputedAt:         now,
		Counterparts:       merged.Counterparts,
		StandaloneIncoming: merged.StandaloneIncoming,
		SkippedOutgoing:    merged.SkippedOutgoing,
		Rejected:           consolidated.Rejected,
		ZoneNames:          merged.ZoneNames,
		ZoneOccupants:      occupants,
	}
}

// Service keeps the latest view per owner. Snapshots older than the last one
// applied for an owner are dropped.
type Service struct {
	policy Policy

	mu    sync.RWMutex
	views map[string]*View
}

func NewService(policy Policy) *Service {
	return &Service{
		policy: policy,
		views:  make(map[string]*View),
	}
}

func (s *Service) Policy() Policy {
	return s.policy
}

// Apply computes and stores the view for snap. The boolean is false when the
// snapshot was older than the current view, in which case the current view is
// returned unchanged.
func (s *Service) Apply(snap Snapshot, now time.Time) (*View, bool) {
	s.mu.RLock()
	current, ok := s.views[snap.OwnerID]
	s.mu.RUnlock()
	if ok && snap.Seq < current.Seq {
		return current, false
	}

	view := Compute(snap, now, s.policy)

	s.mu.Lock()
	defer s.mu.Unlock()
	// Re-check: another delivery may have landed while computing.
	if current, ok := s.views[snap.OwnerID]; ok && snap.Seq < current.Seq {
		return current, false
	}
	s.views[snap.OwnerID] = view
	return view, true
}

func (s *Service) Current(ownerID string) (*View, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.views[ownerID]
	return v, ok
}

// Forget drops the cached view so the next read reloads from the store.
func (s *Service) Forget(ownerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.views, ownerID)
}
