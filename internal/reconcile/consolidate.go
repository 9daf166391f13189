package reconcile

import (
	"slices"
	"strings"
	"time"

	"friendZoneAPI/internal/types/friend"
)

const reasonNoCounterpartKey = "record has neither a counterpart user id nor a phone number"

// RejectedRecord is an input record that could not be attributed to any
// counterpart. It is reported back instead of being merged under an empty key.
type RejectedRecord struct {
	Record *friend.Record `json:"record"`
	Reason string         `json:"reason"`
}

type ConsolidateResult struct {
	Records  []*friend.Record `json:"records"`
	Rejected []RejectedRecord `json:"rejected,omitempty"`
}

type rankedRecord struct {
	rec *friend.Record
	pos int
}

// Consolidate collapses all records sharing a counterpart key into one.
//
// Zone permissions are unioned, the active set is unioned and then clipped to
// the merged permissions, and presence fields come from the freshest record.
// Freshness is a total order: a missing LastSeenAt sorts before any timestamp,
// equal timestamps fall back to the smaller record ID and finally to input
// position. Output is sorted by key, so Consolidate is idempotent and does not
// depend on input order when record IDs are distinct.
func Consolidate(records []*friend.Record) ConsolidateResult {
	groups := make(map[string][]rankedRecord)
	var rejected []RejectedRecord

	for i, r := range records {
		key, ok := RecordKey(r)
		if !ok {
			rejected = append(rejected, RejectedRecord{Record: r, Reason: reasonNoCounterpartKey})
			continue
		}
		groups[key] = append(groups[key], rankedRecord{rec: r, pos: i})
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := make([]*friend.Record, 0, len(keys))
	for _, k := range keys {
		out = append(out, mergeGroup(groups[k]))
	}

	return ConsolidateResult{Records: out, Rejected: rejected}
}

// fresher reports whether a should win over b.
func fresher(a, b rankedRecord) bool {
	switch {
	case a.rec.LastSeenAt == nil && b.rec.LastSeenAt != nil:
		return false
	case a.rec.LastSeenAt != nil && b.rec.LastSeenAt == nil:
		return true
	case a.rec.LastSeenAt != nil && b.rec.LastSeenAt != nil && !a.rec.LastSeenAt.Equal(*b.rec.LastSeenAt):
		return a.rec.LastSeenAt.After(*b.rec.LastSeenAt)
	}
	if c := strings.Compare(a.rec.ID, b.rec.ID); c != 0 {
		return c < 0
	}
	return a.pos < b.pos
}

func mergeGroup(group []rankedRecord) *friend.Record {
	ranked := slices.Clone(group)
	slices.SortStableFunc(ranked, func(a, b rankedRecord) int {
		if fresher(a, b) {
			return -1
		}
		if fresher(b, a) {
			return 1
		}
		return 0
	})
	winner := ranked[0].rec

	shared := newZoneSet()
	active := newZoneSet()
	var createdAt time.Time
	for _, rr := range ranked {
		for _, id := range rr.rec.SharedZoneIDs {
			shared.add(id)
		}
		for _, id := range rr.rec.ActiveZoneIDs {
			active.add(id)
		}
		if !rr.rec.CreatedAt.IsZero() && (createdAt.IsZero() || rr.rec.CreatedAt.Before(createdAt)) {
			createdAt = rr.rec.CreatedAt
		}
	}

	merged := &friend.Record{
		ID:                 winner.ID,
		OwnerID:            winner.OwnerID,
		CounterpartUserID:  cloneString(winner.CounterpartUserID),
		PhoneNumber:        winner.PhoneNumber,
		DisplayName:        winner.DisplayName,
		SharedZoneIDs:      shared.sorted(),
		ActiveZoneIDs:      active.intersect(shared).sorted(),
		IsCurrentlyPresent: winner.IsCurrentlyPresent,
		CurrentZoneIDs:     SortedUnique(winner.CurrentZoneIDs),
		LastSeenAt:         cloneTime(winner.LastSeenAt),
		CreatedAt:          createdAt,
	}

	// Identity fields may be blank on the freshest record; take the next best.
	for _, rr := range ranked[1:] {
		if merged.DisplayName == "" {
			merged.DisplayName = rr.rec.DisplayName
		}
		if merged.PhoneNumber == "" {
			merged.PhoneNumber = rr.rec.PhoneNumber
		}
		if merged.OwnerID == "" {
			merged.OwnerID = rr.rec.OwnerID
		}
	}

	return merged
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
