package reconcile

import (
	"cmp"
	"slices"
	"strings"

	"friendZoneAPI/internal/types/friend"
	"friendZoneAPI/internal/types/zone"
	"friendZoneAPI/internal/types/zonerequest"
)

type MergeInput struct {
	// Friends must already be consolidated.
	Friends  []*friend.Record
	Incoming []*zonerequest.Request
	Outgoing []*zonerequest.Request
	// Zones and ContactNames only feed display names.
	Zones        []*zone.Zone
	ContactNames map[string]string
}

type MergeOutput struct {
	Counterparts       []*friend.MergedCounterpart `json:"counterparts"`
	StandaloneIncoming []*zonerequest.Request      `json:"standaloneIncoming"`
	// SkippedOutgoing holds outgoing requests with no addressable invitee or
	// a status other than pending.
	SkippedOutgoing []*zonerequest.Request `json:"skippedOutgoing,omitempty"`
	ZoneNames       map[string]string      `json:"zoneNames"`
}

// MergeRequests builds one entry per counterpart that has an active
// friendship or an outgoing pending request.
//
// The active set of an entry is the friend's ActiveZoneIDs (clipped to its
// permissions), not the full permission set. Incoming requests are never
// folded into entries; they are passed through untouched so each one can be
// accepted or rejected on its own.
func MergeRequests(in MergeInput) MergeOutput {
	entries := make(map[string]*friend.MergedCounterpart, len(in.Friends))
	active := make(map[string]zoneSet, len(in.Friends))
	pending := make(map[string]zoneSet)
	requestNames := make(map[string]string)

	for _, f := range in.Friends {
		key, ok := RecordKey(f)
		if !ok {
			continue
		}
		if _, dup := entries[key]; dup {
			continue
		}
		act := newZoneSet(f.ActiveZoneIDs).intersect(newZoneSet(f.SharedZoneIDs))
		active[key] = act
		entries[key] = &friend.MergedCounterpart{
			Key:             key,
			DisplayName:     f.DisplayName,
			ActiveFriend:    f,
			ActiveZoneIDs:   act.sorted(),
			PendingRequests: []*zonerequest.Request{},
		}
	}

	outgoing := slices.DeleteFunc(slices.Clone(in.Outgoing), func(r *zonerequest.Request) bool {
		return r == nil
	})
	slices.SortStableFunc(outgoing, func(a, b *zonerequest.Request) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	var skipped []*zonerequest.Request
	for _, req := range outgoing {
		key, ok := OutgoingKey(req)
		if !ok || req.Status != zonerequest.StatusPending {
			skipped = append(skipped, req)
			continue
		}

		entry, exists := entries[key]
		if !exists {
			entry = &friend.MergedCounterpart{
				Key:             key,
				ActiveZoneIDs:   []string{},
				PendingRequests: []*zonerequest.Request{},
			}
			entries[key] = entry
			active[key] = newZoneSet()
		}
		if _, named := requestNames[key]; !named && req.ToDisplayName != "" {
			requestNames[key] = req.ToDisplayName
		}

		entry.PendingRequests = append(entry.PendingRequests, req)
		if pending[key] == nil {
			pending[key] = newZoneSet()
		}
		for _, z := range req.RequestedZoneIDs {
			if !active[key].has(z) {
				pending[key].add(z)
			}
		}
	}

	out := make([]*friend.MergedCounterpart, 0, len(entries))
	for key, entry := range entries {
		entry.PendingZoneIDs = pending[key].sorted()
		entry.DisplayName = resolveName(entry, in.ContactNames[key], requestNames[key])
		out = append(out, entry)
	}
	slices.SortFunc(out, func(a, b *friend.MergedCounterpart) int {
		if c := strings.Compare(strings.ToLower(a.DisplayName), strings.ToLower(b.DisplayName)); c != 0 {
			return c
		}
		return strings.Compare(a.Key, b.Key)
	})

	standalone := make([]*zonerequest.Request, len(in.Incoming))
	copy(standalone, in.Incoming)

	names := make(map[string]string, len(in.Zones))
	for _, z := range in.Zones {
		if z != nil {
			names[z.ID] = z.Name
		}
	}

	return MergeOutput{
		Counterparts:       out,
		StandaloneIncoming: standalone,
		SkippedOutgoing:    skipped,
		ZoneNames:          names,
	}
}

func resolveName(entry *friend.MergedCounterpart, contactName, requestName string) string {
	switch {
	case entry.ActiveFriend != nil && strings.TrimSpace(entry.ActiveFriend.DisplayName) != "":
		return entry.ActiveFriend.DisplayName
	case strings.TrimSpace(contactName) != "":
		return contactName
	case strings.TrimSpace(requestName) != "":
		return requestName
	}
	return entry.Key
}
