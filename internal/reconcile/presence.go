package reconcile

import (
	"errors"
	"slices"
	"time"

	"friendZoneAPI/internal/types/friend"
)

const (
	DefaultFreshThreshold    = 30 * time.Minute
	DefaultUnusableThreshold = 12 * time.Hour
)

// Policy decides how old a location report may be. Reports older than Fresh
// are still shown but flagged stale; reports older than Unusable are ignored.
type Policy struct {
	Fresh    time.Duration
	Unusable time.Duration
}

func DefaultPolicy() Policy {
	return Policy{Fresh: DefaultFreshThreshold, Unusable: DefaultUnusableThreshold}
}

func (p Policy) Validate() error {
	if p.Fresh <= 0 || p.Unusable <= 0 {
		return errors.New("staleness thresholds must be positive")
	}
	if p.Fresh > p.Unusable {
		return errors.New("fresh threshold must not exceed unusable threshold")
	}
	return nil
}

type Presence struct {
	State friend.PresenceState
	Stale bool
	Age   time.Duration
}

// EvaluatePresence classifies a counterpart relative to one zone.
//
// This is the only gate between stored presence flags and the UI: a report at
// or beyond the unusable threshold (or no report at all) is unknown no matter
// what the flags say.
func EvaluatePresence(r *friend.Record, zoneID string, now time.Time, p Policy) Presence {
	if r == nil || r.LastSeenAt == nil {
		return Presence{State: friend.PresenceUnknown}
	}

	age := now.Sub(*r.LastSeenAt)
	if age < 0 {
		age = 0
	}

	if age >= p.Unusable {
		return Presence{State: friend.PresenceUnknown, Age: age}
	}

	if r.IsCurrentlyPresent && slices.Contains(r.CurrentZoneIDs, zoneID) {
		return Presence{State: friend.PresencePresent, Stale: age >= p.Fresh, Age: age}
	}

	return Presence{State: friend.PresenceAway, Age: age}
}

// OccupantsOf returns the records whose counterpart is present in zoneID.
func OccupantsOf(zoneID string, records []*friend.Record, now time.Time, p Policy) []*friend.Record {
	var out []*friend.Record
	for _, r := range records {
		if EvaluatePresence(r, zoneID, now, p).State == friend.PresencePresent {
			out = append(out, r)
		}
	}
	return out
}

// ZonePresences tags every active zone of r.
func ZonePresences(r *friend.Record, now time.Time, p Policy) []friend.ZonePresence {
	if r == nil {
		return nil
	}
	out := make([]friend.ZonePresence, 0, len(r.ActiveZoneIDs))
	for _, z := range r.ActiveZoneIDs {
		pr := EvaluatePresence(r, z, now, p)
		out = append(out, friend.ZonePresence{
			ZoneID:     z,
			State:      pr.State,
			Stale:      pr.Stale,
			AgeMinutes: int(pr.Age / time.Minute),
		})
	}
	return out
}

// ZoneTransitions compares two consecutive reports of the zones a user is in.
func ZoneTransitions(previous, current []string) (entered, left []string) {
	prev := newZoneSet(previous)
	next := newZoneSet(current)
	return next.minus(prev).sorted(), prev.minus(next).sorted()
}
