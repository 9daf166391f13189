package friend

import (
	"time"

	"friendZoneAPI/internal/types/zonerequest"
)

// Record is one owner's view of a counterpart. Several records may exist for
// the same real counterpart (historic data keyed by phone and later by user id).
type Record struct {
	ID                 string     `json:"id" db:"id" firestore:"-"`
	OwnerID            string     `json:"ownerId" db:"owner_id" firestore:"userId"`
	CounterpartUserID  *string    `json:"counterpartUserId,omitempty" db:"counterpart_user_id" firestore:"friendUserId"`
	PhoneNumber        string     `json:"phoneNumber" db:"phone_number" firestore:"phoneNumber"`
	DisplayName        string     `json:"displayName" db:"display_name" firestore:"name"`
	SharedZoneIDs      []string   `json:"sharedZoneIds" db:"shared_zone_ids" firestore:"sharedHomes"`
	ActiveZoneIDs      []string   `json:"activeZoneIds" db:"active_zone_ids" firestore:"activeHomes"`
	IsCurrentlyPresent bool       `json:"isCurrentlyPresent" db:"is_currently_present" firestore:"isCurrentlyAtHome"`
	CurrentZoneIDs     []string   `json:"currentZoneIds" db:"current_zone_ids" firestore:"currentHomeIds"`
	LastSeenAt         *time.Time `json:"lastSeenAt,omitempty" db:"last_seen_at" firestore:"lastSeen"`
	CreatedAt          time.Time  `json:"createdAt" db:"created_at" firestore:"createdAt"`
}

type PresenceState string

const (
	PresencePresent PresenceState = "present"
	PresenceAway    PresenceState = "away"
	PresenceUnknown PresenceState = "unknown"
)

type ZonePresence struct {
	ZoneID     string        `json:"zoneId"`
	State      PresenceState `json:"state"`
	Stale      bool          `json:"stale"`
	AgeMinutes int           `json:"ageMinutes"`
}

// MergedCounterpart is derived on every snapshot and never persisted.
type MergedCounterpart struct {
	Key             string                 `json:"key"`
	DisplayName     string                 `json:"displayName"`
	ActiveFriend    *Record                `json:"activeFriend,omitempty"`
	ActiveZoneIDs   []string               `json:"activeZoneIds"`
	PendingRequests []*zonerequest.Request `json:"pendingRequests"`
	PendingZoneIDs  []string               `json:"pendingZoneIds"`
	Presence        []ZonePresence         `json:"presence,omitempty"`
}

type UpdateZonesRequest struct {
	ZoneIDs []string `json:"zoneIds"`
}
