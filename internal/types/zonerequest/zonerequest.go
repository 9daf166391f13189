package zonerequest

import (
	"strings"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected || s == StatusCancelled
}

type Request struct {
	ID               string    `json:"id" db:"id"`
	FromUserID       string    `json:"fromUserId" db:"from_user_id"`
	FromDisplayName  string    `json:"fromDisplayName" db:"from_display_name"`
	FromPhoneNumber  string    `json:"fromPhoneNumber" db:"from_phone_number"`
	ToUserID         *string   `json:"toUserId,omitempty" db:"to_user_id"`
	ToPhoneNumber    string    `json:"toPhoneNumber" db:"to_phone_number"`
	ToDisplayName    string    `json:"toDisplayName" db:"to_display_name"`
	RequestedZoneIDs []string  `json:"requestedZoneIds" db:"requested_zone_ids"`
	Status           Status    `json:"status" db:"status"`
	CreatedAt        time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time `json:"updatedAt" db:"updated_at"`
}

type CreateRequest struct {
	ToUserID      string   `json:"toUserId,omitempty"`
	ToPhoneNumber string   `json:"toPhoneNumber,omitempty"`
	ToDisplayName string   `json:"toDisplayName,omitempty"`
	ZoneIDs       []string `json:"zoneIds"`
	// HomeID is the single-zone field older clients still send.
	HomeID string `json:"homeId,omitempty"`
}

// RequestedZones folds the legacy homeId into ZoneIDs, dropping blanks and
// duplicates while keeping the first-seen order.
func (r CreateRequest) RequestedZones() []string {
	zones := make([]string, 0, len(r.ZoneIDs)+1)
	seen := make(map[string]bool, len(r.ZoneIDs)+1)
	for _, z := range append(append([]string{}, r.ZoneIDs...), r.HomeID) {
		z = strings.TrimSpace(z)
		if z == "" || seen[z] {
			continue
		}
		seen[z] = true
		zones = append(zones, z)
	}
	return zones
}

type AcceptRequest struct {
	// ZoneIDs limits acceptance to a subset; empty accepts everything requested.
	ZoneIDs []string `json:"zoneIds,omitempty"`
}
