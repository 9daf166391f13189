package notification

import "time"

type Type string

const (
	TypeZoneInvite     Type = "zone_invite"
	TypeInviteAccepted Type = "invite_accepted"
	TypeArrival        Type = "arrival"
	TypeDeparture      Type = "departure"
)

type DeviceToken struct {
	Token     string    `json:"token" db:"token"`
	UserID    string    `json:"userId" db:"user_id"`
	Platform  string    `json:"platform" db:"platform"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Push is one message addressed to every device of a user.
type Push struct {
	UserID string         `json:"userId"`
	Type   Type           `json:"type"`
	Title  string         `json:"title"`
	Body   string         `json:"body"`
	Data   map[string]any `json:"data,omitempty"`
}

type RegisterDeviceRequest struct {
	Token    string `json:"token" validate:"required"`
	Platform string `json:"platform" validate:"required,oneof=ios android web"`
}
