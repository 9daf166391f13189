package zone

import "time"

type Zone struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Latitude     float64   `json:"latitude" db:"latitude"`
	Longitude    float64   `json:"longitude" db:"longitude"`
	RadiusMeters float64   `json:"radiusMeters" db:"radius_meters"`
	OwnerID      string    `json:"ownerId" db:"owner_id"`
	MemberIDs    []string  `json:"memberIds" db:"member_ids"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

type CreateZoneRequest struct {
	Name         string  `json:"name" validate:"required,max=100"`
	Latitude     float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude    float64 `json:"longitude" validate:"gte=-180,lte=180"`
	RadiusMeters float64 `json:"radiusMeters" validate:"gt=0,lte=50000"`
}
