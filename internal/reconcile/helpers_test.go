package reconcile

import (
	"time"

	"friendZoneAPI/internal/types/friend"
	"friendZoneAPI/internal/types/zonerequest"
)

var baseTime = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func phoneFriend(id, phone string, seen *time.Time, shared ...string) *friend.Record {
	return &friend.Record{
		ID:            id,
		OwnerID:       "owner-1",
		PhoneNumber:   phone,
		DisplayName:   "Friend " + id,
		SharedZoneIDs: shared,
		ActiveZoneIDs: shared,
		LastSeenAt:    seen,
	}
}

func userFriend(id, userID, name string, shared, active []string) *friend.Record {
	return &friend.Record{
		ID:                id,
		OwnerID:           "owner-1",
		CounterpartUserID: strPtr(userID),
		DisplayName:       name,
		SharedZoneIDs:     shared,
		ActiveZoneIDs:     active,
	}
}

func outgoing(id, toUserID, toPhone string, zones ...string) *zonerequest.Request {
	req := &zonerequest.Request{
		ID:               id,
		FromUserID:       "owner-1",
		ToPhoneNumber:    toPhone,
		RequestedZoneIDs: zones,
		Status:           zonerequest.StatusPending,
		CreatedAt:        baseTime,
	}
	if toUserID != "" {
		req.ToUserID = strPtr(toUserID)
	}
	return req
}

func incoming(id, fromUserID string, zones ...string) *zonerequest.Request {
	return &zonerequest.Request{
		ID:               id,
		FromUserID:       fromUserID,
		ToUserID:         strPtr("owner-1"),
		RequestedZoneIDs: zones,
		Status:           zonerequest.StatusPending,
		CreatedAt:        baseTime,
	}
}
