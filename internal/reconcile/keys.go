package reconcile

import (
	"strings"

	"friendZoneAPI/internal/types/friend"
	"friendZoneAPI/internal/types/zonerequest"
)

// NormalizePhone strips everything but digits and renders the result as
// "+<digits>". It returns "" when the input has no digits at all.
func NormalizePhone(phone string) string {
	var b strings.Builder
	b.Grow(len(phone) + 1)
	b.WriteByte('+')
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 1 {
		return ""
	}
	return b.String()
}

// CounterpartKey prefers the registered user id and falls back to the
// normalized phone number.
func CounterpartKey(userID *string, phone string) (string, bool) {
	if userID != nil {
		if id := strings.TrimSpace(*userID); id != "" {
			return id, true
		}
	}
	if p := NormalizePhone(phone); p != "" {
		return p, true
	}
	return "", false
}

func RecordKey(r *friend.Record) (string, bool) {
	if r == nil {
		return "", false
	}
	return CounterpartKey(r.CounterpartUserID, r.PhoneNumber)
}

// OutgoingKey identifies the invitee of a request the owner sent.
func OutgoingKey(req *zonerequest.Request) (string, bool) {
	if req == nil {
		return "", false
	}
	return CounterpartKey(req.ToUserID, req.ToPhoneNumber)
}

// IncomingKey identifies the sender of a request addressed to the owner.
func IncomingKey(req *zonerequest.Request) (string, bool) {
	if req == nil {
		return "", false
	}
	from := req.FromUserID
	return CounterpartKey(&from, req.FromPhoneNumber)
}
