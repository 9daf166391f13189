package handlers

import (
	"context"
	"net/http"
	"time"

	"friendZoneAPI/services"
)

type LocationReporter interface {
	ReportLocation(ctx context.Context, userID string, report services.LocationReport) (*services.LocationResult, error)
}

type LocationHandler struct {
	presence LocationReporter
	now      func() time.Time
}

func NewLocationHandler(presence LocationReporter) *LocationHandler {
	return &LocationHandler{presence: presence, now: time.Now}
}

// maxClockSkew bounds how far ahead of the server a client timestamp may be.
const maxClockSkew = 5 * time.Minute

// POST /api/v1/location
func (h *LocationHandler) ReportLocation(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var report services.LocationReport
	if !decodeJSON(w, r, &report) {
		return
	}
	now := h.now()
	if report.ReportedAt.IsZero() || report.ReportedAt.After(now.Add(maxClockSkew)) {
		report.ReportedAt = now
	}

	result, err := h.presence.ReportLocation(ctx, userID, report)
	if err != nil {
		respondWithServiceError(w, "ReportLocation", err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}
