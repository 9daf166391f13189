package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"friendZoneAPI/internal/types/zone"
)

type ZoneStore interface {
	CreateZone(ctx context.Context, ownerID string, req *zone.CreateZoneRequest) (*zone.Zone, error)
	ListZones(ctx context.Context, userID string) ([]*zone.Zone, error)
	DeleteZone(ctx context.Context, ownerID, zoneID string) error
}

type ZoneHandler struct {
	zones ZoneStore
}

func NewZoneHandler(zones ZoneStore) *ZoneHandler {
	return &ZoneHandler{zones: zones}
}

// GET /api/v1/zones
func (h *ZoneHandler) ListZones(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	zones, err := h.zones.ListZones(ctx, userID)
	if err != nil {
		respondWithServiceError(w, "ListZones", err)
		return
	}
	respondWithJSON(w, http.StatusOK, zones)
}

// POST /api/v1/zones
func (h *ZoneHandler) CreateZone(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req zone.CreateZoneRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	created, err := h.zones.CreateZone(ctx, userID, &req)
	if err != nil {
		respondWithServiceError(w, "CreateZone", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

// DELETE /api/v1/zones/{zoneId}
func (h *ZoneHandler) DeleteZone(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := h.zones.DeleteZone(ctx, userID, mux.Vars(r)["zoneId"]); err != nil {
		respondWithServiceError(w, "DeleteZone", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
