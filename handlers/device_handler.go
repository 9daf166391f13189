package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"friendZoneAPI/internal/types/notification"
)

type DeviceRegistry interface {
	RegisterDevice(ctx context.Context, userID string, req *notification.RegisterDeviceRequest) (*notification.DeviceToken, error)
	UnregisterDevice(ctx context.Context, userID, token string) error
}

type DeviceHandler struct {
	devices DeviceRegistry
}

func NewDeviceHandler(devices DeviceRegistry) *DeviceHandler {
	return &DeviceHandler{devices: devices}
}

// POST /api/v1/devices
func (h *DeviceHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req notification.RegisterDeviceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	device, err := h.devices.RegisterDevice(ctx, userID, &req)
	if err != nil {
		respondWithServiceError(w, "RegisterDevice", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, device)
}

// DELETE /api/v1/devices/{token}
func (h *DeviceHandler) UnregisterDevice(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := h.devices.UnregisterDevice(ctx, userID, mux.Vars(r)["token"]); err != nil {
		respondWithServiceError(w, "UnregisterDevice", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
