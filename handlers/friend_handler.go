package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"friendZoneAPI/internal/reconcile"
	"friendZoneAPI/internal/types/friend"
	"friendZoneAPI/services"
)

type ViewSource interface {
	View(ctx context.Context, ownerID string) (*reconcile.View, error)
}

type FriendRemover interface {
	RemoveFriend(ctx context.Context, ownerID, key string) error
}

type ZoneSharer interface {
	PlanZoneSelection(ctx context.Context, ownerID, key string, selection []string) (reconcile.PermissionPlan, error)
	ApplyZoneSelection(ctx context.Context, ownerID, key string, selection []string) (*services.SelectionResult, error)
}

// friendKey reads the counterpart key from the path. Phone keys are
// normalized so "+1 (555) 123-4567" and "+15551234567" address the same entry.
func friendKey(r *http.Request) string {
	key := mux.Vars(r)["key"]
	if strings.HasPrefix(key, "+") {
		return reconcile.NormalizePhone(key)
	}
	return key
}

type FriendHandler struct {
	views   ViewSource
	friends FriendRemover
	sharing ZoneSharer
}

func NewFriendHandler(views ViewSource, friends FriendRemover, sharing ZoneSharer) *FriendHandler {
	return &FriendHandler{views: views, friends: friends, sharing: sharing}
}

// GET /api/v1/friends returns the merged friends list.
func (h *FriendHandler) GetFriends(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	view, err := h.views.View(ctx, userID)
	if err != nil {
		respondWithServiceError(w, "GetFriends", err)
		return
	}
	respondWithJSON(w, http.StatusOK, view)
}

// GET /api/v1/friends/{key}
func (h *FriendHandler) GetFriend(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	view, err := h.views.View(ctx, userID)
	if err != nil {
		respondWithServiceError(w, "GetFriend", err)
		return
	}

	key := friendKey(r)
	for _, c := range view.Counterparts {
		if c.Key == key {
			respondWithJSON(w, http.StatusOK, c)
			return
		}
	}
	respondWithError(w, http.StatusNotFound, "Friend not found")
}

// DELETE /api/v1/friends/{key}
func (h *FriendHandler) RemoveFriend(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := h.friends.RemoveFriend(ctx, userID, friendKey(r)); err != nil {
		respondWithServiceError(w, "RemoveFriend", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/friends/{key}/zones/preview classifies a selection without
// writing it.
func (h *FriendHandler) PreviewZones(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req friend.UpdateZonesRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	plan, err := h.sharing.PlanZoneSelection(ctx, userID, friendKey(r), req.ZoneIDs)
	if err != nil {
		respondWithServiceError(w, "PreviewZones", err)
		return
	}
	respondWithJSON(w, http.StatusOK, plan)
}

// PUT /api/v1/friends/{key}/zones applies a selection. When either half of
// the write fails the body still describes what was applied and the status
// is 502.
func (h *FriendHandler) UpdateZones(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req friend.UpdateZonesRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.sharing.ApplyZoneSelection(ctx, userID, friendKey(r), req.ZoneIDs)
	if err != nil {
		respondWithServiceError(w, "UpdateZones", err)
		return
	}

	code := http.StatusOK
	if result.Result.Failed() {
		code = http.StatusBadGateway
	}
	respondWithJSON(w, code, result)
}
