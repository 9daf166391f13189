package handlers

import (
	"context"
	"net/http"
	"time"

	"friendZoneAPI/internal/types/user"
	"friendZoneAPI/middleware"
)

type UserStore interface {
	CreateUser(ctx context.Context, req *user.CreateUserRequest) (*user.User, error)
	GetUserByClerkID(ctx context.Context, clerkID string) (*user.User, error)
	UpdateUserByClerkID(ctx context.Context, clerkID string, req *user.UpdateUserRequest) (*user.User, error)
	DeleteUserByClerkID(ctx context.Context, clerkID string) error
}

type UserHandler struct {
	users UserStore
}

func NewUserHandler(users UserStore) *UserHandler {
	return &UserHandler{users: users}
}

func clerkIDFrom(w http.ResponseWriter, r *http.Request) (string, bool) {
	clerkID, ok := middleware.GetClerkID(r.Context())
	if !ok || clerkID == "" {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return "", false
	}
	return clerkID, true
}

// GET /api/v1/user
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := clerkIDFrom(w, r)
	if !ok {
		return
	}

	u, err := h.users.GetUserByClerkID(ctx, clerkID)
	if err != nil {
		respondWithServiceError(w, "GetProfile", err)
		return
	}
	respondWithJSON(w, http.StatusOK, u)
}

// PUT /api/v1/user
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := clerkIDFrom(w, r)
	if !ok {
		return
	}

	var req user.UpdateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := h.users.UpdateUserByClerkID(ctx, clerkID, &req)
	if err != nil {
		respondWithServiceError(w, "UpdateProfile", err)
		return
	}
	respondWithJSON(w, http.StatusOK, u)
}

// DELETE /api/v1/user
func (h *UserHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := clerkIDFrom(w, r)
	if !ok {
		return
	}

	if err := h.users.DeleteUserByClerkID(ctx, clerkID); err != nil {
		respondWithServiceError(w, "DeleteAccount", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
