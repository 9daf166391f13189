package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"friendZoneAPI/internal/types/zonerequest"
)

type RequestStore interface {
	CreateZoneRequest(ctx context.Context, fromUserID string, in zonerequest.CreateRequest) (*zonerequest.Request, error)
	ListIncoming(ctx context.Context, userID string) ([]*zonerequest.Request, error)
	ListOutgoing(ctx context.Context, userID string) ([]*zonerequest.Request, error)
	AcceptZoneRequest(ctx context.Context, requestID, userID string, zoneIDs []string) (*zonerequest.Request, error)
	RejectZoneRequest(ctx context.Context, requestID, userID string) (*zonerequest.Request, error)
	CancelZoneRequest(ctx context.Context, requestID, userID string) (*zonerequest.Request, error)
}

type RequestHandler struct {
	requests RequestStore
}

func NewRequestHandler(requests RequestStore) *RequestHandler {
	return &RequestHandler{requests: requests}
}

// GET /api/v1/requests?direction=incoming|outgoing
func (h *RequestHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var (
		list []*zonerequest.Request
		err  error
	)
	switch r.URL.Query().Get("direction") {
	case "", "incoming":
		list, err = h.requests.ListIncoming(ctx, userID)
	case "outgoing":
		list, err = h.requests.ListOutgoing(ctx, userID)
	default:
		respondWithError(w, http.StatusBadRequest, "direction must be incoming or outgoing")
		return
	}
	if err != nil {
		respondWithServiceError(w, "ListRequests", err)
		return
	}
	respondWithJSON(w, http.StatusOK, list)
}

// POST /api/v1/requests
func (h *RequestHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req zonerequest.CreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	created, err := h.requests.CreateZoneRequest(ctx, userID, req)
	if err != nil {
		respondWithServiceError(w, "CreateRequest", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

// POST /api/v1/requests/{id}/accept. The body is optional.
func (h *RequestHandler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req zonerequest.AcceptRequest
	if r.Body != nil && r.ContentLength != 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := decodeOptional(r.Body, &req); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	accepted, err := h.requests.AcceptZoneRequest(ctx, mux.Vars(r)["id"], userID, req.ZoneIDs)
	if err != nil {
		respondWithServiceError(w, "AcceptRequest", err)
		return
	}
	respondWithJSON(w, http.StatusOK, accepted)
}

// POST /api/v1/requests/{id}/reject
func (h *RequestHandler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	rejected, err := h.requests.RejectZoneRequest(ctx, mux.Vars(r)["id"], userID)
	if err != nil {
		respondWithServiceError(w, "RejectRequest", err)
		return
	}
	respondWithJSON(w, http.StatusOK, rejected)
}

// DELETE /api/v1/requests/{id} cancels a request the caller sent.
func (h *RequestHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	cancelled, err := h.requests.CancelZoneRequest(ctx, mux.Vars(r)["id"], userID)
	if err != nil {
		respondWithServiceError(w, "CancelRequest", err)
		return
	}
	respondWithJSON(w, http.StatusOK, cancelled)
}

func decodeOptional(body io.Reader, dst any) error {
	err := json.NewDecoder(body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
