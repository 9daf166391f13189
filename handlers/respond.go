package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"friendZoneAPI/middleware"
	"friendZoneAPI/services"
)

const maxBodyBytes = 1 << 20

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithServiceError maps service sentinels to status codes. Anything
// unrecognised is logged and reported as a 500 without internals.
func respondWithServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrForbidden):
		respondWithError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrInvalidRequest), errors.Is(err, services.ErrSelfRequest):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrRequestNotPending):
		respondWithError(w, http.StatusConflict, err.Error())
	default:
		log.Printf("%s: %v", op, err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// decodeJSON reads a bounded request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok || userID == "" {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return "", false
	}
	return userID, true
}
