package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"friendZoneAPI/internal/types/clerk"
	"friendZoneAPI/internal/types/user"
	"friendZoneAPI/services"
)

// webhookTolerance rejects replays of old deliveries.
const webhookTolerance = 5 * time.Minute

type WebhookHandler struct {
	users  UserStore
	secret string
	now    func() time.Time
}

// NewWebhookHandler verifies deliveries with secret, the "whsec_" signing
// secret from the Clerk dashboard. An empty secret disables verification.
func NewWebhookHandler(users UserStore, secret string) *WebhookHandler {
	return &WebhookHandler{users: users, secret: secret, now: time.Now}
}

// POST /webhooks/clerk keeps local accounts in sync with Clerk.
func (h *WebhookHandler) HandleClerkWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		log.Printf("Error reading webhook body: %v", err)
		http.Error(w, "Error reading body", http.StatusBadRequest)
		return
	}

	if err := h.verifyWebhookSignature(r.Header, body); err != nil {
		log.Printf("Invalid webhook signature: %v", err)
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	var event clerk.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("Error parsing webhook: %v", err)
		http.Error(w, "Error parsing webhook", http.StatusBadRequest)
		return
	}

	log.Printf("Received webhook event: %s", event.Type)

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	switch event.Type {
	case "user.created":
		err = h.handleUserCreated(ctx, event.Data)
	case "user.updated":
		err = h.handleUserUpdated(ctx, event.Data)
	case "user.deleted":
		err = h.handleUserDeleted(ctx, event.Data)
	default:
		log.Printf("Unhandled webhook event type: %s", event.Type)
	}
	if err != nil {
		log.Printf("Error handling %s: %v", event.Type, err)
		http.Error(w, "Error processing webhook", http.StatusInternalServerError)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *WebhookHandler) handleUserCreated(ctx context.Context, data json.RawMessage) error {
	var userData clerk.UserData
	if err := json.Unmarshal(data, &userData); err != nil {
		return fmt.Errorf("failed to unmarshal user data: %w", err)
	}

	created, err := h.users.CreateUser(ctx, &user.CreateUserRequest{
		ClerkID:     userData.ID,
		PhoneNumber: userData.PrimaryPhone(),
		DisplayName: userData.DisplayName(),
		ImageURL:    firstNonEmpty(userData.ImageURL, userData.ProfileImageURL),
	})
	if err != nil {
		return fmt.Errorf("failed to create user in database: %w", err)
	}

	log.Printf("Successfully created user: %s (Clerk ID: %s)", created.ID, created.ClerkID)
	return nil
}

func (h *WebhookHandler) handleUserUpdated(ctx context.Context, data json.RawMessage) error {
	var userData clerk.UserData
	if err := json.Unmarshal(data, &userData); err != nil {
		return fmt.Errorf("failed to unmarshal user data: %w", err)
	}

	_, err := h.users.UpdateUserByClerkID(ctx, userData.ID, &user.UpdateUserRequest{
		PhoneNumber: userData.PrimaryPhone(),
		DisplayName: userData.DisplayName(),
		ImageURL:    firstNonEmpty(userData.ImageURL, userData.ProfileImageURL),
	})
	if errors.Is(err, services.ErrNotFound) {
		// user.updated raced ahead of user.created.
		return h.handleUserCreated(ctx, data)
	}
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	log.Printf("Successfully updated user: Clerk ID: %s", userData.ID)
	return nil
}

func (h *WebhookHandler) handleUserDeleted(ctx context.Context, data json.RawMessage) error {
	var userData struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &userData); err != nil {
		return fmt.Errorf("failed to unmarshal user data: %w", err)
	}

	err := h.users.DeleteUserByClerkID(ctx, userData.ID)
	if err != nil && !errors.Is(err, services.ErrNotFound) {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	log.Printf("Successfully deleted user: Clerk ID: %s", userData.ID)
	return nil
}

// verifyWebhookSignature checks the svix headers Clerk signs deliveries with:
// base64(HMAC-SHA256(key, id.timestamp.body)) where key is the base64 part of
// the whsec_ secret. The signature header may carry several "v1,<sig>" entries.
func (h *WebhookHandler) verifyWebhookSignature(header http.Header, body []byte) error {
	if h.secret == "" {
		log.Println("CLERK_WEBHOOK_SECRET not set, skipping signature verification")
		return nil
	}

	svixID := header.Get("svix-id")
	svixTimestamp := header.Get("svix-timestamp")
	svixSignature := header.Get("svix-signature")
	if svixID == "" || svixTimestamp == "" || svixSignature == "" {
		return errors.New("missing webhook signature headers")
	}

	sent, err := strconv.ParseInt(svixTimestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp: %w", err)
	}
	if skew := h.now().Sub(time.Unix(sent, 0)); skew > webhookTolerance || skew < -webhookTolerance {
		return errors.New("timestamp outside tolerance")
	}

	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(h.secret, "whsec_"))
	if err != nil {
		return fmt.Errorf("invalid webhook secret: %w", err)
	}

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(svixID + "." + svixTimestamp + "."))
	mac.Write(body)
	expected := mac.Sum(nil)

	for _, part := range strings.Fields(svixSignature) {
		version, sig, ok := strings.Cut(part, ",")
		if !ok || version != "v1" {
			continue
		}
		provided, err := base64.StdEncoding.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(expected, provided) {
			return nil
		}
	}
	return errors.New("no matching signature")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
