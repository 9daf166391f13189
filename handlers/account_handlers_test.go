package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"friendZoneAPI/internal/types/notification"
	"friendZoneAPI/internal/types/user"
	"friendZoneAPI/middleware"
	"friendZoneAPI/services"
)

type stubReporter struct {
	got services.LocationReport
}

func (s *stubReporter) ReportLocation(ctx context.Context, userID string, report services.LocationReport) (*services.LocationResult, error) {
	s.got = report
	return &services.LocationResult{Entered: report.ZoneIDs}, nil
}

func TestLocationHandler_ClampsTimestamps(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		body string
		want time.Time
	}{
		{"missing", `{"zoneIds":["Z1"]}`, now},
		{"far future", `{"zoneIds":["Z1"],"reportedAt":"2026-03-01T13:00:00Z"}`, now},
		{"small skew kept", `{"zoneIds":["Z1"],"reportedAt":"2026-03-01T12:02:00Z"}`, now.Add(2 * time.Minute)},
		{"past kept", `{"zoneIds":["Z1"],"reportedAt":"2026-03-01T11:00:00Z"}`, now.Add(-time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reporter := &stubReporter{}
			h := NewLocationHandler(reporter)
			h.now = func() time.Time { return now }

			rec := serve(http.MethodPost, "/location", "/location", tt.body, "user-1", h.ReportLocation)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.True(t, reporter.got.ReportedAt.Equal(tt.want), "got %v", reporter.got.ReportedAt)
		})
	}
}

type stubDevices struct {
	tokens map[string]string
}

func (s *stubDevices) RegisterDevice(ctx context.Context, userID string, req *notification.RegisterDeviceRequest) (*notification.DeviceToken, error) {
	if req.Token == "" {
		return nil, services.ErrInvalidRequest
	}
	s.tokens[req.Token] = userID
	return &notification.DeviceToken{UserID: userID, Token: req.Token, Platform: req.Platform}, nil
}

func (s *stubDevices) UnregisterDevice(ctx context.Context, userID, token string) error {
	if s.tokens[token] != userID {
		return services.ErrNotFound
	}
	delete(s.tokens, token)
	return nil
}

func TestDeviceHandler(t *testing.T) {
	devices := &stubDevices{tokens: map[string]string{}}
	h := NewDeviceHandler(devices)

	rec := serve(http.MethodPost, "/devices", "/devices", `{"token":"tok-1","platform":"ios"}`, "user-1", h.RegisterDevice)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "user-1", devices.tokens["tok-1"])

	rec = serve(http.MethodPost, "/devices", "/devices", `{"platform":"ios"}`, "user-1", h.RegisterDevice)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(http.MethodDelete, "/devices/{token}", "/devices/tok-1", "", "user-2", h.UnregisterDevice)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(http.MethodDelete, "/devices/{token}", "/devices/tok-1", "", "user-1", h.UnregisterDevice)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, devices.tokens)
}

type stubUsers struct {
	byClerk map[string]*user.User
	calls   []string
}

func newStubUsers() *stubUsers {
	return &stubUsers{byClerk: map[string]*user.User{}}
}

func (s *stubUsers) CreateUser(ctx context.Context, req *user.CreateUserRequest) (*user.User, error) {
	s.calls = append(s.calls, "create")
	u := &user.User{ID: "id-" + req.ClerkID, ClerkID: req.ClerkID, PhoneNumber: req.PhoneNumber, DisplayName: req.DisplayName, ImageURL: req.ImageURL}
	s.byClerk[req.ClerkID] = u
	return u, nil
}

func (s *stubUsers) GetUserByClerkID(ctx context.Context, clerkID string) (*user.User, error) {
	u, ok := s.byClerk[clerkID]
	if !ok {
		return nil, services.ErrNotFound
	}
	return u, nil
}

func (s *stubUsers) UpdateUserByClerkID(ctx context.Context, clerkID string, req *user.UpdateUserRequest) (*user.User, error) {
	s.calls = append(s.calls, "update")
	u, ok := s.byClerk[clerkID]
	if !ok {
		return nil, services.ErrNotFound
	}
	if req.DisplayName != "" {
		u.DisplayName = req.DisplayName
	}
	if req.PhoneNumber != "" {
		u.PhoneNumber = req.PhoneNumber
	}
	return u, nil
}

func (s *stubUsers) DeleteUserByClerkID(ctx context.Context, clerkID string) error {
	s.calls = append(s.calls, "delete")
	if _, ok := s.byClerk[clerkID]; !ok {
		return services.ErrNotFound
	}
	delete(s.byClerk, clerkID)
	return nil
}

func withClerkID(req *http.Request, clerkID string) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), middleware.ClerkIDKey, clerkID))
}

func TestUserHandler(t *testing.T) {
	users := newStubUsers()
	users.byClerk["clerk_1"] = &user.User{ID: "u1", ClerkID: "clerk_1", DisplayName: "Ann"}
	h := NewUserHandler(users)

	rec := httptest.NewRecorder()
	h.GetProfile(rec, withClerkID(httptest.NewRequest(http.MethodGet, "/user", nil), "clerk_1"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"displayName":"Ann"`)

	rec = httptest.NewRecorder()
	h.UpdateProfile(rec, withClerkID(httptest.NewRequest(http.MethodPut, "/user", strings.NewReader(`{"displayName":"Annie"}`)), "clerk_1"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Annie", users.byClerk["clerk_1"].DisplayName)

	rec = httptest.NewRecorder()
	h.DeleteAccount(rec, withClerkID(httptest.NewRequest(http.MethodDelete, "/user", nil), "clerk_1"))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.GetProfile(rec, withClerkID(httptest.NewRequest(http.MethodGet, "/user", nil), "clerk_1"))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.GetProfile(rec, httptest.NewRequest(http.MethodGet, "/user", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

const testWebhookSecret = "whsec_" + "dGVzdC1zaWduaW5nLWtleS0xMjM0NTY3ODkw"

func signWebhook(secret, id, timestamp string, body []byte) string {
	key, _ := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, "whsec_"))
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(id + "." + timestamp + "."))
	mac.Write(body)
	return "v1," + base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func webhookRequest(body string, sentAt time.Time, signature string) *http.Request {
	ts := strconv.FormatInt(sentAt.Unix(), 10)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", strings.NewReader(body))
	req.Header.Set("svix-id", "msg_1")
	req.Header.Set("svix-timestamp", ts)
	if signature == "" {
		signature = signWebhook(testWebhookSecret, "msg_1", ts, []byte(body))
	}
	req.Header.Set("svix-signature", signature)
	return req
}

const createdEvent = `{"type":"user.created","data":{"id":"clerk_9","first_name":"Zed","last_name":"Ray",
"primary_phone_number_id":"p2","phone_numbers":[{"id":"p1","phone_number":"+15550000001"},{"id":"p2","phone_number":"+15550000002"}]}}`

func TestWebhookHandler_Signature(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		req    func() *http.Request
		status int
	}{
		{"valid", func() *http.Request { return webhookRequest(createdEvent, now, "") }, http.StatusOK},
		{"one of several", func() *http.Request {
			ts := strconv.FormatInt(now.Unix(), 10)
			good := signWebhook(testWebhookSecret, "msg_1", ts, []byte(createdEvent))
			return webhookRequest(createdEvent, now, "v1,AAAA "+good)
		}, http.StatusOK},
		{"tampered", func() *http.Request { return webhookRequest(createdEvent, now, "v1,bm9wZQ==") }, http.StatusUnauthorized},
		{"expired", func() *http.Request { return webhookRequest(createdEvent, now.Add(-10*time.Minute), "") }, http.StatusUnauthorized},
		{"missing headers", func() *http.Request {
			return httptest.NewRequest(http.MethodPost, "/webhooks/clerk", strings.NewReader(createdEvent))
		}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewWebhookHandler(newStubUsers(), testWebhookSecret)
			h.now = func() time.Time { return now }

			rec := httptest.NewRecorder()
			h.HandleClerkWebhook(rec, tt.req())

			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestWebhookHandler_Lifecycle(t *testing.T) {
	now := time.Now()
	users := newStubUsers()
	h := NewWebhookHandler(users, testWebhookSecret)

	rec := httptest.NewRecorder()
	h.HandleClerkWebhook(rec, webhookRequest(createdEvent, now, ""))
	require.Equal(t, http.StatusOK, rec.Code)

	created := users.byClerk["clerk_9"]
	require.NotNil(t, created)
	assert.Equal(t, "Zed Ray", created.DisplayName)
	assert.Equal(t, "+15550000002", created.PhoneNumber)

	updated := `{"type":"user.updated","data":{"id":"clerk_9","first_name":"Zed","last_name":"Ray","username":"z"}}`
	rec = httptest.NewRecorder()
	h.HandleClerkWebhook(rec, webhookRequest(updated, now, ""))
	require.Equal(t, http.StatusOK, rec.Code)

	deleted := `{"type":"user.deleted","data":{"id":"clerk_9"}}`
	for i := 0; i < 2; i++ {
		rec = httptest.NewRecorder()
		h.HandleClerkWebhook(rec, webhookRequest(deleted, now, ""))
		assert.Equal(t, http.StatusOK, rec.Code, "delete is idempotent")
	}
	assert.Empty(t, users.byClerk)
	assert.Equal(t, []string{"create", "update", "delete", "delete"}, users.calls)
}

func TestWebhookHandler_UpdateBeforeCreate(t *testing.T) {
	users := newStubUsers()
	h := NewWebhookHandler(users, "")

	body := `{"type":"user.updated","data":{"id":"clerk_5","username":"early"}}`
	rec := httptest.NewRecorder()
	h.HandleClerkWebhook(rec, httptest.NewRequest(http.MethodPost, "/webhooks/clerk", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"update", "create"}, users.calls)
	assert.Equal(t, "early", users.byClerk["clerk_5"].DisplayName)
}
