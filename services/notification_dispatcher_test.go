package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"friendZoneAPI/internal/types/notification"
)

type memoryTokenStore struct {
	mu      sync.Mutex
	tokens  map[string][]notification.DeviceToken
	removed []string
}

func (m *memoryTokenStore) TokensForUser(ctx context.Context, userID string) ([]notification.DeviceToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[userID], nil
}

func (m *memoryTokenStore) RemoveTokens(ctx context.Context, tokens []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, tokens...)
	return nil
}

func (m *memoryTokenStore) removedTokens() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.removed...)
}

type recordingProvider struct {
	mu    sync.Mutex
	sent  []string
	stale []string
	err   error
}

func (p *recordingProvider) SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, body)
	return p.stale, p.err
}

func (p *recordingProvider) bodies() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string{}, p.sent...)
}

func TestNotificationDispatcher_DeliversAndPrunes(t *testing.T) {
	store := &memoryTokenStore{tokens: map[string][]notification.DeviceToken{
		"user-a": {{Token: "good", Platform: "android"}, {Token: "gone", Platform: "ios"}},
	}}
	provider := &recordingProvider{stale: []string{"gone"}, err: errors.New("1 of 2 failed")}

	d := NewNotificationDispatcher(store, provider, 2, 10)
	require.True(t, d.Enqueue(notification.Push{UserID: "user-a", Type: notification.TypeArrival, Body: "hello"}))

	assert.Eventually(t, func() bool {
		return len(store.removedTokens()) == 1
	}, time.Second, 5*time.Millisecond)
	d.Stop()

	assert.Equal(t, []string{"hello"}, provider.bodies())
	assert.Equal(t, []string{"gone"}, store.removedTokens())
}

func TestNotificationDispatcher_SkipsUsersWithoutDevices(t *testing.T) {
	store := &memoryTokenStore{tokens: map[string][]notification.DeviceToken{}}
	provider := &recordingProvider{}

	d := NewNotificationDispatcher(store, provider, 1, 10)
	d.Enqueue(notification.Push{UserID: "nobody", Body: "hi"})
	time.Sleep(20 * time.Millisecond)
	d.Stop()

	assert.Empty(t, provider.bodies())
}

func TestNotificationDispatcher_EnqueueAfterStop(t *testing.T) {
	d := NewNotificationDispatcher(&memoryTokenStore{}, &recordingProvider{}, 1, 1)
	d.Stop()
	d.Stop()

	assert.False(t, d.Enqueue(notification.Push{UserID: "user-a"}))
}
