package services

import (
	"context"
	"log"
	"sync"
	"time"

	"friendZoneAPI/internal/metrics"
	"friendZoneAPI/internal/types/notification"
)

// PushNotificationProvider delivers one push to a set of devices and returns
// the tokens the provider no longer recognises.
type PushNotificationProvider interface {
	SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) (stale []string, err error)
}

type TokenStore interface {
	TokensForUser(ctx context.Context, userID string) ([]notification.DeviceToken, error)
	RemoveTokens(ctx context.Context, tokens []string) error
}

// NotificationDispatcher fans pushes out to a fixed pool of workers.
type NotificationDispatcher struct {
	tokens       TokenStore
	pushProvider PushNotificationProvider
	workers      int
	jobQueue     chan notification.Push
	stopChan     chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

func NewNotificationDispatcher(tokens TokenStore, provider PushNotificationProvider, workers, queueSize int) *NotificationDispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	dispatcher := &NotificationDispatcher{
		tokens:       tokens,
		pushProvider: provider,
		workers:      workers,
		jobQueue:     make(chan notification.Push, queueSize),
		stopChan:     make(chan struct{}),
	}

	dispatcher.startWorkers()
	return dispatcher
}

func (d *NotificationDispatcher) startWorkers() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
}

func (d *NotificationDispatcher) worker(id int) {
	defer d.wg.Done()
	for {
		select {
		case push := <-d.jobQueue:
			d.processJob(push)
		case <-d.stopChan:
			return
		}
	}
}

func (d *NotificationDispatcher) processJob(push notification.Push) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if d.pushProvider == nil {
		log.Printf("Skipping %s push for %s: no provider", push.Type, push.UserID)
		metrics.PushesSent.WithLabelValues(string(push.Type), "skipped").Inc()
		return
	}

	tokens, err := d.tokens.TokensForUser(ctx, push.UserID)
	if err != nil {
		log.Printf("Push failed for user %s: %v", push.UserID, err)
		metrics.PushesSent.WithLabelValues(string(push.Type), "error").Inc()
		return
	}
	if len(tokens) == 0 {
		metrics.PushesSent.WithLabelValues(string(push.Type), "no_devices").Inc()
		return
	}

	stale, err := d.pushProvider.SendPush(ctx, tokens, push.Title, push.Body, push.Data)
	if len(stale) > 0 {
		if rmErr := d.tokens.RemoveTokens(ctx, stale); rmErr != nil {
			log.Printf("Failed to prune %d stale tokens: %v", len(stale), rmErr)
		} else {
			log.Printf("Pruned %d stale tokens for user %s", len(stale), push.UserID)
		}
	}
	if err != nil {
		log.Printf("Push failed for user %s: %v", push.UserID, err)
		metrics.PushesSent.WithLabelValues(string(push.Type), "error").Inc()
		return
	}
	metrics.PushesSent.WithLabelValues(string(push.Type), "sent").Inc()
}

// Enqueue hands a push to the workers without blocking. It returns false
// when the queue is full or the dispatcher has stopped.
func (d *NotificationDispatcher) Enqueue(push notification.Push) bool {
	select {
	case <-d.stopChan:
		return false
	default:
	}

	select {
	case d.jobQueue <- push:
		return true
	default:
		log.Printf("Failed to queue %s push for %s: queue full", push.Type, push.UserID)
		metrics.PushesSent.WithLabelValues(string(push.Type), "dropped").Inc()
		return false
	}
}

// Stop the dispatcher gracefully
func (d *NotificationDispatcher) Stop() {
	d.stopOnce.Do(func() {
		log.Println("Stopping notification dispatcher...")
		close(d.stopChan)
		d.wg.Wait()
		log.Println("Notification dispatcher stopped")
	})
}

// LogPushProvider stands in for FCM when no credentials are configured.
type LogPushProvider struct{}

func (LogPushProvider) SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) ([]string, error) {
	log.Printf("MOCK PUSH: Sending to %d devices: %s - %s", len(tokens), title, body)
	return nil, nil
}
