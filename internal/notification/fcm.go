package notification

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"os"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"friendZoneAPI/internal/types/notification"
)

// NewFirebaseApp builds the Firebase app from base64 service-account JSON,
// falling back to a local key file.
func NewFirebaseApp(ctx context.Context, encodedCreds, localFilePath string) (*firebase.App, error) {
	var opt option.ClientOption

	if encodedCreds != "" {
		decoded, err := base64.StdEncoding.DecodeString(encodedCreds)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 firebase credentials from FCM_SERVICE_ACCOUNT_JSON: %v", err)
		}
		opt = option.WithCredentialsJSON(decoded)
		log.Println("Firebase: Initializing from FCM_SERVICE_ACCOUNT_JSON environment variable.")
	} else {
		if _, err := os.Stat(localFilePath); os.IsNotExist(err) {
			return nil, fmt.Errorf("local firebase file not found: %s, and FCM_SERVICE_ACCOUNT_JSON environment variable is not set", localFilePath)
		}
		opt = option.WithCredentialsFile(localFilePath)
		log.Printf("Firebase: Initializing from local file: %s.", localFilePath)
	}

	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %v", err)
	}
	return app, nil
}

// messageSender is the part of *messaging.Client FCMService needs.
type messageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

type FCMService struct {
	client messageSender
}

func NewFCMService(ctx context.Context, app *firebase.App) (*FCMService, error) {
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %v", err)
	}
	return &FCMService{client: client}, nil
}

// buildMessage targets one device. Data values are stringified because FCM
// only carries string payloads.
func buildMessage(token notification.DeviceToken, title, body string, data map[string]any) *messaging.Message {
	stringData := make(map[string]string, len(data))
	for k, v := range data {
		stringData[k] = fmt.Sprintf("%v", v)
	}

	message := &messaging.Message{
		Token: token.Token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: stringData,
	}

	switch token.Platform {
	case "ios":
		message.APNS = &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default"},
			},
		}
	default:
		message.Android = &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound: "default",
			},
		}
	}
	return message
}

// SendPush sends one message per token. Tokens FCM reports as unregistered
// are returned so the caller can forget them. The error is non-nil only when
// every send failed.
func (s *FCMService) SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) ([]string, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	var stale []string
	successCount := 0
	failureCount := 0

	for _, token := range tokens {
		_, err := s.client.Send(ctx, buildMessage(token, title, body, data))
		if err != nil {
			if messaging.IsUnregistered(err) {
				stale = append(stale, token.Token)
			}
			log.Printf("FCM: Failed to send to token %s: %v", token.Token, err)
			failureCount++
		} else {
			successCount++
		}
	}

	log.Printf("FCM: Sent %d messages, %d failed", successCount, failureCount)

	if successCount == 0 && failureCount > 0 {
		return stale, fmt.Errorf("all push notifications failed")
	}
	return stale, nil
}
