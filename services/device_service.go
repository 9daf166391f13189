package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"friendZoneAPI/internal/types/notification"
)

type DeviceService struct {
	db *pgxpool.Pool
}

func NewDeviceService(db *pgxpool.Pool) *DeviceService {
	return &DeviceService{db: db}
}

// RegisterDevice binds a push token to userID. A token that moves to another
// account follows the latest registration.
func (s *DeviceService) RegisterDevice(ctx context.Context, userID string, req *notification.RegisterDeviceRequest) (*notification.DeviceToken, error) {
	if err := normalizeDeviceRequest(req); err != nil {
		return nil, err
	}

	dt := &notification.DeviceToken{}
	err := s.db.QueryRow(ctx, `
		INSERT INTO device_tokens (token, user_id, platform, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (token) DO UPDATE
		SET user_id = EXCLUDED.user_id, platform = EXCLUDED.platform
		RETURNING token, user_id, platform, created_at
	`, req.Token, userID, req.Platform).Scan(&dt.Token, &dt.UserID, &dt.Platform, &dt.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to register device: %w", err)
	}
	return dt, nil
}

func normalizeDeviceRequest(req *notification.RegisterDeviceRequest) error {
	req.Token = strings.TrimSpace(req.Token)
	req.Platform = strings.ToLower(strings.TrimSpace(req.Platform))
	return validateRequest(req)
}

func (s *DeviceService) UnregisterDevice(ctx context.Context, userID, token string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM device_tokens WHERE token = $1 AND user_id = $2`, token, userID)
	if err != nil {
		return fmt.Errorf("failed to unregister device: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *DeviceService) TokensForUser(ctx context.Context, userID string) ([]notification.DeviceToken, error) {
	rows, err := s.db.Query(ctx, `
		SELECT token, user_id, platform, created_at FROM device_tokens WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	defer rows.Close()

	var tokens []notification.DeviceToken
	for rows.Next() {
		var dt notification.DeviceToken
		if err := rows.Scan(&dt.Token, &dt.UserID, &dt.Platform, &dt.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		tokens = append(tokens, dt)
	}
	return tokens, rows.Err()
}

// RemoveTokens drops tokens the push provider reported as no longer valid.
func (s *DeviceService) RemoveTokens(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM device_tokens WHERE token = ANY($1)`, tokens); err != nil {
		return fmt.Errorf("failed to remove tokens: %w", err)
	}
	return nil
}
