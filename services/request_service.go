package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"friendZoneAPI/internal/reconcile"
	"friendZoneAPI/internal/types/notification"
	"friendZoneAPI/internal/types/zonerequest"
)

type RequestService struct {
	db       *pgxpool.Pool
	notifier ChangeNotifier
	pushes   PushQueue
}

func NewRequestService(db *pgxpool.Pool, notifier ChangeNotifier, pushes PushQueue) *RequestService {
	return &RequestService{db: db, notifier: orNoop(notifier), pushes: pushes}
}

const requestColumns = `r.id, r.from_user_id, u.display_name, u.phone_number, r.to_user_id, r.to_phone_number,
	r.to_display_name, r.requested_zone_ids, r.status, r.created_at, r.updated_at`

const requestFrom = ` FROM zone_requests r JOIN users u ON u.id = r.from_user_id `

func scanRequest(row pgx.Row) (*zonerequest.Request, error) {
	req := &zonerequest.Request{}
	err := row.Scan(
		&req.ID,
		&req.FromUserID,
		&req.FromDisplayName,
		&req.FromPhoneNumber,
		&req.ToUserID,
		&req.ToPhoneNumber,
		&req.ToDisplayName,
		&req.RequestedZoneIDs,
		&req.Status,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return req, nil
}

func collectRequests(rows pgx.Rows) ([]*zonerequest.Request, error) {
	defer rows.Close()
	out := []*zonerequest.Request{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func getRequest(ctx context.Context, q querier, id string, forUpdate bool) (*zonerequest.Request, error) {
	query := `SELECT ` + requestColumns + requestFrom + `WHERE r.id = $1`
	if forUpdate {
		query += ` FOR UPDATE OF r`
	}
	req, err := scanRequest(q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return req, nil
}

func (s *RequestService) GetRequest(ctx context.Context, id string) (*zonerequest.Request, error) {
	return getRequest(ctx, s.db, id, false)
}

// CheckZonesOwned returns ErrForbidden when any of zoneIDs is not one of ownerID's zones.
func (s *RequestService) CheckZonesOwned(ctx context.Context, ownerID string, zoneIDs []string) error {
	owned, err := ownedZoneIDs(ctx, s.db, ownerID, zoneIDs)
	if err != nil {
		return err
	}
	if missing := reconcile.SubtractZones(zoneIDs, owned); len(missing) > 0 {
		return fmt.Errorf("%w: zones %v are not yours to share", ErrForbidden, missing)
	}
	return nil
}

// CreateZoneRequest invites a counterpart, addressed by user id or phone, to
// see some of the sender's zones. A phone that belongs to a registered user is
// resolved to that user.
func (s *RequestService) CreateZoneRequest(ctx context.Context, fromUserID string, in zonerequest.CreateRequest) (*zonerequest.Request, error) {
	zones := in.RequestedZones()
	if len(zones) == 0 {
		return nil, fmt.Errorf("%w: at least one zone is required", ErrInvalidRequest)
	}

	toUserID := strings.TrimSpace(in.ToUserID)
	phone := reconcile.NormalizePhone(in.ToPhoneNumber)
	if toUserID == "" && phone == "" {
		return nil, fmt.Errorf("%w: a recipient user id or phone number is required", ErrInvalidRequest)
	}

	if err := s.CheckZonesOwned(ctx, fromUserID, zones); err != nil {
		return nil, err
	}

	if toUserID == "" {
		if u, err := getUserByPhone(ctx, s.db, phone); err == nil {
			toUserID = u.ID
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	} else if _, err := getUserByID(ctx, s.db, toUserID); err != nil {
		return nil, err
	}
	if toUserID == fromUserID {
		return nil, ErrSelfRequest
	}

	var to *string
	if toUserID != "" {
		to = &toUserID
	}

	now := time.Now()
	id := uuid.New().String()
	_, err = s.db.Exec(ctx, `
		INSERT INTO zone_requests (id, from_user_id, to_user_id, to_phone_number, to_display_name,
			requested_zone_ids, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending', $7, $7)
	`, id, fromUserID, to, phone, strings.TrimSpace(in.ToDisplayName), zones, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req, err := s.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}

	log.Printf("CreateZoneRequest: %s invited %s to %d zones", fromUserID, firstNonEmpty(toUserID, phone), len(zones))

	changed := []string{fromUserID}
	if to != nil {
		changed = append(changed, *to)
		s.enqueue(notification.Push{
			UserID: *to,
			Type:   notification.TypeZoneInvite,
			Title:  "New zone invite",
			Body:   fmt.Sprintf("%s wants to share %s with you", firstNonEmpty(req.FromDisplayName, "A friend"), zoneCount(len(zones))),
			Data:   map[string]any{"requestId": req.ID, "type": string(notification.TypeZoneInvite)},
		})
	}
	s.notifier.OwnersChanged(ctx, changed...)

	return req, nil
}

// ListIncoming returns pending requests addressed to userID, including ones
// sent to the user's phone before the account was linked.
func (s *RequestService) ListIncoming(ctx context.Context, userID string) ([]*zonerequest.Request, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+requestColumns+requestFrom+`
		WHERE r.status = 'pending'
		  AND (r.to_user_id = $1
		       OR (r.to_user_id IS NULL AND r.to_phone_number <> ''
		           AND r.to_phone_number = (SELECT phone_number FROM users WHERE id = $1)))
		ORDER BY r.created_at, r.id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list incoming requests: %w", err)
	}
	return collectRequests(rows)
}

// ListOutgoing returns pending requests userID sent.
func (s *RequestService) ListOutgoing(ctx context.Context, userID string) ([]*zonerequest.Request, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+requestColumns+requestFrom+`
		WHERE r.from_user_id = $1 AND r.status = 'pending'
		ORDER BY r.created_at, r.id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list outgoing requests: %w", err)
	}
	return collectRequests(rows)
}

func addressedTo(ctx context.Context, q querier, req *zonerequest.Request, userID string) (bool, error) {
	if req.ToUserID != nil {
		return *req.ToUserID == userID, nil
	}
	u, err := getUserByID(ctx, q, userID)
	if err != nil {
		return false, err
	}
	return u.PhoneNumber != "" && u.PhoneNumber == req.ToPhoneNumber, nil
}

// AcceptZoneRequest grants the sender's zones to the recipient. zoneIDs may
// narrow the grant; empty accepts every requested zone. The sender gets a
// friend record for the recipient with the zones shared and active, and the
// recipient gets a record for the sender if they had none.
func (s *RequestService) AcceptZoneRequest(ctx context.Context, requestID, userID string, zoneIDs []string) (*zonerequest.Request, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	req, err := getRequest(ctx, tx, requestID, true)
	if err != nil {
		return nil, err
	}
	ok, err := addressedTo(ctx, tx, req, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}
	if req.Status != zonerequest.StatusPending {
		return nil, ErrRequestNotPending
	}

	accepted := reconcile.SortedUnique(req.RequestedZoneIDs)
	if len(zoneIDs) > 0 {
		accepted = reconcile.IntersectZones(accepted, zoneIDs)
	}
	if len(accepted) == 0 {
		return nil, fmt.Errorf("%w: none of the requested zones were accepted", ErrInvalidRequest)
	}

	acceptor, err := getUserByID(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE zone_requests
		SET status = 'accepted', to_user_id = $2, requested_zone_ids = $3, updated_at = NOW()
		WHERE id = $1
	`, req.ID, userID, accepted); err != nil {
		return nil, fmt.Errorf("failed to accept request: %w", err)
	}

	if err := upsertGrant(ctx, tx, grant{
		OwnerID:           req.FromUserID,
		CounterpartUserID: userID,
		PhoneNumber:       firstNonEmpty(acceptor.PhoneNumber, req.ToPhoneNumber),
		DisplayName:       firstNonEmpty(req.ToDisplayName, acceptor.DisplayName),
		ZoneIDs:           accepted,
	}); err != nil {
		return nil, err
	}
	if err := upsertGrant(ctx, tx, grant{
		OwnerID:           userID,
		CounterpartUserID: req.FromUserID,
		PhoneNumber:       req.FromPhoneNumber,
		DisplayName:       req.FromDisplayName,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Printf("AcceptZoneRequest: %s accepted %d zones from %s", userID, len(accepted), req.FromUserID)

	s.enqueue(notification.Push{
		UserID: req.FromUserID,
		Type:   notification.TypeInviteAccepted,
		Title:  "Invite accepted",
		Body:   fmt.Sprintf("%s can now see %s", firstNonEmpty(acceptor.DisplayName, "Your friend"), zoneCount(len(accepted))),
		Data:   map[string]any{"requestId": req.ID, "type": string(notification.TypeInviteAccepted)},
	})
	s.notifier.OwnersChanged(ctx, req.FromUserID, userID)

	return s.GetRequest(ctx, req.ID)
}

// RejectZoneRequest is available to the recipient only.
func (s *RequestService) RejectZoneRequest(ctx context.Context, requestID, userID string) (*zonerequest.Request, error) {
	return s.finish(ctx, requestID, userID, zonerequest.StatusRejected)
}

// CancelZoneRequest is available to the sender only.
func (s *RequestService) CancelZoneRequest(ctx context.Context, requestID, userID string) (*zonerequest.Request, error) {
	return s.finish(ctx, requestID, userID, zonerequest.StatusCancelled)
}

func (s *RequestService) finish(ctx context.Context, requestID, userID string, status zonerequest.Status) (*zonerequest.Request, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	req, err := getRequest(ctx, tx, requestID, true)
	if err != nil {
		return nil, err
	}

	var allowed bool
	if status == zonerequest.StatusCancelled {
		allowed = req.FromUserID == userID
	} else {
		allowed, err = addressedTo(ctx, tx, req, userID)
		if err != nil {
			return nil, err
		}
	}
	if !allowed {
		return nil, ErrForbidden
	}
	if req.Status != zonerequest.StatusPending {
		return nil, ErrRequestNotPending
	}

	if _, err := tx.Exec(ctx, `
		UPDATE zone_requests SET status = $2, updated_at = NOW() WHERE id = $1
	`, req.ID, string(status)); err != nil {
		return nil, fmt.Errorf("failed to update request: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	changed := []string{req.FromUserID}
	if req.ToUserID != nil {
		changed = append(changed, *req.ToUserID)
	} else if status == zonerequest.StatusRejected {
		changed = append(changed, userID)
	}
	s.notifier.OwnersChanged(ctx, changed...)

	req.Status = status
	return req, nil
}

func (s *RequestService) enqueue(push notification.Push) {
	if s.pushes == nil {
		return
	}
	if !s.pushes.Enqueue(push) {
		log.Printf("RequestService: dropped %s push for %s", push.Type, push.UserID)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func zoneCount(n int) string {
	if n == 1 {
		return "1 zone"
	}
	return fmt.Sprintf("%d zones", n)
}
