package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"friendZoneAPI/internal/metrics"
	"friendZoneAPI/internal/reconcile"
	"friendZoneAPI/internal/types/friend"
)

type FriendService struct {
	db       *pgxpool.Pool
	notifier ChangeNotifier
}

func NewFriendService(db *pgxpool.Pool, notifier ChangeNotifier) *FriendService {
	return &FriendService{db: db, notifier: orNoop(notifier)}
}

const friendColumns = `id, owner_id, counterpart_user_id, phone_number, display_name,
	shared_zone_ids, active_zone_ids, is_currently_present, current_zone_ids, last_seen_at, created_at`

func scanFriend(row pgx.Row) (*friend.Record, error) {
	r := &friend.Record{}
	err := row.Scan(
		&r.ID,
		&r.OwnerID,
		&r.CounterpartUserID,
		&r.PhoneNumber,
		&r.DisplayName,
		&r.SharedZoneIDs,
		&r.ActiveZoneIDs,
		&r.IsCurrentlyPresent,
		&r.CurrentZoneIDs,
		&r.LastSeenAt,
		&r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func listFriendRecords(ctx context.Context, q querier, ownerID string) ([]*friend.Record, error) {
	rows, err := q.Query(ctx, `
		SELECT `+friendColumns+` FROM friends
		WHERE owner_id = $1
		ORDER BY created_at, id
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list friends: %w", err)
	}
	defer rows.Close()

	records := []*friend.Record{}
	for rows.Next() {
		r, err := scanFriend(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan friend: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// ListRecords returns the raw, unconsolidated records owned by ownerID.
func (s *FriendService) ListRecords(ctx context.Context, ownerID string) ([]*friend.Record, error) {
	return listFriendRecords(ctx, s.db, ownerID)
}

// recordsForKey returns the raw records of ownerID whose counterpart key is key.
func recordsForKey(ctx context.Context, q querier, ownerID, key string) ([]*friend.Record, error) {
	all, err := listFriendRecords(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	var matched []*friend.Record
	for _, r := range all {
		if k, ok := reconcile.RecordKey(r); ok && k == key {
			matched = append(matched, r)
		}
	}
	return matched, nil
}

// Consolidated returns the single merged record ownerID holds for key.
func (s *FriendService) Consolidated(ctx context.Context, ownerID, key string) (*friend.Record, error) {
	matched, err := recordsForKey(ctx, s.db, ownerID, key)
	if err != nil {
		return nil, err
	}
	res := reconcile.Consolidate(matched)
	if len(res.Records) == 0 {
		return nil, ErrNotFound
	}
	return res.Records[0], nil
}

// SetActiveZones overwrites the active zones of every record ownerID holds
// for key. Each record keeps only the zones it was granted.
func (s *FriendService) SetActiveZones(ctx context.Context, ownerID, key string, zoneIDs []string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT 1 FROM friends WHERE owner_id = $1 FOR UPDATE`, ownerID); err != nil {
		return fmt.Errorf("failed to lock friends: %w", err)
	}

	matched, err := recordsForKey(ctx, tx, ownerID, key)
	if err != nil {
		return err
	}
	if len(matched) == 0 {
		return ErrNotFound
	}

	// Permissions are the union across duplicates.
	merged := reconcile.Consolidate(matched).Records[0]
	active := reconcile.IntersectZones(zoneIDs, merged.SharedZoneIDs)
	if dropped := reconcile.SubtractZones(zoneIDs, merged.SharedZoneIDs); len(dropped) > 0 {
		log.Printf("SetActiveZones: dropping ungranted zones %v for %s/%s", dropped, ownerID, key)
		metrics.IntegrityWarnings.WithLabelValues(string(reconcile.WarningActiveWithoutPermission)).Add(float64(len(dropped)))
	}

	batch := &pgx.Batch{}
	for id, zones := range activeByRecord(matched, active) {
		batch.Queue(`UPDATE friends SET active_zone_ids = $2 WHERE id = $1`, id, zones)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to update active zones: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.notifier.OwnersChanged(ctx, ownerID)
	return nil
}

// activeByRecord clips the selection to each record's own grant so every
// stored row keeps active_zone_ids within its shared_zone_ids.
func activeByRecord(records []*friend.Record, active []string) map[string][]string {
	out := make(map[string][]string, len(records))
	for _, r := range records {
		out[r.ID] = reconcile.IntersectZones(active, r.SharedZoneIDs)
	}
	return out
}

// RemoveFriend deletes every record between ownerID and key in both
// directions and cancels pending requests between them.
func (s *FriendService) RemoveFriend(ctx context.Context, ownerID, key string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	matched, err := recordsForKey(ctx, tx, ownerID, key)
	if err != nil {
		return err
	}
	if len(matched) == 0 {
		return ErrNotFound
	}

	ids := make([]string, 0, len(matched))
	var counterpartID string
	for _, r := range matched {
		ids = append(ids, r.ID)
		if r.CounterpartUserID != nil && *r.CounterpartUserID != "" {
			counterpartID = *r.CounterpartUserID
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM friends WHERE id = ANY($1)`, ids); err != nil {
		return fmt.Errorf("failed to delete friend: %w", err)
	}

	changed := []string{ownerID}
	if counterpartID != "" {
		if _, err := tx.Exec(ctx, `
			DELETE FROM friends WHERE owner_id = $1 AND counterpart_user_id = $2
		`, counterpartID, ownerID); err != nil {
			return fmt.Errorf("failed to delete reverse friend: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			UPDATE zone_requests SET status = 'cancelled', updated_at = NOW()
			WHERE status = 'pending'
			  AND ((from_user_id = $1 AND to_user_id = $2) OR (from_user_id = $2 AND to_user_id = $1))
		`, ownerID, counterpartID); err != nil {
			return fmt.Errorf("failed to cancel requests: %w", err)
		}
		changed = append(changed, counterpartID)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Printf("RemoveFriend: %s removed %s (%d records)", ownerID, key, len(ids))
	s.notifier.OwnersChanged(ctx, changed...)
	return nil
}

// grant describes zones one owner now shares with a counterpart.
type grant struct {
	OwnerID           string
	CounterpartUserID string
	PhoneNumber       string
	DisplayName       string
	ZoneIDs           []string
}

// upsertGrant adds g.ZoneIDs to both the permissions and the active set of
// the oldest record for the counterpart, creating one if none exists.
func upsertGrant(ctx context.Context, q querier, g grant) error {
	var id string
	err := q.QueryRow(ctx, `
		SELECT id FROM friends
		WHERE owner_id = $1 AND (counterpart_user_id = $2 OR (counterpart_user_id IS NULL AND phone_number = $3 AND $3 <> ''))
		ORDER BY created_at, id
		LIMIT 1
		FOR UPDATE
	`, g.OwnerID, g.CounterpartUserID, g.PhoneNumber).Scan(&id)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		_, err = q.Exec(ctx, `
			INSERT INTO friends (id, owner_id, counterpart_user_id, phone_number, display_name,
				shared_zone_ids, active_zone_ids, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $6, $7)
		`, uuid.New().String(), g.OwnerID, g.CounterpartUserID, g.PhoneNumber, g.DisplayName,
			nonNil(reconcile.SortedUnique(g.ZoneIDs)), time.Now())
		if err != nil {
			return fmt.Errorf("failed to insert friend: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("failed to find friend: %w", err)
	}

	_, err = q.Exec(ctx, `
		UPDATE friends
		SET counterpart_user_id = $2,
		    display_name = CASE WHEN display_name = '' THEN $3 ELSE display_name END,
		    shared_zone_ids = ARRAY(SELECT DISTINCT z FROM unnest(shared_zone_ids || $4::text[]) AS z ORDER BY z),
		    active_zone_ids = ARRAY(SELECT DISTINCT z FROM unnest(active_zone_ids || $4::text[]) AS z ORDER BY z)
		WHERE id = $1
	`, id, g.CounterpartUserID, g.DisplayName, nonNil(g.ZoneIDs))
	if err != nil {
		return fmt.Errorf("failed to extend friend grant: %w", err)
	}
	return nil
}
