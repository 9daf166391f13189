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
	"friendZoneAPI/internal/types/zone"
)

type ZoneService struct {
	db       *pgxpool.Pool
	notifier ChangeNotifier
}

func NewZoneService(db *pgxpool.Pool, notifier ChangeNotifier) *ZoneService {
	return &ZoneService{db: db, notifier: orNoop(notifier)}
}

const zoneColumns = `id, name, latitude, longitude, radius_meters, owner_id, member_ids, created_at`

func scanZone(row pgx.Row) (*zone.Zone, error) {
	z := &zone.Zone{}
	err := row.Scan(&z.ID, &z.Name, &z.Latitude, &z.Longitude, &z.RadiusMeters, &z.OwnerID, &z.MemberIDs, &z.CreatedAt)
	if err != nil {
		return nil, err
	}
	return z, nil
}

func collectZones(rows pgx.Rows) ([]*zone.Zone, error) {
	defer rows.Close()
	zones := []*zone.Zone{}
	for rows.Next() {
		z, err := scanZone(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan zone: %w", err)
		}
		zones = append(zones, z)
	}
	return zones, rows.Err()
}

// ValidateZone trims the name and checks a create request before it reaches
// the database.
func ValidateZone(req *zone.CreateZoneRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	return validateRequest(req)
}

func (s *ZoneService) CreateZone(ctx context.Context, ownerID string, req *zone.CreateZoneRequest) (*zone.Zone, error) {
	if err := ValidateZone(req); err != nil {
		return nil, err
	}

	query := `
	INSERT INTO zones (id, owner_id, name, latitude, longitude, radius_meters, member_ids, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, ARRAY[$2]::text[], $7)
	RETURNING ` + zoneColumns

	z, err := scanZone(s.db.QueryRow(ctx, query,
		uuid.New().String(),
		ownerID,
		req.Name,
		req.Latitude,
		req.Longitude,
		req.RadiusMeters,
		time.Now(),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create zone: %w", err)
	}

	s.notifier.OwnersChanged(ctx, ownerID)
	return z, nil
}

// ListZones returns the zones a user owns or is a member of.
func (s *ZoneService) ListZones(ctx context.Context, userID string) ([]*zone.Zone, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+zoneColumns+` FROM zones
		WHERE owner_id = $1 OR $1 = ANY(member_ids)
		ORDER BY name, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list zones: %w", err)
	}
	return collectZones(rows)
}

func (s *ZoneService) GetZonesByIDs(ctx context.Context, ids []string) ([]*zone.Zone, error) {
	return getZonesByIDs(ctx, s.db, ids)
}

func getZonesByIDs(ctx context.Context, q querier, ids []string) ([]*zone.Zone, error) {
	ids = reconcile.SortedUnique(ids)
	if len(ids) == 0 {
		return []*zone.Zone{}, nil
	}
	rows, err := q.Query(ctx, `SELECT `+zoneColumns+` FROM zones WHERE id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get zones: %w", err)
	}
	return collectZones(rows)
}

// ownedZoneIDs returns the subset of ids owned by ownerID.
func ownedZoneIDs(ctx context.Context, q querier, ownerID string, ids []string) ([]string, error) {
	rows, err := q.Query(ctx, `SELECT id FROM zones WHERE owner_id = $1 AND id = ANY($2)`, ownerID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to check zone ownership: %w", err)
	}
	owned, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to read zone ownership: %w", err)
	}
	return owned, nil
}

// DeleteZone removes a zone and strips it from every grant and pending
// request that mentions it.
func (s *ZoneService) DeleteZone(ctx context.Context, ownerID, zoneID string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var owner string
	err = tx.QueryRow(ctx, `SELECT owner_id FROM zones WHERE id = $1 FOR UPDATE`, zoneID).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get zone: %w", err)
	}
	if owner != ownerID {
		return ErrForbidden
	}

	if _, err := tx.Exec(ctx, `
		UPDATE friends
		SET shared_zone_ids = array_remove(shared_zone_ids, $2),
		    active_zone_ids = array_remove(active_zone_ids, $2)
		WHERE owner_id = $1
	`, ownerID, zoneID); err != nil {
		return fmt.Errorf("failed to strip zone from friends: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE zone_requests
		SET requested_zone_ids = array_remove(requested_zone_ids, $2), updated_at = NOW()
		WHERE from_user_id = $1 AND status = 'pending' AND $2 = ANY(requested_zone_ids)
	`, ownerID, zoneID); err != nil {
		return fmt.Errorf("failed to strip zone from requests: %w", err)
	}

	rows, err := tx.Query(ctx, `
		UPDATE zone_requests
		SET status = 'cancelled', updated_at = NOW()
		WHERE from_user_id = $1 AND status = 'pending' AND cardinality(requested_zone_ids) = 0
		RETURNING to_user_id
	`, ownerID)
	if err != nil {
		return fmt.Errorf("failed to cancel emptied requests: %w", err)
	}
	invitees, err := pgx.CollectRows(rows, pgx.RowTo[*string])
	if err != nil {
		return fmt.Errorf("failed to read cancelled requests: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM zones WHERE id = $1`, zoneID); err != nil {
		return fmt.Errorf("failed to delete zone: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	changed := []string{ownerID}
	for _, id := range invitees {
		if id != nil {
			changed = append(changed, *id)
		}
	}
	log.Printf("DeleteZone: zone %s deleted by %s", zoneID, ownerID)
	s.notifier.OwnersChanged(ctx, reconcile.SortedUnique(changed)...)
	return nil
}
