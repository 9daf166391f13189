package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"friendZoneAPI/internal/reconcile"
	"friendZoneAPI/internal/types/notification"
)

// LocationReport is what a client sends after evaluating its geofences.
type LocationReport struct {
	ZoneIDs    []string  `json:"zoneIds"`
	ReportedAt time.Time `json:"reportedAt"`
}

type LocationResult struct {
	Entered  []string `json:"entered"`
	Left     []string `json:"left"`
	Watchers int      `json:"watchers"`
	// Ignored is true when a newer report had already been stored.
	Ignored bool `json:"ignored"`
}

type PresenceService struct {
	db       *pgxpool.Pool
	notifier ChangeNotifier
	pushes   PushQueue
}

func NewPresenceService(db *pgxpool.Pool, notifier ChangeNotifier, pushes PushQueue) *PresenceService {
	return &PresenceService{db: db, notifier: orNoop(notifier), pushes: pushes}
}

// watcher is an owner whose record for the reporting user has active zones.
type watcher struct {
	OwnerID string
	Active  []string
}

// ReportLocation stores the reporter's current zones, copies them onto every
// friend record that points at the reporter, and notifies owners watching a
// zone the reporter entered or left. Reports older than the stored one are
// ignored.
func (s *PresenceService) ReportLocation(ctx context.Context, userID string, report LocationReport) (*LocationResult, error) {
	zones := reconcile.SortedUnique(report.ZoneIDs)
	at := report.ReportedAt
	if at.IsZero() {
		at = time.Now()
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var previous []string
	var previousAt time.Time
	err = tx.QueryRow(ctx, `
		SELECT current_zone_ids, reported_at FROM user_locations WHERE user_id = $1 FOR UPDATE
	`, userID).Scan(&previous, &previousAt)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to get previous location: %w", err)
	}
	if err == nil && at.Before(previousAt) {
		return &LocationResult{Entered: []string{}, Left: []string{}, Ignored: true}, nil
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO user_locations (user_id, current_zone_ids, reported_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET current_zone_ids = EXCLUDED.current_zone_ids, reported_at = EXCLUDED.reported_at
	`, userID, zones, at); err != nil {
		return nil, fmt.Errorf("failed to store location: %w", err)
	}

	// Each owner only learns about zones the reporter shared with them.
	rows, err := tx.Query(ctx, `
		UPDATE friends
		SET current_zone_ids = ARRAY(
		        SELECT z FROM unnest($2::text[]) AS z WHERE z = ANY(shared_zone_ids) ORDER BY z
		    ),
		    is_currently_present = EXISTS(
		        SELECT 1 FROM unnest($2::text[]) AS z WHERE z = ANY(shared_zone_ids)
		    ),
		    last_seen_at = $3
		WHERE counterpart_user_id = $1
		RETURNING owner_id, active_zone_ids
	`, userID, zones, at)
	if err != nil {
		return nil, fmt.Errorf("failed to update friend presence: %w", err)
	}
	var watchers []watcher
	for rows.Next() {
		var w watcher
		if err := rows.Scan(&w.OwnerID, &w.Active); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan watcher: %w", err)
		}
		watchers = append(watchers, w)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read watchers: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	watchers = mergeWatchers(watchers)
	entered, left := reconcile.ZoneTransitions(previous, zones)
	result := &LocationResult{Entered: entered, Left: left, Watchers: len(watchers)}

	owners := make([]string, 0, len(watchers))
	for _, w := range watchers {
		owners = append(owners, w.OwnerID)
	}
	s.notifier.OwnersChanged(ctx, owners...)

	if len(entered) == 0 && len(left) == 0 {
		return result, nil
	}

	reporter, err := getUserByID(ctx, s.db, userID)
	if err != nil {
		log.Printf("ReportLocation: failed to load reporter %s: %v", userID, err)
		return result, nil
	}
	zoneList, err := getZonesByIDs(ctx, s.db, append(append([]string{}, entered...), left...))
	if err != nil {
		log.Printf("ReportLocation: failed to load zone names: %v", err)
	}
	names := make(map[string]string, len(zoneList))
	for _, z := range zoneList {
		names[z.ID] = z.Name
	}

	for _, p := range presencePushes(firstNonEmpty(reporter.DisplayName, "A friend"), userID, watchers, entered, left, names) {
		if s.pushes != nil && !s.pushes.Enqueue(p) {
			log.Printf("ReportLocation: dropped %s push for %s", p.Type, p.UserID)
		}
	}

	return result, nil
}

// OwnersSeenBetween lists the owners holding a friend record whose last
// report falls in (after, upTo].
func (s *PresenceService) OwnersSeenBetween(ctx context.Context, after, upTo time.Time) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT owner_id FROM friends
		WHERE last_seen_at > $1 AND last_seen_at <= $2
		ORDER BY owner_id
	`, after, upTo)
	if err != nil {
		return nil, fmt.Errorf("failed to query friends by last seen: %w", err)
	}
	owners, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan owners: %w", err)
	}
	return owners, nil
}

// mergeWatchers folds duplicate records of one owner into a single watcher
// whose active zones are the union, keeping first-seen owner order.
func mergeWatchers(watchers []watcher) []watcher {
	index := make(map[string]int, len(watchers))
	out := make([]watcher, 0, len(watchers))
	for _, w := range watchers {
		i, seen := index[w.OwnerID]
		if !seen {
			index[w.OwnerID] = len(out)
			out = append(out, watcher{OwnerID: w.OwnerID, Active: reconcile.SortedUnique(w.Active)})
			continue
		}
		out[i].Active = reconcile.UnionZones(out[i].Active, w.Active)
	}
	return out
}

// presencePushes builds one arrival or departure push per owner and zone,
// only for zones the owner has active for the reporter.
func presencePushes(reporterName, reporterID string, watchers []watcher, entered, left []string, zoneNames map[string]string) []notification.Push {
	var out []notification.Push
	for _, w := range mergeWatchers(watchers) {
		active := make(map[string]bool, len(w.Active))
		for _, z := range w.Active {
			active[z] = true
		}
		emit := func(zoneID string, typ notification.Type, verb string) {
			if !active[zoneID] || w.OwnerID == reporterID {
				return
			}
			name := zoneNames[zoneID]
			if name == "" {
				name = "a shared zone"
			}
			out = append(out, notification.Push{
				UserID: w.OwnerID,
				Type:   typ,
				Title:  name,
				Body:   fmt.Sprintf("%s %s %s", reporterName, verb, name),
				Data: map[string]any{
					"type":     string(typ),
					"zoneId":   zoneID,
					"friendId": reporterID,
				},
			})
		}
		for _, z := range entered {
			emit(z, notification.TypeArrival, "arrived at")
		}
		for _, z := range left {
			emit(z, notification.TypeDeparture, "left")
		}
	}
	return out
}
