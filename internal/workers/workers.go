// Package workers holds the server's background jobs.
package workers

import (
	"context"
	"fmt"
	"log"
	"time"

	"friendZoneAPI/internal/reconcile"
	"friendZoneAPI/services"
)

// SeenIndex finds owners by when their friends were last seen.
type SeenIndex interface {
	OwnersSeenBetween(ctx context.Context, after, upTo time.Time) ([]string, error)
}

// PresenceSweeper republishes owners whose friends crossed the fresh or the
// unusable threshold since the previous sweep. Views are classified when they
// are computed, so without a change notification a cached view would keep
// showing a friend as fresh or present indefinitely.
type PresenceSweeper struct {
	seen     SeenIndex
	notifier services.ChangeNotifier
	policy   reconcile.Policy
	interval time.Duration
	now      func() time.Time

	last time.Time
}

func NewPresenceSweeper(seen SeenIndex, notifier services.ChangeNotifier, policy reconcile.Policy, interval time.Duration) *PresenceSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &PresenceSweeper{
		seen:     seen,
		notifier: notifier,
		policy:   policy,
		interval: interval,
		now:      time.Now,
	}
}

// Start sweeps every interval until ctx is done.
func (s *PresenceSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.Sweep(ctx); err != nil {
					log.Printf("PresenceSweeper: %v", err)
				}
			}
		}
	}()
}

// Sweep notifies every owner with a friend whose report age passed a
// threshold between the previous sweep and now. It returns how many owners
// were notified. The first sweep looks back one interval.
func (s *PresenceSweeper) Sweep(ctx context.Context) (int, error) {
	now := s.now()
	since := s.last
	if since.IsZero() {
		since = now.Add(-s.interval)
	}

	var owners []string
	for _, threshold := range []time.Duration{s.policy.Fresh, s.policy.Unusable} {
		found, err := s.seen.OwnersSeenBetween(ctx, since.Add(-threshold), now.Add(-threshold))
		if err != nil {
			return 0, fmt.Errorf("failed to find owners crossing %s: %w", threshold, err)
		}
		owners = append(owners, found...)
	}
	s.last = now

	owners = reconcile.SortedUnique(owners)
	if len(owners) == 0 {
		return 0, nil
	}
	s.notifier.OwnersChanged(ctx, owners...)
	log.Printf("PresenceSweeper: republished %d owners", len(owners))
	return len(owners), nil
}
