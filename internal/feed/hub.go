package feed

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"friendZoneAPI/internal/metrics"
	"friendZoneAPI/internal/reconcile"
)

// Loader reads the current stored state for one owner.
type Loader interface {
	LoadSnapshot(ctx context.Context, ownerID string) (reconcile.Snapshot, error)
}

// SeqSource reports the latest change sequence number for an owner.
type SeqSource interface {
	Seq(ctx context.Context, ownerID string) (uint64, error)
}

// Sink receives every view the hub applies.
type Sink interface {
	Publish(ctx context.Context, view *reconcile.View) error
}

type Cache interface {
	Get(ctx context.Context, ownerID string) (*reconcile.View, bool, error)
	Put(ctx context.Context, view *reconcile.View) (bool, error)
}

type Option func(*Hub)

func WithCache(c Cache) Option {
	return func(h *Hub) { h.cache = c }
}

// WithSinks makes the hub recompute every owner it hears about, not just the
// ones it already holds, so sinks see all changes.
func WithSinks(sinks ...Sink) Option {
	return func(h *Hub) { h.sinks = append(h.sinks, sinks...) }
}

// WithWatchers delivers every applied view to live subscribers.
func WithWatchers(w *Watchers) Option {
	return func(h *Hub) { h.watchers = w }
}

func WithClock(now func() time.Time) Option {
	return func(h *Hub) { h.now = now }
}

type Hub struct {
	loader Loader
	seqs   SeqSource
	views  *reconcile.Service
	cache  Cache
	sinks  []Sink
	now    func() time.Time

	watchers *Watchers

	// loads serialises reloads per owner so a burst of changes is not
	// fetched from the store several times in parallel. lastUsed has an entry
	// for every owner in loads and every view held.
	mu       sync.Mutex
	loads    map[string]*sync.Mutex
	lastUsed map[string]time.Time
}

// invalidator is implemented by caches that can drop one owner's entry.
type invalidator interface {
	Invalidate(ctx context.Context, ownerID string) error
}

// ownerRemover is implemented by sinks that keep per-owner state.
type ownerRemover interface {
	RemoveOwner(ctx context.Context, ownerID string) error
}

func NewHub(loader Loader, seqs SeqSource, views *reconcile.Service, opts ...Option) *Hub {
	h := &Hub{
		loader: loader,
		seqs:   seqs,
		views:  views,
		now:    time.Now,
		loads:  make(map[string]*sync.Mutex),

		lastUsed: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) ownerLock(ownerID string) *sync.Mutex {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastUsed[ownerID] = h.now()
	l, ok := h.loads[ownerID]
	if !ok {
		l = &sync.Mutex{}
		h.loads[ownerID] = l
	}
	return l
}

func (h *Hub) touch(ownerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastUsed[ownerID] = h.now()
}

// HandleChange is the subscriber callback. Redelivered or out-of-order
// notifications are harmless: the view service keeps the newest sequence.
func (h *Hub) HandleChange(ctx context.Context, ownerID string, seq uint64) {
	current, held := h.views.Current(ownerID)
	if !held && len(h.sinks) == 0 && !h.watched(ownerID) {
		return
	}
	if held && current.Seq >= seq {
		metrics.FeedDeliveries.WithLabelValues("stale").Inc()
		return
	}
	if _, err := h.refresh(ctx, ownerID, seq); err != nil {
		log.Printf("Feed: failed to refresh %s at seq %d: %v", ownerID, seq, err)
	}
}

func (h *Hub) watched(ownerID string) bool {
	return h.watchers != nil && h.watchers.Count(ownerID) > 0
}

// View returns a view at least as new as the latest published change.
func (h *Hub) View(ctx context.Context, ownerID string) (*reconcile.View, error) {
	seq, err := h.seqs.Seq(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	if current, ok := h.views.Current(ownerID); ok && current.Seq >= seq {
		h.touch(ownerID)
		return current, nil
	}

	if h.cache != nil {
		cached, ok, err := h.cache.Get(ctx, ownerID)
		if err != nil {
			log.Printf("Feed: cache read failed for %s: %v", ownerID, err)
		} else if ok && cached.Seq >= seq {
			return cached, nil
		}
	}

	return h.refresh(ctx, ownerID, seq)
}

func (h *Hub) refresh(ctx context.Context, ownerID string, seq uint64) (*reconcile.View, error) {
	lock := h.ownerLock(ownerID)
	lock.Lock()
	defer lock.Unlock()

	// Another caller may have refreshed while we waited.
	if current, ok := h.views.Current(ownerID); ok && current.Seq >= seq {
		return current, nil
	}

	snap, err := h.loader.LoadSnapshot(ctx, ownerID)
	if err != nil {
		metrics.FeedDeliveries.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	snap.OwnerID = ownerID
	snap.Seq = seq

	view, applied := h.views.Apply(snap, h.now())
	h.touch(ownerID)
	if !applied {
		metrics.FeedDeliveries.WithLabelValues("stale").Inc()
		return view, nil
	}
	metrics.FeedDeliveries.WithLabelValues("applied").Inc()

	if n := len(view.Rejected); n > 0 {
		log.Printf("Feed: %d friend records of %s have no counterpart key", n, ownerID)
		metrics.RejectedRecords.Add(float64(n))
	}

	if h.cache != nil {
		if _, err := h.cache.Put(ctx, view); err != nil {
			log.Printf("Feed: cache write failed for %s: %v", ownerID, err)
		}
	}
	for _, sink := range h.sinks {
		if err := sink.Publish(ctx, view); err != nil {
			log.Printf("Feed: sink publish failed for %s: %v", ownerID, err)
		}
	}
	if h.watchers != nil {
		h.watchers.publish(view)
	}

	return view, nil
}

// EvictIdle drops the view and reload lock of every owner that has no
// watchers and has not been read or refreshed within idle. It returns the
// number of owners dropped.
func (h *Hub) EvictIdle(idle time.Duration) int {
	cutoff := h.now().Add(-idle)

	h.mu.Lock()
	var candidates []string
	for ownerID, last := range h.lastUsed {
		if last.Before(cutoff) {
			candidates = append(candidates, ownerID)
		}
	}
	h.mu.Unlock()

	evicted := 0
	for _, ownerID := range candidates {
		if h.watched(ownerID) {
			continue
		}
		if h.forget(ownerID, cutoff) {
			evicted++
		}
	}
	return evicted
}

// forget drops what the hub holds for ownerID. An owner used after cutoff or
// mid-reload is kept; the zero cutoff drops unconditionally.
func (h *Hub) forget(ownerID string, cutoff time.Time) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !cutoff.IsZero() {
		if last, ok := h.lastUsed[ownerID]; ok && !last.Before(cutoff) {
			return false
		}
		if l, ok := h.loads[ownerID]; ok {
			if !l.TryLock() {
				return false
			}
			defer l.Unlock()
		}
	}
	delete(h.loads, ownerID)
	delete(h.lastUsed, ownerID)
	h.views.Forget(ownerID)
	return true
}

// RunEviction evicts idle owners every half idle period until ctx is done.
func (h *Hub) RunEviction(ctx context.Context, idle time.Duration) {
	if idle <= 0 {
		return
	}
	ticker := time.NewTicker(idle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := h.EvictIdle(idle); n > 0 {
				log.Printf("Feed: evicted %d idle views", n)
			}
		}
	}
}

// Held reports how many owners the hub currently tracks.
func (h *Hub) Held() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.lastUsed)
}

// AccountDeleted drops every trace of a deleted user: the held view, the
// cached and mirrored copies, and any open streams.
func (h *Hub) AccountDeleted(ctx context.Context, userID string) {
	h.forget(userID, time.Time{})

	if inv, ok := h.cache.(invalidator); ok {
		if err := inv.Invalidate(ctx, userID); err != nil {
			log.Printf("Feed: cache invalidation failed for deleted user %s: %v", userID, err)
		}
	}
	for _, sink := range h.sinks {
		if r, ok := sink.(ownerRemover); ok {
			if err := r.RemoveOwner(ctx, userID); err != nil {
				log.Printf("Feed: sink cleanup failed for deleted user %s: %v", userID, err)
			}
		}
	}
	if h.watchers != nil {
		if n := h.watchers.closeOwner(userID); n > 0 {
			log.Printf("Feed: closed %d streams of deleted user %s", n, userID)
		}
	}
}
