package feed

import (
	"sync"

	"friendZoneAPI/internal/reconcile"
)

// Watchers fans applied views out to live subscribers of one owner. Each
// subscriber holds at most one undelivered view; a newer view replaces it.
type Watchers struct {
	mu     sync.Mutex
	byUser map[string]map[*watch]struct{}
}

type watch struct {
	ch chan *reconcile.View
}

func NewWatchers() *Watchers {
	return &Watchers{byUser: make(map[string]map[*watch]struct{})}
}

// Watch subscribes to views of ownerID. The returned func unsubscribes and
// closes the channel; it is safe to call more than once.
func (w *Watchers) Watch(ownerID string) (<-chan *reconcile.View, func()) {
	wt := &watch{ch: make(chan *reconcile.View, 1)}

	w.mu.Lock()
	set, ok := w.byUser[ownerID]
	if !ok {
		set = make(map[*watch]struct{})
		w.byUser[ownerID] = set
	}
	set[wt] = struct{}{}
	w.mu.Unlock()

	var once sync.Once
	return wt.ch, func() {
		once.Do(func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			// closeOwner may already have closed it.
			if _, ok := w.byUser[ownerID][wt]; !ok {
				return
			}
			delete(w.byUser[ownerID], wt)
			if len(w.byUser[ownerID]) == 0 {
				delete(w.byUser, ownerID)
			}
			close(wt.ch)
		})
	}
}

// Count reports how many subscribers ownerID has.
func (w *Watchers) Count(ownerID string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.byUser[ownerID])
}

// closeOwner ends every subscription of ownerID and returns how many there were.
func (w *Watchers) closeOwner(ownerID string) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	set := w.byUser[ownerID]
	for wt := range set {
		close(wt.ch)
	}
	delete(w.byUser, ownerID)
	return len(set)
}

func (w *Watchers) publish(view *reconcile.View) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for wt := range w.byUser[view.OwnerID] {
		select {
		case wt.ch <- view:
			continue
		default:
		}
		// Drop the stale pending view and deliver the newer one.
		select {
		case <-wt.ch:
		default:
		}
		wt.ch <- view
	}
}
