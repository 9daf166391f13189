package feed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"friendZoneAPI/internal/reconcile"
)

func TestWatchers_LatestViewWins(t *testing.T) {
	w := NewWatchers()
	ch, stop := w.Watch("owner-1")
	defer stop()

	w.publish(&reconcile.View{OwnerID: "owner-1", Seq: 1})
	w.publish(&reconcile.View{OwnerID: "owner-1", Seq: 2})
	w.publish(&reconcile.View{OwnerID: "owner-2", Seq: 9})

	got := <-ch
	assert.Equal(t, uint64(2), got.Seq)
	select {
	case extra := <-ch:
		t.Fatalf("unexpected view %d", extra.Seq)
	default:
	}
}

func TestWatchers_StopClosesAndForgets(t *testing.T) {
	w := NewWatchers()
	ch, stop := w.Watch("owner-1")
	assert.Equal(t, 1, w.Count("owner-1"))

	stop()
	stop()

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, w.Count("owner-1"))

	w.publish(&reconcile.View{OwnerID: "owner-1", Seq: 3})
}

func TestHub_DeliversToWatchers(t *testing.T) {
	loader := &fakeLoader{names: []string{"Ann"}}
	seqs := &staticSeq{seq: 1}
	watchers := NewWatchers()
	hub := newTestHub(loader, seqs, WithWatchers(watchers))

	ch, stop := watchers.Watch("owner-1")
	defer stop()

	_, err := hub.View(context.Background(), "owner-1")
	require.NoError(t, err)
	first := <-ch
	assert.Equal(t, uint64(1), first.Seq)

	loader.setNames("Ann", "Bob")
	hub.HandleChange(context.Background(), "owner-1", 2)

	second := <-ch
	assert.Equal(t, uint64(2), second.Seq)
	assert.Len(t, second.Counterparts, 2)

	// A redelivery of an older change produces nothing.
	hub.HandleChange(context.Background(), "owner-1", 2)
	select {
	case v := <-ch:
		t.Fatalf("unexpected view %d", v.Seq)
	default:
	}
}

func TestHub_RefreshesUnheldOwnersWithWatchers(t *testing.T) {
	loader := &fakeLoader{names: []string{"Ann"}}
	watchers := NewWatchers()
	hub := newTestHub(loader, &staticSeq{seq: 0}, WithWatchers(watchers))

	ch, stop := watchers.Watch("owner-2")
	defer stop()

	hub.HandleChange(context.Background(), "owner-2", 4)

	view := <-ch
	assert.Equal(t, uint64(4), view.Seq)
	assert.Equal(t, "owner-2", view.OwnerID)
}

func TestWatchers_CloseOwnerEndsEverySubscription(t *testing.T) {
	w := NewWatchers()
	first, stopFirst := w.Watch("owner-1")
	second, stopSecond := w.Watch("owner-1")
	other, stopOther := w.Watch("owner-2")
	defer stopOther()

	assert.Equal(t, 2, w.closeOwner("owner-1"))
	stopFirst()
	stopSecond()

	_, open := <-first
	assert.False(t, open)
	_, open = <-second
	assert.False(t, open)
	assert.Equal(t, 1, w.Count("owner-2"))

	w.publish(&reconcile.View{OwnerID: "owner-2", Seq: 1})
	got := <-other
	assert.Equal(t, uint64(1), got.Seq)
}
