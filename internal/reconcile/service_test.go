package reconcile

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"friendZoneAPI/internal/types/friend"
	"friendZoneAPI/internal/types/zone"
	"friendZoneAPI/internal/types/zonerequest"
)

func sampleSnapshot(seq uint64) Snapshot {
	bob := userFriend("f1", "user-b", "Bob", []string{"Z1", "Z2"}, []string{"Z1"})
	bob.IsCurrentlyPresent = true
	bob.CurrentZoneIDs = []string{"Z1"}
	bob.LastSeenAt = timePtr(baseTime.Add(-10 * time.Minute))

	return Snapshot{
		OwnerID:  "owner-1",
		Seq:      seq,
		Friends:  []*friend.Record{bob, phoneFriend("f2", "", nil, "Z1")},
		Incoming: []*zonerequest.Request{incoming("i1", "user-c", "Z7")},
		Outgoing: []*zonerequest.Request{outgoing("r1", "", "+15551234567", "Z1")},
		Zones:    []*zone.Zone{{ID: "Z1", Name: "Home"}, {ID: "Z2", Name: "Work"}},
	}
}

func TestCompute(t *testing.T) {
	view := Compute(sampleSnapshot(1), baseTime, DefaultPolicy())

	require.Len(t, view.Counterparts, 2)
	assert.Len(t, view.Rejected, 1)
	assert.Len(t, view.StandaloneIncoming, 1)
	assert.Equal(t, []string{"user-b"}, view.ZoneOccupants["Z1"])
	assert.Equal(t, []string{}, view.ZoneOccupants["Z2"])

	var bob *friend.MergedCounterpart
	for _, c := range view.Counterparts {
		if c.Key == "user-b" {
			bob = c
		}
	}
	require.NotNil(t, bob)
	require.Len(t, bob.Presence, 1)
	assert.Equal(t, friend.PresencePresent, bob.Presence[0].State)
}

func TestService_RedeliveryIsStable(t *testing.T) {
	svc := NewService(DefaultPolicy())

	first, applied := svc.Apply(sampleSnapshot(3), baseTime)
	require.True(t, applied)
	second, applied := svc.Apply(sampleSnapshot(3), baseTime)
	require.True(t, applied)

	assert.Equal(t, first, second)
}

func TestService_DropsOlderSnapshots(t *testing.T) {
	svc := NewService(DefaultPolicy())

	newer := sampleSnapshot(5)
	_, applied := svc.Apply(newer, baseTime)
	require.True(t, applied)

	older := sampleSnapshot(4)
	older.Friends = nil
	got, applied := svc.Apply(older, baseTime)

	assert.False(t, applied)
	assert.Equal(t, uint64(5), got.Seq)
	current, ok := svc.Current("owner-1")
	require.True(t, ok)
	assert.Len(t, current.Counterparts, 2)
}

func TestService_Forget(t *testing.T) {
	svc := NewService(DefaultPolicy())
	svc.Apply(sampleSnapshot(1), baseTime)

	svc.Forget("owner-1")

	_, ok := svc.Current("owner-1")
	assert.False(t, ok)
}

func TestService_ConcurrentApplyKeepsNewest(t *testing.T) {
	svc := NewService(DefaultPolicy())

	var wg sync.WaitGroup
	for seq := uint64(1); seq <= 50; seq++ {
		wg.Add(1)
		go func(seq uint64) {
			defer wg.Done()
			svc.Apply(sampleSnapshot(seq), baseTime)
		}(seq)
	}
	wg.Wait()

	current, ok := svc.Current("owner-1")
	require.True(t, ok)
	assert.Equal(t, uint64(50), current.Seq)
}
