package reconcile

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"friendZoneAPI/internal/types/friend"
)

func TestConsolidate_DuplicatePhoneRecords(t *testing.T) {
	t1 := baseTime.Add(-2 * time.Hour)
	t2 := baseTime.Add(-10 * time.Minute)

	older := phoneFriend("a", "+1 (555) 123-4567", timePtr(t1), "Z1")
	newer := phoneFriend("b", "15551234567", timePtr(t2), "Z2")
	newer.IsCurrentlyPresent = true
	newer.CurrentZoneIDs = []string{"Z2"}

	res := Consolidate([]*friend.Record{older, newer})

	require.Len(t, res.Records, 1)
	assert.Empty(t, res.Rejected)

	got := res.Records[0]
	assert.Equal(t, []string{"Z1", "Z2"}, got.SharedZoneIDs)
	assert.True(t, got.IsCurrentlyPresent)
	assert.Equal(t, []string{"Z2"}, got.CurrentZoneIDs)
	require.NotNil(t, got.LastSeenAt)
	assert.True(t, got.LastSeenAt.Equal(t2))
	assert.Equal(t, "b", got.ID)
}

func TestConsolidate_Idempotent(t *testing.T) {
	input := []*friend.Record{
		phoneFriend("a", "+15551234567", timePtr(baseTime.Add(-time.Hour)), "Z1"),
		phoneFriend("b", "(555) 123-4567", nil, "Z3"),
		phoneFriend("c", "1-555-123-4567", timePtr(baseTime), "Z2", "Z1"),
		userFriend("d", "user-2", "Dana", []string{"Z4", "Z5"}, []string{"Z5"}),
		userFriend("e", "user-2", "", []string{"Z6"}, []string{"Z6", "Z9"}),
		phoneFriend("f", "", nil, "Z1"),
	}

	first := Consolidate(input)
	second := Consolidate(first.Records)

	assert.Equal(t, first.Records, second.Records)
	assert.Empty(t, second.Rejected)
	assert.Len(t, first.Rejected, 1)
}

func TestConsolidate_OrderIndependent(t *testing.T) {
	same := baseTime.Add(-5 * time.Minute)
	a := phoneFriend("a", "+15550001111", timePtr(same), "Z1")
	a.IsCurrentlyPresent = true
	a.CurrentZoneIDs = []string{"Z1"}
	b := phoneFriend("b", "15550001111", timePtr(same), "Z2")
	c := phoneFriend("c", "+1 555 000 1111", nil, "Z3")

	forward := Consolidate([]*friend.Record{a, b, c})
	backward := Consolidate([]*friend.Record{c, b, a})

	assert.Equal(t, forward.Records, backward.Records)
	require.Len(t, forward.Records, 1)
	// Equal timestamps fall back to the smaller record id.
	assert.Equal(t, "a", forward.Records[0].ID)
	assert.True(t, forward.Records[0].IsCurrentlyPresent)
}

func TestConsolidate_MissingTimestampIsOldest(t *testing.T) {
	unseen := phoneFriend("a", "+15550002222", nil, "Z1")
	unseen.IsCurrentlyPresent = true
	unseen.CurrentZoneIDs = []string{"Z1"}
	seen := phoneFriend("z", "+15550002222", timePtr(baseTime.Add(-time.Hour)), "Z1")

	res := Consolidate([]*friend.Record{unseen, seen})

	require.Len(t, res.Records, 1)
	assert.Equal(t, "z", res.Records[0].ID)
	assert.False(t, res.Records[0].IsCurrentlyPresent)
}

func TestConsolidate_UnionPerKey(t *testing.T) {
	input := []*friend.Record{
		userFriend("1", "user-a", "A", []string{"Z1"}, nil),
		userFriend("2", "user-b", "B", []string{"Z2"}, nil),
		userFriend("3", "user-a", "A", []string{"Z3", "Z1"}, nil),
		phoneFriend("4", "+15559990000", nil, "Z4"),
		phoneFriend("5", "15559990000", nil, "Z5", "Z4"),
	}

	res := Consolidate(input)

	want := map[string][]string{}
	for _, r := range input {
		key, _ := RecordKey(r)
		want[key] = append(want[key], r.SharedZoneIDs...)
	}

	require.Len(t, res.Records, len(want))
	for _, r := range res.Records {
		key, ok := RecordKey(r)
		require.True(t, ok)
		assert.Equal(t, SortedUnique(want[key]), r.SharedZoneIDs, "key %s", key)
	}
}

func TestConsolidate_ActiveClippedToPermissions(t *testing.T) {
	res := Consolidate([]*friend.Record{
		userFriend("1", "user-a", "A", []string{"Z1", "Z2"}, []string{"Z2", "Z7"}),
	})

	require.Len(t, res.Records, 1)
	assert.Equal(t, []string{"Z2"}, res.Records[0].ActiveZoneIDs)
}

func TestConsolidate_RejectsUnkeyedRecords(t *testing.T) {
	bad := &friend.Record{ID: "x", DisplayName: "Nobody", SharedZoneIDs: []string{"Z1"}}
	good := phoneFriend("y", "+15551230000", nil, "Z2")

	res := Consolidate([]*friend.Record{bad, nil, good})

	require.Len(t, res.Records, 1)
	assert.Equal(t, []string{"Z2"}, res.Records[0].SharedZoneIDs)
	require.Len(t, res.Rejected, 2)
	assert.Same(t, bad, res.Rejected[0].Record)
	assert.NotEmpty(t, res.Rejected[0].Reason)
}

func TestConsolidate_OutputSortedByKey(t *testing.T) {
	res := Consolidate([]*friend.Record{
		userFriend("1", "user-c", "C", nil, nil),
		userFriend("2", "user-a", "A", nil, nil),
		userFriend("3", "user-b", "B", nil, nil),
	})

	keys := make([]string, 0, len(res.Records))
	for _, r := range res.Records {
		k, _ := RecordKey(r)
		keys = append(keys, k)
	}
	assert.True(t, slices.IsSorted(keys))
}

func TestConsolidate_DoesNotMutateInput(t *testing.T) {
	r := phoneFriend("a", "+15551112222", nil, "Z2", "Z1", "Z2")
	_ = Consolidate([]*friend.Record{r})

	assert.Equal(t, []string{"Z2", "Z1", "Z2"}, r.SharedZoneIDs)
}
