package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"friendZoneAPI/internal/types/friend"
	"friendZoneAPI/internal/types/zonerequest"
)

type fakeFriendStore struct {
	record    *friend.Record
	getErr    error
	setErr    error
	setCalls  int
	setActive []string
}

func (f *fakeFriendStore) Consolidated(ctx context.Context, ownerID, key string) (*friend.Record, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.record, nil
}

func (f *fakeFriendStore) SetActiveZones(ctx context.Context, ownerID, key string, zoneIDs []string) error {
	f.setCalls++
	f.setActive = zoneIDs
	return f.setErr
}

type fakeRequestCreator struct {
	err     error
	ownErr  error
	checked []string
	sent    []zonerequest.CreateRequest
}

func (f *fakeRequestCreator) CheckZonesOwned(ctx context.Context, ownerID string, zoneIDs []string) error {
	f.checked = append(f.checked, zoneIDs...)
	return f.ownErr
}

func (f *fakeRequestCreator) CreateZoneRequest(ctx context.Context, fromUserID string, in zonerequest.CreateRequest) (*zonerequest.Request, error) {
	f.sent = append(f.sent, in)
	if f.err != nil {
		return nil, f.err
	}
	return &zonerequest.Request{ID: "req-1", FromUserID: fromUserID, RequestedZoneIDs: in.ZoneIDs, Status: zonerequest.StatusPending}, nil
}

func bob(shared, active []string) *friend.Record {
	id := "user-b"
	return &friend.Record{
		ID:                "f1",
		OwnerID:           "owner",
		CounterpartUserID: &id,
		PhoneNumber:       "+15550001111",
		DisplayName:       "Bob",
		SharedZoneIDs:     shared,
		ActiveZoneIDs:     active,
	}
}

func TestApplyZoneSelection_Reactivation(t *testing.T) {
	store := &fakeFriendStore{record: bob([]string{"Z1", "Z2"}, []string{"Z1"})}
	reqs := &fakeRequestCreator{}

	got, err := NewSharingService(store, reqs).ApplyZoneSelection(context.Background(), "owner", "user-b", []string{"Z1", "Z2"})

	require.NoError(t, err)
	assert.Equal(t, []string{"Z1", "Z2"}, store.setActive)
	assert.Empty(t, reqs.sent, "a reactivation never needs a request")
	assert.Equal(t, 1, got.Result.ImmediateChanges)
	assert.False(t, got.Result.Failed())
}

func TestApplyZoneSelection_MixedEdit(t *testing.T) {
	store := &fakeFriendStore{record: bob([]string{"Z1", "Z2"}, []string{"Z1", "Z2"})}
	reqs := &fakeRequestCreator{}

	got, err := NewSharingService(store, reqs).ApplyZoneSelection(context.Background(), "owner", "user-b", []string{"Z1", "Z3"})

	require.NoError(t, err)
	assert.Equal(t, []string{"Z1"}, store.setActive)
	require.Len(t, reqs.sent, 1)
	assert.Equal(t, []string{"Z3"}, reqs.sent[0].ZoneIDs)
	assert.Equal(t, "user-b", reqs.sent[0].ToUserID)
	assert.Equal(t, "req-1", got.Request.ID)
	assert.Equal(t, 1, got.Result.RequestsSent)
}

func TestApplyZoneSelection_PartialFailureKeepsImmediateHalf(t *testing.T) {
	store := &fakeFriendStore{record: bob([]string{"Z1", "Z2"}, []string{"Z1", "Z2"})}
	reqs := &fakeRequestCreator{err: errors.New("connection reset")}

	got, err := NewSharingService(store, reqs).ApplyZoneSelection(context.Background(), "owner", "user-b", []string{"Z1", "Z3"})

	require.NoError(t, err)
	assert.Equal(t, 1, store.setCalls)
	assert.Equal(t, 1, got.Result.ImmediateChanges)
	assert.Zero(t, got.Result.RequestsSent)
	assert.Contains(t, got.Result.RequestError, "connection reset")
	assert.True(t, got.Result.Partial())
}

func TestApplyZoneSelection_ImmediateFailureStillSendsRequest(t *testing.T) {
	store := &fakeFriendStore{record: bob([]string{"Z1"}, []string{"Z1"}), setErr: errors.New("timeout")}
	reqs := &fakeRequestCreator{}

	got, err := NewSharingService(store, reqs).ApplyZoneSelection(context.Background(), "owner", "user-b", []string{"Z2"})

	require.NoError(t, err)
	assert.NotEmpty(t, got.Result.ImmediateError)
	assert.Equal(t, 1, got.Result.RequestsSent)
	assert.True(t, got.Result.Partial())
}

func TestApplyZoneSelection_NoChangeWritesNothing(t *testing.T) {
	store := &fakeFriendStore{record: bob([]string{"Z1"}, []string{"Z1"})}
	reqs := &fakeRequestCreator{}

	got, err := NewSharingService(store, reqs).ApplyZoneSelection(context.Background(), "owner", "user-b", []string{"Z1"})

	require.NoError(t, err)
	assert.Zero(t, store.setCalls)
	assert.Empty(t, reqs.sent)
	assert.Equal(t, "noop", selectionOutcome(got.Result))
}

func TestApplyZoneSelection_HealsActiveWithoutPermission(t *testing.T) {
	store := &fakeFriendStore{record: bob([]string{"Z1"}, []string{"Z1", "Z5"})}

	got, err := NewSharingService(store, &fakeRequestCreator{}).ApplyZoneSelection(context.Background(), "owner", "user-b", []string{"Z1"})

	require.NoError(t, err)
	require.Len(t, got.Plan.Warnings, 1)
	assert.Equal(t, 1, store.setCalls)
	assert.Equal(t, []string{"Z1"}, store.setActive)
}

func TestApplyZoneSelection_UnknownFriend(t *testing.T) {
	store := &fakeFriendStore{getErr: ErrNotFound}

	_, err := NewSharingService(store, &fakeRequestCreator{}).ApplyZoneSelection(context.Background(), "owner", "nobody", []string{"Z1"})

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApplyZoneSelection_UnownedZoneIsForbiddenBeforeAnyWrite(t *testing.T) {
	store := &fakeFriendStore{record: bob([]string{"Z1", "Z2"}, []string{"Z1", "Z2"})}
	reqs := &fakeRequestCreator{ownErr: fmt.Errorf("%w: zones [Z9] are not yours to share", ErrForbidden)}

	got, err := NewSharingService(store, reqs).ApplyZoneSelection(context.Background(), "owner", "user-b", []string{"Z1", "Z9"})

	assert.ErrorIs(t, err, ErrForbidden)
	assert.Nil(t, got)
	assert.Equal(t, []string{"Z9"}, reqs.checked)
	assert.Zero(t, store.setCalls, "the deactivation of Z2 must not be applied")
	assert.Empty(t, reqs.sent)
}

func TestApplyZoneSelection_ReactivationSkipsOwnershipCheck(t *testing.T) {
	store := &fakeFriendStore{record: bob([]string{"Z1", "Z2"}, []string{"Z1"})}
	reqs := &fakeRequestCreator{ownErr: ErrForbidden}

	_, err := NewSharingService(store, reqs).ApplyZoneSelection(context.Background(), "owner", "user-b", []string{"Z1", "Z2"})

	require.NoError(t, err)
	assert.Empty(t, reqs.checked)
	assert.Equal(t, 1, store.setCalls)
}

func TestPlanZoneSelection_WritesNothing(t *testing.T) {
	store := &fakeFriendStore{record: bob([]string{"Z1", "Z2"}, []string{"Z1"})}
	reqs := &fakeRequestCreator{}

	plan, err := NewSharingService(store, reqs).PlanZoneSelection(context.Background(), "owner", "user-b", []string{"Z2", "Z3"})

	require.NoError(t, err)
	assert.Equal(t, []string{"Z3"}, plan.TrulyNew)
	assert.Equal(t, []string{"Z1"}, plan.Deactivate)
	assert.Equal(t, []string{"Z2"}, plan.Reactivate)
	assert.Zero(t, store.setCalls)
	assert.Empty(t, reqs.sent)
}
