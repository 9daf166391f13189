package services

import (
	"context"
	"fmt"
	"log"

	"friendZoneAPI/internal/metrics"
	"friendZoneAPI/internal/reconcile"
	"friendZoneAPI/internal/types/friend"
	"friendZoneAPI/internal/types/zonerequest"
)

type FriendStore interface {
	Consolidated(ctx context.Context, ownerID, key string) (*friend.Record, error)
	SetActiveZones(ctx context.Context, ownerID, key string, zoneIDs []string) error
}

type RequestCreator interface {
	CheckZonesOwned(ctx context.Context, ownerID string, zoneIDs []string) error
	CreateZoneRequest(ctx context.Context, fromUserID string, in zonerequest.CreateRequest) (*zonerequest.Request, error)
}

// SharingService applies a new zone selection for one friend.
type SharingService struct {
	friends  FriendStore
	requests RequestCreator
}

func NewSharingService(friends FriendStore, requests RequestCreator) *SharingService {
	return &SharingService{friends: friends, requests: requests}
}

type SelectionResult struct {
	Plan    reconcile.PermissionPlan `json:"plan"`
	Result  reconcile.PartialResult  `json:"result"`
	Request *zonerequest.Request     `json:"request,omitempty"`
}

// PlanZoneSelection previews an edit without writing anything.
func (s *SharingService) PlanZoneSelection(ctx context.Context, ownerID, key string, selection []string) (reconcile.PermissionPlan, error) {
	current, err := s.friends.Consolidated(ctx, ownerID, key)
	if err != nil {
		return reconcile.PermissionPlan{}, err
	}
	return reconcile.ReconcilePermissions(current.SharedZoneIDs, current.ActiveZoneIDs, selection), nil
}

// ApplyZoneSelection plans the edit against the stored grant, writes the
// active-set change and sends one request for never-granted zones. The two
// writes are independent; a failure in one is reported in the result and
// does not undo the other. The error is non-nil only when nothing could be
// planned.
func (s *SharingService) ApplyZoneSelection(ctx context.Context, ownerID, key string, selection []string) (*SelectionResult, error) {
	current, err := s.friends.Consolidated(ctx, ownerID, key)
	if err != nil {
		return nil, err
	}

	plan := reconcile.ReconcilePermissions(current.SharedZoneIDs, current.ActiveZoneIDs, selection)
	if plan.NeedsRequest() {
		// Nothing is written when the selection names someone else's zone.
		if err := s.requests.CheckZonesOwned(ctx, ownerID, plan.TrulyNew); err != nil {
			return nil, err
		}
	}
	for _, w := range plan.Warnings {
		log.Printf("ApplyZoneSelection: %s for %s/%s zone %s", w.Kind, ownerID, key, w.ZoneID)
		metrics.IntegrityWarnings.WithLabelValues(string(w.Kind)).Inc()
	}

	out := &SelectionResult{Plan: plan}

	// Warnings alone still warrant a write so the stored active set heals.
	if plan.HasImmediateChanges() || len(plan.Warnings) > 0 {
		if err := s.friends.SetActiveZones(ctx, ownerID, key, plan.NextActive); err != nil {
			log.Printf("ApplyZoneSelection: immediate write failed for %s/%s: %v", ownerID, key, err)
			out.Result.ImmediateError = err.Error()
		} else {
			out.Result.ImmediateChanges = len(plan.Deactivate) + len(plan.Reactivate)
		}
	}

	if plan.NeedsRequest() {
		in := zonerequest.CreateRequest{
			ToPhoneNumber: current.PhoneNumber,
			ToDisplayName: current.DisplayName,
			ZoneIDs:       plan.TrulyNew,
		}
		if current.CounterpartUserID != nil {
			in.ToUserID = *current.CounterpartUserID
		}
		req, err := s.requests.CreateZoneRequest(ctx, ownerID, in)
		if err != nil {
			log.Printf("ApplyZoneSelection: request failed for %s/%s: %v", ownerID, key, err)
			out.Result.RequestError = fmt.Sprintf("failed to request zones %v: %v", plan.TrulyNew, err)
		} else {
			out.Request = req
			out.Result.RequestsSent = 1
		}
	}

	metrics.ZoneSelections.WithLabelValues(selectionOutcome(out.Result)).Inc()
	return out, nil
}

func selectionOutcome(r reconcile.PartialResult) string {
	switch {
	case r.Partial():
		return "partial"
	case r.Failed():
		return "failed"
	case r.ImmediateChanges == 0 && r.RequestsSent == 0:
		return "noop"
	default:
		return "ok"
	}
}
