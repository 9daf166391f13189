package reconcile

type WarningKind string

// WarningActiveWithoutPermission marks a zone listed as active that was never
// granted. It is treated as inactive.
const WarningActiveWithoutPermission WarningKind = "active_without_permission"

type PlanWarning struct {
	Kind   WarningKind `json:"kind"`
	ZoneID string      `json:"zoneId"`
}

// PermissionPlan is the outcome of editing the zones shared with one friend.
// TrulyNew, Deactivate and Reactivate are pairwise disjoint.
type PermissionPlan struct {
	// TrulyNew zones were never granted and need a new request.
	TrulyNew []string `json:"trulyNewZones"`
	// Deactivate and Reactivate are applied immediately to the active set.
	Deactivate []string `json:"zonesToDeactivate"`
	Reactivate []string `json:"zonesToReactivate"`
	// NextActive is the active set after the immediate write. Always a
	// subset of the original permissions.
	NextActive []string      `json:"nextActiveZones"`
	Warnings   []PlanWarning `json:"warnings,omitempty"`
}

func (p PermissionPlan) HasImmediateChanges() bool {
	return len(p.Deactivate) > 0 || len(p.Reactivate) > 0
}

func (p PermissionPlan) NeedsRequest() bool {
	return len(p.TrulyNew) > 0
}

// ReconcilePermissions classifies a new zone selection against the
// permissions and active zones captured when the edit began.
func ReconcilePermissions(originalPermissions, originalActive, newSelection []string) PermissionPlan {
	perms := newZoneSet(originalPermissions)
	rawActive := newZoneSet(originalActive)
	selection := newZoneSet(newSelection)

	var warnings []PlanWarning
	for _, id := range rawActive.minus(perms).sorted() {
		warnings = append(warnings, PlanWarning{Kind: WarningActiveWithoutPermission, ZoneID: id})
	}
	active := rawActive.intersect(perms)

	permittedSelection := selection.intersect(perms)

	return PermissionPlan{
		TrulyNew:   selection.minus(perms).sorted(),
		Deactivate: active.minus(selection).sorted(),
		Reactivate: permittedSelection.minus(active).sorted(),
		NextActive: permittedSelection.sorted(),
		Warnings:   warnings,
	}
}

// PartialResult reports how much of a plan reached the store. The two halves
// are written independently, so either may fail while the other succeeds.
type PartialResult struct {
	ImmediateChanges int    `json:"immediateChanges"`
	RequestsSent     int    `json:"requestsSent"`
	ImmediateError   string `json:"immediateError,omitempty"`
	RequestError     string `json:"requestError,omitempty"`
}

func (r PartialResult) Failed() bool {
	return r.ImmediateError != "" || r.RequestError != ""
}

// Partial is true when one half was written and the other was not.
func (r PartialResult) Partial() bool {
	return r.Failed() && (r.ImmediateChanges > 0 || r.RequestsSent > 0)
}
