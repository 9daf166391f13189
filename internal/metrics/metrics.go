package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RejectedRecords = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "friendzone_rejected_records_total",
			Help: "Friend records dropped during consolidation because they had no usable key",
		},
	)
	IntegrityWarnings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "friendzone_integrity_warnings_total",
			Help: "Data integrity problems found while planning zone changes",
		},
		[]string{"kind"},
	)
	ZoneSelections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "friendzone_zone_selections_total",
			Help: "Zone selection edits by outcome",
		},
		[]string{"outcome"},
	)
	PushesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "friendzone_pushes_total",
			Help: "Push notifications by type and result",
		},
		[]string{"type", "result"},
	)
	FeedDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "friendzone_feed_deliveries_total",
			Help: "Snapshot deliveries by result (applied, stale, error)",
		},
		[]string{"result"},
	)
)

// Register adds the domain collectors to reg. main passes
// prometheus.DefaultRegisterer; tests pass a fresh registry.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(RejectedRecords, IntegrityWarnings, ZoneSelections, PushesSent, FeedDeliveries)
}
