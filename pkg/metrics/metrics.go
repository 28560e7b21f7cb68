package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// VerificationTransitions counts committed status transitions by edge. The
// empty from label marks record creation.
var VerificationTransitions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "backoffice_verification_transitions_total",
		Help: "Total number of verification status transitions committed",
	},
	[]string{"from", "to"},
)

// VerificationEvents counts audit events appended by type.
var VerificationEvents = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "backoffice_verification_events_total",
		Help: "Total number of verification audit events appended",
	},
	[]string{"event_type"},
)

// OverviewLatency records latency distribution for overview aggregation
var OverviewLatency = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "backoffice_verification_overview_latency_seconds",
		Help:    "Latency in seconds to compute the verification overview",
		Buckets: prometheus.DefBuckets,
	},
)

// Database connection pool metrics
var (
	DBOpenConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "backoffice_db_open_connections",
			Help: "Number of open connections in the DB pool",
		},
		[]string{"db"},
	)

	DBIdleConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "backoffice_db_idle_connections",
			Help: "Number of idle connections in the DB pool",
		},
		[]string{"db"},
	)

	DBInUseConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "backoffice_db_in_use_connections",
			Help: "Number of in-use connections in the DB pool",
		},
		[]string{"db"},
	)
)

func init() {
	prometheus.MustRegister(VerificationTransitions, VerificationEvents, OverviewLatency)
	prometheus.MustRegister(DBOpenConns, DBIdleConns, DBInUseConns)
}
