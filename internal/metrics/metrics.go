package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ============================================
	// Provider API metrics
	// ============================================
	ProviderCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "customs_provider_calls_total",
			Help: "Total outbound provider API calls by endpoint, environment, and outcome",
		},
		[]string{"endpoint", "environment", "outcome"},
	)

	ProviderCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "customs_provider_call_duration_seconds",
			Help:    "Provider API call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// ============================================
	// Failure / retry metrics
	// ============================================
	FailureRecordsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "customs_failure_records_created_total",
			Help: "Total failure records created by endpoint",
		},
		[]string{"endpoint"},
	)

	RetryAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "customs_retry_attempts_total",
			Help: "Total retry attempts by outcome (success, failed, exhausted, unsupported, rejected)",
		},
		[]string{"outcome"},
	)

	BatchRetryRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "customs_batch_retry_runs_total",
		Help: "Total batch retry runs",
	})

	BatchRetryRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "customs_batch_retry_records_total",
			Help: "Total records processed by batch retries, by outcome",
		},
		[]string{"outcome"},
	)

	// ============================================
	// Domain metrics
	// ============================================
	PackagesScreenedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "customs_packages_screened_total",
			Help: "Total packages screened by resulting status",
		},
		[]string{"status"},
	)

	DutyPaymentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "customs_duty_payments_total",
			Help: "Total duty payment attempts by outcome",
		},
		[]string{"outcome"},
	)

	ShipmentRegistrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "customs_shipment_registrations_total",
			Help: "Total shipment registration attempts by outcome",
		},
		[]string{"outcome"},
	)

	// ============================================
	// Infrastructure metrics
	// ============================================
	DBConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "customs_db_connection_status",
		Help: "Database connection status (1=healthy, 0=unhealthy)",
	})

	NATSConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "customs_nats_connection_status",
		Help: "NATS connection status (1=connected, 0=disconnected)",
	})

	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "customs_websocket_connections",
		Help: "Current number of websocket dashboard connections",
	})
)
