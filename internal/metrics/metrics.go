package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyberkey_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cyberkey_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Expiring-key scan metrics
	ExpiryScanKeys = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyberkey_expiry_scan_keys_total",
			Help: "Keys seen by the expiring-key scanner, by outcome",
		},
		[]string{"outcome"}, // notified, skipped, failed
	)

	ExpiryScanRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyberkey_expiry_scan_runs_total",
			Help: "Expiring-key scan invocations",
		},
		[]string{"status"},
	)

	// Alerting metrics
	SecurityAlertsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyberkey_security_alerts_created_total",
			Help: "Security alerts raised, by pattern and severity",
		},
		[]string{"pattern", "severity"},
	)

	AlertEmails = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyberkey_alert_emails_total",
			Help: "Security alert emails, by outcome",
		},
		[]string{"outcome"}, // sent, failed, skipped
	)

	// Push dispatch metrics
	PushMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyberkey_push_messages_total",
			Help: "Per-device push results",
		},
		[]string{"result"}, // success, failure
	)

	PushDispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyberkey_push_dispatches_total",
			Help: "Dispatch calls, by outcome",
		},
		[]string{"outcome"}, // sent, no_devices, error
	)

	PrunedDeviceTokens = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cyberkey_pruned_device_tokens_total",
			Help: "Device token records deleted after the gateway reported them invalid",
		},
	)

	// Retention metrics
	RetentionDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyberkey_retention_deleted_total",
			Help: "Records deleted by retention sweeps",
		},
		[]string{"collection"},
	)

	// Background job metrics
	JobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyberkey_job_runs_total",
			Help: "Scheduled job runs, by job and status",
		},
		[]string{"job", "status"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cyberkey_job_duration_seconds",
			Help:    "Scheduled job duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"job"},
	)

	// Balance proxy metrics
	BalanceLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyberkey_balance_lookups_total",
			Help: "Balance lookups, by variant and result",
		},
		[]string{"variant", "result"}, // result: cache_hit, success, error
	)
)
