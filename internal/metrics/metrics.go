package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicebridge_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voicebridge_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	SessionsStartedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicebridge_sessions_started_total",
			Help: "Total number of voice sessions started.",
		},
		[]string{"kind"},
	)

	SessionsEndedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicebridge_sessions_ended_total",
			Help: "Total number of voice sessions ended.",
		},
		[]string{"kind", "reason"},
	)

	QuotaDenialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicebridge_quota_denials_total",
			Help: "Total number of session starts denied by quota.",
		},
		[]string{"kind"},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "voicebridge_active_sessions",
			Help: "Number of currently active voice sessions.",
		},
	)

	TranscriptWaitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicebridge_transcript_waits_total",
			Help: "Outcomes of bounded waits on the transcript handoff store.",
		},
		[]string{"outcome"},
	)

	NotifyFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "voicebridge_notify_failures_total",
			Help: "Total number of failed session-state notifications.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		SessionsStartedTotal,
		SessionsEndedTotal,
		QuotaDenialsTotal,
		ActiveSessions,
		TranscriptWaitsTotal,
		NotifyFailuresTotal,
	)
}
