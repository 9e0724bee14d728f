package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Event processing
	EventsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "subscriptions_events_processed_total",
		Help: "Total number of events handed to post-processing",
	}, []string{"source"})
	EventsRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "subscriptions_events_rejected_total",
		Help: "Total number of event envelopes rejected as malformed",
	}, []string{"source"})
	// Skipped events keyed by the step that short-circuited processing
	// (no_culprit, not_configured, gate reason, no_match).
	EventsSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "subscriptions_events_skipped_total",
		Help: "Total number of events that did not lead to a notification",
	}, []string{"reason"})
	GateDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "subscriptions_gate_decisions_total",
		Help: "Notification gate decisions grouped by outcome and reason",
	}, []string{"decision", "reason"})
	PatternMatches = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "subscriptions_pattern_matches_total",
		Help: "Total number of subscription patterns that matched an event culprit",
	})

	// Notifications
	NotificationsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "subscriptions_notifications_sent_total",
		Help: "Total number of notifications handed to the mail transport",
	})
	NotificationsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "subscriptions_notifications_failed_total",
		Help: "Total number of notifications whose delivery failed and was reported",
	})
	NotificationsSuppressed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "subscriptions_notifications_suppressed_total",
		Help: "Total number of delivery failures swallowed because fail-silently is set",
	})
	NotificationRecipients = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "subscriptions_notification_recipients",
		Help:    "Number of recipients per notification",
		Buckets: []float64{1, 2, 5, 10, 25, 50},
	})

	// Subscription configuration
	SubscriptionsSaved = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "subscriptions_config_saved_total",
		Help: "Total number of subscription configurations saved",
	})
	SubscriptionValidationFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "subscriptions_config_validation_failures_total",
		Help: "Total number of subscription texts rejected by validation",
	})
	SubscriptionCacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "subscriptions_cache_lookups_total",
		Help: "Parsed subscription cache lookups grouped by result (hit/miss)",
	}, []string{"result"})

	// HTTP
	RateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "subscriptions_http_rate_limited_total",
		Help: "Total number of requests rejected by the rate limiter",
	}, []string{"route"})

	// Mail metrics
	MailSendSuccess = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "subscriptions_mail_send_success_total",
		Help: "Total number of successful mail sends",
	}, []string{"host"})
	MailSendFailure = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "subscriptions_mail_send_failure_total",
		Help: "Total number of failed mail sends",
	}, []string{"host"})
	MailQueued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "subscriptions_mail_queued_total",
		Help: "Total number of mails accepted by the async queue",
	}, []string{"host"})
	MailQueueDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "subscriptions_mail_queue_dropped_total",
		Help: "Total number of mails dropped because the queue was full or stopping",
	}, []string{"host"})
	MailSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "subscriptions_mail_queue_sent_total",
		Help: "Total number of queued mails delivered",
	}, []string{"host"})
	MailRetryScheduled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "subscriptions_mail_retry_scheduled_total",
		Help: "Total number of queued mail retries scheduled",
	}, []string{"host"})
	MailFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "subscriptions_mail_queue_failed_total",
		Help: "Total number of queued mails that failed after all retries",
	}, []string{"host"})

	IngestErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "subscriptions_ingest_errors_total",
		Help: "Total number of broker errors while consuming events, by kind",
	}, []string{"kind"})
	IngestConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "subscriptions_ingest_connected",
		Help: "Whether the event consumer is currently able to fetch from the broker (1 = yes)",
	})
)

func init() {
	prometheus.MustRegister(EventsProcessed)
	prometheus.MustRegister(EventsRejected)
	prometheus.MustRegister(EventsSkipped)
	prometheus.MustRegister(GateDecisions)
	prometheus.MustRegister(PatternMatches)
	prometheus.MustRegister(NotificationsSent)
	prometheus.MustRegister(NotificationsFailed)
	prometheus.MustRegister(NotificationsSuppressed)
	prometheus.MustRegister(NotificationRecipients)
	prometheus.MustRegister(SubscriptionsSaved)
	prometheus.MustRegister(SubscriptionValidationFailures)
	prometheus.MustRegister(SubscriptionCacheLookups)
	prometheus.MustRegister(RateLimited)
	prometheus.MustRegister(MailSendSuccess)
	prometheus.MustRegister(MailSendFailure)
	prometheus.MustRegister(MailQueued)
	prometheus.MustRegister(MailQueueDropped)
	prometheus.MustRegister(MailSent)
	prometheus.MustRegister(MailRetryScheduled)
	prometheus.MustRegister(MailFailed)
	prometheus.MustRegister(IngestErrors)
	prometheus.MustRegister(IngestConnected)
}

// MetricsHandler returns an http.Handler exposing Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
