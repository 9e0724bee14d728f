// Package metrics defines Prometheus metrics for the subscription service,
// covering event processing, gate decisions, subscription edits, HTTP rate
// limiting, and mail delivery.
package metrics
