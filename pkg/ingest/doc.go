// Package ingest consumes processed events from a Kafka topic and runs them
// through the notifier, as an alternative to posting them to the HTTP hook.
package ingest
