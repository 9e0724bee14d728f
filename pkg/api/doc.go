// Package api exposes the HTTP surface of the subscription service: the
// event hook used by error-tracker hosts, the per-project subscription admin
// endpoints, health and metrics.
package api
