// Package event defines the read-only event envelope that error-tracker hosts
// hand to the subscription service for every processed event.
package event
