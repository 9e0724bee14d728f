// Package client is the HTTP client used by the CLI to manage project
// subscriptions on a running server.
package client
