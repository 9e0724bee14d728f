// Package cmd implements the subscriptions command line: the server, offline
// helpers for checking subscription texts, and a client for the admin API.
package cmd
