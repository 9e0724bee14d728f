// Package ratelimit provides per-IP and per-caller token-bucket rate limiting
// middleware for the Gin HTTP server, with automatic stale-entry cleanup.
package ratelimit
