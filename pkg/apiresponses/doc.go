// Package apiresponses provides standardized HTTP API response helpers
// (errors, validation failures, rate limiting) shared by the api and
// ratelimit packages.
package apiresponses
