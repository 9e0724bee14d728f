// Package subscription parses and validates per-project subscription
// specifications, matches event culprits against them, and decides whether a
// recurring error is due for another notification.
package subscription
