// Package mail provides email delivery for subscription notifications,
// including SMTP sending with retry logic, plain-text and HTML template
// rendering, and an optional background queue.
package mail
