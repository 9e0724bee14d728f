// Package notification turns processed events into subscription emails.
//
// For every event the Notifier checks that the event has a culprit and that
// its project has subscriptions, asks the gate whether this occurrence is
// worth a notification, matches the culprit against the project's patterns
// and finally renders and dispatches one email to all matched addresses.
package notification
