// Package store persists per-project plugin options and caches the parsed
// subscription sets read from them.
//
// Three OptionStore backends are available: an in-process map, SQLite
// (modernc.org/sqlite, no cgo) and Redis. SubscriptionStore sits on top of
// any of them and stores the subscription mapping under the
// "subscriptions" option key.
package store
