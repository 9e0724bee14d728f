// Package cli defines the server flags of the subscriptions binary and how
// they override the configuration file.
package cli
