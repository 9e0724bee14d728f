// Package utils provides shared helpers for the subscription service, most
// notably shell-style glob matching of culprit strings.
package utils
