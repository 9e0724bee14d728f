// Package config handles loading the service configuration from a YAML file,
// applying defaults and validating the result.
package config
