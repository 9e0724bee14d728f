package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/telekom/exception-subscriptions/pkg/config"
)

const DefaultShutdownTimeout = 15 * time.Second

// Config holds the server flags. Values left empty keep what the config file says.
type Config struct {
	// Application flags
	Debug bool

	// Configuration flags
	ConfigPath    string
	ListenAddress string
	StoreType     string
	DisableEmail  bool
	EnableKafka   bool
	EnableHTTP2   bool

	// Interval flags
	ShutdownTimeout string
}

// AddFlags registers the server flags on fs with environment variable fallbacks.
func AddFlags(fs *pflag.FlagSet) *Config {
	config := &Config{}
	// The pattern: fs.XxxVar(&variable, "flag-name", defaultValueOrEnvValue, "help text")
	fs.BoolVar(&config.Debug, "debug", getEnvBool("SUBSCRIPTIONS_DEBUG", false), "Enable debug level logging")

	fs.StringVar(&config.ConfigPath, "config-path", getEnvString("SUBSCRIPTIONS_CONFIG_PATH", "./config.yaml"),
		"Path to the subscriptions configuration file")
	fs.StringVar(&config.ListenAddress, "listen-address", getEnvString("SUBSCRIPTIONS_LISTEN_ADDRESS", ""),
		"The address the HTTP server binds to, overrides server.listenAddress")
	fs.StringVar(&config.StoreType, "store-type", getEnvString("SUBSCRIPTIONS_STORE_TYPE", ""),
		"Option store backend (memory, sqlite, redis), overrides store.type")
	fs.BoolVar(&config.DisableEmail, "disable-email", getEnvBool("SUBSCRIPTIONS_DISABLE_EMAIL", false),
		"Disable email delivery; notifications are only logged")
	fs.BoolVar(&config.EnableKafka, "enable-kafka", getEnvBool("SUBSCRIPTIONS_ENABLE_KAFKA", false),
		"Consume events from Kafka in addition to the HTTP hook, overrides kafka.enabled")
	fs.BoolVar(&config.EnableHTTP2, "enable-http2", getEnvBool("SUBSCRIPTIONS_ENABLE_HTTP2", false),
		"If set, HTTP/2 is offered on the TLS listener")

	fs.StringVar(&config.ShutdownTimeout, "shutdown-timeout", getEnvString("SUBSCRIPTIONS_SHUTDOWN_TIMEOUT", "15s"),
		"How long to wait for in-flight requests and queued mails on shutdown (e.g., '15s', '1m')")

	return config
}

// Apply overlays the flags on cfg.
func (c *Config) Apply(cfg *config.Config) {
	if c.ListenAddress != "" {
		cfg.Server.ListenAddress = c.ListenAddress
	}
	if c.StoreType != "" {
		cfg.Store.Type = strings.ToLower(c.StoreType)
		if cfg.Store.Type == config.StoreSQLite && cfg.Store.Path == "" {
			cfg.Store.Path = config.DefaultSQLitePath
		}
	}
	if c.DisableEmail {
		cfg.Mail.Disabled = true
	}
	if c.EnableKafka {
		cfg.Kafka.Enabled = true
	}
	if c.EnableHTTP2 {
		cfg.Server.EnableHTTP2 = true
	}
}

func (c *Config) Print(log *zap.SugaredLogger) {
	log.Infow("CLI Configuration",
		// Debug and logging
		"debug", c.Debug,
		// Configuration paths
		"config_path", c.ConfigPath,
		"listen_address", c.ListenAddress,
		"store_type", c.StoreType,
		"disable_email", c.DisableEmail,
		"enable_kafka", c.EnableKafka,
		"enable_http2", c.EnableHTTP2,
		// Intervals
		"shutdown_timeout", c.ShutdownTimeout,
	)
}

func (c *Config) ParseShutdownTimeout(log *zap.SugaredLogger) time.Duration {
	timeout, err := parseDuration("shutdown-timeout", c.ShutdownTimeout, DefaultShutdownTimeout)
	if err != nil {
		log.Warn(err)
	}
	return timeout
}

func parseDuration(name, value string, def time.Duration) (time.Duration, error) {
	duration := def
	if value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			duration = d
		} else {
			if err == nil {
				err = fmt.Errorf("must be positive")
			}
			return duration, fmt.Errorf("invalid %s %q; using default %s: %w", name, value, def.String(), err)
		}
	}

	return duration, nil
}

// getEnvString returns the value of an environment variable, or the provided default if not set.
func getEnvString(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// getEnvBool returns the value of an environment variable as a bool, or the provided default if not set.
// Valid true values are "true", "1", "yes" (case-insensitive).
func getEnvBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(val) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return defaultVal
}
