package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	DefaultConfigPath     = "./config.yaml"
	DefaultListenAddress  = ":8080"
	DefaultSubjectPrefix  = "[Sentry Subscription]"
	DefaultSenderAddress  = "noreply@localhost.localdomain"
	DefaultSenderName     = "Subscriptions"
	DefaultSQLitePath     = "./subscriptions.db"
	DefaultRedisKeyPrefix = "subscriptions:"
)

// Store type names accepted in store.type.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

type Server struct {
	ListenAddress  string   `yaml:"listenAddress"`
	TLSCertFile    string   `yaml:"tlsCertFile"`
	TLSKeyFile     string   `yaml:"tlsKeyFile"`
	TrustedProxies []string `yaml:"trustedProxies"` // IPs/CIDRs to trust for X-Forwarded-For headers
	// EnableHTTP2 offers h2 on the TLS listener; HTTP/1.1 only otherwise.
	EnableHTTP2 bool `yaml:"enableHTTP2"`
}

type Frontend struct {
	// BaseURL of the error tracker UI, used to build group and settings links
	// when the host does not send an absolute group URL.
	BaseURL string `yaml:"baseURL"`
	// SettingsPath is appended to BaseURL for the "notification settings" footer link.
	SettingsPath string `yaml:"settingsPath"`
}

type Mail struct {
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	User               string `yaml:"user"`
	Password           string `yaml:"password"`
	InsecureSkipVerify bool   `yaml:"insecureSkipVerify"`
	SenderAddress      string `yaml:"senderAddress"`
	SenderName         string `yaml:"senderName"`
	SubjectPrefix      string `yaml:"subjectPrefix"`
	// FailSilently suppresses delivery errors instead of reporting them to the caller.
	FailSilently bool `yaml:"failSilently"`
	// Async hands notifications to a background queue with retries.
	Async          bool `yaml:"async"`
	RetryCount     int  `yaml:"retryCount"`
	RetryBackoffMs int  `yaml:"retryBackoffMs"`
	QueueSize      int  `yaml:"queueSize"`
	// Disabled turns delivery off entirely; notifications are only logged.
	Disabled bool `yaml:"disabled"`
}

type Store struct {
	Type     string `yaml:"type"`
	Path     string `yaml:"path"`
	RedisURL string `yaml:"redisURL"`
	// KeyPrefix namespaces redis keys.
	KeyPrefix string `yaml:"keyPrefix"`
}

type Cache struct {
	// TTL of parsed subscription sets, e.g. "5m". "0" disables caching.
	TTL string `yaml:"ttl"`
}

// Duration parses TTL. An invalid value falls back to five minutes.
func (c Cache) Duration() (time.Duration, error) {
	if c.TTL == "" {
		return 5 * time.Minute, nil
	}
	d, err := time.ParseDuration(c.TTL)
	if err != nil {
		return 5 * time.Minute, fmt.Errorf("invalid cache.ttl %q: %w", c.TTL, err)
	}
	return d, nil
}

type Kafka struct {
	Enabled bool      `yaml:"enabled"`
	Brokers []string  `yaml:"brokers"`
	Topic   string    `yaml:"topic"`
	GroupID string    `yaml:"groupID"`
	TLS     KafkaTLS  `yaml:"tls"`
	SASL    KafkaSASL `yaml:"sasl"`
}

type KafkaTLS struct {
	Enabled bool `yaml:"enabled"`
	// CAFile is a PEM bundle used instead of the system roots.
	CAFile             string `yaml:"caFile"`
	CertFile           string `yaml:"certFile"`
	KeyFile            string `yaml:"keyFile"`
	InsecureSkipVerify bool   `yaml:"insecureSkipVerify"`
}

type KafkaSASL struct {
	// Mechanism is one of PLAIN, SCRAM-SHA-256, SCRAM-SHA-512. Empty disables SASL.
	Mechanism string `yaml:"mechanism"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
}

type Auth struct {
	// JWTSecret enables HS256 bearer token checks on the admin endpoints.
	JWTSecret string `yaml:"jwtSecret"`
}

type RateLimit struct {
	// Rate is the number of event posts allowed per second and client IP. 0 keeps the default.
	Rate  float64 `yaml:"rate"`
	Burst int     `yaml:"burst"`
}

type Config struct {
	Server    Server    `yaml:"server"`
	Frontend  Frontend  `yaml:"frontend"`
	Mail      Mail      `yaml:"mail"`
	Store     Store     `yaml:"store"`
	Cache     Cache     `yaml:"cache"`
	Kafka     Kafka     `yaml:"kafka"`
	Auth      Auth      `yaml:"auth"`
	RateLimit RateLimit `yaml:"rateLimit"`
}

// Load loads the configuration from a file path.
// If configPath is empty, defaults to "./config.yaml".
// Defaults are applied to the result; call Validate before use.
func Load(configPath ...string) (Config, error) {
	path := DefaultConfigPath
	if len(configPath) > 0 && configPath[0] != "" {
		path = configPath[0]
	}

	var config Config

	content, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("trying to open subscriptions config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(content, &config); err != nil {
		return config, fmt.Errorf("error unmarshaling YAML %s: %w", path, err)
	}

	config.Defaults()
	return config, nil
}

// Defaults fills in unset values.
func (c *Config) Defaults() {
	if c.Server.ListenAddress == "" {
		c.Server.ListenAddress = DefaultListenAddress
	}
	if c.Frontend.SettingsPath == "" {
		c.Frontend.SettingsPath = "/account/settings/notifications/"
	}
	c.Frontend.BaseURL = strings.TrimSuffix(c.Frontend.BaseURL, "/")

	if c.Mail.Port == 0 {
		c.Mail.Port = 25
	}
	if c.Mail.SenderAddress == "" {
		c.Mail.SenderAddress = DefaultSenderAddress
	}
	if c.Mail.SenderName == "" {
		c.Mail.SenderName = DefaultSenderName
	}
	if c.Mail.SubjectPrefix == "" {
		c.Mail.SubjectPrefix = DefaultSubjectPrefix
	}

	if c.Store.Type == "" {
		c.Store.Type = StoreMemory
	}
	c.Store.Type = strings.ToLower(c.Store.Type)
	if c.Store.Type == StoreSQLite && c.Store.Path == "" {
		c.Store.Path = DefaultSQLitePath
	}
	if c.Store.KeyPrefix == "" {
		c.Store.KeyPrefix = DefaultRedisKeyPrefix
	}

	if c.Cache.TTL == "" {
		c.Cache.TTL = "5m"
	}

	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "exception-subscriptions"
	}
}

// Validate checks the configuration for values the service cannot start with.
func (c Config) Validate() error {
	var errs []error

	if !c.Mail.Disabled && c.Mail.Host == "" {
		errs = append(errs, errors.New("mail.host is required unless mail.disabled is set"))
	}
	if c.Mail.Port < 0 || c.Mail.Port > 65535 {
		errs = append(errs, fmt.Errorf("mail.port %d is out of range", c.Mail.Port))
	}

	switch c.Store.Type {
	case StoreMemory:
	case StoreSQLite:
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store.path is required for sqlite"))
		}
	case StoreRedis:
		if c.Store.RedisURL == "" {
			errs = append(errs, errors.New("store.redisURL is required for redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.type %q is not one of memory, sqlite, redis", c.Store.Type))
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			errs = append(errs, errors.New("kafka.brokers is required when kafka is enabled"))
		}
		if c.Kafka.Topic == "" {
			errs = append(errs, errors.New("kafka.topic is required when kafka is enabled"))
		}
		switch c.Kafka.SASL.Mechanism {
		case "", "PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512":
		default:
			errs = append(errs, fmt.Errorf("kafka.sasl.mechanism %q is not supported", c.Kafka.SASL.Mechanism))
		}
	}

	if (c.Server.TLSCertFile == "") != (c.Server.TLSKeyFile == "") {
		errs = append(errs, errors.New("server.tlsCertFile and server.tlsKeyFile must be set together"))
	}

	if _, err := c.Cache.Duration(); err != nil {
		errs = append(errs, err)
	}

	if c.RateLimit.Rate < 0 {
		errs = append(errs, errors.New("rateLimit.rate cannot be negative"))
	}

	return errors.Join(errs...)
}
