package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix              = "BREWLOG"
	defaultHTTPAddress     = "0.0.0.0:8080"
	defaultDatabaseDriver  = DriverSQLite
	defaultDatabasePath    = "brewlog.db"
	defaultLogLevel        = "info"
	defaultCookieName      = "app_session"
	defaultIssuer          = "brewlog-auth"
	defaultPushSubscriber  = "ops@brewlog.app"
	defaultPushTTLSeconds  = 24 * 60 * 60
	defaultSendTimeout     = 10 * time.Second
	defaultMaxConcurrency  = 8
	defaultFetchMultiplier = 3
	defaultFeedMaxLimit    = 100
	defaultSweepSchedule   = "@daily"
	defaultSweepBatchCap   = 50
	defaultSweepWindow     = 7 * 24 * time.Hour
	defaultPollInterval    = 2 * time.Second
	defaultRelayBatchSize  = 50
	defaultRelayAttempts   = 5

	// DriverSQLite selects the embedded SQLite driver.
	DriverSQLite = "sqlite"
	// DriverPostgres selects the PostgreSQL driver.
	DriverPostgres = "postgres"
)

// AppConfig captures runtime configuration for the API server and its workers.
type AppConfig struct {
	HTTPAddress string

	DatabaseDriver string
	DatabasePath   string
	DatabaseDSN    string

	LogLevel string
	LogFile  string

	AuthSigningSecret string
	AuthIssuer        string
	AuthCookieName    string

	DispatchSecret     string
	DispatchWebhookURL string

	VAPIDPublicKey     string
	VAPIDPrivateKey    string
	PushSubscriber     string
	PushTTLSeconds     int
	PushSendTimeout    time.Duration
	PushMaxConcurrency int

	FeedFetchMultiplier int
	FeedMaxLimit        int

	SweepEnabled  bool
	SweepSchedule string
	SweepBatchCap int
	SweepWindow   time.Duration

	RelayPollInterval time.Duration
	RelayBatchSize    int
	RelayMaxAttempts  int
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.driver", defaultDatabaseDriver)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("database.dsn", "")
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.file", "")
	configViper.SetDefault("auth.signing_secret", "")
	configViper.SetDefault("auth.issuer", defaultIssuer)
	configViper.SetDefault("auth.cookie_name", defaultCookieName)
	configViper.SetDefault("dispatch.secret", "")
	configViper.SetDefault("dispatch.webhook_url", "")
	configViper.SetDefault("push.vapid_public_key", "")
	configViper.SetDefault("push.vapid_private_key", "")
	configViper.SetDefault("push.subscriber", defaultPushSubscriber)
	configViper.SetDefault("push.ttl_seconds", defaultPushTTLSeconds)
	configViper.SetDefault("push.send_timeout", defaultSendTimeout)
	configViper.SetDefault("push.max_concurrency", defaultMaxConcurrency)
	configViper.SetDefault("feed.fetch_multiplier", defaultFetchMultiplier)
	configViper.SetDefault("feed.max_limit", defaultFeedMaxLimit)
	configViper.SetDefault("sweep.enabled", true)
	configViper.SetDefault("sweep.schedule", defaultSweepSchedule)
	configViper.SetDefault("sweep.batch_cap", defaultSweepBatchCap)
	configViper.SetDefault("sweep.window", defaultSweepWindow)
	configViper.SetDefault("relay.poll_interval", defaultPollInterval)
	configViper.SetDefault("relay.batch_size", defaultRelayBatchSize)
	configViper.SetDefault("relay.max_attempts", defaultRelayAttempts)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:         configViper.GetString("http.address"),
		DatabaseDriver:      strings.ToLower(strings.TrimSpace(configViper.GetString("database.driver"))),
		DatabasePath:        configViper.GetString("database.path"),
		DatabaseDSN:         configViper.GetString("database.dsn"),
		LogLevel:            configViper.GetString("log.level"),
		LogFile:             configViper.GetString("log.file"),
		AuthSigningSecret:   configViper.GetString("auth.signing_secret"),
		AuthIssuer:          configViper.GetString("auth.issuer"),
		AuthCookieName:      configViper.GetString("auth.cookie_name"),
		DispatchSecret:      configViper.GetString("dispatch.secret"),
		DispatchWebhookURL:  configViper.GetString("dispatch.webhook_url"),
		VAPIDPublicKey:      configViper.GetString("push.vapid_public_key"),
		VAPIDPrivateKey:     configViper.GetString("push.vapid_private_key"),
		PushSubscriber:      configViper.GetString("push.subscriber"),
		PushTTLSeconds:      configViper.GetInt("push.ttl_seconds"),
		PushSendTimeout:     configViper.GetDuration("push.send_timeout"),
		PushMaxConcurrency:  configViper.GetInt("push.max_concurrency"),
		FeedFetchMultiplier: configViper.GetInt("feed.fetch_multiplier"),
		FeedMaxLimit:        configViper.GetInt("feed.max_limit"),
		SweepEnabled:        configViper.GetBool("sweep.enabled"),
		SweepSchedule:       configViper.GetString("sweep.schedule"),
		SweepBatchCap:       configViper.GetInt("sweep.batch_cap"),
		SweepWindow:         configViper.GetDuration("sweep.window"),
		RelayPollInterval:   configViper.GetDuration("relay.poll_interval"),
		RelayBatchSize:      configViper.GetInt("relay.batch_size"),
		RelayMaxAttempts:    configViper.GetInt("relay.max_attempts"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

// PushEnabled reports whether both VAPID keys are configured.
func (c AppConfig) PushEnabled() bool {
	return strings.TrimSpace(c.VAPIDPublicKey) != "" && strings.TrimSpace(c.VAPIDPrivateKey) != ""
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.AuthSigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.AuthCookieName) == "" {
		return fmt.Errorf("auth.cookie_name is required")
	}
	if strings.TrimSpace(c.DispatchSecret) == "" {
		return fmt.Errorf("dispatch.secret is required")
	}
	switch c.DatabaseDriver {
	case DriverSQLite:
		if strings.TrimSpace(c.DatabasePath) == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case DriverPostgres:
		if strings.TrimSpace(c.DatabaseDSN) == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.DatabaseDriver)
	}
	if (strings.TrimSpace(c.VAPIDPublicKey) == "") != (strings.TrimSpace(c.VAPIDPrivateKey) == "") {
		return fmt.Errorf("push.vapid_public_key and push.vapid_private_key must be set together")
	}
	if c.FeedFetchMultiplier < 1 {
		return fmt.Errorf("feed.fetch_multiplier must be at least 1")
	}
	if c.SweepBatchCap < 1 {
		return fmt.Errorf("sweep.batch_cap must be at least 1")
	}
	if c.SweepWindow <= 0 {
		return fmt.Errorf("sweep.window must be positive")
	}
	if c.PushSendTimeout <= 0 {
		return fmt.Errorf("push.send_timeout must be positive")
	}
	return nil
}
