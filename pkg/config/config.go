package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Session      SessionConfig
	FeatureFlags FeatureFlagsConfig
	RateLimit    RateLimitConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	RabbitMQ     RabbitMQConfig
	Outbox       OutboxConfig
	Tracing      TracingConfig
	Maintenance  MaintenanceConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Outbox.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"BOOKSTORE_APP_ENV" required:"true"`
	Port         string   `envconfig:"BOOKSTORE_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"BOOKSTORE_LOG_LEVEL" default:"info"`
	LogFormat    string   `envconfig:"BOOKSTORE_LOG_FORMAT" default:"json"`
	LogWarnStack bool     `envconfig:"BOOKSTORE_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"BOOKSTORE_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"BOOKSTORE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"BOOKSTORE_DB_DSN"`
	Driver string `envconfig:"BOOKSTORE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BOOKSTORE_DB_HOST"`
	LegacyPort     int    `envconfig:"BOOKSTORE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BOOKSTORE_DB_USER"`
	LegacyPassword string `envconfig:"BOOKSTORE_DB_PASSWORD"`
	LegacyName     string `envconfig:"BOOKSTORE_DB_NAME"`
	LegacySSLMode  string `envconfig:"BOOKSTORE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BOOKSTORE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BOOKSTORE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BOOKSTORE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BOOKSTORE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the sqlite driver was requested.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), "sqlite")
}

type RedisConfig struct {
	URL          string        `envconfig:"BOOKSTORE_REDIS_URL"`
	Address      string        `envconfig:"BOOKSTORE_REDIS_ADDR"`
	Password     string        `envconfig:"BOOKSTORE_REDIS_PASSWORD"`
	DB           int           `envconfig:"BOOKSTORE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BOOKSTORE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BOOKSTORE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BOOKSTORE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BOOKSTORE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BOOKSTORE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"BOOKSTORE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"BOOKSTORE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"BOOKSTORE_JWT_EXPIRATION_MINUTES" default:"60"`
}

// SessionConfig controls whether access tokens must map to a live Redis session.
// Sessions are written by the identity service that issues the tokens.
type SessionConfig struct {
	Required bool `envconfig:"BOOKSTORE_SESSION_REQUIRED" default:"false"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"BOOKSTORE_AUTO_MIGRATE" default:"false"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `envconfig:"BOOKSTORE_RATE_LIMIT_RPS" default:"10"`
	Burst             int     `envconfig:"BOOKSTORE_RATE_LIMIT_BURST" default:"20"`
	OrdersPerMinute   int     `envconfig:"BOOKSTORE_RATE_LIMIT_ORDERS_PER_MINUTE" default:"30"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"BOOKSTORE_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"BOOKSTORE_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	OrdersTopic string `envconfig:"BOOKSTORE_PUBSUB_ORDERS_TOPIC" default:"bookstore-order-events"`
}

type RabbitMQConfig struct {
	URL      string `envconfig:"BOOKSTORE_RABBITMQ_URL"`
	Exchange string `envconfig:"BOOKSTORE_RABBITMQ_EXCHANGE" default:"bookstore.events"`
}

type OutboxConfig struct {
	Broker         string `envconfig:"BOOKSTORE_OUTBOX_BROKER" default:"pubsub"`
	BatchSize      int    `envconfig:"BOOKSTORE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int    `envconfig:"BOOKSTORE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int    `envconfig:"BOOKSTORE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// PollInterval returns the configured poll interval as a duration.
func (o OutboxConfig) PollInterval() time.Duration {
	if o.PollIntervalMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(o.PollIntervalMS) * time.Millisecond
}

func (o OutboxConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(o.Broker)) {
	case OutboxBrokerPubSub, OutboxBrokerRabbitMQ:
		return nil
	default:
		return fmt.Errorf("%s must be %q or %q", EnvOutboxBroker, OutboxBrokerPubSub, OutboxBrokerRabbitMQ)
	}
}

type TracingConfig struct {
	Enabled     bool    `envconfig:"BOOKSTORE_TRACING_ENABLED" default:"false"`
	Endpoint    string  `envconfig:"BOOKSTORE_TRACING_OTLP_ENDPOINT" default:"localhost:4318"`
	Insecure    bool    `envconfig:"BOOKSTORE_TRACING_INSECURE" default:"true"`
	SampleRatio float64 `envconfig:"BOOKSTORE_TRACING_SAMPLE_RATIO" default:"1"`
}

// MaintenanceConfig drives the cron worker's cleanup jobs.
type MaintenanceConfig struct {
	Interval              time.Duration `envconfig:"BOOKSTORE_MAINTENANCE_INTERVAL" default:"1h"`
	OutboxRetentionDays   int           `envconfig:"BOOKSTORE_OUTBOX_RETENTION_DAYS" default:"30"`
	CartItemRetentionDays int           `envconfig:"BOOKSTORE_CART_ITEM_RETENTION_DAYS" default:"90"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
