package config

const (
	EnvPrefix = "BOOKSTORE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv      = "BOOKSTORE_APP_ENV"
	EnvPort        = "BOOKSTORE_APP_PORT"
	EnvLogLevel    = "BOOKSTORE_LOG_LEVEL"
	EnvLogFormat   = "BOOKSTORE_LOG_FORMAT"
	EnvServiceKind = "BOOKSTORE_SERVICE_KIND"

	EnvDBDSN      = "BOOKSTORE_DB_DSN"
	EnvDBDriver   = "BOOKSTORE_DB_DRIVER"
	EnvDBHost     = "BOOKSTORE_DB_HOST"
	EnvDBPort     = "BOOKSTORE_DB_PORT"
	EnvDBUser     = "BOOKSTORE_DB_USER"
	EnvDBPassword = "BOOKSTORE_DB_PASSWORD"
	EnvDBName     = "BOOKSTORE_DB_NAME"
	EnvDBSSLMode  = "BOOKSTORE_DB_SSLMODE"

	EnvRedisURL  = "BOOKSTORE_REDIS_URL"
	EnvRedisAddr = "BOOKSTORE_REDIS_ADDR"

	EnvJWTSecret   = "BOOKSTORE_JWT_SECRET"
	EnvJWTIssuer   = "BOOKSTORE_JWT_ISSUER"
	EnvJWTExpMins  = "BOOKSTORE_JWT_EXPIRATION_MINUTES"
	EnvSessionReq  = "BOOKSTORE_SESSION_REQUIRED"
	EnvAutoMigrate = "BOOKSTORE_AUTO_MIGRATE"

	EnvRateLimitRPS    = "BOOKSTORE_RATE_LIMIT_RPS"
	EnvRateLimitBurst  = "BOOKSTORE_RATE_LIMIT_BURST"
	EnvRateLimitOrders = "BOOKSTORE_RATE_LIMIT_ORDERS_PER_MINUTE"

	EnvGCPProjectID       = "BOOKSTORE_GCP_PROJECT_ID"
	EnvGCPCredentialsJSON = "BOOKSTORE_GCP_CREDENTIALS_JSON"
	EnvPubSubOrdersTopic  = "BOOKSTORE_PUBSUB_ORDERS_TOPIC"

	EnvRabbitMQURL      = "BOOKSTORE_RABBITMQ_URL"
	EnvRabbitMQExchange = "BOOKSTORE_RABBITMQ_EXCHANGE"

	EnvOutboxBroker       = "BOOKSTORE_OUTBOX_BROKER"
	EnvOutboxBatchSize    = "BOOKSTORE_OUTBOX_PUBLISH_BATCH_SIZE"
	EnvOutboxPollInterval = "BOOKSTORE_OUTBOX_PUBLISH_POLL_MS"
	EnvOutboxMaxAttempts  = "BOOKSTORE_OUTBOX_MAX_ATTEMPTS"

	EnvTracingEnabled  = "BOOKSTORE_TRACING_ENABLED"
	EnvTracingEndpoint = "BOOKSTORE_TRACING_OTLP_ENDPOINT"

	EnvMaintenanceInterval   = "BOOKSTORE_MAINTENANCE_INTERVAL"
	EnvOutboxRetentionDays   = "BOOKSTORE_OUTBOX_RETENTION_DAYS"
	EnvCartItemRetentionDays = "BOOKSTORE_CART_ITEM_RETENTION_DAYS"

	OutboxBrokerPubSub   = "pubsub"
	OutboxBrokerRabbitMQ = "rabbitmq"
)

// legacyDBEnvVars must all be present when BOOKSTORE_DB_DSN is not set.
var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
