package config

const (
	EnvStorageBackend = "STORAGE_BACKEND"

	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort      = "PORT"
	EnvLogLevel  = "LOG_LEVEL"
	EnvLogFormat = "LOG_FORMAT"

	EnvRateLimitBackend = "RATE_LIMIT_BACKEND"
	EnvRateLimitWindow  = "RATE_LIMIT_WINDOW"
	EnvRateLimitDefault = "RATE_LIMIT_DEFAULT"
	EnvRateLimitStep    = "RATE_LIMIT_STEP"
	EnvRateLimitConfirm = "RATE_LIMIT_CONFIRM"
	EnvRateLimitPayment = "RATE_LIMIT_PAYMENT"
	EnvRateLimitAuth    = "RATE_LIMIT_AUTH"

	EnvRedisAddr     = "REDIS_ADDR"
	EnvRedisPassword = "REDIS_PASSWORD"
	EnvRedisDB       = "REDIS_DB"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"
	EnvTrustedProxies = "TRUSTED_PROXIES"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvJWTSecret          = "JWT_SECRET"
	EnvJWTIssuer          = "JWT_ISSUER"
	EnvJWTTTL             = "JWT_TTL"
	EnvBcryptCost         = "BCRYPT_COST"
	EnvPasswordResetTTL   = "PASSWORD_RESET_TTL"
	EnvExposeResetToken   = "AUTH_EXPOSE_RESET_TOKEN"
	EnvResetPurgeInterval = "RESET_PURGE_INTERVAL"

	EnvPaymentProvider     = "PAYMENT_PROVIDER"
	EnvStripeSecretKey     = "STRIPE_SECRET_KEY"
	EnvStripeWebhookSecret = "STRIPE_WEBHOOK_SECRET"
	EnvPaymentCurrency     = "PAYMENT_CURRENCY"
	EnvPaymentMethodTypes  = "PAYMENT_METHOD_TYPES"

	EnvEventsBroker  = "EVENTS_BROKER"
	EnvEventsTopic   = "EVENTS_TOPIC"
	EnvRabbitMQURL   = "RABBITMQ_URL"
	EnvRabbitMQQueue = "RABBITMQ_QUEUE"

	EnvDocumentBackend = "DOCUMENT_BACKEND"
	EnvUploadDir       = "UPLOAD_DIR"
	EnvMaxUploadSize   = "MAX_UPLOAD_SIZE"
	EnvS3Bucket        = "S3_BUCKET"
	EnvS3Region        = "S3_REGION"
	EnvS3Prefix        = "S3_PREFIX"
	EnvS3PresignTTL    = "S3_PRESIGN_TTL"

	EnvWeatherGeocodeURL  = "WEATHER_GEOCODE_URL"
	EnvWeatherForecastURL = "WEATHER_FORECAST_URL"
	EnvWeatherTimeout     = "WEATHER_TIMEOUT"

	EnvBookingDeleteWindow = "BOOKING_DELETE_WINDOW"
)
