package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/netip"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"travelbook/pkg/client"
	"travelbook/pkg/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	ServiceName    string
	StorageBackend string

	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	Port string

	RateLimitBackend string
	RateLimitWindow  time.Duration
	RateLimitDefault int
	RateLimitStep    int
	RateLimitConfirm int
	RateLimitPayment int
	RateLimitAuth    int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int
	// TrustedProxies lists the addresses or CIDR ranges whose
	// X-Forwarded-For header is believed.
	TrustedProxies []string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	JWTSecret          string
	JWTIssuer          string
	JWTTTL             time.Duration
	BcryptCost         int
	PasswordResetTTL   time.Duration
	ExposeResetToken   bool
	ResetPurgeInterval time.Duration

	PaymentProvider     string
	StripeSecretKey     string
	StripeWebhookSecret string
	PaymentCurrency     string
	PaymentMethodTypes  []string

	EventsBroker  string
	EventsTopic   string
	RabbitMQURL   string
	RabbitMQQueue string

	DocumentBackend string
	UploadDir       string
	MaxUploadSize   int
	S3Bucket        string
	S3Region        string
	S3Prefix        string
	S3PresignTTL    time.Duration

	WeatherGeocodeURL  string
	WeatherForecastURL string
	WeatherTimeout     time.Duration

	BookingDeleteWindow time.Duration

	Log    *logger.Logger
	Client *client.Client
}

// Load reads an optional .env file, then the environment, validates the
// result and exits the process on invalid configuration.
func Load(serviceName string) *Config {
	envFileErr := godotenv.Load()

	cfg := FromEnv(serviceName)

	if envFileErr != nil && !errors.Is(envFileErr, fs.ErrNotExist) {
		cfg.Log.Warn("Failed to read .env file", "error", envFileErr)
	}

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	if cfg.JWTSecret == DefaultJWTSecret {
		cfg.Log.Warn("JWT_SECRET is not set, using the development secret")
	}
	cfg.LogConfiguration()
	return cfg
}

// FromEnv builds a Config from environment variables without validating it.
func FromEnv(serviceName string) *Config {
	return &Config{
		ServiceName:    serviceName,
		StorageBackend: strings.ToLower(getEnvStr(EnvStorageBackend, DefaultStorageBackend)),

		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		Port: getEnvStr(EnvPort, DefaultPort),

		RateLimitBackend: strings.ToLower(getEnvStr(EnvRateLimitBackend, DefaultRateLimitBackend)),
		RateLimitWindow:  getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),
		RateLimitDefault: getEnvNum(EnvRateLimitDefault, DefaultRateLimitDefault),
		RateLimitStep:    getEnvNum(EnvRateLimitStep, DefaultRateLimitStep),
		RateLimitConfirm: getEnvNum(EnvRateLimitConfirm, DefaultRateLimitConfirm),
		RateLimitPayment: getEnvNum(EnvRateLimitPayment, DefaultRateLimitPayment),
		RateLimitAuth:    getEnvNum(EnvRateLimitAuth, DefaultRateLimitAuth),

		RedisAddr:     getEnvStr(EnvRedisAddr, DefaultRedisAddr),
		RedisPassword: getEnvStr(EnvRedisPassword, ""),
		RedisDB:       getEnvNum(EnvRedisDB, DefaultRedisDB),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),
		TrustedProxies: getEnvList(EnvTrustedProxies, ""),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		JWTSecret:          getEnvStr(EnvJWTSecret, DefaultJWTSecret),
		JWTIssuer:          getEnvStr(EnvJWTIssuer, DefaultJWTIssuer),
		JWTTTL:             getEnvDuration(EnvJWTTTL, DefaultJWTTTL),
		BcryptCost:         getEnvNum(EnvBcryptCost, DefaultBcryptCost),
		PasswordResetTTL:   getEnvDuration(EnvPasswordResetTTL, DefaultPasswordResetTTL),
		ExposeResetToken:   getEnvBool(EnvExposeResetToken, false),
		ResetPurgeInterval: getEnvDuration(EnvResetPurgeInterval, DefaultResetPurgeInterval),

		PaymentProvider:     strings.ToLower(getEnvStr(EnvPaymentProvider, DefaultPaymentProvider)),
		StripeSecretKey:     getEnvStr(EnvStripeSecretKey, ""),
		StripeWebhookSecret: getEnvStr(EnvStripeWebhookSecret, ""),
		PaymentCurrency:     strings.ToLower(getEnvStr(EnvPaymentCurrency, DefaultPaymentCurrency)),
		PaymentMethodTypes:  getEnvList(EnvPaymentMethodTypes, DefaultPaymentMethodTypes),

		EventsBroker:  strings.ToLower(getEnvStr(EnvEventsBroker, DefaultEventsBroker)),
		EventsTopic:   getEnvStr(EnvEventsTopic, DefaultEventsTopic),
		RabbitMQURL:   getEnvStr(EnvRabbitMQURL, DefaultRabbitMQURL),
		RabbitMQQueue: getEnvStr(EnvRabbitMQQueue, DefaultRabbitMQQueue),

		DocumentBackend: strings.ToLower(getEnvStr(EnvDocumentBackend, DefaultDocumentBackend)),
		UploadDir:       getEnvStr(EnvUploadDir, DefaultUploadDir),
		MaxUploadSize:   getEnvNum(EnvMaxUploadSize, DefaultMaxUploadSize),
		S3Bucket:        getEnvStr(EnvS3Bucket, ""),
		S3Region:        getEnvStr(EnvS3Region, DefaultS3Region),
		S3Prefix:        getEnvStr(EnvS3Prefix, DefaultS3Prefix),
		S3PresignTTL:    getEnvDuration(EnvS3PresignTTL, DefaultS3PresignTTL),

		WeatherGeocodeURL:  getEnvStr(EnvWeatherGeocodeURL, DefaultWeatherGeocodeURL),
		WeatherForecastURL: getEnvStr(EnvWeatherForecastURL, DefaultWeatherForecastURL),
		WeatherTimeout:     getEnvDuration(EnvWeatherTimeout, DefaultWeatherTimeout),

		BookingDeleteWindow: getEnvDuration(EnvBookingDeleteWindow, DefaultBookingDeleteWindow),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    getEnvStr(EnvLogFormat, DefaultLogFormat),
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) SetRedis() {
	cfg.Client.SetRedis(cfg.Log, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
}

func (cfg *Config) UsesMongo() bool {
	return cfg.StorageBackend == StorageMongo
}

func (cfg *Config) UsesRedis() bool {
	return cfg.RateLimitBackend == RateLimitRedis
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	switch cfg.StorageBackend {
	case StorageMongo:
		if cfg.MongoURI == "" {
			errors = append(errors, "MongoURI cannot be empty")
		} else if !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
			errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
		}
		if cfg.MongoDatabaseName == "" {
			errors = append(errors, "MongoDatabaseName cannot be empty")
		}
		if cfg.MongoConnTimeout <= 0 {
			errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
		}
	case StorageMemory:
	default:
		errors = append(errors, fmt.Sprintf("StorageBackend must be one of [mongo, memory], got: %s", cfg.StorageBackend))
	}

	switch cfg.RateLimitBackend {
	case RateLimitMemory:
	case RateLimitRedis:
		if cfg.RedisAddr == "" {
			errors = append(errors, "RedisAddr cannot be empty when RateLimitBackend is redis")
		}
	default:
		errors = append(errors, fmt.Sprintf("RateLimitBackend must be one of [memory, redis], got: %s", cfg.RateLimitBackend))
	}
	if cfg.RateLimitWindow <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitWindow must be positive, got: %s", cfg.RateLimitWindow))
	}
	for name, limit := range map[string]int{
		"RateLimitDefault": cfg.RateLimitDefault,
		"RateLimitStep":    cfg.RateLimitStep,
		"RateLimitConfirm": cfg.RateLimitConfirm,
		"RateLimitPayment": cfg.RateLimitPayment,
		"RateLimitAuth":    cfg.RateLimitAuth,
	} {
		if limit <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be positive, got: %d", name, limit))
		}
	}

	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.IdempotencyTTL <= 0 {
		errors = append(errors, fmt.Sprintf("IdempotencyTTL must be positive, got: %s", cfg.IdempotencyTTL))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}
	if _, err := cfg.TrustedProxyPrefixes(); err != nil {
		errors = append(errors, err.Error())
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}

	if len(cfg.JWTSecret) < 16 {
		errors = append(errors, "JWTSecret must be at least 16 characters")
	}
	if cfg.JWTTTL <= 0 {
		errors = append(errors, fmt.Sprintf("JWTTTL must be positive, got: %s", cfg.JWTTTL))
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		errors = append(errors, fmt.Sprintf("BcryptCost must be between 4 and 31, got: %d", cfg.BcryptCost))
	}
	if cfg.PasswordResetTTL <= 0 {
		errors = append(errors, fmt.Sprintf("PasswordResetTTL must be positive, got: %s", cfg.PasswordResetTTL))
	}
	if cfg.ResetPurgeInterval <= 0 {
		errors = append(errors, fmt.Sprintf("ResetPurgeInterval must be positive, got: %s", cfg.ResetPurgeInterval))
	}

	switch cfg.PaymentProvider {
	case PaymentStripe:
		if cfg.StripeSecretKey == "" {
			errors = append(errors, "StripeSecretKey is required when PaymentProvider is stripe")
		}
	case PaymentSandbox:
	default:
		errors = append(errors, fmt.Sprintf("PaymentProvider must be one of [stripe, sandbox], got: %s", cfg.PaymentProvider))
	}
	if len(cfg.PaymentCurrency) != 3 {
		errors = append(errors, fmt.Sprintf("PaymentCurrency must be a 3-letter ISO code, got: %s", cfg.PaymentCurrency))
	}
	if len(cfg.PaymentMethodTypes) == 0 {
		errors = append(errors, "PaymentMethodTypes cannot be empty")
	}

	switch cfg.EventsBroker {
	case BrokerNone, BrokerKafka:
	case BrokerRabbitMQ:
		if cfg.RabbitMQURL == "" || cfg.RabbitMQQueue == "" {
			errors = append(errors, "RabbitMQURL and RabbitMQQueue are required when EventsBroker is rabbitmq")
		}
	default:
		errors = append(errors, fmt.Sprintf("EventsBroker must be one of [none, kafka, rabbitmq], got: %s", cfg.EventsBroker))
	}
	if cfg.EventsTopic == "" {
		errors = append(errors, "EventsTopic cannot be empty")
	}

	switch cfg.DocumentBackend {
	case DocumentsLocal:
		if cfg.UploadDir == "" {
			errors = append(errors, "UploadDir cannot be empty when DocumentBackend is local")
		}
	case DocumentsS3:
		if cfg.S3Bucket == "" {
			errors = append(errors, "S3Bucket is required when DocumentBackend is s3")
		}
		if cfg.S3PresignTTL <= 0 {
			errors = append(errors, fmt.Sprintf("S3PresignTTL must be positive, got: %s", cfg.S3PresignTTL))
		}
	default:
		errors = append(errors, fmt.Sprintf("DocumentBackend must be one of [local, s3], got: %s", cfg.DocumentBackend))
	}
	if cfg.MaxUploadSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxUploadSize must be positive, got: %d", cfg.MaxUploadSize))
	}

	if cfg.WeatherGeocodeURL == "" || cfg.WeatherForecastURL == "" {
		errors = append(errors, "Weather URLs cannot be empty")
	}
	if cfg.WeatherTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WeatherTimeout must be positive, got: %s", cfg.WeatherTimeout))
	}
	if cfg.BookingDeleteWindow < 0 {
		errors = append(errors, fmt.Sprintf("BookingDeleteWindow cannot be negative, got: %s", cfg.BookingDeleteWindow))
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"storage_backend", cfg.StorageBackend,
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"port", cfg.Port,
		"rate_limit_backend", cfg.RateLimitBackend,
		"rate_limit_window", cfg.RateLimitWindow,
		"rate_limit_step", cfg.RateLimitStep,
		"rate_limit_confirm", cfg.RateLimitConfirm,
		"rate_limit_payment", cfg.RateLimitPayment,
		"rate_limit_auth", cfg.RateLimitAuth,
		"redis_addr", cfg.RedisAddr,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"trusted_proxies", cfg.TrustedProxies,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"jwt_issuer", cfg.JWTIssuer,
		"jwt_ttl", cfg.JWTTTL,
		"bcrypt_cost", cfg.BcryptCost,
		"password_reset_ttl", cfg.PasswordResetTTL,
		"payment_provider", cfg.PaymentProvider,
		"stripe_key_set", cfg.StripeSecretKey != "",
		"stripe_webhook_secret_set", cfg.StripeWebhookSecret != "",
		"payment_currency", cfg.PaymentCurrency,
		"payment_method_types", cfg.PaymentMethodTypes,
		"events_broker", cfg.EventsBroker,
		"events_topic", cfg.EventsTopic,
		"document_backend", cfg.DocumentBackend,
		"upload_dir", cfg.UploadDir,
		"max_upload_size", cfg.MaxUploadSize,
		"s3_bucket", cfg.S3Bucket,
		"booking_delete_window", cfg.BookingDeleteWindow,
	)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

// TrustedProxyPrefixes parses TrustedProxies. A bare address is a
// single-host range.
func (cfg *Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(cfg.TrustedProxies))
	for _, entry := range cfg.TrustedProxies {
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("TrustedProxies entry %q is not a valid CIDR", entry)
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("TrustedProxies entry %q is not a valid address", entry)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key, fallback string) []string {
	raw := getEnvStr(key, fallback)
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log)
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = 10
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
