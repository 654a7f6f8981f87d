package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg := FromEnv("test")

	assert.Equal(t, StorageMongo, cfg.StorageBackend)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultRateLimitStep, cfg.RateLimitStep)
	assert.Equal(t, []string{"card"}, cfg.PaymentMethodTypes)
	assert.Equal(t, DefaultBookingDeleteWindow, cfg.BookingDeleteWindow)
	assert.False(t, cfg.ExposeResetToken)
	assert.Empty(t, cfg.TrustedProxies)
	require.NoError(t, cfg.Validate())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv(EnvStorageBackend, "MEMORY")
	t.Setenv(EnvRateLimitPayment, "3")
	t.Setenv(EnvRequestTimeout, "5s")
	t.Setenv(EnvExposeResetToken, "true")
	t.Setenv(EnvPaymentMethodTypes, "card, link ,")
	t.Setenv(EnvPaymentCurrency, "EUR")

	cfg := FromEnv("test")

	assert.Equal(t, StorageMemory, cfg.StorageBackend)
	assert.Equal(t, 3, cfg.RateLimitPayment)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.True(t, cfg.ExposeResetToken)
	assert.Equal(t, []string{"card", "link"}, cfg.PaymentMethodTypes)
	assert.Equal(t, "eur", cfg.PaymentCurrency)
}

func TestFromEnv_InvalidValuesFallBack(t *testing.T) {
	t.Setenv(EnvRateLimitStep, "lots")
	t.Setenv(EnvJWTTTL, "forever")

	cfg := FromEnv("test")

	assert.Equal(t, DefaultRateLimitStep, cfg.RateLimitStep)
	assert.Equal(t, DefaultJWTTTL, cfg.JWTTTL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name:    "bad port",
			mutate:  func(cfg *Config) { cfg.Port = "99999" },
			wantErr: "Port must be between",
		},
		{
			name:    "unknown storage backend",
			mutate:  func(cfg *Config) { cfg.StorageBackend = "postgres" },
			wantErr: "StorageBackend must be one of",
		},
		{
			name:    "bad mongo scheme",
			mutate:  func(cfg *Config) { cfg.MongoURI = "http://localhost" },
			wantErr: "MongoURI must start with",
		},
		{
			name: "memory storage skips mongo checks",
			mutate: func(cfg *Config) {
				cfg.StorageBackend = StorageMemory
				cfg.MongoURI = ""
			},
		},
		{
			name:    "short jwt secret",
			mutate:  func(cfg *Config) { cfg.JWTSecret = "short" },
			wantErr: "JWTSecret must be at least 16 characters",
		},
		{
			name:    "stripe without key",
			mutate:  func(cfg *Config) { cfg.PaymentProvider = PaymentStripe },
			wantErr: "StripeSecretKey is required",
		},
		{
			name:    "s3 without bucket",
			mutate:  func(cfg *Config) { cfg.DocumentBackend = DocumentsS3 },
			wantErr: "S3Bucket is required",
		},
		{
			name:    "unknown broker",
			mutate:  func(cfg *Config) { cfg.EventsBroker = "nats" },
			wantErr: "EventsBroker must be one of",
		},
		{
			name:    "zero rate limit",
			mutate:  func(cfg *Config) { cfg.RateLimitConfirm = 0 },
			wantErr: "RateLimitConfirm must be positive",
		},
		{
			name:    "bad trusted proxy",
			mutate:  func(cfg *Config) { cfg.TrustedProxies = []string{"10.0.0.0/8", "proxy.local"} },
			wantErr: `TrustedProxies entry "proxy.local"`,
		},
		{
			name:    "bcrypt cost out of range",
			mutate:  func(cfg *Config) { cfg.BcryptCost = 40 },
			wantErr: "BcryptCost must be between 4 and 31",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := FromEnv("test")
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_NumbersEveryProblem(t *testing.T) {
	cfg := FromEnv("test")
	cfg.Port = "0"
	cfg.JWTSecret = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "1. ") && strings.Contains(err.Error(), "2. "))
}

func TestRedactMongoURI(t *testing.T) {
	assert.Equal(t, "mongodb://***:***@db:27017", redactMongoURI("mongodb://admin:hunter2@db:27017"))
	assert.Equal(t, "mongodb://localhost:27017", redactMongoURI("mongodb://localhost:27017"))
}

func TestNormalizePaginationLimit(t *testing.T) {
	assert.Equal(t, 10, NormalizePaginationLimit(0))
	assert.Equal(t, 25, NormalizePaginationLimit(25))
	assert.Equal(t, DefaultPaginationLimit, NormalizePaginationLimit(1000))
	assert.Equal(t, int64(0), NormalizeOffset(-5))
}

func TestTrustedProxyPrefixes(t *testing.T) {
	t.Setenv(EnvTrustedProxies, "10.0.0.0/8, 192.0.2.7 ,::1")
	cfg := FromEnv("test")

	prefixes, err := cfg.TrustedProxyPrefixes()
	require.NoError(t, err)
	require.Len(t, prefixes, 3)
	assert.Equal(t, "10.0.0.0/8", prefixes[0].String())
	assert.Equal(t, "192.0.2.7/32", prefixes[1].String())
	assert.Equal(t, "::1/128", prefixes[2].String())
}
