package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration for the two-factor auth service.
type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	DatabaseURL string
	RedisURL    string
	MaxDBConns  int32

	KafkaBrokers []string
	KafkaTopic   string

	TokenIssuer        string
	TokenAudience      string
	TokenSigningKey    string
	TokenExpiryMinutes int
	DeviceStampKey     string

	BcryptCost int

	PendingTwoFactorTTL     time.Duration
	MaxSecondFactorAttempts int
	DeviceTrustTTL          time.Duration
	AuthenticatorIssuer     string
	RecoveryCodeCount       int
	FailedThreshold         int
	LockoutDuration         time.Duration
	PasswordResetTTL        time.Duration

	RateLimitRPS   float64
	RateLimitBurst int

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxClaimTTL     time.Duration
	OutboxMaxRetries   int
}

// configFile mirrors the YAML schema used by configs/default.yaml.
// Secrets are env-only and have no file counterpart.
type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL  string   `yaml:"postgres_url"`
		RedisURL     string   `yaml:"redis_url"`
		KafkaBrokers []string `yaml:"kafka_brokers"`
		KafkaTopic   string   `yaml:"kafka_topic"`
	} `yaml:"dependencies"`
	Tokens struct {
		Issuer        string `yaml:"issuer"`
		Audience      string `yaml:"audience"`
		ExpiryMinutes int    `yaml:"expiry_minutes"`
	} `yaml:"tokens"`
	TwoFactor struct {
		PendingTTL          time.Duration `yaml:"pending_ttl"`
		MaxAttempts         int           `yaml:"max_attempts"`
		DeviceTrustTTL      time.Duration `yaml:"device_trust_ttl"`
		AuthenticatorIssuer string        `yaml:"authenticator_issuer"`
		RecoveryCodeCount   int           `yaml:"recovery_code_count"`
	} `yaml:"two_factor"`
	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
// A missing file is not an error; a malformed one is.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:               "two-factor-auth-service",
		HTTPPort:                8080,
		GRPCPort:                9090,
		MaxDBConns:              20,
		KafkaTopic:              "auth.events",
		TokenIssuer:             "two-factor-auth-service",
		TokenAudience:           "viralforge-api",
		TokenExpiryMinutes:      5,
		BcryptCost:              12,
		PendingTwoFactorTTL:     5 * time.Minute,
		MaxSecondFactorAttempts: 5,
		DeviceTrustTTL:          30 * 24 * time.Hour,
		AuthenticatorIssuer:     "Pegasus",
		RecoveryCodeCount:       10,
		FailedThreshold:         5,
		LockoutDuration:         15 * time.Minute,
		PasswordResetTTL:        time.Hour,
		RateLimitRPS:            5,
		RateLimitBurst:          10,
		OutboxPollInterval:      2 * time.Second,
		OutboxBatchSize:         100,
		OutboxClaimTTL:          30 * time.Second,
		OutboxMaxRetries:        5,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		applyFile(&cfg, f)
	}

	cfg.ServiceID = envOrDefault("SERVICE_ID", cfg.ServiceID)
	cfg.DatabaseURL = envOrDefault("DATABASE_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaTopic = envOrDefault("KAFKA_TOPIC", cfg.KafkaTopic)
	cfg.TokenIssuer = envOrDefault("TOKEN_ISSUER", cfg.TokenIssuer)
	cfg.TokenAudience = envOrDefault("TOKEN_AUDIENCE", cfg.TokenAudience)
	cfg.TokenSigningKey = envOrDefault("TOKEN_SIGNING_KEY", cfg.TokenSigningKey)
	cfg.DeviceStampKey = envOrDefault("DEVICE_STAMP_KEY", cfg.TokenSigningKey)
	cfg.AuthenticatorIssuer = envOrDefault("AUTHENTICATOR_ISSUER", cfg.AuthenticatorIssuer)

	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))
	cfg.TokenExpiryMinutes = envInt("TOKEN_EXPIRY_MINUTES", cfg.TokenExpiryMinutes)
	cfg.BcryptCost = envInt("BCRYPT_ROUNDS", cfg.BcryptCost)
	cfg.MaxSecondFactorAttempts = envInt("MAX_SECOND_FACTOR_ATTEMPTS", cfg.MaxSecondFactorAttempts)
	cfg.RecoveryCodeCount = envInt("RECOVERY_CODE_COUNT", cfg.RecoveryCodeCount)
	cfg.FailedThreshold = envInt("FAILED_LOGIN_THRESHOLD", cfg.FailedThreshold)
	cfg.RateLimitRPS = envFloat("RATE_LIMIT_RPS", cfg.RateLimitRPS)
	cfg.RateLimitBurst = envInt("RATE_LIMIT_BURST", cfg.RateLimitBurst)
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxMaxRetries = envInt("OUTBOX_MAX_RETRIES", cfg.OutboxMaxRetries)

	cfg.PendingTwoFactorTTL = envDuration("PENDING_2FA_TTL", cfg.PendingTwoFactorTTL)
	cfg.DeviceTrustTTL = envDuration("DEVICE_TRUST_TTL", cfg.DeviceTrustTTL)
	cfg.LockoutDuration = envDuration("ACCOUNT_LOCKOUT_DURATION", cfg.LockoutDuration)
	cfg.PasswordResetTTL = envDuration("PASSWORD_RESET_TTL", cfg.PasswordResetTTL)
	cfg.OutboxPollInterval = envDuration("OUTBOX_POLL_INTERVAL", cfg.OutboxPollInterval)
	cfg.OutboxClaimTTL = envDuration("OUTBOX_CLAIM_TTL", cfg.OutboxClaimTTL)

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing DATABASE_URL/POSTGRES_URL")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("missing REDIS_URL")
	}
	if cfg.TokenSigningKey == "" {
		return Config{}, fmt.Errorf("missing TOKEN_SIGNING_KEY")
	}

	return cfg, nil
}

func applyFile(cfg *Config, f configFile) {
	if f.Service.ID != "" {
		cfg.ServiceID = f.Service.ID
	}
	if f.Service.HTTPPort > 0 {
		cfg.HTTPPort = f.Service.HTTPPort
	}
	if f.Service.GRPCPort > 0 {
		cfg.GRPCPort = f.Service.GRPCPort
	}
	if f.Dependencies.PostgresURL != "" {
		cfg.DatabaseURL = f.Dependencies.PostgresURL
	}
	if f.Dependencies.RedisURL != "" {
		cfg.RedisURL = f.Dependencies.RedisURL
	}
	if len(f.Dependencies.KafkaBrokers) > 0 {
		cfg.KafkaBrokers = f.Dependencies.KafkaBrokers
	}
	if f.Dependencies.KafkaTopic != "" {
		cfg.KafkaTopic = f.Dependencies.KafkaTopic
	}
	if f.Tokens.Issuer != "" {
		cfg.TokenIssuer = f.Tokens.Issuer
	}
	if f.Tokens.Audience != "" {
		cfg.TokenAudience = f.Tokens.Audience
	}
	if f.Tokens.ExpiryMinutes > 0 {
		cfg.TokenExpiryMinutes = f.Tokens.ExpiryMinutes
	}
	if f.TwoFactor.PendingTTL > 0 {
		cfg.PendingTwoFactorTTL = f.TwoFactor.PendingTTL
	}
	if f.TwoFactor.MaxAttempts > 0 {
		cfg.MaxSecondFactorAttempts = f.TwoFactor.MaxAttempts
	}
	if f.TwoFactor.DeviceTrustTTL > 0 {
		cfg.DeviceTrustTTL = f.TwoFactor.DeviceTrustTTL
	}
	if f.TwoFactor.AuthenticatorIssuer != "" {
		cfg.AuthenticatorIssuer = f.TwoFactor.AuthenticatorIssuer
	}
	if f.TwoFactor.RecoveryCodeCount > 0 {
		cfg.RecoveryCodeCount = f.TwoFactor.RecoveryCodeCount
	}
	if f.RateLimit.RPS > 0 {
		cfg.RateLimitRPS = f.RateLimit.RPS
	}
	if f.RateLimit.Burst > 0 {
		cfg.RateLimitBurst = f.RateLimit.Burst
	}
}

// envOrDefault returns an env var when present, otherwise the provided fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt parses integer env vars with safe fallback on empty/invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envFloat(name string, fallback float64) float64 {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

// envDuration accepts Go duration strings such as "90s" or "720h".
func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

// envCSV parses comma-separated env vars and removes empty segments.
func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		parts = append(parts, trimmed)
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}
