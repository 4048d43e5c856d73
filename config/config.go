// config/config.go
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config is read once at startup from the environment, after an optional .env file.
type Config struct {
	Port           string        `env:"PORT,default=5200"`
	DatabaseURL    string        `env:"DATABASE_URL,required"`
	GatewayToken   string        `env:"GATEWAY_TOKEN,required"`
	JWTSecret      string        `env:"JWT_SECRET,required"`
	JWTTTL         time.Duration `env:"JWT_TTL,default=24h"`
	AllowedOrigins string        `env:"ALLOWED_ORIGINS,default=http://localhost:3000"`

	RedisURL       string        `env:"REDIS_URL"`
	WalletCacheTTL time.Duration `env:"WALLET_CACHE_TTL,default=10m"`
	KafkaBrokers   string        `env:"KAFKA_BROKERS"`
	KafkaTopic     string        `env:"KAFKA_TOPIC,default=wallet-events"`

	TransferTTL         time.Duration `env:"TRANSFER_TTL,default=168h"`
	ExpiryInterval      time.Duration `env:"EXPIRY_INTERVAL,default=1m"`
	AuditExportInterval time.Duration `env:"AUDIT_EXPORT_INTERVAL,default=1h"`

	R2AccountID       string `env:"CLOUDFLARE_ACCOUNT_ID"`
	R2AccessKeyID     string `env:"R2_ACCESS_KEY_ID"`
	R2AccessKeySecret string `env:"R2_ACCESS_KEY_SECRET"`
	R2Bucket          string `env:"R2_BUCKET_NAME"`

	LogLevel string `env:"LOG_LEVEL,default=info"`
}

// Load reads .env when present, then decodes the environment into Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}
	return FromEnv()
}

// FromEnv decodes the process environment without touching .env.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envdecode.StrictDecode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	if cfg.TransferTTL < 0 {
		return nil, fmt.Errorf("TRANSFER_TTL must not be negative, got %s", cfg.TransferTTL)
	}
	if cfg.ExpiryInterval <= 0 || cfg.AuditExportInterval <= 0 {
		return nil, fmt.Errorf("EXPIRY_INTERVAL and AUDIT_EXPORT_INTERVAL must be positive")
	}
	return &cfg, nil
}

// Origins returns the trimmed, non-empty entries of ALLOWED_ORIGINS.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// AuditExportEnabled reports whether every R2 setting needed for exports is present.
func (c *Config) AuditExportEnabled() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2AccessKeySecret != "" && c.R2Bucket != ""
}
