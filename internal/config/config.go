package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Storage backends.
const (
	StorageFirestore = "firestore"
	StorageMemory    = "memory"
)

// Daily limit backends.
const (
	LimitRedis     = "redis"
	LimitFirestore = "firestore"
	LimitMemory    = "memory"
)

// Auth modes.
const (
	AuthOff    = "off"
	AuthVerify = "verify"
)

// Plan identifiers accepted by create-checkout.
const (
	PlanMonthly     = "monthly"
	PlanYearly      = "yearly"
	PlanThreeMonths = "three_months"
)

// Config holds all configuration for the application.
type Config struct {
	Port      string `mapstructure:"PORT"`
	GinMode   string `mapstructure:"GIN_MODE"`
	ClientURL string `mapstructure:"CLIENT_URL"`
	AuthMode  string `mapstructure:"AUTH_MODE"`

	StorageBackend                   string `mapstructure:"STORAGE_BACKEND"`
	FirebaseProjectID                string `mapstructure:"FIREBASE_PROJECT_ID"`
	GoogleApplicationCredentials     string `mapstructure:"GOOGLE_APPLICATION_CREDENTIALS"`
	FirebaseServiceAccountJSONBase64 string `mapstructure:"FIREBASE_SERVICE_ACCOUNT_JSON_BASE64"`

	StripeSecretKey       string `mapstructure:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret   string `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	AllowUnsignedWebhooks bool   `mapstructure:"ALLOW_UNSIGNED_WEBHOOKS"`
	PriceMonthly          string `mapstructure:"STRIPE_PRICE_MONTHLY"`
	PriceYearly           string `mapstructure:"STRIPE_PRICE_YEARLY"`
	PriceThreeMonths      string `mapstructure:"STRIPE_PRICE_THREE_MONTHS"`

	FreeDailyMessages int    `mapstructure:"FREE_DAILY_MESSAGES"`
	DefaultPersona    string `mapstructure:"DEFAULT_PERSONA"`
	LimitBackend      string `mapstructure:"LIMIT_BACKEND"`
	RedisAddr         string `mapstructure:"REDIS_ADDR"`
	RedisPassword     string `mapstructure:"REDIS_PASSWORD"`
	RedisDB           int    `mapstructure:"REDIS_DB"`

	RabbitMQURL              string `mapstructure:"RABBITMQ_URL"`
	RabbitMQEntitlementQueue string `mapstructure:"RABBITMQ_ENTITLEMENT_QUEUE"`
	RabbitMQReportsQueue     string `mapstructure:"RABBITMQ_REPORTS_QUEUE"`
}

var keys = []string{
	"PORT", "GIN_MODE", "CLIENT_URL", "AUTH_MODE",
	"STORAGE_BACKEND", "FIREBASE_PROJECT_ID", "GOOGLE_APPLICATION_CREDENTIALS", "FIREBASE_SERVICE_ACCOUNT_JSON_BASE64",
	"STRIPE_SECRET_KEY", "STRIPE_WEBHOOK_SECRET", "ALLOW_UNSIGNED_WEBHOOKS",
	"STRIPE_PRICE_MONTHLY", "STRIPE_PRICE_YEARLY", "STRIPE_PRICE_THREE_MONTHS",
	"FREE_DAILY_MESSAGES", "DEFAULT_PERSONA", "LIMIT_BACKEND", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	"RABBITMQ_URL", "RABBITMQ_ENTITLEMENT_QUEUE", "RABBITMQ_REPORTS_QUEUE",
}

// LoadConfig loads configuration from environment variables using Viper.
// If CONFIG_FILE is set, that file is read first and environment variables override it.
func LoadConfig() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("PORT", "8080")
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("CLIENT_URL", "http://localhost:3000")
	v.SetDefault("AUTH_MODE", AuthOff)
	v.SetDefault("STORAGE_BACKEND", StorageFirestore)
	v.SetDefault("STRIPE_PRICE_MONTHLY", "price_monthly_placeholder")
	v.SetDefault("STRIPE_PRICE_YEARLY", "price_yearly_placeholder")
	v.SetDefault("STRIPE_PRICE_THREE_MONTHS", "price_3months_placeholder")
	v.SetDefault("FREE_DAILY_MESSAGES", 20)
	v.SetDefault("DEFAULT_PERSONA", "Luna")
	v.SetDefault("RABBITMQ_ENTITLEMENT_QUEUE", "entitlement.changed")
	v.SetDefault("RABBITMQ_REPORTS_QUEUE", "support.reports")

	for _, k := range keys {
		_ = v.BindEnv(k)
	}
	_ = v.BindEnv("CONFIG_FILE")

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.New("failed to unmarshal config: " + err.Error())
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.GinMode = strings.ToLower(strings.TrimSpace(c.GinMode))
	c.AuthMode = strings.ToLower(strings.TrimSpace(c.AuthMode))
	c.StorageBackend = strings.ToLower(strings.TrimSpace(c.StorageBackend))
	c.LimitBackend = strings.ToLower(strings.TrimSpace(c.LimitBackend))
	c.ClientURL = strings.TrimRight(strings.TrimSpace(c.ClientURL), "/")
	if c.LimitBackend == "" {
		switch {
		case c.RedisAddr != "":
			c.LimitBackend = LimitRedis
		case c.StorageBackend == StorageFirestore:
			c.LimitBackend = LimitFirestore
		default:
			c.LimitBackend = LimitMemory
		}
	}
}

// Validate checks required fields and rejects insecure combinations.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case StorageFirestore:
		if c.FirebaseProjectID == "" {
			return errors.New("FIREBASE_PROJECT_ID is required for the firestore storage backend")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}

	switch c.LimitBackend {
	case LimitRedis:
		if c.RedisAddr == "" {
			return errors.New("REDIS_ADDR is required for the redis limit backend")
		}
	case LimitFirestore:
		if c.StorageBackend != StorageFirestore {
			return errors.New("LIMIT_BACKEND=firestore requires STORAGE_BACKEND=firestore")
		}
	case LimitMemory:
	default:
		return fmt.Errorf("unknown LIMIT_BACKEND %q", c.LimitBackend)
	}

	switch c.AuthMode {
	case AuthOff, AuthVerify:
	default:
		return fmt.Errorf("unknown AUTH_MODE %q", c.AuthMode)
	}
	if c.AuthMode == AuthVerify && c.StorageBackend != StorageFirestore {
		return errors.New("AUTH_MODE=verify requires the Firebase app, set STORAGE_BACKEND=firestore")
	}

	if c.StripeSecretKey == "" {
		return errors.New("STRIPE_SECRET_KEY is required")
	}
	if c.StripeWebhookSecret == "" && c.IsRelease() && !c.AllowUnsignedWebhooks {
		return errors.New("STRIPE_WEBHOOK_SECRET is required in release mode (set ALLOW_UNSIGNED_WEBHOOKS=true to override)")
	}
	if c.FreeDailyMessages < 1 {
		return errors.New("FREE_DAILY_MESSAGES must be at least 1")
	}
	return nil
}

// IsRelease reports whether gin runs in release mode.
func (c *Config) IsRelease() bool {
	return c.GinMode == "release"
}

// PriceTable maps plan identifiers to Billing Provider price identifiers.
func (c *Config) PriceTable() map[string]string {
	return map[string]string{
		PlanMonthly:     c.PriceMonthly,
		PlanYearly:      c.PriceYearly,
		PlanThreeMonths: c.PriceThreeMonths,
	}
}
