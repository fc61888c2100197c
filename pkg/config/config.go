package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is read from environment variables, optionally seeded from a
// .env or config.env file. Environment wins.
type Config struct {
	App          AppConfig
	HTTP         HTTPConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Storage      StorageConfig
	Payments     PaymentsConfig
	Subscription SubscriptionConfig
}

type AppConfig struct {
	Env      string // development, staging, production
	LogLevel string
}

type HTTPConfig struct {
	Host string
	Port int
}

func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DBConfig is optional; an empty URL runs the engine on the in-memory store.
type DBConfig struct {
	URL string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

func (c RedisConfig) Enabled() bool { return c.Addr != "" }

type JWTConfig struct {
	Secret  string
	JWKSURL string
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

func (c StorageConfig) Enabled() bool { return c.Endpoint != "" }

// PaymentsConfig covers the gateway callback. An empty secret disables the
// webhook route.
type PaymentsConfig struct {
	WebhookSecret string
}

type SubscriptionConfig struct {
	TrialDays         int
	TrialPlan         string
	Currency          string
	ReconcileInterval time.Duration // zero disables the host sweep
}

func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig()

	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		App: AppConfig{
			Env:      getString(v, "APP_ENV", "development"),
			LogLevel: getString(v, "LOG_LEVEL", "info"),
		},
		HTTP: HTTPConfig{
			Host: getString(v, "HTTP_HOST", "0.0.0.0"),
			Port: getInt(v, "HTTP_PORT", 8080),
		},
		DB: DBConfig{
			URL: getString(v, "DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			Addr:     getString(v, "REDIS_ADDR", ""),
			Password: getString(v, "REDIS_PASSWORD", ""),
			DB:       getInt(v, "REDIS_DB", 0),
			LockTTL:  getDuration(v, "LOCK_TTL", 10*time.Second),
		},
		JWT: JWTConfig{
			Secret:  getString(v, "JWT_SECRET", ""),
			JWKSURL: getString(v, "JWT_JWKS_URL", ""),
		},
		Storage: StorageConfig{
			Endpoint:  getString(v, "MINIO_ENDPOINT", ""),
			AccessKey: getString(v, "MINIO_ACCESS_KEY", ""),
			SecretKey: getString(v, "MINIO_SECRET_KEY", ""),
			UseSSL:    getBool(v, "MINIO_USE_SSL", false),
			Bucket:    getString(v, "STORAGE_BUCKET", "tenantcrm"),
		},
		Payments: PaymentsConfig{
			WebhookSecret: getString(v, "PAYMENT_WEBHOOK_SECRET", ""),
		},
		Subscription: SubscriptionConfig{
			TrialDays:         getInt(v, "TRIAL_DAYS", 15),
			TrialPlan:         getString(v, "TRIAL_PLAN", "professional"),
			Currency:          getString(v, "CURRENCY", "INR"),
			ReconcileInterval: getDuration(v, "RECONCILE_INTERVAL", 0),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.JWT.Secret == "" && c.JWT.JWKSURL == "" {
		return fmt.Errorf("config: one of JWT_SECRET or JWT_JWKS_URL is required")
	}
	if c.Subscription.TrialDays <= 0 {
		return fmt.Errorf("config: TRIAL_DAYS must be positive, got %d", c.Subscription.TrialDays)
	}
	if c.Subscription.TrialPlan == "" {
		return fmt.Errorf("config: TRIAL_PLAN must not be empty")
	}
	if c.Redis.LockTTL <= 0 {
		return fmt.Errorf("config: LOCK_TTL must be positive")
	}
	return nil
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return def
}

func getInt(v *viper.Viper, key string, def int) int {
	if v.IsSet(key) {
		switch v.Get(key).(type) {
		case int:
			return v.GetInt(key)
		case string:
			n, err := strconv.Atoi(v.GetString(key))
			if err != nil {
				return def
			}
			return n
		default:
			return v.GetInt(key)
		}
	}
	return def
}

func getBool(v *viper.Viper, key string, def bool) bool {
	if v.IsSet(key) {
		return v.GetBool(key)
	}
	return def
}

func getDuration(v *viper.Viper, key string, def time.Duration) time.Duration {
	if v.IsSet(key) {
		return v.GetDuration(key)
	}
	return def
}
