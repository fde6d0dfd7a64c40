package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Port          string
	DBDriver      string
	DBConn        string
	LogLevel      string
	JWTSecret     string
	EncryptionKey string

	ProviderURL      string
	ProviderTimeout  time.Duration
	ProviderCooldown time.Duration
	MaxWindow        time.Duration
	HomeCurrency     int
	CashType         string

	SyncWorkers       int
	SyncQueue         int
	SyncSchedule      string
	ReconcileSchedule string
	StatementDir      string

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SenderEmail  string
}

var defaults = map[string]any{
	"PORT":               "8080",
	"DB_DRIVER":          "postgres",
	"DB_CONN":            "host=localhost port=5436 user=test password=test dbname=bank sslmode=disable",
	"LOG_LEVEL":          "INFO",
	"JWT_SECRET":         "secret",
	"ENCRYPTION_KEY":     "a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6",
	"PROVIDER_URL":       "https://api.monobank.ua/personal",
	"PROVIDER_TIMEOUT":   "10s",
	"PROVIDER_COOLDOWN":  "61s",
	"MAX_WINDOW":         "745h", // 31 days + 1 hour
	"HOME_CURRENCY":      980,
	"CASH_TYPE":          "UAH",
	"SYNC_WORKERS":       4,
	"SYNC_QUEUE":         64,
	"SYNC_SCHEDULE":      "@every 1h",
	"RECONCILE_SCHEDULE": "@daily",
	"STATEMENT_DIR":      "data/statements",
	"SMTP_HOST":          "",
	"SMTP_PORT":          "587",
	"SMTP_USERNAME":      "",
	"SMTP_PASSWORD":      "",
	"SENDER_EMAIL":       "",
}

// NewConfig loads configuration from environment variables and, when CONFIG_FILE is set, from that file
func NewConfig() (*Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path := v.GetString("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		Port:              v.GetString("PORT"),
		DBDriver:          strings.ToLower(v.GetString("DB_DRIVER")),
		DBConn:            v.GetString("DB_CONN"),
		LogLevel:          v.GetString("LOG_LEVEL"),
		JWTSecret:         v.GetString("JWT_SECRET"),
		EncryptionKey:     v.GetString("ENCRYPTION_KEY"),
		ProviderURL:       strings.TrimRight(v.GetString("PROVIDER_URL"), "/"),
		ProviderTimeout:   v.GetDuration("PROVIDER_TIMEOUT"),
		ProviderCooldown:  v.GetDuration("PROVIDER_COOLDOWN"),
		MaxWindow:         v.GetDuration("MAX_WINDOW"),
		HomeCurrency:      v.GetInt("HOME_CURRENCY"),
		CashType:          v.GetString("CASH_TYPE"),
		SyncWorkers:       v.GetInt("SYNC_WORKERS"),
		SyncQueue:         v.GetInt("SYNC_QUEUE"),
		SyncSchedule:      v.GetString("SYNC_SCHEDULE"),
		ReconcileSchedule: v.GetString("RECONCILE_SCHEDULE"),
		StatementDir:      v.GetString("STATEMENT_DIR"),
		SMTPHost:          v.GetString("SMTP_HOST"),
		SMTPPort:          v.GetString("SMTP_PORT"),
		SMTPUsername:      v.GetString("SMTP_USERNAME"),
		SMTPPassword:      v.GetString("SMTP_PASSWORD"),
		SenderEmail:       v.GetString("SENDER_EMAIL"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DBConn == "" {
		return fmt.Errorf("DB_CONN is required")
	}
	if c.DBDriver != "postgres" && c.DBDriver != "sqlite" {
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required")
	}
	if c.ProviderURL == "" {
		return fmt.Errorf("PROVIDER_URL is required")
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT must be positive")
	}
	if c.ProviderCooldown < 0 {
		return fmt.Errorf("PROVIDER_COOLDOWN must not be negative")
	}
	if c.MaxWindow <= 0 {
		return fmt.Errorf("MAX_WINDOW must be positive")
	}
	if c.SyncWorkers < 1 {
		return fmt.Errorf("SYNC_WORKERS must be at least 1")
	}
	if c.SyncQueue < 1 {
		return fmt.Errorf("SYNC_QUEUE must be at least 1")
	}
	return nil
}

// HTTPAddress returns the listen address for the API server
func (c *Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

// SMTPEnabled reports whether failure notifications can be sent
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != "" && c.SenderEmail != ""
}
