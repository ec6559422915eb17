package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	OverClaimWarn   = "warn"
	OverClaimReject = "reject"
)

type HTTPConfig struct {
	Host               string
	Port               int
	CORSAllowedOrigins []string
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
}

type AuthConfig struct {
	AccessSecret string
}

type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	SummaryTTL time.Duration
}

type LedgerConfig struct {
	OnTimePaymentDays   int
	OverClaimPolicy     string
	ReviewReminderHours int
}

type NotifyConfig struct {
	QueueSize int
}

type Config struct {
	Environment string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	Redis       RedisConfig
	Ledger      LedgerConfig
	Notify      NotifyConfig
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("HTTP_HOST", "0.0.0.0")
	v.SetDefault("HTTP_PORT", 7090)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("CACHE_SUMMARY_TTL", "5m")
	v.SetDefault("LEDGER_ON_TIME_PAYMENT_DAYS", 14)
	v.SetDefault("LEDGER_OVERCLAIM_POLICY", OverClaimWarn)
	v.SetDefault("LEDGER_REVIEW_REMINDER_HOURS", 72)
	v.SetDefault("NOTIFY_QUEUE_SIZE", 256)

	_ = v.ReadInConfig()

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host:               v.GetString("HTTP_HOST"),
			Port:               v.GetInt("HTTP_PORT"),
			CORSAllowedOrigins: parseList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetString("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Redis: RedisConfig{
			Addr:       v.GetString("REDIS_ADDR"),
			Password:   v.GetString("REDIS_PASSWORD"),
			DB:         v.GetInt("REDIS_DB"),
			SummaryTTL: v.GetDuration("CACHE_SUMMARY_TTL"),
		},
		Ledger: LedgerConfig{
			OnTimePaymentDays:   v.GetInt("LEDGER_ON_TIME_PAYMENT_DAYS"),
			OverClaimPolicy:     strings.ToLower(strings.TrimSpace(v.GetString("LEDGER_OVERCLAIM_POLICY"))),
			ReviewReminderHours: v.GetInt("LEDGER_REVIEW_REMINDER_HOURS"),
		},
		Notify: NotifyConfig{
			QueueSize: v.GetInt("NOTIFY_QUEUE_SIZE"),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c LedgerConfig) OnTimeWindow() time.Duration {
	return time.Duration(c.OnTimePaymentDays) * 24 * time.Hour
}

func (c LedgerConfig) ReviewReminder() time.Duration {
	return time.Duration(c.ReviewReminderHours) * time.Hour
}

func (c LedgerConfig) RejectOverClaims() bool {
	return c.OverClaimPolicy == OverClaimReject
}

func validate(cfg *Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.DB.ConnMaxLifetime != "" {
		if _, err := time.ParseDuration(cfg.DB.ConnMaxLifetime); err != nil {
			return fmt.Errorf("DB_CONN_MAX_LIFETIME: %w", err)
		}
	}
	if cfg.Ledger.OnTimePaymentDays <= 0 {
		return fmt.Errorf("LEDGER_ON_TIME_PAYMENT_DAYS must be positive")
	}
	switch cfg.Ledger.OverClaimPolicy {
	case OverClaimWarn, OverClaimReject:
	default:
		return fmt.Errorf("LEDGER_OVERCLAIM_POLICY must be %q or %q", OverClaimWarn, OverClaimReject)
	}
	return nil
}

func parseList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	items := strings.Split(raw, ",")
	result := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}
