package config

import (
	"fmt"
	"strings"
	"time"

	"driver-settlement-engine/internal/core/domain"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Log        LogConfig        `mapstructure:"log"`
	Webhook    WebhookConfig    `mapstructure:"webhook"`
	Settlement SettlementConfig `mapstructure:"settlement"`
	Audit      AuditConfig      `mapstructure:"audit"`
	Sweep      SweepConfig      `mapstructure:"sweep"`
	Currency   string           `mapstructure:"currency"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LockTimeout     time.Duration `mapstructure:"lock_timeout"` // wallet row lock wait, 0 = server default
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// MigrationURL returns the DSN in the form expected by the migrate pgx/v5 driver.
func (d DatabaseConfig) MigrationURL() string {
	return "pgx5" + strings.TrimPrefix(d.DSN(), "postgres")
}

type RedisConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	OpTimeout   time.Duration `mapstructure:"op_timeout"` // read/write deadline per command
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// WebhookConfig holds the credentials the dispatch service signs delivery events with.
type WebhookConfig struct {
	AccessKey string        `mapstructure:"access_key"`
	Secret    string        `mapstructure:"secret"`
	MaxDrift  time.Duration `mapstructure:"max_drift"`
	NonceTTL  time.Duration `mapstructure:"nonce_ttl"`
}

// SettlementConfig holds the business rules applied when an order is delivered.
// Amounts are decimal strings so no float ever touches money.
type SettlementConfig struct {
	FixedCommission    string `mapstructure:"fixed_commission"`
	CreditLimit        string `mapstructure:"credit_limit"`
	AutoLiquidateDebts bool   `mapstructure:"auto_liquidate_debts"`
}

// Rules parses the configured amounts.
func (s SettlementConfig) Rules() (domain.SettlementRules, error) {
	commission, err := parseAmount("settlement.fixed_commission", s.FixedCommission)
	if err != nil {
		return domain.SettlementRules{}, err
	}
	limit, err := parseAmount("settlement.credit_limit", s.CreditLimit)
	if err != nil {
		return domain.SettlementRules{}, err
	}
	return domain.SettlementRules{
		FixedCommission:    commission,
		CreditLimit:        limit,
		AutoLiquidateDebts: s.AutoLiquidateDebts,
	}, nil
}

type AuditConfig struct {
	MatchTolerance    string        `mapstructure:"match_tolerance"`
	AlertThreshold    string        `mapstructure:"alert_threshold"`
	Timeout           time.Duration `mapstructure:"timeout"`
	AlertWebhookURL   string        `mapstructure:"alert_webhook_url"`
	AlertSecret       string        `mapstructure:"alert_secret"`
	TipRatioThreshold string        `mapstructure:"tip_ratio_threshold"`
}

// Policy parses the reconciliation tolerances.
func (a AuditConfig) Policy() (domain.AuditPolicy, error) {
	tolerance, err := parseAmount("audit.match_tolerance", a.MatchTolerance)
	if err != nil {
		return domain.AuditPolicy{}, err
	}
	threshold, err := parseAmount("audit.alert_threshold", a.AlertThreshold)
	if err != nil {
		return domain.AuditPolicy{}, err
	}
	if a.Timeout <= 0 {
		return domain.AuditPolicy{}, fmt.Errorf("audit.timeout must be positive, got %s", a.Timeout)
	}
	return domain.AuditPolicy{
		MatchTolerance: tolerance,
		AlertThreshold: threshold,
		Timeout:        a.Timeout,
	}, nil
}

// TipRatio parses the anomaly detector threshold.
func (a AuditConfig) TipRatio() (decimal.Decimal, error) {
	return parseAmount("audit.tip_ratio_threshold", a.TipRatioThreshold)
}

type SweepConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Schedule  string `mapstructure:"schedule"` // six-field cron expression
	BatchSize int    `mapstructure:"batch_size"`
}

func parseAmount(key, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: invalid amount %q: %w", key, raw, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s: must not be negative, got %s", key, d.String())
	}
	return d, nil
}

// bareEnv lists the options operators may also set without the DSE_ prefix.
var bareEnv = map[string]string{
	"settlement.fixed_commission":     "FIXED_COMMISSION",
	"settlement.credit_limit":         "CREDIT_LIMIT",
	"settlement.auto_liquidate_debts": "AUTO_LIQUIDATE_DEBTS",
	"audit.match_tolerance":           "AUDIT_MATCH_TOLERANCE",
	"audit.alert_threshold":           "AUDIT_ALERT_THRESHOLD",
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: DSE_ (Driver Settlement Engine).
// Nested keys use underscore: DSE_DATABASE_HOST, DSE_SETTLEMENT_CREDIT_LIMIT, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "driver_settlement")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.lock_timeout", "5s")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.dial_timeout", "2s")
	v.SetDefault("redis.op_timeout", "500ms")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("webhook.access_key", "")
	v.SetDefault("webhook.secret", "")
	v.SetDefault("webhook.max_drift", "60s")
	v.SetDefault("webhook.nonce_ttl", "120s")
	v.SetDefault("settlement.fixed_commission", "15.00")
	v.SetDefault("settlement.credit_limit", "300.00")
	v.SetDefault("settlement.auto_liquidate_debts", true)
	v.SetDefault("audit.match_tolerance", "0.01")
	v.SetDefault("audit.alert_threshold", "5.00")
	v.SetDefault("audit.timeout", "10s")
	v.SetDefault("audit.alert_webhook_url", "")
	v.SetDefault("audit.alert_secret", "")
	v.SetDefault("audit.tip_ratio_threshold", "1.00")
	v.SetDefault("sweep.enabled", true)
	v.SetDefault("sweep.schedule", "0 */5 * * * *")
	v.SetDefault("sweep.batch_size", 100)
	v.SetDefault("currency", "MXN")

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: DSE_DATABASE_HOST -> database.host
	v.SetEnvPrefix("DSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, bare := range bareEnv {
		prefixed := "DSE_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, bare); err != nil {
			return nil, fmt.Errorf("binding env %s: %w", bare, err)
		}
	}

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
