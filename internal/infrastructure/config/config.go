// Package config loads the service settings with viper. Each key resolves
// from an ERP_ environment variable, then config.toml, then the defaults
// below; "stock_reservation.default_ttl" reads ERP_STOCK_RESERVATION_DEFAULT_TTL.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "ERP"

// Config holds all application configuration
type Config struct {
	App              AppConfig              `mapstructure:"app"`
	Database         DatabaseConfig         `mapstructure:"database"`
	Redis            RedisConfig            `mapstructure:"redis"`
	JWT              JWTConfig              `mapstructure:"jwt"`
	Log              LogConfig              `mapstructure:"log"`
	HTTP             HTTPConfig             `mapstructure:"http"`
	StockReservation StockReservationConfig `mapstructure:"stock_reservation"`
	Documents        DocumentsConfig        `mapstructure:"documents"`
	Messaging        MessagingConfig        `mapstructure:"messaging"`
	Telemetry        TelemetryConfig        `mapstructure:"telemetry"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Port string `mapstructure:"port"`
}

// IsProduction reports whether the app runs in production
func (a AppConfig) IsProduction() bool {
	return a.Env == "production"
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	SlowQuery       time.Duration `mapstructure:"slow_query"` // Logged and traced as slow above this
}

// DSN returns a postgres URL with user and password escaped
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     d.DBName,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}

// RedisConfig points at the Redis that backs document locks and delivery keys
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JWTConfig verifies access tokens. An empty secret switches the API to
// X-Tenant-ID / X-User-ID headers.
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
	Output string `mapstructure:"output"` // stdout, stderr, or file path
}

type HTTPConfig struct {
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// StockReservationConfig holds reservation hold and sweep settings
type StockReservationConfig struct {
	DefaultTTL     time.Duration `mapstructure:"default_ttl"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
	SweepEnabled   bool          `mapstructure:"sweep_enabled"`
	SweepBatchSize int           `mapstructure:"sweep_batch_size"` // 0 expires everything due
}

// DocumentsConfig holds quote, order and invoice settings
type DocumentsConfig struct {
	QuoteValidity      time.Duration `mapstructure:"quote_validity"`
	InvoicePaymentTerm time.Duration `mapstructure:"invoice_payment_term"`
	LockTTL            time.Duration `mapstructure:"lock_ttl"`
}

// MessagingConfig forwards lifecycle events to RabbitMQ
type MessagingConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	URL      string        `mapstructure:"url"`
	Exchange string        `mapstructure:"exchange"`
	DedupTTL time.Duration `mapstructure:"dedup_ttl"` // How long a handled event id is remembered
}

// TelemetryConfig exports traces and metrics over OTLP/gRPC
type TelemetryConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	CollectorEndpoint string  `mapstructure:"collector_endpoint"`
	SamplingRatio     float64 `mapstructure:"sampling_ratio"`
	ServiceName       string  `mapstructure:"service_name"`
	Insecure          bool    `mapstructure:"insecure"` // Plain gRPC, development only
}

var defaults = map[string]any{
	"app.name": "backoffice",
	"app.env":  "development",
	"app.port": "8080",

	"database.host":               "localhost",
	"database.port":               5432,
	"database.user":               "postgres",
	"database.password":           "",
	"database.dbname":             "backoffice",
	"database.sslmode":            "disable",
	"database.max_open_conns":     25,
	"database.max_idle_conns":     5,
	"database.conn_max_lifetime":  time.Hour,
	"database.conn_max_idle_time": 30 * time.Minute,
	"database.slow_query":         200 * time.Millisecond,

	"redis.enabled":  false,
	"redis.host":     "localhost",
	"redis.port":     6379,
	"redis.password": "",
	"redis.db":       0,

	"jwt.secret": "",
	"jwt.issuer": "backoffice",

	"log.level":  "info",
	"log.format": "console",
	"log.output": "stdout",

	"http.read_timeout":  15 * time.Second,
	"http.write_timeout": 15 * time.Second,
	"http.idle_timeout":  time.Minute,

	"stock_reservation.default_ttl":      24 * time.Hour,
	"stock_reservation.sweep_interval":   5 * time.Minute,
	"stock_reservation.sweep_enabled":    true,
	"stock_reservation.sweep_batch_size": 500,

	"documents.quote_validity":       30 * 24 * time.Hour,
	"documents.invoice_payment_term": 30 * 24 * time.Hour,
	"documents.lock_ttl":             10 * time.Second,

	"messaging.enabled":   false,
	"messaging.url":       "",
	"messaging.exchange":  "backoffice.events",
	"messaging.dedup_ttl": 24 * time.Hour,

	"telemetry.enabled":            false,
	"telemetry.collector_endpoint": "localhost:4317",
	"telemetry.sampling_ratio":     1.0,
	"telemetry.service_name":       "backoffice",
	"telemetry.insecure":           false,
}

// Load reads the configuration. ERP_CONFIG_FILE names a TOML file
// explicitly; otherwise config.toml is looked up in . and /app and may be absent.
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if file := os.Getenv(EnvPrefix + "_CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", file, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("/app")
		var notFound viper.ConfigFileNotFoundError
		if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate reports every violated rule at once
func (c *Config) validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	db := c.Database
	check(db.MaxOpenConns > 0, "database.max_open_conns must be positive")
	check(db.MaxIdleConns >= 0, "database.max_idle_conns cannot be negative")
	check(db.MaxIdleConns <= db.MaxOpenConns,
		"database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)", db.MaxIdleConns, db.MaxOpenConns)

	sr := c.StockReservation
	check(sr.DefaultTTL > 0, "stock_reservation.default_ttl must be positive")
	check(!sr.SweepEnabled || sr.SweepInterval > 0, "stock_reservation.sweep_interval must be positive when the sweep is enabled")
	check(sr.SweepBatchSize >= 0, "stock_reservation.sweep_batch_size cannot be negative")

	check(c.Documents.QuoteValidity > 0, "documents.quote_validity must be positive")
	check(c.Documents.InvoicePaymentTerm > 0, "documents.invoice_payment_term must be positive")
	check(c.Documents.LockTTL > 0, "documents.lock_ttl must be positive")
	check(!c.Messaging.Enabled || c.Messaging.URL != "", "messaging.url is required when messaging is enabled")
	check(c.Telemetry.SamplingRatio >= 0 && c.Telemetry.SamplingRatio <= 1,
		"telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)

	if c.App.IsProduction() {
		check(c.JWT.Secret != "", "jwt.secret is required in production")
		check(c.JWT.Secret == "" || len(c.JWT.Secret) >= 32, "jwt.secret must be at least 32 characters in production")
		check(db.Password != "", "database.password is required in production")
		check(db.SSLMode != "disable", "database.sslmode cannot be 'disable' in production")
	}

	return errors.Join(errs...)
}
