package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/backoffice/internal/infrastructure/config"
	"github.com/erp/backoffice/internal/infrastructure/logger"
	"github.com/erp/backoffice/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Database holds the database connection and provides methods for database operations
type Database struct {
	DB *gorm.DB
}

type databaseOptions struct {
	zapLogger *zap.Logger
	logLevel  gormlogger.LogLevel
	slowQuery time.Duration
	tracing   *telemetry.DBTracing
}

// DatabaseOption configures NewDatabase
type DatabaseOption func(*databaseOptions)

// WithZapLogger routes SQL logs through zap at the given GORM level
func WithZapLogger(l *zap.Logger, level gormlogger.LogLevel) DatabaseOption {
	return func(o *databaseOptions) {
		o.zapLogger = l
		o.logLevel = level
	}
}

// WithSlowQueryThreshold sets the duration above which queries are logged as slow
func WithSlowQueryThreshold(d time.Duration) DatabaseOption {
	return func(o *databaseOptions) {
		o.slowQuery = d
	}
}

// WithTracing installs the statement tracing plugin; nil leaves it out
func WithTracing(plugin *telemetry.DBTracing) DatabaseOption {
	return func(o *databaseOptions) {
		o.tracing = plugin
	}
}

// NewDatabase creates a new postgres connection with the given configuration
func NewDatabase(cfg *config.DatabaseConfig, opts ...DatabaseOption) (*Database, error) {
	options := databaseOptions{
		logLevel:  gormlogger.Silent,
		slowQuery: logger.DefaultSlowQuery,
	}
	for _, opt := range opts {
		opt(&options)
	}

	gormCfg := &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(options.logLevel),
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	}
	if options.zapLogger != nil {
		gormCfg.Logger = logger.NewGormLogger(options.zapLogger, options.logLevel, options.slowQuery)
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if options.tracing != nil {
		if err := db.Use(options.tracing); err != nil {
			return nil, fmt.Errorf("failed to register database tracing: %w", err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{DB: db}, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Ping checks the connection within ctx; it backs the health endpoint
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}
