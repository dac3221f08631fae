// Package integration runs the back-office against PostgreSQL in a container.
// The schema comes from the embedded migrations and the connection from
// persistence.NewDatabase, as in the server.
package integration

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/erp/backoffice/internal/domain/catalog"
	"github.com/erp/backoffice/internal/infrastructure/config"
	"github.com/erp/backoffice/internal/infrastructure/migration"
	"github.com/erp/backoffice/internal/infrastructure/persistence"
	"github.com/erp/backoffice/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	gormlogger "gorm.io/gorm/logger"
)

// TestDB is a migrated database owned by one test
type TestDB struct {
	*persistence.Database
	t *testing.T
}

// NewTestDB starts a dedicated PostgreSQL container, migrates it and
// connects. Everything is torn down with the test.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	cfg := startPostgres(t)
	migrate(t, cfg.DSN())

	level := gormlogger.Silent
	if os.Getenv("TEST_DB_DEBUG") != "" {
		level = gormlogger.Info
	}
	db, err := persistence.NewDatabase(&cfg, persistence.WithZapLogger(zaptest.NewLogger(t), level))
	require.NoError(t, err, "Failed to connect to database")
	t.Cleanup(func() { _ = db.Close() })

	return &TestDB{Database: db, t: t}
}

func startPostgres(t *testing.T) config.DatabaseConfig {
	t.Helper()
	ctx := context.Background()

	cfg := config.DatabaseConfig{
		User:            "postgres",
		Password:        "postgres",
		DBName:          "backoffice_test",
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	}
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase(cfg.DBName),
		tcpostgres.WithUsername(cfg.User),
		tcpostgres.WithPassword(cfg.Password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	cfg.Host, err = container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	cfg.Port = port.Int()
	return cfg
}

// migrate applies the embedded migrations over a connection of its own
func migrate(t *testing.T, dsn string) {
	t.Helper()

	conn, err := sql.Open("postgres", dsn)
	require.NoError(t, err)

	m, err := migration.New(conn, zap.NewNop())
	require.NoError(t, err, "Failed to create migrator")
	defer func() { _ = m.Close() }()

	require.NoError(t, m.Up(), "Failed to run migrations")
	status, err := m.Status()
	require.NoError(t, err)
	require.False(t, status.Pending() || status.Dirty, "schema not current: %+v", status)
}

// CreateTestProduct inserts a retail product with the given sellable stock
func (tdb *TestDB) CreateTestProduct(tenantID uuid.UUID, code string, stock int64) *catalog.Product {
	tdb.t.Helper()

	product, err := catalog.NewProduct(tenantID, code, "Test Product "+code, catalog.VerticalRetail, stock, true)
	require.NoError(tdb.t, err)
	require.NoError(tdb.t, tdb.DB.Create(models.ProductModelFromDomain(product)).Error, "Failed to create test product")
	return product
}

// StockOf reads the stock counter straight from the products table
func (tdb *TestDB) StockOf(productID uuid.UUID) int64 {
	tdb.t.Helper()

	var stock int64
	require.NoError(tdb.t, tdb.DB.Raw(`SELECT stock FROM products WHERE id = ?`, productID).Scan(&stock).Error)
	return stock
}
