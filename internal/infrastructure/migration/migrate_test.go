package migration

import (
	"errors"
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/erp/backoffice/migrations"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations_Sequence(t *testing.T) {
	src, err := iofs.New(migrations.FS, ".")
	require.NoError(t, err)
	defer src.Close()

	version, err := src.First()
	require.NoError(t, err)

	var versions []uint
	for {
		versions = append(versions, version)

		up, ident, err := src.ReadUp(version)
		require.NoError(t, err, "version %d has no up file", version)
		_ = up.Close()

		down, _, err := src.ReadDown(version)
		require.NoError(t, err, "migration %s has no down file", ident)
		_ = down.Close()

		version, err = src.Next(version)
		if errors.Is(err, fs.ErrNotExist) {
			break
		}
		require.NoError(t, err)
	}

	assert.Equal(t, []uint{1, 2, 3}, versions)
}

func TestEmbeddedMigrations_CoverEveryTable(t *testing.T) {
	tables := []string{
		"products",
		"stock_movements",
		"stock_reservations",
		"quotes",
		"orders",
		"order_status_changes",
		"invoices",
		"payments",
		"document_items",
		"document_sequences",
	}

	var schema strings.Builder
	err := fs.WalkDir(migrations.FS, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".up.sql") {
			return err
		}
		b, err := fs.ReadFile(migrations.FS, path)
		if err != nil {
			return err
		}
		schema.Write(b)
		return nil
	})
	require.NoError(t, err)

	for _, table := range tables {
		assert.Contains(t, schema.String(), "CREATE TABLE IF NOT EXISTS "+table+" (", "missing table %s", table)
	}
}

func TestLatestVersion(t *testing.T) {
	latest, err := latestVersion(migrations.FS)
	require.NoError(t, err)
	assert.Equal(t, uint(3), latest)

	custom := fstest.MapFS{
		"000001_a.up.sql":   {Data: []byte("SELECT 1;")},
		"000001_a.down.sql": {Data: []byte("SELECT 1;")},
		"000007_b.up.sql":   {Data: []byte("SELECT 1;")},
		"000007_b.down.sql": {Data: []byte("SELECT 1;")},
	}
	latest, err = latestVersion(custom)
	require.NoError(t, err)
	assert.Equal(t, uint(7), latest)

	_, err = latestVersion(fstest.MapFS{"README.md": {Data: []byte("x")}})
	assert.Error(t, err)
}

func TestStatus_Pending(t *testing.T) {
	assert.True(t, Status{Current: 0, Latest: 3}.Pending())
	assert.True(t, Status{Current: 2, Latest: 3}.Pending())
	assert.False(t, Status{Current: 3, Latest: 3}.Pending())
}
