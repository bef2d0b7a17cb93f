package database

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-approval/migrations"
)

func TestLoadMigrations_SortsByVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"010_add_index.sql":      {Data: []byte("CREATE INDEX idx ON t(a);")},
		"002_create_table.sql":   {Data: []byte("CREATE TABLE t (a TEXT);")},
		"README.md":              {Data: []byte("ignored")},
		"001_initial_schema.sql": {Data: []byte("SELECT 1;")},
	}

	got, err := LoadMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []int{1, 2, 10}, []int{got[0].Version, got[1].Version, got[2].Version})
	assert.Equal(t, "create_table", got[1].Name)
}

func TestLoadMigrations_RejectsBadNames(t *testing.T) {
	_, err := LoadMigrations(fstest.MapFS{"initial.sql": {Data: []byte("SELECT 1;")}})
	assert.Error(t, err)

	_, err = LoadMigrations(fstest.MapFS{
		"001_a.sql": {Data: []byte("SELECT 1;")},
		"001_b.sql": {Data: []byte("SELECT 2;")},
	})
	assert.Error(t, err)
}

func TestOpen_AppliesEmbeddedSchemaOnce(t *testing.T) {
	ctx := context.Background()
	cfg := Config{Path: filepath.Join(t.TempDir(), "app.db")}

	db, err := Open(ctx, cfg, migrations.FS, zap.NewNop())
	require.NoError(t, err)

	var tables int
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN
			('users', 'invoices', 'extracted_data', 'line_items', 'invoice_actions', 'notifications')`,
	).Scan(&tables))
	assert.Equal(t, 6, tables)
	require.NoError(t, db.Close())

	// reopening must not re-apply anything
	db, err = Open(ctx, cfg, migrations.FS, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	var applied int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&applied))
	assert.Equal(t, 1, applied)
}

func TestMigrate_FailedMigrationIsNotRecorded(t *testing.T) {
	ctx := context.Background()
	db, err := Connect(ctx, Config{Path: filepath.Join(t.TempDir(), "m.db")}, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	n, err := db.Migrate(ctx, fstest.MapFS{
		"001_create.sql": {Data: []byte("CREATE TABLE t (a TEXT);")},
		"002_broken.sql": {Data: []byte("CREATE TABLE nope (")},
	})
	require.Error(t, err)
	assert.Equal(t, 1, n)

	var versions int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&versions))
	assert.Equal(t, 1, versions)

	n, err = db.Migrate(ctx, fstest.MapFS{
		"001_create.sql": {Data: []byte("CREATE TABLE t (a TEXT);")},
		"002_fixed.sql":  {Data: []byte("CREATE TABLE u (b TEXT);")},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
