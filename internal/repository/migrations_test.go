package repository

import (
	"context"
	"testing"

	"emmo-data/internal/common/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate_Idempotent(t *testing.T) {
	db, err := database.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	applied, err := Migrate(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), applied)

	applied, err = Migrate(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, 0, applied)

	var version int
	require.NoError(t, db.Get(&version, "SELECT MAX(version) FROM schema_version"))
	assert.Equal(t, migrations[len(migrations)-1].version, version)

	for _, table := range []string{"drives", "parts", "part_attachments", "inspections", "maintenance_records", "record_documents"} {
		var n int
		require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table))
		assert.Equal(t, 1, n, table)
	}
}

func TestRenderMigration(t *testing.T) {
	assert.Equal(t, "a TIMESTAMPTZ", renderMigration("postgres", "a {{timestamp}}"))
	assert.Equal(t, "a DATETIME", renderMigration("sqlite", "a {{timestamp}}"))
}

func TestSplitStatements(t *testing.T) {
	got := splitStatements("CREATE TABLE a (x INT);\n\n CREATE INDEX i ON a(x);\n")
	assert.Equal(t, []string{"CREATE TABLE a (x INT)", "CREATE INDEX i ON a(x)"}, got)
}
