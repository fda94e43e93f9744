package database

import (
	"database/sql"
	"fmt"
	"io/fs"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@db:5432/scrim", MigrateURL("postgres://u:p@db:5432/scrim"))
	assert.Equal(t, "pgx5://db/scrim?sslmode=disable", MigrateURL("postgresql://db/scrim?sslmode=disable"))
	assert.Equal(t, "pgx5://db/scrim", MigrateURL("pgx5://db/scrim"))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(pgx.ErrNoRows))
	assert.True(t, IsNotFound(fmt.Errorf("get session: %w", sql.ErrNoRows)))
	assert.False(t, IsNotFound(fmt.Errorf("boom")))
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, e := range entries {
		names[e.Name()] = true
	}
	assert.True(t, names["000001_payment_sessions.up.sql"])
	assert.True(t, names["000001_payment_sessions.down.sql"])
}
