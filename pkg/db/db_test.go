package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	pg := &DB{Dialect: Postgres}
	lite := &DB{Dialect: SQLite}

	q := "UPDATE sellers SET ongoing_jobs = ongoing_jobs + ? WHERE id = ?"
	assert.Equal(t, "UPDATE sellers SET ongoing_jobs = ongoing_jobs + $1 WHERE id = $2", pg.Rebind(q))
	assert.Equal(t, q, lite.Rebind(q))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mongodb", "mongodb://localhost")
	require.Error(t, err)
}

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	d, err := Open(ctx, "sqlite", ":memory:")
	require.NoError(t, err)
	defer d.Close()

	schema := `
CREATE TABLE IF NOT EXISTS counters (
	id TEXT PRIMARY KEY,
	value INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS counters_value_idx ON counters (value);
`
	require.NoError(t, d.Migrate(ctx, schema))
	require.NoError(t, d.Migrate(ctx, schema))

	_, err = d.ExecContext(ctx, d.Rebind("INSERT INTO counters (id, value) VALUES (?, ?)"), "a", 1)
	require.NoError(t, err)
}
