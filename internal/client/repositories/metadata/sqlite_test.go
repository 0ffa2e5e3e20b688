package metadata

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE metadata (
  key        TEXT PRIMARY KEY,
  value      TEXT NOT NULL,
  updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`)
	require.NoError(t, err)
	return db
}

func TestSetAndGet(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "email", "alice@clinic.org"))

	v, err := r.Get(ctx, "email")
	require.NoError(t, err)
	assert.Equal(t, "alice@clinic.org", v)
}

func TestSet_Overwrites(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "access_token", "one"))
	require.NoError(t, r.Set(ctx, "access_token", "two"))

	v, err := r.Get(ctx, "access_token")
	require.NoError(t, err)
	assert.Equal(t, "two", v)
}

func TestGet_MissingKeyIsEmpty(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))

	v, err := r.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestSetMany_DeleteAndClear(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.SetMany(ctx, map[string]string{"a": "1", "b": "2", "c": "3"}))

	require.NoError(t, r.Delete(ctx, "a", "b"))
	a, err := r.Get(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, a)
	c, err := r.Get(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, "3", c)

	require.NoError(t, r.Clear(ctx))
	c, err = r.Get(ctx, "c")
	require.NoError(t, err)
	assert.Empty(t, c)
}

func TestClosedDatabaseReportsErrors(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	require.NoError(t, db.Close())

	_, err := r.Get(context.Background(), "k")
	assert.Error(t, err)
	assert.Error(t, r.Set(context.Background(), "k", "v"))
	assert.Error(t, r.SetMany(context.Background(), map[string]string{"k": "v"}))
}
