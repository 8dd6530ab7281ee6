package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, KeyTheme)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, KeyTheme, "light"))
	value, ok, err := s.Get(ctx, KeyTheme)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "light", value)

	require.NoError(t, s.Set(ctx, KeyTheme, "dark"))
	value, _, err = s.Get(ctx, KeyTheme)
	require.NoError(t, err)
	assert.Equal(t, "dark", value)

	require.NoError(t, s.Delete(ctx, KeyTheme))
	_, ok, err = s.Get(ctx, KeyTheme)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenSQLite(context.Background(), dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	exerciseStore(t, s)

	version, dirty, err := MigrationVersion(filepath.Join(dir, DatabaseFile))
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, version)
	assert.False(t, dirty)
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := OpenSQLite(ctx, dir)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, KeyLocalViewCount, "7"))
	require.NoError(t, first.Close())

	second, err := OpenSQLite(ctx, dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	value, ok, err := second.Get(ctx, KeyLocalViewCount)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "7", value)
}

func TestSQLiteStoreWrapsQueryErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := NewSQLite(db)
	ctx := context.Background()

	mock.ExpectQuery("SELECT value FROM kv").
		WithArgs(KeyVisitorHistory).
		WillReturnError(errors.New("disk I/O error"))
	_, ok, err := s.Get(ctx, KeyVisitorHistory)
	require.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), KeyVisitorHistory)

	mock.ExpectExec("INSERT INTO kv").
		WithArgs(KeyVisitorHistory, "[]", sqlmock.AnyArg()).
		WillReturnError(errors.New("readonly database"))
	require.Error(t, s.Set(ctx, KeyVisitorHistory, "[]"))

	mock.ExpectExec("DELETE FROM kv").
		WithArgs(KeyVisitorHistory).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.Delete(ctx, KeyVisitorHistory))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFlagHelpers(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	assert.False(t, FlagSet(ctx, s, KeyViewHitSession))
	require.NoError(t, SetFlag(ctx, s, KeyViewHitSession))
	assert.True(t, FlagSet(ctx, s, KeyViewHitSession))

	require.NoError(t, s.Set(ctx, KeyLocalHitSession, "yes"))
	assert.False(t, FlagSet(ctx, s, KeyLocalHitSession))
}

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()

	s, closeFn, err := Open(ctx, "memory", "")
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)
	require.NoError(t, closeFn())

	s, closeFn, err = Open(ctx, "SQLite", t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, s)
	require.NoError(t, closeFn())

	_, _, err = Open(ctx, "redis", "")
	assert.ErrorIs(t, err, ErrUnknownDriver)
}
