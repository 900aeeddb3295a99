package store

import (
	"testing"
	"time"

	"github.com/adrianaguero/chatgate/internal/config"
	"github.com/stretchr/testify/require"
)

func TestBuildLibsqlDSN(t *testing.T) {
	t.Run("URLUsesRawValue", func(t *testing.T) {
		cfg := config.QuotaConfig{
			URL:   "libsql://example.turso.io",
			Token: "token123",
		}

		dsn, err := buildLibsqlDSN(cfg)
		require.NoError(t, err)
		require.Equal(t, "libsql://example.turso.io?authToken=token123", dsn)
	})

	t.Run("URLWithExistingQuery", func(t *testing.T) {
		cfg := config.QuotaConfig{
			URL:   "libsql://example.turso.io?foo=bar",
			Token: "token123",
		}

		dsn, err := buildLibsqlDSN(cfg)
		require.NoError(t, err)
		require.Equal(t, "libsql://example.turso.io?authToken=token123&foo=bar", dsn)
	})

	t.Run("PathWithFilePrefix", func(t *testing.T) {
		cfg := config.QuotaConfig{Path: "file:./chatgate.db"}

		dsn, err := buildLibsqlDSN(cfg)
		require.NoError(t, err)
		require.Equal(t, "file:./chatgate.db", dsn)
	})

	t.Run("PathMissing", func(t *testing.T) {
		_, err := buildLibsqlDSN(config.QuotaConfig{})
		require.Error(t, err)
	})

	t.Run("MemoryPath", func(t *testing.T) {
		dsn, err := buildLibsqlDSN(config.QuotaConfig{Path: ":memory:"})
		require.NoError(t, err)
		require.Equal(t, ":memory:", dsn)
	})
}

func TestRebind(t *testing.T) {
	query := "DELETE FROM quota_events WHERE identifier = ? AND created_at <= ?"

	libsql := &Store{driver: driverLibsql}
	require.Equal(t, query, libsql.rebind(query))

	pg := &Store{driver: driverPostgres}
	require.Equal(t, "DELETE FROM quota_events WHERE identifier = $1 AND created_at <= $2", pg.rebind(query))
}

func TestQuotaQueryWhereClause(t *testing.T) {
	where, args, err := QuotaQuery{All: true}.whereClause()
	require.NoError(t, err)
	require.Empty(t, where)
	require.Empty(t, args)

	where, args, err = QuotaQuery{Identifier: " 10.0.0.1 "}.whereClause()
	require.NoError(t, err)
	require.Equal(t, "WHERE identifier = ?", where)
	require.Equal(t, []any{"10.0.0.1"}, args)

	where, args, err = QuotaQuery{Prefix: "10.0."}.whereClause()
	require.NoError(t, err)
	require.Equal(t, "WHERE identifier LIKE ?", where)
	require.Equal(t, []any{"10.0.%"}, args)

	_, _, err = QuotaQuery{}.whereClause()
	require.Error(t, err)
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(t.Context(), config.QuotaConfig{Driver: "redis", URL: "redis://localhost"})
	require.Error(t, err)

	_, err = Open(t.Context(), config.QuotaConfig{Driver: "postgres"})
	require.Error(t, err)
}

func TestLockWriterScope(t *testing.T) {
	acquired := func(s *Store) bool {
		done := make(chan struct{})
		go func() {
			unlock := s.lockWriter()
			unlock()
			close(done)
		}()
		select {
		case <-done:
			return true
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}

	t.Run("PostgresDoesNotSerializeIdentifiers", func(t *testing.T) {
		s := &Store{driver: driverPostgres}
		unlock := s.lockWriter()
		defer unlock()
		require.True(t, acquired(s), "a second admission must not wait on the first")
	})

	t.Run("LibsqlSharesOneWriter", func(t *testing.T) {
		s := &Store{driver: driverLibsql}
		unlock := s.lockWriter()
		require.False(t, acquired(s), "a second admission must wait for the writer")
		unlock()
		require.True(t, acquired(s))
	})
}
