package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/adrianaguero/chatgate/internal/core"
	"github.com/adrianaguero/chatgate/internal/core/quota"
	"github.com/google/uuid"
)

// pruneEvery controls how often an admission also deletes expired rows
// belonging to other identifiers.
const pruneEvery = 256

var (
	_ quota.Store  = (*Store)(nil)
	_ quota.Admin  = (*Store)(nil)
	_ quota.Pinger = (*Store)(nil)
)

// TryAcquire admits one request for identifier when the trailing window has room.
//
// The check and insert run in one transaction. On postgres a
// transaction-scoped advisory lock keyed by the identifier serializes callers
// across instances; libsql callers on this instance share one writer lock.
func (s *Store) TryAcquire(ctx context.Context, identifier string) (core.QuotaDecision, error) {
	if s == nil || s.DB == nil {
		return core.QuotaDecision{}, quota.Wrap(driverLibsql, "acquire", errors.New("store is not initialized"))
	}
	id, err := quota.NormalizeIdentifier(identifier)
	if err != nil {
		return core.QuotaDecision{}, quota.Wrap(s.driver, "acquire", err)
	}

	unlock := s.lockWriter()
	defer unlock()

	nowMs := s.clock().UnixMilli()
	cutoff := nowMs - s.window.Duration.Milliseconds()

	decision, err := s.acquireTx(ctx, id, nowMs, cutoff)
	if err != nil {
		return core.QuotaDecision{}, quota.Wrap(s.driver, "acquire", err)
	}

	if s.calls.Add(1)%pruneEvery == 0 {
		// Expired rows are invisible to the window queries; failing to prune is harmless.
		_, _ = s.pruneBefore(ctx, cutoff)
	}

	return decision, nil
}

func (s *Store) acquireTx(ctx context.Context, id string, nowMs, cutoff int64) (core.QuotaDecision, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return core.QuotaDecision{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck // no-op after commit

	if s.driver == driverPostgres {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, id); err != nil {
			return core.QuotaDecision{}, fmt.Errorf("lock identifier: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, s.rebind(`
		DELETE FROM quota_events
		WHERE identifier = ? AND created_at <= ?
	`), id, cutoff); err != nil {
		return core.QuotaDecision{}, fmt.Errorf("trim window: %w", err)
	}

	count, oldest, err := windowState(ctx, tx, s.rebind(`
		SELECT COUNT(*), COALESCE(MIN(created_at), 0)
		FROM quota_events
		WHERE identifier = ?
	`), id)
	if err != nil {
		return core.QuotaDecision{}, err
	}

	allowed := count < s.window.Limit
	if allowed {
		if _, err := tx.ExecContext(ctx, s.rebind(`
			INSERT INTO quota_events (id, identifier, created_at)
			VALUES (?, ?, ?)
		`), uuid.NewString(), id, nowMs); err != nil {
			return core.QuotaDecision{}, fmt.Errorf("record admission: %w", err)
		}
		count++
		if oldest == 0 {
			oldest = nowMs
		}
	}

	if err := tx.Commit(); err != nil {
		return core.QuotaDecision{}, fmt.Errorf("commit: %w", err)
	}

	return quota.Decide(s.window, allowed, count, oldest), nil
}

// Inspect reports the current window for identifier without consuming a unit.
func (s *Store) Inspect(ctx context.Context, identifier string) (core.QuotaDecision, error) {
	if s == nil || s.DB == nil {
		return core.QuotaDecision{}, quota.Wrap(driverLibsql, "inspect", errors.New("store is not initialized"))
	}
	id, err := quota.NormalizeIdentifier(identifier)
	if err != nil {
		return core.QuotaDecision{}, quota.Wrap(s.driver, "inspect", err)
	}

	cutoff := s.cutoff()

	count, oldest, err := windowState(ctx, s.DB, s.rebind(`
		SELECT COUNT(*), COALESCE(MIN(created_at), 0)
		FROM quota_events
		WHERE identifier = ? AND created_at > ?
	`), id, cutoff)
	if err != nil {
		return core.QuotaDecision{}, quota.Wrap(s.driver, "inspect", err)
	}

	return quota.Decide(s.window, count < s.window.Limit, count, oldest), nil
}

// Reset forgets every admission recorded for identifier.
func (s *Store) Reset(ctx context.Context, identifier string) error {
	_, err := s.ResetQuotas(ctx, QuotaQuery{Identifier: identifier})
	if err != nil {
		return quota.Wrap(s.Driver(), "reset", err)
	}
	return nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return quota.Wrap(driverLibsql, "ping", errors.New("store is not initialized"))
	}
	if err := s.DB.PingContext(ctx); err != nil {
		return quota.Wrap(s.driver, "ping", err)
	}
	return nil
}

// Prune deletes rows that fell out of every window and returns how many were removed.
func (s *Store) Prune(ctx context.Context) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	unlock := s.lockWriter()
	defer unlock()
	return s.pruneBefore(ctx, s.cutoff())
}

func (s *Store) pruneBefore(ctx context.Context, cutoff int64) (int64, error) {
	result, err := s.DB.ExecContext(ctx, s.rebind(`DELETE FROM quota_events WHERE created_at <= ?`), cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune quota events: %w", err)
	}
	return result.RowsAffected()
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func windowState(ctx context.Context, q queryRower, query string, args ...any) (int, int64, error) {
	var (
		count  int
		oldest int64
	)
	if err := q.QueryRowContext(ctx, query, args...).Scan(&count, &oldest); err != nil {
		return 0, 0, fmt.Errorf("read window: %w", err)
	}
	return count, oldest, nil
}
