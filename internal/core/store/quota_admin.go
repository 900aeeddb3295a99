package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// QuotaEntry summarizes the live window of one identifier.
type QuotaEntry struct {
	Identifier string
	Count      int
	Oldest     time.Time
	Newest     time.Time
}

// QuotaQuery selects identifiers for listing or resetting.
type QuotaQuery struct {
	All        bool
	Identifier string
	Prefix     string
}

func (q QuotaQuery) Validate() error {
	if q.All {
		return nil
	}
	if strings.TrimSpace(q.Identifier) != "" {
		return nil
	}
	if strings.TrimSpace(q.Prefix) != "" {
		return nil
	}
	return errors.New("must specify --all, an identifier, or --prefix")
}

func (q QuotaQuery) whereClause() (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}
	if q.All {
		return "", nil, nil
	}
	if identifier := strings.TrimSpace(q.Identifier); identifier != "" {
		return "WHERE identifier = ?", []any{identifier}, nil
	}
	prefix := strings.TrimSpace(q.Prefix)
	if prefix == "" {
		return "", nil, errors.New("prefix is required")
	}
	return "WHERE identifier LIKE ?", []any{prefix + "%"}, nil
}

// ListQuotas returns identifiers with admissions inside the current window.
func (s *Store) ListQuotas(ctx context.Context, q QuotaQuery) ([]QuotaEntry, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return nil, err
	}

	cutoff := s.cutoff()

	if where == "" {
		where = "WHERE created_at > ?"
	} else {
		where += " AND created_at > ?"
	}
	args = append(args, cutoff)

	rows, err := s.DB.QueryContext(ctx, s.rebind(fmt.Sprintf(`
		SELECT identifier, COUNT(*), MIN(created_at), MAX(created_at)
		FROM quota_events
		%s
		GROUP BY identifier
		ORDER BY identifier
	`, where)), args...)
	if err != nil {
		return nil, fmt.Errorf("list quotas: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	entries := []QuotaEntry{}
	for rows.Next() {
		var (
			identifier     string
			count          int
			oldest, newest int64
		)
		if err := rows.Scan(&identifier, &count, &oldest, &newest); err != nil {
			return nil, fmt.Errorf("scan quotas: %w", err)
		}
		entries = append(entries, QuotaEntry{
			Identifier: identifier,
			Count:      count,
			Oldest:     time.UnixMilli(oldest).UTC(),
			Newest:     time.UnixMilli(newest).UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list quotas: %w", err)
	}

	return entries, nil
}

// ResetQuotas deletes recorded admissions matching q.
func (s *Store) ResetQuotas(ctx context.Context, q QuotaQuery) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	result, err := s.DB.ExecContext(ctx, s.rebind(fmt.Sprintf(`
		DELETE FROM quota_events
		%s
	`, where)), args...)
	if err != nil {
		return 0, fmt.Errorf("reset quotas: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset quotas: %w", err)
	}
	return affected, nil
}
