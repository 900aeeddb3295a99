package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register the pgx PostgreSQL driver as "pgx"

	"github.com/adrianaguero/chatgate/internal/config"
	"github.com/adrianaguero/chatgate/internal/core"
)

const (
	driverLibsql   = "libsql"
	driverPostgres = "postgres"
)

// Store keeps the quota event log in a SQL database.
type Store struct {
	DB     *sql.DB
	driver string

	window core.QuotaWindow

	clockMu sync.Mutex
	now     func() time.Time

	// writeMu serializes admissions on drivers without row-level locking.
	writeMu sync.Mutex
	calls   atomic.Int64
}

// Open initializes a store connection using the provided configuration.
func Open(ctx context.Context, cfg config.QuotaConfig) (*Store, error) {
	driver := cfg.DriverName()

	if ctx == nil {
		ctx = context.Background()
	}

	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case driverLibsql:
		dsn, dsnErr := buildLibsqlDSN(cfg)
		if dsnErr != nil {
			return nil, dsnErr
		}
		db, err = sql.Open(driverLibsql, dsn)
		if err == nil {
			// ":memory:" is per connection.
			db.SetMaxOpenConns(1)
		}
	case driverPostgres:
		dsn := strings.TrimSpace(cfg.URL)
		if dsn == "" {
			return nil, errors.New("postgres url is required")
		}
		db, err = sql.Open("pgx", dsn)
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", driver, err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s store: %w", driver, err)
	}

	if driver == driverLibsql && isLocalLibsql(cfg) {
		if err := configureLocalSQLite(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return &Store{
		DB:     db,
		driver: driver,
		window: cfg.QuotaWindow(),
		now:    time.Now,
	}, nil
}

func isLocalLibsql(cfg config.QuotaConfig) bool {
	path := strings.TrimSpace(cfg.Path)
	return strings.TrimSpace(cfg.URL) == "" && path != ":memory:" && !strings.HasPrefix(path, "libsql:")
}

func configureLocalSQLite(ctx context.Context, db *sql.DB) error {
	var mode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode=WAL").Scan(&mode); err != nil {
		return fmt.Errorf("enable wal: %w", err)
	}
	var timeout int
	if err := db.QueryRowContext(ctx, "PRAGMA busy_timeout=5000").Scan(&timeout); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	return nil
}

// SetClock replaces the time source. Used by tests.
func (s *Store) SetClock(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	s.clockMu.Lock()
	s.now = now
	s.clockMu.Unlock()
}

func (s *Store) clock() time.Time {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()
	return s.now()
}

// cutoff is the oldest admission time still inside the window, in Unix ms.
func (s *Store) cutoff() int64 {
	return s.clock().UnixMilli() - s.window.Duration.Milliseconds()
}

// lockWriter serializes admissions for libsql, whose local file allows one
// writer. Postgres takes a per-identifier advisory lock inside the
// transaction instead, so unrelated identifiers proceed in parallel.
func (s *Store) lockWriter() (unlock func()) {
	if s.driver == driverPostgres {
		return func() {}
	}
	s.writeMu.Lock()
	return s.writeMu.Unlock
}

// Close releases database resources.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// Driver returns the configured store driver.
func (s *Store) Driver() string {
	if s == nil {
		return ""
	}
	return s.driver
}

// rebind rewrites '?' placeholders into the driver's native form.
func (s *Store) rebind(query string) string {
	if s.driver != driverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func buildLibsqlDSN(cfg config.QuotaConfig) (string, error) {
	if dsn := strings.TrimSpace(cfg.URL); dsn != "" {
		return addAuthToken(dsn, cfg.Token)
	}

	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return "", errors.New("store path or url is required")
	}

	if path == ":memory:" {
		return path, nil
	}

	if strings.HasPrefix(path, "file:") {
		localPath, err := extractFilePath(path)
		if err != nil {
			return "", err
		}
		if err := ensureStoreDir(localPath); err != nil {
			return "", err
		}
		return path, nil
	}

	if strings.HasPrefix(path, "libsql:") {
		return path, nil
	}

	if err := ensureStoreDir(path); err != nil {
		return "", err
	}
	return "file:" + filepath.Clean(path), nil
}

func addAuthToken(dsn string, token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return dsn, nil
	}

	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid store url: %w", err)
	}

	query := parsed.Query()
	if query.Get("authToken") == "" {
		query.Set("authToken", token)
		parsed.RawQuery = query.Encode()
	}

	return parsed.String(), nil
}

func extractFilePath(dsn string) (string, error) {
	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid store path: %w", err)
	}

	if parsed.Path != "" {
		return strings.TrimPrefix(parsed.Path, "//"), nil
	}

	return strings.TrimPrefix(parsed.Opaque, "//"), nil
}

func ensureStoreDir(path string) error {
	if strings.TrimSpace(path) == "" || path == ":memory:" {
		return nil
	}

	dir := filepath.Dir(filepath.Clean(path))
	if dir == "." || dir == string(filepath.Separator) {
		return nil
	}

	// #nosec G301 -- data directories use 0755 for multi-user access compatibility
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	return nil
}
