package engine

import (
	"context"
	"fmt"

	"github.com/adrianaguero/chatgate/internal/config"
	"github.com/adrianaguero/chatgate/internal/core/quota"
	"github.com/adrianaguero/chatgate/internal/core/store"
)

func noopClose() error { return nil }

// OpenQuotaStore builds the store selected by cfg.Driver.
//
// An unconfigured driver yields a nil store and nil error. A configured driver
// that cannot be built yields a quota.Unavailable store together with the
// cause, so callers can log it and still serve requests.
func OpenQuotaStore(ctx context.Context, cfg config.QuotaConfig) (quota.Store, func() error, error) {
	if !cfg.Configured() {
		return nil, noopClose, nil
	}

	driver := cfg.DriverName()
	switch driver {
	case config.DriverMemory:
		return quota.NewMemory(cfg.QuotaWindow(), nil), noopClose, nil

	case config.DriverRedis:
		s, err := quota.OpenRedis(cfg.URL, cfg.Token, quota.RedisOptions{
			Prefix: cfg.Prefix,
			Window: cfg.QuotaWindow(),
		})
		if err != nil {
			return quota.Unavailable{Driver: driver, Err: err}, noopClose, err
		}
		return s, s.Close, nil

	case config.DriverLibsql, config.DriverPostgres:
		s, err := store.Open(ctx, cfg)
		if err != nil {
			return quota.Unavailable{Driver: driver, Err: err}, noopClose, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return quota.Unavailable{Driver: driver, Err: err}, noopClose, err
		}
		return s, s.Close, nil

	default:
		err := fmt.Errorf("unsupported quota driver %q", driver)
		return quota.Unavailable{Driver: driver, Err: err}, noopClose, err
	}
}
