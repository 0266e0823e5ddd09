package db

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/flowershow/contentsync/internal/syncsrv/config"
	"github.com/flowershow/contentsync/internal/syncsrv/db/dbmanager"
	"github.com/flowershow/contentsync/internal/syncsrv/db/memstore"
	"github.com/flowershow/contentsync/internal/syncsrv/db/postgresql"
)

// NewStore opens the store selected by cfg.Store. For Postgres the returned
// pool is also handed out so other components can share it.
func NewStore(ctx context.Context, cfg config.DBConfig) (Store, dbmanager.Pool, error) {
	switch cfg.Store {
	case "memory", "":
		log.Ctx(ctx).Warn().Msg("using in-memory store; state is lost on restart")
		return memstore.New(), nil, nil
	case "postgres":
		pool := dbmanager.NewPool(ctx, "postgresql", poolOptions(cfg))
		if pool == nil {
			return nil, nil, fmt.Errorf("unable to create db pool")
		}
		s := postgresql.NewStore(pool)
		if cfg.Migrate {
			if err := s.Migrate(ctx); err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		return s, pool, nil
	}
	return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
}

func poolOptions(cfg config.DBConfig) dbmanager.Options {
	return dbmanager.Options{
		DSN:              cfg.DSN(),
		StatementTimeout: cfg.StatementTimeout,
		LockTimeout:      cfg.LockTimeout,
		MaxOpenConns:     cfg.MaxOpenConns,
	}
}

var (
	_ Store = (*memstore.Store)(nil)
	_ Store = (*postgresql.Store)(nil)
)
