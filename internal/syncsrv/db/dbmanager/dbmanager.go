package dbmanager

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog/log"
)

type Pool interface {
	// Conn returns a connection with the session timeouts applied.
	Conn(ctx context.Context) (Conn, error)
	// DB returns the underlying handle for callers that manage their own connections.
	DB() *sql.DB
	// Stats returns the number of connection requests and returns.
	Stats() (requests, returns uint64)
	Close() error
}

type Conn interface {
	// Conn returns the underlying connection.
	Conn() *sql.Conn
	// Close returns the connection to the pool.
	Close(ctx context.Context)
}

type Options struct {
	DSN              string
	StatementTimeout string
	LockTimeout      string
	MaxOpenConns     int
}

func NewPool(ctx context.Context, dbtype string, opts Options) Pool {
	switch dbtype {
	case "postgresql":
		db, err := NewPostgresqlPool(ctx, opts)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("Failed to create PostgreSQL DB")
			return nil
		}
		return db
	}
	return nil
}
