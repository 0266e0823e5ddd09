// Package dbmanager manages the PostgreSQL connection pool.
package dbmanager

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"

	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/rs/zerolog/log"
)

type postgresConn struct {
	conn *sql.Conn
	pool *postgresPool
}

type postgresPool struct {
	opts         Options
	connRequests atomic.Uint64
	connReturns  atomic.Uint64
	db           *sql.DB
}

// NewPostgresqlPool opens a pool using the pgx driver and verifies it with a ping.
func NewPostgresqlPool(ctx context.Context, opts Options) (Pool, error) {
	sqlDB, err := sql.Open("pgx", opts.DSN)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to open db")
		return nil, err
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to ping db")
		sqlDB.Close()
		return nil, err
	}
	return &postgresPool{
		opts: opts,
		db:   sqlDB,
	}, nil
}

func (p *postgresPool) Conn(ctx context.Context) (Conn, error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to obtain connection")
		return nil, err
	}

	if p.opts.LockTimeout != "" {
		if _, err := conn.ExecContext(ctx, fmt.Sprintf("SET lock_timeout = '%s'", p.opts.LockTimeout)); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("failed to set lock timeout")
			conn.Close()
			return nil, err
		}
	}
	if p.opts.StatementTimeout != "" {
		if _, err := conn.ExecContext(ctx, fmt.Sprintf("SET statement_timeout = '%s'", p.opts.StatementTimeout)); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("failed to set statement timeout")
			conn.Close()
			return nil, err
		}
	}

	p.connRequests.Add(1)
	return &postgresConn{conn: conn, pool: p}, nil
}

func (p *postgresPool) DB() *sql.DB {
	return p.db
}

func (p *postgresPool) Stats() (requests, returns uint64) {
	return p.connRequests.Load(), p.connReturns.Load()
}

func (p *postgresPool) Close() error {
	return p.db.Close()
}

func (h *postgresConn) Conn() *sql.Conn {
	return h.conn
}

func (h *postgresConn) Close(ctx context.Context) {
	if h.conn != nil {
		if err := h.conn.Close(); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("failed to return connection")
		}
	}
	h.pool.connReturns.Add(1)
}
