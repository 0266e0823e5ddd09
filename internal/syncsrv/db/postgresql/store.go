// Package postgresql implements the sync service store on PostgreSQL.
package postgresql

import (
	"context"
	"database/sql"
	_ "embed"

	"github.com/jackc/pgconn"
	"github.com/rs/zerolog/log"

	"github.com/flowershow/contentsync/internal/common/apperrors"
	"github.com/flowershow/contentsync/internal/syncsrv/db/dberror"
	"github.com/flowershow/contentsync/internal/syncsrv/db/dbmanager"
)

//go:embed schema.sql
var schema string

// Schema returns the DDL applied by Migrate.
func Schema() string {
	return schema
}

type Store struct {
	pool dbmanager.Pool
}

func NewStore(pool dbmanager.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates the tables used by the service if they do not exist.
func (s *Store) Migrate(ctx context.Context) apperrors.Error {
	return s.withConn(ctx, func(conn *sql.Conn) apperrors.Error {
		if _, err := conn.ExecContext(ctx, schema); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("failed to apply schema")
			return dberror.ErrDatabase.Err(err)
		}
		return nil
	})
}

// Close is a no-op; the pool is owned by the caller of NewStore.
func (s *Store) Close(ctx context.Context) {}

func (s *Store) withConn(ctx context.Context, fn func(conn *sql.Conn) apperrors.Error) apperrors.Error {
	c, err := s.pool.Conn(ctx)
	if err != nil {
		return dberror.ErrDatabase.Err(err)
	}
	defer c.Close(ctx)
	return fn(c.Conn())
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) apperrors.Error) apperrors.Error {
	return s.withConn(ctx, func(conn *sql.Conn) apperrors.Error {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return dberror.ErrDatabase.Err(err)
		}
		if apperr := fn(tx); apperr != nil {
			if err := tx.Rollback(); err != nil {
				log.Ctx(ctx).Error().Err(err).Msg("failed to rollback transaction")
			}
			return apperr
		}
		if err := tx.Commit(); err != nil {
			return dberror.ErrDatabase.Err(err)
		}
		return nil
	})
}

func pgError(err error) (*pgconn.PgError, bool) {
	pgErr, ok := err.(*pgconn.PgError)
	return pgErr, ok
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
