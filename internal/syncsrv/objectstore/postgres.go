package objectstore

import (
	"context"
	"database/sql"

	"github.com/golang/snappy"
	"github.com/rs/zerolog/log"

	"github.com/flowershow/contentsync/internal/common/apperrors"
	"github.com/flowershow/contentsync/internal/syncsrv/db/dbmanager"
)

// PostgresBackend keeps objects in the objects table, optionally snappy
// compressed. The table is created by the store migration.
type PostgresBackend struct {
	pool     dbmanager.Pool
	compress bool
}

func NewPostgresBackend(pool dbmanager.Pool, compress bool) *PostgresBackend {
	return &PostgresBackend{pool: pool, compress: compress}
}

func (p *PostgresBackend) Put(ctx context.Context, key string, data []byte) apperrors.Error {
	if err := validateKey(key); err != nil {
		return err
	}
	stored := data
	if p.compress {
		stored = snappy.Encode(nil, data)
		log.Ctx(ctx).Debug().Str("key", key).Msgf("raw: %d, compressed: %d", len(data), len(stored))
	}
	query := `
		INSERT INTO objects (key, data, compressed, size)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE
		SET data = EXCLUDED.data, compressed = EXCLUDED.compressed, size = EXCLUDED.size, updated_at = now();
	`
	return p.exec(ctx, query, key, stored, p.compress, len(data))
}

func (p *PostgresBackend) Get(ctx context.Context, key string) ([]byte, apperrors.Error) {
	c, err := p.pool.Conn(ctx)
	if err != nil {
		return nil, ErrObjectStore.Err(err)
	}
	defer c.Close(ctx)

	var (
		data       []byte
		compressed bool
	)
	err = c.Conn().QueryRowContext(ctx, `SELECT data, compressed FROM objects WHERE key = $1`, key).
		Scan(&data, &compressed)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrObjectNotFound.Msg("object not found: " + key)
		}
		return nil, ErrObjectStore.Err(err)
	}
	if compressed {
		data, err = snappy.Decode(nil, data)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Str("key", key).Msg("failed to uncompress object")
			return nil, ErrObjectStore.Err(err)
		}
	}
	return data, nil
}

func (p *PostgresBackend) Delete(ctx context.Context, key string) apperrors.Error {
	return p.exec(ctx, `DELETE FROM objects WHERE key = $1`, key)
}

func (p *PostgresBackend) DeletePrefix(ctx context.Context, prefix string) apperrors.Error {
	if prefix == "" {
		return ErrInvalidKey.Msg("prefix cannot be empty")
	}
	return p.exec(ctx, `DELETE FROM objects WHERE starts_with(key, $1)`, prefix)
}

func (p *PostgresBackend) exec(ctx context.Context, query string, args ...any) apperrors.Error {
	c, err := p.pool.Conn(ctx)
	if err != nil {
		return ErrObjectStore.Err(err)
	}
	defer c.Close(ctx)
	if _, err := c.Conn().ExecContext(ctx, query, args...); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("object store statement failed")
		return ErrObjectStore.Err(err)
	}
	return nil
}
