package runlock

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"hash/fnv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/flowershow/contentsync/internal/common/apperrors"
	"github.com/flowershow/contentsync/internal/common/uuid"
)

const lockNamespace = "flowershow.sync_run"

// PostgresLocker holds a session advisory lock per site on a dedicated
// connection. If the process dies the connection closes and Postgres drops
// the lock with it.
type PostgresLocker struct {
	db           *sql.DB
	pollInterval time.Duration
}

func NewPostgresLocker(db *sql.DB) *PostgresLocker {
	return &PostgresLocker{db: db, pollInterval: 250 * time.Millisecond}
}

func lockKey(siteID uuid.UUID) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(lockNamespace))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(siteID[:])
	return int64(h.Sum64())
}

func (p *PostgresLocker) Acquire(ctx context.Context, siteID uuid.UUID) (Lock, apperrors.Error) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()
	for {
		l, err := p.TryAcquire(ctx, siteID)
		if err == nil {
			return l, nil
		}
		if !err.Is(ErrAlreadySyncing) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ErrLock.MsgErr("timed out waiting for run lock", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (p *PostgresLocker) TryAcquire(ctx context.Context, siteID uuid.UUID) (Lock, apperrors.Error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, ErrLock.Err(err)
	}
	key := lockKey(siteID)
	var ok bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&ok); err != nil {
		conn.Close()
		return nil, ErrLock.Err(err)
	}
	if !ok {
		conn.Close()
		return nil, ErrAlreadySyncing
	}
	return &postgresLock{conn: conn, key: key, siteID: siteID}, nil
}

func (p *PostgresLocker) Held(ctx context.Context, siteID uuid.UUID) (bool, apperrors.Error) {
	key := lockKey(siteID)
	var held bool
	err := p.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM pg_locks
			WHERE locktype = 'advisory' AND granted AND objsubid = 1
			AND ((classid::bigint << 32) | objid::bigint) = $1
		)`, key).Scan(&held)
	if err != nil {
		return false, ErrLock.Err(err)
	}
	return held, nil
}

type postgresLock struct {
	mu     sync.Mutex
	conn   *sql.Conn
	key    int64
	siteID uuid.UUID
}

func (l *postgresLock) Release(ctx context.Context) apperrors.Error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	conn := l.conn
	l.conn = nil
	defer conn.Close()

	var ok bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_advisory_unlock($1)`, l.key).Scan(&ok); err != nil {
		// Closing the connection still drops the session lock.
		log.Ctx(ctx).Error().Err(err).Str("site_id", l.siteID.String()).Msg("failed to release run lock")
		conn.Raw(func(any) error { return driver.ErrBadConn })
		return ErrLock.MsgErr("unable to release run lock", err)
	}
	if !ok {
		log.Ctx(ctx).Warn().Str("site_id", l.siteID.String()).Msg("run lock was not held at release")
	}
	return nil
}
