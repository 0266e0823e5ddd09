package postgresql

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog/log"

	"github.com/flowershow/contentsync/internal/common/apperrors"
	"github.com/flowershow/contentsync/internal/common/uuid"
	"github.com/flowershow/contentsync/internal/syncsrv/db/dberror"
	"github.com/flowershow/contentsync/internal/syncsrv/db/models"
	"github.com/flowershow/contentsync/pkg/types"
)

func (s *Store) CreateRun(ctx context.Context, run *models.SyncRun) apperrors.Error {
	if run == nil || run.SiteID == uuid.Nil {
		return dberror.ErrMissingSiteID
	}
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.State == "" {
		run.State = types.RunStateRunning
	}
	query := `
		INSERT INTO sync_runs (id, site_id, trigger, mode, state)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING started_at;
	`
	return s.withConn(ctx, func(conn *sql.Conn) apperrors.Error {
		err := conn.QueryRowContext(ctx, query, run.ID, run.SiteID, run.Trigger, run.Mode, run.State).
			Scan(&run.StartedAt)
		if err != nil {
			if pgErr, ok := pgError(err); ok && pgErr.Code == "23503" {
				return dberror.ErrNotFound.Msg("site not found")
			}
			log.Ctx(ctx).Error().Err(err).Msg("failed to insert sync run")
			return dberror.ErrDatabase.Err(err)
		}
		return nil
	})
}

func (s *Store) FinishRun(ctx context.Context, run *models.SyncRun) apperrors.Error {
	if run == nil || run.SiteID == uuid.Nil {
		return dberror.ErrMissingSiteID
	}
	query := `
		UPDATE sync_runs
		SET state = $3, outcome = $4, error = $5, created = $6, updated = $7, deleted = $8,
			unchanged = $9, failed = $10, completed_at = now()
		WHERE id = $1 AND site_id = $2
		RETURNING completed_at;
	`
	return s.withConn(ctx, func(conn *sql.Conn) apperrors.Error {
		err := conn.QueryRowContext(ctx, query, run.ID, run.SiteID, run.State,
			nullString(string(run.Outcome)), nullString(run.Error),
			run.Created, run.Updated, run.Deleted, run.Unchanged, run.Failed,
		).Scan(&run.CompletedAt)
		if err != nil {
			if err == sql.ErrNoRows {
				return dberror.ErrNotFound.Msg("run not found")
			}
			return dberror.ErrDatabase.Err(err)
		}
		return nil
	})
}

func (s *Store) ListRuns(ctx context.Context, siteID uuid.UUID, limit int) ([]*models.SyncRun, apperrors.Error) {
	if siteID == uuid.Nil {
		return nil, dberror.ErrMissingSiteID
	}
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, site_id, trigger, mode, state, COALESCE(outcome, ''), COALESCE(error, ''),
			created, updated, deleted, unchanged, failed, started_at, completed_at
		FROM sync_runs
		WHERE site_id = $1
		ORDER BY started_at DESC, id DESC
		LIMIT $2;
	`
	var runs []*models.SyncRun
	err := s.withConn(ctx, func(conn *sql.Conn) apperrors.Error {
		rows, err := conn.QueryContext(ctx, query, siteID, limit)
		if err != nil {
			return dberror.ErrDatabase.Err(err)
		}
		defer rows.Close()
		for rows.Next() {
			var r models.SyncRun
			if err := rows.Scan(&r.ID, &r.SiteID, &r.Trigger, &r.Mode, &r.State, &r.Outcome, &r.Error,
				&r.Created, &r.Updated, &r.Deleted, &r.Unchanged, &r.Failed, &r.StartedAt, &r.CompletedAt); err != nil {
				return dberror.ErrDatabase.Err(err)
			}
			runs = append(runs, &r)
		}
		if err := rows.Err(); err != nil {
			return dberror.ErrDatabase.Err(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return runs, nil
}
