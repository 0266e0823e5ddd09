package postgresql

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgtype"
	json "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"

	"github.com/flowershow/contentsync/internal/common/apperrors"
	"github.com/flowershow/contentsync/internal/common/uuid"
	"github.com/flowershow/contentsync/internal/syncsrv/db/dberror"
	"github.com/flowershow/contentsync/internal/syncsrv/db/models"
	"github.com/flowershow/contentsync/pkg/types"
)

const blobColumns = `
	id, site_id, path, extension, content_hash, size, app_path, permalink,
	metadata, width, height, sync_status, sync_error, created_at, updated_at`

func (s *Store) ListBlobs(ctx context.Context, siteID uuid.UUID) ([]*models.Blob, apperrors.Error) {
	if siteID == uuid.Nil {
		return nil, dberror.ErrMissingSiteID
	}
	var blobs []*models.Blob
	err := s.withConn(ctx, func(conn *sql.Conn) apperrors.Error {
		rows, err := conn.QueryContext(ctx, `SELECT `+blobColumns+` FROM blobs WHERE site_id = $1 ORDER BY path`, siteID)
		if err != nil {
			return dberror.ErrDatabase.Err(err)
		}
		defer rows.Close()
		for rows.Next() {
			b, err := scanBlob(rows)
			if err != nil {
				return dberror.ErrDatabase.Err(err)
			}
			blobs = append(blobs, b)
		}
		if err := rows.Err(); err != nil {
			return dberror.ErrDatabase.Err(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return blobs, nil
}

func (s *Store) GetBlob(ctx context.Context, siteID uuid.UUID, path string) (*models.Blob, apperrors.Error) {
	if siteID == uuid.Nil {
		return nil, dberror.ErrMissingSiteID
	}
	var blob *models.Blob
	err := s.withConn(ctx, func(conn *sql.Conn) apperrors.Error {
		row := conn.QueryRowContext(ctx, `SELECT `+blobColumns+` FROM blobs WHERE site_id = $1 AND path = $2`, siteID, path)
		var err error
		blob, err = scanBlob(row)
		if err != nil {
			if err == sql.ErrNoRows {
				return dberror.ErrNotFound.Msg("blob not found")
			}
			return dberror.ErrDatabase.Err(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return blob, nil
}

func (s *Store) MarkBlobsPending(ctx context.Context, siteID uuid.UUID, blobs []models.PendingBlob) apperrors.Error {
	if siteID == uuid.Nil {
		return dberror.ErrMissingSiteID
	}
	if len(blobs) == 0 {
		return nil
	}
	query := `
		INSERT INTO blobs (id, site_id, path, extension, size, sync_status)
		VALUES ($1, $2, $3, $4, $5, 'PENDING')
		ON CONFLICT (site_id, path) DO UPDATE
		SET sync_status = 'PENDING', updated_at = now();
	`
	return s.withTx(ctx, func(tx *sql.Tx) apperrors.Error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return dberror.ErrDatabase.Err(err)
		}
		defer stmt.Close()
		for _, b := range blobs {
			if _, err := stmt.ExecContext(ctx, uuid.New(), siteID, b.Path, b.Extension, b.Size); err != nil {
				if pgErr, ok := pgError(err); ok && pgErr.Code == "23503" {
					return dberror.ErrNotFound.Msg("site not found")
				}
				log.Ctx(ctx).Error().Err(err).Str("path", b.Path).Msg("failed to mark blob pending")
				return dberror.ErrDatabase.Err(err)
			}
		}
		return nil
	})
}

func (s *Store) CompleteBlob(ctx context.Context, siteID uuid.UUID, r models.BlobResult) apperrors.Error {
	if siteID == uuid.Nil {
		return dberror.ErrMissingSiteID
	}
	metadata := pgtype.JSONB{Status: pgtype.Null}
	if r.Metadata != nil {
		if err := metadata.Set(r.Metadata); err != nil {
			return dberror.ErrInvalidInput.Msg("unable to encode metadata").Err(err)
		}
	}
	query := `
		UPDATE blobs
		SET content_hash = $3, size = $4, app_path = $5, permalink = $6, metadata = $7,
			width = $8, height = $9, sync_status = 'SUCCESS', sync_error = NULL, updated_at = now()
		WHERE site_id = $1 AND path = $2;
	`
	return s.exec(ctx, "blob not found", query, siteID, r.Path, r.ContentHash, r.Size,
		r.AppPath, r.Permalink, metadata, r.Width, r.Height)
}

func (s *Store) FailBlob(ctx context.Context, siteID uuid.UUID, path string, reason string) apperrors.Error {
	if siteID == uuid.Nil {
		return dberror.ErrMissingSiteID
	}
	query := `
		UPDATE blobs SET sync_status = 'ERROR', sync_error = $3, updated_at = now()
		WHERE site_id = $1 AND path = $2;
	`
	return s.exec(ctx, "blob not found", query, siteID, path, reason)
}

func (s *Store) DeleteBlob(ctx context.Context, siteID uuid.UUID, path string) apperrors.Error {
	if siteID == uuid.Nil {
		return dberror.ErrMissingSiteID
	}
	return s.exec(ctx, "blob not found", `DELETE FROM blobs WHERE site_id = $1 AND path = $2`, siteID, path)
}

func (s *Store) StalePendingSites(ctx context.Context, olderThan time.Time) ([]uuid.UUID, apperrors.Error) {
	var ids []uuid.UUID
	err := s.withConn(ctx, func(conn *sql.Conn) apperrors.Error {
		rows, err := conn.QueryContext(ctx, `
			SELECT DISTINCT site_id FROM blobs
			WHERE sync_status = 'PENDING' AND updated_at < $1
			ORDER BY site_id`, olderThan)
		if err != nil {
			return dberror.ErrDatabase.Err(err)
		}
		defer rows.Close()
		for rows.Next() {
			var id uuid.UUID
			if err := rows.Scan(&id); err != nil {
				return dberror.ErrDatabase.Err(err)
			}
			ids = append(ids, id)
		}
		if err := rows.Err(); err != nil {
			return dberror.ErrDatabase.Err(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) FailStalePending(ctx context.Context, siteID uuid.UUID, olderThan time.Time, reason string) (int64, apperrors.Error) {
	if siteID == uuid.Nil {
		return 0, dberror.ErrMissingSiteID
	}
	var n int64
	err := s.withConn(ctx, func(conn *sql.Conn) apperrors.Error {
		result, err := conn.ExecContext(ctx, `
			UPDATE blobs SET sync_status = 'ERROR', sync_error = $3, updated_at = now()
			WHERE site_id = $1 AND sync_status = 'PENDING' AND updated_at < $2`,
			siteID, olderThan, reason)
		if err != nil {
			return dberror.ErrDatabase.Err(err)
		}
		n, err = result.RowsAffected()
		if err != nil {
			return dberror.ErrDatabase.Err(err)
		}
		return nil
	})
	return n, err
}

// exec runs a single row statement and reports notFound when nothing matched.
func (s *Store) exec(ctx context.Context, notFound string, query string, args ...any) apperrors.Error {
	return s.withConn(ctx, func(conn *sql.Conn) apperrors.Error {
		result, err := conn.ExecContext(ctx, query, args...)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("failed to execute statement")
			return dberror.ErrDatabase.Err(err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return dberror.ErrDatabase.Err(err)
		}
		if n == 0 {
			return dberror.ErrNotFound.Msg(notFound)
		}
		return nil
	})
}

func scanBlob(row scanner) (*models.Blob, error) {
	var (
		b        models.Blob
		metadata pgtype.JSONB
		width    sql.NullInt32
		height   sql.NullInt32
		status   string
	)
	err := row.Scan(
		&b.ID,
		&b.SiteID,
		&b.Path,
		&b.Extension,
		&b.ContentHash,
		&b.Size,
		&b.AppPath,
		&b.Permalink,
		&metadata,
		&width,
		&height,
		&status,
		&b.SyncError,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.SyncStatus = types.SyncStatus(status)
	if metadata.Status == pgtype.Present {
		if err := json.Unmarshal(metadata.Bytes, &b.Metadata); err != nil {
			return nil, err
		}
	}
	if width.Valid {
		w := int(width.Int32)
		b.Width = &w
	}
	if height.Valid {
		h := int(height.Int32)
		b.Height = &h
	}
	return &b, nil
}
