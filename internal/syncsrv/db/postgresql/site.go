package postgresql

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/flowershow/contentsync/internal/common/apperrors"
	"github.com/flowershow/contentsync/internal/common/uuid"
	"github.com/flowershow/contentsync/internal/syncsrv/db/dberror"
	"github.com/flowershow/contentsync/internal/syncsrv/db/models"
)

const siteColumns = `
	id, COALESCE(user_id, ''), COALESCE(anonymous_owner, ''), source_kind,
	COALESCE(gh_repository, ''), COALESCE(gh_branch, ''), COALESCE(root_dir, ''),
	content_include, content_exclude, custom_domain, privacy_mode, password_hash,
	plan, created_at, updated_at`

func (s *Store) CreateSite(ctx context.Context, site *models.Site) apperrors.Error {
	if site == nil {
		return dberror.ErrInvalidInput.Msg("site cannot be nil")
	}
	if site.Source.Kind == "" {
		return dberror.ErrInvalidInput.Msg("source kind cannot be empty")
	}
	if site.ID == uuid.Nil {
		site.ID = uuid.New()
	}

	query := `
		INSERT INTO sites (id, user_id, anonymous_owner, source_kind, gh_repository, gh_branch,
			root_dir, content_include, content_exclude, custom_domain, privacy_mode, password_hash, plan)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at;
	`
	return s.withConn(ctx, func(conn *sql.Conn) apperrors.Error {
		err := conn.QueryRowContext(ctx, query,
			site.ID,
			nullString(site.UserID),
			nullString(site.AnonymousOwner),
			site.Source.Kind,
			nullString(site.Source.Repository),
			nullString(site.Source.Branch),
			nullString(site.Source.RootDir),
			pq.Array(site.ContentInclude),
			pq.Array(site.ContentExclude),
			site.CustomDomain,
			site.PrivacyMode,
			site.PasswordHash,
			site.Plan,
		).Scan(&site.CreatedAt, &site.UpdatedAt)
		if err != nil {
			if pgErr, ok := pgError(err); ok && pgErr.Code == "23505" {
				log.Ctx(ctx).Error().Str("site_id", site.ID.String()).Msg("site already exists")
				return dberror.ErrAlreadyExists.Msg("site already exists")
			}
			log.Ctx(ctx).Error().Err(err).Msg("failed to insert site")
			return dberror.ErrDatabase.Err(err)
		}
		return nil
	})
}

func (s *Store) GetSite(ctx context.Context, siteID uuid.UUID) (*models.Site, apperrors.Error) {
	if siteID == uuid.Nil {
		return nil, dberror.ErrMissingSiteID
	}
	var site *models.Site
	err := s.withConn(ctx, func(conn *sql.Conn) apperrors.Error {
		row := conn.QueryRowContext(ctx, `SELECT `+siteColumns+` FROM sites WHERE id = $1`, siteID)
		var err error
		site, err = scanSite(row)
		if err != nil {
			if err == sql.ErrNoRows {
				return dberror.ErrNotFound.Msg("site not found")
			}
			return dberror.ErrDatabase.Err(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return site, nil
}

func (s *Store) ListSitesByRepository(ctx context.Context, repository, branch string) ([]*models.Site, apperrors.Error) {
	query := `SELECT ` + siteColumns + ` FROM sites
		WHERE source_kind = 'github' AND gh_repository = $1 AND COALESCE(NULLIF(gh_branch, ''), 'main') = $2
		ORDER BY id`
	var sites []*models.Site
	err := s.withConn(ctx, func(conn *sql.Conn) apperrors.Error {
		rows, err := conn.QueryContext(ctx, query, repository, branch)
		if err != nil {
			return dberror.ErrDatabase.Err(err)
		}
		defer rows.Close()
		for rows.Next() {
			site, err := scanSite(rows)
			if err != nil {
				return dberror.ErrDatabase.Err(err)
			}
			sites = append(sites, site)
		}
		if err := rows.Err(); err != nil {
			return dberror.ErrDatabase.Err(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sites, nil
}

func (s *Store) DeleteSite(ctx context.Context, siteID uuid.UUID) apperrors.Error {
	if siteID == uuid.Nil {
		return dberror.ErrMissingSiteID
	}
	return s.withConn(ctx, func(conn *sql.Conn) apperrors.Error {
		result, err := conn.ExecContext(ctx, `DELETE FROM sites WHERE id = $1`, siteID)
		if err != nil {
			return dberror.ErrDatabase.Err(err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return dberror.ErrDatabase.Err(err)
		}
		if n == 0 {
			return dberror.ErrNotFound.Msg("site not found")
		}
		return nil
	})
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSite(row scanner) (*models.Site, error) {
	var site models.Site
	err := row.Scan(
		&site.ID,
		&site.UserID,
		&site.AnonymousOwner,
		&site.Source.Kind,
		&site.Source.Repository,
		&site.Source.Branch,
		&site.Source.RootDir,
		pq.Array(&site.ContentInclude),
		pq.Array(&site.ContentExclude),
		&site.CustomDomain,
		&site.PrivacyMode,
		&site.PasswordHash,
		&site.Plan,
		&site.CreatedAt,
		&site.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &site, nil
}
