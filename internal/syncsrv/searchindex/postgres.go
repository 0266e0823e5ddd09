package searchindex

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/flowershow/contentsync/internal/common/apperrors"
	"github.com/flowershow/contentsync/internal/common/uuid"
	"github.com/flowershow/contentsync/internal/syncsrv/db/dbmanager"
)

// PostgresIndex stores documents in the search_documents table with a
// weighted tsvector over title, description and content.
type PostgresIndex struct {
	pool dbmanager.Pool
}

func NewPostgresIndex(pool dbmanager.Pool) *PostgresIndex {
	return &PostgresIndex{pool: pool}
}

func (p *PostgresIndex) Upsert(ctx context.Context, siteID uuid.UUID, docID string, doc Document) apperrors.Error {
	query := `
		INSERT INTO search_documents (site_id, path, title, description, content, authors, date, url, document)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8,
			setweight(to_tsvector('simple', $3), 'A') ||
			setweight(to_tsvector('simple', $4), 'B') ||
			setweight(to_tsvector('simple', $5), 'C'))
		ON CONFLICT (site_id, path) DO UPDATE
		SET title = EXCLUDED.title, description = EXCLUDED.description, content = EXCLUDED.content,
			authors = EXCLUDED.authors, date = EXCLUDED.date, url = EXCLUDED.url, document = EXCLUDED.document, updated_at = now();
	`
	return p.exec(ctx, query, siteID, docID, doc.Title, doc.Description, doc.Content,
		pq.Array(doc.Authors), sql.NullString{String: doc.Date, Valid: doc.Date != ""}, doc.URL)
}

func (p *PostgresIndex) Delete(ctx context.Context, siteID uuid.UUID, docID string) apperrors.Error {
	return p.exec(ctx, `DELETE FROM search_documents WHERE site_id = $1 AND path = $2`, siteID, docID)
}

func (p *PostgresIndex) DeleteSite(ctx context.Context, siteID uuid.UUID) apperrors.Error {
	return p.exec(ctx, `DELETE FROM search_documents WHERE site_id = $1`, siteID)
}

func (p *PostgresIndex) Search(ctx context.Context, siteID uuid.UUID, query string, limit int) ([]Document, apperrors.Error) {
	if limit <= 0 {
		limit = 20
	}
	c, err := p.pool.Conn(ctx)
	if err != nil {
		return nil, ErrSearchIndex.Err(err)
	}
	defer c.Close(ctx)

	rows, err := c.Conn().QueryContext(ctx, `
		SELECT path, url, title, description, content, authors, COALESCE(date, '')
		FROM search_documents, plainto_tsquery('simple', $2) q
		WHERE site_id = $1 AND document @@ q
		ORDER BY ts_rank(document, q) DESC, path
		LIMIT $3`, siteID, query, limit)
	if err != nil {
		return nil, ErrSearchIndex.Err(err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.Path, &d.URL, &d.Title, &d.Description, &d.Content, pq.Array(&d.Authors), &d.Date); err != nil {
			return nil, ErrSearchIndex.Err(err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, ErrSearchIndex.Err(err)
	}
	return docs, nil
}

func (p *PostgresIndex) exec(ctx context.Context, query string, args ...any) apperrors.Error {
	c, err := p.pool.Conn(ctx)
	if err != nil {
		return ErrSearchIndex.Err(err)
	}
	defer c.Close(ctx)
	if _, err := c.Conn().ExecContext(ctx, query, args...); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("search index statement failed")
		return ErrSearchIndex.Err(err)
	}
	return nil
}
