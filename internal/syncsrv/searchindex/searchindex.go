// Package searchindex keeps the full text search documents of published pages.
package searchindex

import (
	"context"
	"net/http"

	"github.com/flowershow/contentsync/internal/common/apperrors"
	"github.com/flowershow/contentsync/internal/common/uuid"
)

var ErrSearchIndex apperrors.Error = apperrors.New("search index error").SetStatusCode(http.StatusInternalServerError)

// Document is the searchable view of a page. Path doubles as the document id.
// URL is the public path the page is served at.
type Document struct {
	Path        string   `json:"path"`
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Content     string   `json:"content"`
	Authors     []string `json:"authors,omitempty"`
	Date        string   `json:"date,omitempty"`
}

type Index interface {
	Upsert(ctx context.Context, siteID uuid.UUID, docID string, doc Document) apperrors.Error
	// Delete succeeds when the document does not exist.
	Delete(ctx context.Context, siteID uuid.UUID, docID string) apperrors.Error
	DeleteSite(ctx context.Context, siteID uuid.UUID) apperrors.Error
	Search(ctx context.Context, siteID uuid.UUID, query string, limit int) ([]Document, apperrors.Error)
}
