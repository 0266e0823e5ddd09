package db

import (
	"context"
	"time"

	"github.com/flowershow/contentsync/internal/common/apperrors"
	"github.com/flowershow/contentsync/internal/common/uuid"
	"github.com/flowershow/contentsync/internal/syncsrv/db/models"
)

type SiteStore interface {
	CreateSite(ctx context.Context, site *models.Site) apperrors.Error
	GetSite(ctx context.Context, siteID uuid.UUID) (*models.Site, apperrors.Error)
	// ListSitesByRepository returns the sites tracking repository at branch.
	ListSitesByRepository(ctx context.Context, repository, branch string) ([]*models.Site, apperrors.Error)
	// DeleteSite removes the site with its blobs and run history.
	DeleteSite(ctx context.Context, siteID uuid.UUID) apperrors.Error
}

type BlobStore interface {
	ListBlobs(ctx context.Context, siteID uuid.UUID) ([]*models.Blob, apperrors.Error)
	GetBlob(ctx context.Context, siteID uuid.UUID, path string) (*models.Blob, apperrors.Error)
	// MarkBlobsPending moves the named blobs to PENDING, creating rows for
	// paths not seen before. Content and metadata of existing rows are kept.
	MarkBlobsPending(ctx context.Context, siteID uuid.UUID, blobs []models.PendingBlob) apperrors.Error
	// CompleteBlob stores the processed state of a file and marks it SUCCESS.
	CompleteBlob(ctx context.Context, siteID uuid.UUID, result models.BlobResult) apperrors.Error
	// FailBlob marks a blob ERROR with reason, leaving its last good content in place.
	FailBlob(ctx context.Context, siteID uuid.UUID, path string, reason string) apperrors.Error
	DeleteBlob(ctx context.Context, siteID uuid.UUID, path string) apperrors.Error
	// StalePendingSites lists sites having PENDING blobs last updated before olderThan.
	StalePendingSites(ctx context.Context, olderThan time.Time) ([]uuid.UUID, apperrors.Error)
	// FailStalePending marks the site's PENDING blobs last updated before
	// olderThan as ERROR and returns how many were changed.
	FailStalePending(ctx context.Context, siteID uuid.UUID, olderThan time.Time, reason string) (int64, apperrors.Error)
}

type RunStore interface {
	CreateRun(ctx context.Context, run *models.SyncRun) apperrors.Error
	FinishRun(ctx context.Context, run *models.SyncRun) apperrors.Error
	// ListRuns returns the most recent runs of a site, newest first.
	ListRuns(ctx context.Context, siteID uuid.UUID, limit int) ([]*models.SyncRun, apperrors.Error)
}

// Store is the persistence layer of the sync service.
type Store interface {
	SiteStore
	BlobStore
	RunStore
	Close(ctx context.Context)
}
