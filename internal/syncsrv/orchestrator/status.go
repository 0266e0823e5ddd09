package orchestrator

import (
	"context"

	"github.com/flowershow/contentsync/internal/common/apperrors"
	"github.com/flowershow/contentsync/internal/common/uuid"
	"github.com/flowershow/contentsync/internal/syncsrv/db/models"
	"github.com/flowershow/contentsync/pkg/types"
)

type FileCounts struct {
	Total   int
	Pending int
	Success int
	Failed  int
}

type SiteState struct {
	SiteID  uuid.UUID
	Status  types.SiteStatus
	Syncing bool
	Files   FileCounts
	Blobs   []*models.Blob
}

// DeriveStatus reduces blob states to a site status: error if any blob
// failed, processing if any is pending, complete otherwise.
func DeriveStatus(blobs []*models.Blob) (types.SiteStatus, FileCounts) {
	var c FileCounts
	for _, b := range blobs {
		c.Total++
		switch b.SyncStatus {
		case types.SyncStatusPending:
			c.Pending++
		case types.SyncStatusSuccess:
			c.Success++
		case types.SyncStatusError:
			c.Failed++
		}
	}
	switch {
	case c.Failed > 0:
		return types.SiteStatusError, c
	case c.Pending > 0:
		return types.SiteStatusProcessing, c
	}
	return types.SiteStatusComplete, c
}

// Status computes the current state of a site from its blobs.
func (o *Orchestrator) Status(ctx context.Context, siteID uuid.UUID) (*SiteState, apperrors.Error) {
	if _, err := o.site(ctx, siteID); err != nil {
		return nil, err
	}
	blobs, err := o.store.ListBlobs(ctx, siteID)
	if err != nil {
		return nil, ErrPersistence.Err(err)
	}
	syncing, err := o.locker.Held(ctx, siteID)
	if err != nil {
		return nil, err
	}
	status, counts := DeriveStatus(blobs)
	return &SiteState{SiteID: siteID, Status: status, Syncing: syncing, Files: counts, Blobs: blobs}, nil
}

// Runs returns the most recent sync runs of a site.
func (o *Orchestrator) Runs(ctx context.Context, siteID uuid.UUID, limit int) ([]*models.SyncRun, apperrors.Error) {
	if _, err := o.site(ctx, siteID); err != nil {
		return nil, err
	}
	runs, err := o.store.ListRuns(ctx, siteID, limit)
	if err != nil {
		return nil, ErrPersistence.Err(err)
	}
	return runs, nil
}
