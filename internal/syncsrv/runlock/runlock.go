// Package runlock serializes sync runs per site.
package runlock

import (
	"context"
	"net/http"

	"github.com/flowershow/contentsync/internal/common/apperrors"
	"github.com/flowershow/contentsync/internal/common/uuid"
)

var (
	ErrLock           apperrors.Error = apperrors.New("run lock error").SetStatusCode(http.StatusInternalServerError)
	ErrAlreadySyncing apperrors.Error = ErrLock.New("a sync is already running for this site").SetStatusCode(http.StatusConflict)
)

// Lock is a held run lock.
type Lock interface {
	// Release gives the lock up. Calling it more than once is a no-op.
	Release(ctx context.Context) apperrors.Error
}

type Locker interface {
	// Acquire blocks until the lock for siteID is held or ctx is done.
	Acquire(ctx context.Context, siteID uuid.UUID) (Lock, apperrors.Error)
	// TryAcquire returns ErrAlreadySyncing when the lock is held elsewhere.
	TryAcquire(ctx context.Context, siteID uuid.UUID) (Lock, apperrors.Error)
	// Held reports whether a run currently holds the lock for siteID.
	Held(ctx context.Context, siteID uuid.UUID) (bool, apperrors.Error)
}
