package orchestrator

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/flowershow/contentsync/internal/common/apperrors"
)

// StaleReason is recorded on blobs left PENDING by an abandoned run.
const StaleReason = "stale: sync did not finish, the file will be retried on the next sync"

// SweepStale marks PENDING blobs older than the stale threshold as ERROR.
// Sites with a run in progress are skipped. It returns the number of blobs
// changed.
func (o *Orchestrator) SweepStale(ctx context.Context) (int64, apperrors.Error) {
	cutoff := o.now().Add(-o.opts.StaleAfter)
	sites, err := o.store.StalePendingSites(ctx, cutoff)
	if err != nil {
		return 0, ErrPersistence.Err(err)
	}

	var total int64
	for _, siteID := range sites {
		lock, err := o.locker.TryAcquire(ctx, siteID)
		if err != nil {
			if err.Is(ErrAlreadySyncing) {
				log.Ctx(ctx).Debug().Str("site_id", siteID.String()).Msg("sync in progress, skipping stale check")
				continue
			}
			return total, err
		}
		n, ferr := o.store.FailStalePending(ctx, siteID, cutoff, StaleReason)
		if rerr := lock.Release(ctx); rerr != nil {
			log.Ctx(ctx).Error().Err(rerr).Str("site_id", siteID.String()).Msg("failed to release run lock")
		}
		if ferr != nil {
			return total, ErrPersistence.Err(ferr)
		}
		if n > 0 {
			log.Ctx(ctx).Warn().Str("site_id", siteID.String()).Int64("count", n).Msg("marked stale pending files as failed")
		}
		total += n
	}
	return total, nil
}

// RunJanitor sweeps stale blobs every interval until ctx is done.
func (o *Orchestrator) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := o.SweepStale(ctx); err != nil {
				log.Ctx(ctx).Error().Err(err).Msg("stale sweep failed")
			}
		}
	}
}
