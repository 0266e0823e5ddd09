// Package orchestrator runs site syncs: it takes the run lock, diffs the
// source listing against the tracked files, processes what changed and
// records the outcome.
package orchestrator

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/flowershow/contentsync/internal/common/apperrors"
	"github.com/flowershow/contentsync/internal/common/uuid"
	"github.com/flowershow/contentsync/internal/syncsrv/db"
	"github.com/flowershow/contentsync/internal/syncsrv/db/dberror"
	"github.com/flowershow/contentsync/internal/syncsrv/db/models"
	"github.com/flowershow/contentsync/internal/syncsrv/diff"
	"github.com/flowershow/contentsync/internal/syncsrv/objectstore"
	"github.com/flowershow/contentsync/internal/syncsrv/runlock"
	"github.com/flowershow/contentsync/internal/syncsrv/searchindex"
	"github.com/flowershow/contentsync/internal/syncsrv/source"
	"github.com/flowershow/contentsync/pkg/types"
)

var (
	ErrSync           apperrors.Error = apperrors.New("sync failed").SetExpandError(true).SetStatusCode(http.StatusInternalServerError)
	ErrSiteNotFound   apperrors.Error = ErrSync.New("site not found").SetStatusCode(http.StatusNotFound)
	ErrPersistence    apperrors.Error = ErrSync.New("unable to persist sync state")
	ErrAlreadySyncing                 = runlock.ErrAlreadySyncing
	ErrRunReleased    apperrors.Error = ErrSync.New("run already finished").SetStatusCode(http.StatusConflict)
)

// LockPolicy decides what a run does when another run holds the site lock.
type LockPolicy int

const (
	// PolicyQueue waits for the running sync to finish.
	PolicyQueue LockPolicy = iota
	// PolicyReject fails with ErrAlreadySyncing.
	PolicyReject
)

type RunRequest struct {
	SiteID  uuid.UUID
	Trigger types.TriggerKind
	Mode    diff.Mode
	// Changeset lists the files of a partial run. For a full run it replaces
	// the source listing when set.
	Changeset []diff.Entry
	Force     bool
	Policy    LockPolicy
}

type FileError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

type RunOutcome struct {
	RunID     uuid.UUID        `json:"runId"`
	SiteID    uuid.UUID        `json:"siteId"`
	Outcome   types.RunOutcome `json:"outcome"`
	Created   int              `json:"created"`
	Updated   int              `json:"updated"`
	Deleted   int              `json:"deleted"`
	Unchanged int              `json:"unchanged"`
	Failed    int              `json:"failed"`
	Errors    []FileError      `json:"errors,omitempty"`
}

type Options struct {
	// FileConcurrency bounds the files processed at once within a run.
	FileConcurrency int
	// StaleAfter is the age after which a PENDING blob is considered abandoned.
	StaleAfter time.Duration
}

type Orchestrator struct {
	store   db.Store
	sources source.Resolver
	objects objectstore.Backend
	search  searchindex.Index
	locker  runlock.Locker
	opts    Options
	now     func() time.Time
}

func New(store db.Store, sources source.Resolver, objects objectstore.Backend, search searchindex.Index,
	locker runlock.Locker, opts Options) *Orchestrator {
	if opts.FileConcurrency <= 0 {
		opts.FileConcurrency = 8
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 30 * time.Minute
	}
	return &Orchestrator{
		store:   store,
		sources: sources,
		objects: objects,
		search:  search,
		locker:  locker,
		opts:    opts,
		now:     time.Now,
	}
}

// Run is a sync that holds its site's lock and is ready to execute.
type Run struct {
	o    *Orchestrator
	site *models.Site
	lock runlock.Lock
	done bool
}

// Begin takes the site's run lock according to policy and loads the site
// once the lock is held, so a queued run sees the settings current when it
// starts.
func (o *Orchestrator) Begin(ctx context.Context, siteID uuid.UUID, policy LockPolicy) (*Run, apperrors.Error) {
	if _, err := o.site(ctx, siteID); err != nil {
		return nil, err
	}
	var (
		lock runlock.Lock
		err  apperrors.Error
	)
	if policy == PolicyReject {
		lock, err = o.locker.TryAcquire(ctx, siteID)
	} else {
		lock, err = o.locker.Acquire(ctx, siteID)
	}
	if err != nil {
		log.Ctx(ctx).Info().Err(err).Str("site_id", siteID.String()).Msg("unable to acquire run lock")
		return nil, err
	}
	site, err := o.site(ctx, siteID)
	if err != nil {
		if rerr := lock.Release(ctx); rerr != nil {
			log.Ctx(ctx).Error().Err(rerr).Str("site_id", siteID.String()).Msg("failed to release run lock")
		}
		return nil, err
	}
	return &Run{o: o, site: site, lock: lock}, nil
}

// RunSync executes one sync of a site from lock to outcome.
func (o *Orchestrator) RunSync(ctx context.Context, req RunRequest) (*RunOutcome, apperrors.Error) {
	r, err := o.Begin(ctx, req.SiteID, req.Policy)
	if err != nil {
		return nil, err
	}
	return r.Execute(ctx, req)
}

// Site returns the run's site.
func (r *Run) Site() *models.Site {
	return r.site
}

// Release gives up the lock of a run that will not be executed.
func (r *Run) Release(ctx context.Context) apperrors.Error {
	if r.done {
		return nil
	}
	r.done = true
	return r.lock.Release(ctx)
}

func (o *Orchestrator) site(ctx context.Context, siteID uuid.UUID) (*models.Site, apperrors.Error) {
	site, err := o.store.GetSite(ctx, siteID)
	if err != nil {
		if err.Is(dberror.ErrNotFound) {
			return nil, ErrSiteNotFound
		}
		return nil, ErrPersistence.Err(err)
	}
	return site, nil
}

// DeleteSite removes a site with its search documents and stored objects.
// It waits for a running sync to finish first.
func (o *Orchestrator) DeleteSite(ctx context.Context, siteID uuid.UUID) apperrors.Error {
	r, err := o.Begin(ctx, siteID, PolicyQueue)
	if err != nil {
		return err
	}
	defer func() {
		if err := r.Release(ctx); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("site_id", siteID.String()).Msg("failed to release run lock")
		}
	}()

	if err := o.search.DeleteSite(ctx, siteID); err != nil {
		return ErrPersistence.Err(err)
	}
	if err := o.objects.DeletePrefix(ctx, objectstore.SitePrefix(siteID)); err != nil {
		return ErrPersistence.Err(err)
	}
	if err := o.store.DeleteSite(ctx, siteID); err != nil {
		if err.Is(dberror.ErrNotFound) {
			return ErrSiteNotFound
		}
		return ErrPersistence.Err(err)
	}
	log.Ctx(ctx).Info().Str("site_id", siteID.String()).Msg("site deleted")
	return nil
}
