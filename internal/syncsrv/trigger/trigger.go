// Package trigger turns webhook pushes, force syncs and publishes into
// orchestrator runs. Runs started here execute in the background unless the
// caller asks to wait; Wait blocks until all of them have finished.
package trigger

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/flowershow/contentsync/internal/common/apperrors"
	"github.com/flowershow/contentsync/internal/common/ratelimit"
	"github.com/flowershow/contentsync/internal/common/uuid"
	"github.com/flowershow/contentsync/internal/syncsrv/db"
	"github.com/flowershow/contentsync/internal/syncsrv/diff"
	"github.com/flowershow/contentsync/internal/syncsrv/objectstore"
	"github.com/flowershow/contentsync/internal/syncsrv/orchestrator"
	"github.com/flowershow/contentsync/pkg/types"
)

var (
	ErrTrigger        apperrors.Error = apperrors.New("unable to trigger sync").SetStatusCode(http.StatusInternalServerError)
	ErrRateLimited    apperrors.Error = ErrTrigger.New("rate limit exceeded, try again later").SetStatusCode(http.StatusTooManyRequests)
	ErrShuttingDown   apperrors.Error = ErrTrigger.New("server is shutting down").SetStatusCode(http.StatusServiceUnavailable)
	ErrInvalidEvent   apperrors.Error = ErrTrigger.New("invalid webhook payload").SetStatusCode(http.StatusBadRequest)
	ErrInvalidPublish apperrors.Error = ErrTrigger.New("invalid publish request").SetStatusCode(http.StatusBadRequest)
	ErrInvalidSite    apperrors.Error = ErrTrigger.New("invalid site").SetStatusCode(http.StatusBadRequest)
)

type Options struct {
	MaxFiles     int
	MaxFileSize  int64
	MaxTotalSize int64
}

// Dispatcher is the single entry point for starting syncs.
type Dispatcher struct {
	orch    *orchestrator.Orchestrator
	store   db.Store
	objects objectstore.Backend
	limiter ratelimit.Limiter
	opts    Options

	wg     sync.WaitGroup
	closed atomic.Bool
}

func New(orch *orchestrator.Orchestrator, store db.Store, objects objectstore.Backend, limiter ratelimit.Limiter, opts Options) *Dispatcher {
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	return &Dispatcher{
		orch:    orch,
		store:   store,
		objects: objects,
		limiter: limiter,
		opts:    opts,
	}
}

// Accepted describes a triggered run. Outcome is set only when the caller
// waited for the run to finish.
type Accepted struct {
	SiteID  uuid.UUID                `json:"siteId"`
	RunID   *uuid.UUID               `json:"runId,omitempty"`
	Outcome *orchestrator.RunOutcome `json:"outcome,omitempty"`
}

func (a *Accepted) finished(out *orchestrator.RunOutcome) {
	a.Outcome = out
	if out != nil {
		id := out.RunID
		a.RunID = &id
	}
}

// ForceSync starts a full run of a site that reprocesses every file. It
// fails with orchestrator.ErrAlreadySyncing when a sync is in progress.
func (d *Dispatcher) ForceSync(ctx context.Context, siteID uuid.UUID, wait bool) (*Accepted, apperrors.Error) {
	if err := d.admit(siteID.String()); err != nil {
		return nil, err
	}
	run, err := d.orch.Begin(ctx, siteID, orchestrator.PolicyReject)
	if err != nil {
		return nil, err
	}
	req := orchestrator.RunRequest{
		SiteID:  siteID,
		Trigger: types.TriggerForce,
		Mode:    diff.Full,
		Force:   true,
		Policy:  orchestrator.PolicyReject,
	}
	return d.execute(ctx, run, req, wait)
}

// Sync starts a full run without forcing unchanged files. The CLI uses it
// to reconcile a site on demand; it queues behind a running sync.
func (d *Dispatcher) Sync(ctx context.Context, siteID uuid.UUID, wait bool) (*Accepted, apperrors.Error) {
	if err := d.admit(siteID.String()); err != nil {
		return nil, err
	}
	run, err := d.orch.Begin(ctx, siteID, orchestrator.PolicyQueue)
	if err != nil {
		return nil, err
	}
	req := orchestrator.RunRequest{
		SiteID:  siteID,
		Trigger: types.TriggerCLI,
		Mode:    diff.Full,
	}
	return d.execute(ctx, run, req, wait)
}

// execute runs a locked sync, in the background unless wait is set.
func (d *Dispatcher) execute(ctx context.Context, run *orchestrator.Run, req orchestrator.RunRequest, wait bool) (*Accepted, apperrors.Error) {
	acc := &Accepted{SiteID: req.SiteID}
	if wait {
		out, err := run.Execute(ctx, req)
		if err != nil {
			return nil, err
		}
		acc.finished(out)
		return acc, nil
	}
	d.background(ctx, func(ctx context.Context) {
		if _, err := run.Execute(ctx, req); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("site_id", req.SiteID.String()).Msg("background sync failed")
		}
	})
	return acc, nil
}

// background runs fn detached from the cancellation of ctx, keeping its
// values so the request logger follows the run.
func (d *Dispatcher) background(ctx context.Context, fn func(ctx context.Context)) {
	d.wg.Add(1)
	ctx = context.WithoutCancel(ctx)
	go func() {
		defer d.wg.Done()
		fn(ctx)
	}()
}

func (d *Dispatcher) admit(key string) apperrors.Error {
	if d.closed.Load() {
		return ErrShuttingDown
	}
	if ok, retry := d.limiter.Allow(key); !ok {
		return ErrRateLimited.Msg("rate limit exceeded, retry in " + retry.Round(time.Second).String())
	}
	return nil
}

// Close stops accepting new triggers.
func (d *Dispatcher) Close() {
	d.closed.Store(true)
}

// Wait blocks until background runs finish or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
