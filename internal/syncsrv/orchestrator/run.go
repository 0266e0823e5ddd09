package orchestrator

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/flowershow/contentsync/internal/common/apperrors"
	"github.com/flowershow/contentsync/internal/syncsrv/content/datapackage"
	"github.com/flowershow/contentsync/internal/syncsrv/content/markdown"
	"github.com/flowershow/contentsync/internal/syncsrv/db/models"
	"github.com/flowershow/contentsync/internal/syncsrv/diff"
	"github.com/flowershow/contentsync/internal/syncsrv/source"
	"github.com/flowershow/contentsync/pkg/types"
)

// plan is the work of one run after diffing.
type plan struct {
	create  []diff.Entry
	update  []diff.Entry
	delete  []string
	skipped []string
	// known maps every path the site has after this run to its content hash.
	known map[string]string
	sizes map[string]int64
	// rootPage is the only Markdown file of an uploaded site, served at "/".
	rootPage string
}

type fileOutcome int

const (
	outcomeSucceeded fileOutcome = iota
	outcomeFailed
	outcomeRemoved
)

type tally struct {
	mu  sync.Mutex
	out *RunOutcome
}

func (t *tally) record(kind string, path string, o fileOutcome, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch o {
	case outcomeFailed:
		t.out.Failed++
		t.out.Errors = append(t.out.Errors, FileError{Path: path, Error: reason})
	case outcomeRemoved:
		t.out.Deleted++
	case outcomeSucceeded:
		if kind == "create" {
			t.out.Created++
		} else {
			t.out.Updated++
		}
	}
}

// Execute performs the sync described by req and releases the run lock on
// every path. Per file failures are recorded on the blobs and in the
// outcome; only failures that prevent the run from starting or finishing
// are returned as errors.
func (r *Run) Execute(ctx context.Context, req RunRequest) (outcome *RunOutcome, retErr apperrors.Error) {
	if r.done {
		return nil, ErrRunReleased
	}
	o := r.o
	site := r.site

	run := &models.SyncRun{
		SiteID:  site.ID,
		Trigger: req.Trigger,
		Mode:    req.Mode.String(),
		State:   types.RunStateRunning,
	}
	logger := log.Ctx(ctx).With().Str("site_id", site.ID.String()).Logger()
	ctx = logger.WithContext(ctx)

	defer func() {
		if err := r.Release(ctx); err != nil {
			logger.Error().Err(err).Msg("failed to release run lock")
			if retErr == nil {
				retErr = err
			}
		}
	}()

	if err := o.store.CreateRun(ctx, run); err != nil {
		return nil, ErrPersistence.MsgErr("unable to record sync run", err)
	}
	logger = logger.With().Str("run_id", run.ID.String()).Logger()
	ctx = logger.WithContext(ctx)
	logger.Info().Str("trigger", string(req.Trigger)).Str("mode", run.Mode).Bool("force", req.Force).Msg("sync started")

	fail := func(err apperrors.Error) (*RunOutcome, apperrors.Error) {
		run.State = types.RunStateFailed
		run.Outcome = types.RunOutcomeError
		run.Error = err.Error()
		if ferr := o.store.FinishRun(ctx, run); ferr != nil {
			logger.Error().Err(ferr).Msg("failed to record sync run failure")
		}
		logger.Error().Err(err).Msg("sync failed")
		return nil, err
	}

	src, err := o.sources.For(site)
	if err != nil {
		return fail(err)
	}
	p, err := o.plan(ctx, site, src, req)
	if err != nil {
		return fail(err)
	}

	out := &RunOutcome{RunID: run.ID, SiteID: site.ID, Unchanged: len(p.skipped)}
	if len(p.create)+len(p.update) > 0 {
		pending := make([]models.PendingBlob, 0, len(p.create)+len(p.update))
		for _, e := range append(append([]diff.Entry(nil), p.create...), p.update...) {
			pending = append(pending, models.PendingBlob{Path: e.Path, Extension: markdown.Ext(e.Path), Size: e.Size})
		}
		if err := o.store.MarkBlobsPending(ctx, site.ID, pending); err != nil {
			return fail(ErrPersistence.MsgErr("unable to mark files pending", err))
		}
	}

	t := &tally{out: out}
	g := new(errgroup.Group)
	g.SetLimit(o.opts.FileConcurrency)
	for _, batch := range []struct {
		kind    string
		entries []diff.Entry
	}{{"create", p.create}, {"update", p.update}} {
		for _, e := range batch.entries {
			g.Go(func() error {
				res, reason := o.processFile(ctx, site, src, p, e)
				t.record(batch.kind, e.Path, res, reason)
				return nil
			})
		}
	}
	for _, path := range p.delete {
		g.Go(func() error {
			res, reason := o.deleteFile(ctx, site, path)
			t.record("delete", path, res, reason)
			return nil
		})
	}
	g.Wait()

	sort.Slice(out.Errors, func(i, j int) bool { return out.Errors[i].Path < out.Errors[j].Path })
	out.Outcome = types.RunOutcomeComplete
	if out.Failed > 0 {
		out.Outcome = types.RunOutcomeError
	}

	run.State = types.RunStateDone
	run.Outcome = out.Outcome
	run.Created, run.Updated, run.Deleted = out.Created, out.Updated, out.Deleted
	run.Unchanged, run.Failed = out.Unchanged, out.Failed
	if err := o.store.FinishRun(ctx, run); err != nil {
		logger.Error().Err(err).Msg("failed to record sync run")
	}

	logger.Info().
		Str("outcome", string(out.Outcome)).
		Int("created", out.Created).
		Int("updated", out.Updated).
		Int("deleted", out.Deleted).
		Int("unchanged", out.Unchanged).
		Int("failed", out.Failed).
		Msg("sync finished")
	return out, nil
}

// plan resolves the listing, diffs it against the tracked blobs and adds the
// pages whose data package changed.
func (o *Orchestrator) plan(ctx context.Context, site *models.Site, src source.Source, req RunRequest) (*plan, apperrors.Error) {
	entries := req.Changeset
	if req.Mode == diff.Full && entries == nil {
		var err apperrors.Error
		entries, err = src.ListFiles(ctx, site)
		if err != nil {
			return nil, err
		}
	}

	blobs, err := o.store.ListBlobs(ctx, site.ID)
	if err != nil {
		return nil, ErrPersistence.MsgErr("unable to load tracked files", err)
	}
	previous := make(map[string]diff.Tracked, len(blobs))
	p := &plan{known: make(map[string]string), sizes: make(map[string]int64)}
	for _, b := range blobs {
		previous[b.Path] = diff.Tracked{ContentHash: b.ContentHash, Synced: b.SyncStatus == types.SyncStatusSuccess}
		p.sizes[b.Path] = b.Size
		if req.Mode == diff.Partial {
			p.known[b.Path] = b.ContentHash
		}
	}
	for _, e := range entries {
		path := diff.NormalizePath(e.Path)
		if path == "" {
			continue
		}
		p.known[path] = e.ContentHash
		if e.Size > 0 {
			p.sizes[path] = e.Size
		}
	}

	res := diff.Compute(previous, entries, diff.Options{Mode: req.Mode, Force: req.Force})
	p.create, p.update, p.delete, p.skipped = res.ToCreate, res.ToUpdate, res.ToDelete, res.Unchanged
	for _, path := range p.delete {
		delete(p.known, path)
	}
	p.addDataPackageDependents()

	if site.Source.Kind == types.SourceUploaded {
		var pages []string
		for path := range p.known {
			if markdown.IsMarkdown(path) {
				pages = append(pages, path)
			}
		}
		if len(pages) == 1 {
			p.rootPage = pages[0]
		}
	}
	return p, nil
}

// addDataPackageDependents schedules the page next to every created,
// updated or deleted descriptor for an update, so its merged metadata
// follows the descriptor.
func (p *plan) addDataPackageDependents() {
	scheduled := make(map[string]bool)
	for _, e := range p.create {
		scheduled[e.Path] = true
	}
	for _, e := range p.update {
		scheduled[e.Path] = true
	}

	var descriptors []string
	for path := range scheduled {
		if datapackage.IsDescriptor(path) {
			descriptors = append(descriptors, path)
		}
	}
	for _, path := range p.delete {
		if datapackage.IsDescriptor(path) {
			descriptors = append(descriptors, path)
		}
	}
	if len(descriptors) == 0 {
		return
	}

	added := make(map[string]bool)
	for _, d := range descriptors {
		for _, page := range datapackage.SiblingPages(d) {
			hash, ok := p.known[page]
			if !ok || scheduled[page] {
				continue
			}
			scheduled[page] = true
			added[page] = true
			p.update = append(p.update, diff.Entry{Path: page, ContentHash: hash, Size: p.sizes[page]})
		}
	}
	if len(added) == 0 {
		return
	}
	sort.Slice(p.update, func(i, j int) bool { return p.update[i].Path < p.update[j].Path })
	skipped := p.skipped[:0]
	for _, path := range p.skipped {
		if !added[path] {
			skipped = append(skipped, path)
		}
	}
	p.skipped = skipped
}
