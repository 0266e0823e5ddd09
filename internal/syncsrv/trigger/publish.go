package trigger

import (
	"context"
	"encoding/base64"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/flowershow/contentsync/internal/common/apperrors"
	"github.com/flowershow/contentsync/internal/common/uuid"
	"github.com/flowershow/contentsync/internal/syncsrv/content/markdown"
	"github.com/flowershow/contentsync/internal/syncsrv/db/dberror"
	"github.com/flowershow/contentsync/internal/syncsrv/db/models"
	"github.com/flowershow/contentsync/internal/syncsrv/diff"
	"github.com/flowershow/contentsync/internal/syncsrv/objectstore"
	"github.com/flowershow/contentsync/internal/syncsrv/orchestrator"
	"github.com/flowershow/contentsync/internal/syncsrv/source"
	"github.com/flowershow/contentsync/pkg/types"
)

// PublishFile is one uploaded file. A file without content must already be
// in object storage from an earlier publish.
type PublishFile struct {
	Path string `json:"path"`
	// Content is base64 encoded.
	Content string `json:"content,omitempty"`
	SHA     string `json:"sha,omitempty"`
	// Size is the byte size of a file sent without content.
	Size int64 `json:"size,omitempty"`
}

type PublishRequest struct {
	Files []PublishFile `json:"files"`
	// Complete marks Files as the whole site: tracked files missing from it
	// are deleted.
	Complete bool `json:"complete,omitempty"`
}

type PublishResult struct {
	Accepted
	Files []string `json:"files"`
	// OwnerToken is returned when the publish created an anonymous site.
	OwnerToken string `json:"ownerToken,omitempty"`
}

type upload struct {
	path    string
	data    []byte
	hasData bool
	hash    string
	size    int64
}

// PublishNew creates an uploaded site owned by an anonymous token and
// publishes the files to it. clientKey rate limits callers that have no
// site yet.
func (d *Dispatcher) PublishNew(ctx context.Context, clientKey string, req PublishRequest, wait bool) (*PublishResult, apperrors.Error) {
	if err := d.admit("publish:" + clientKey); err != nil {
		return nil, err
	}
	uploads, err := d.prepare(req.Files)
	if err != nil {
		return nil, err
	}
	if err := requireMarkdown(uploads); err != nil {
		return nil, err
	}
	site, err := d.CreateSite(ctx, CreateSiteRequest{Kind: types.SourceUploaded})
	if err != nil {
		return nil, err
	}
	res, err := d.publish(ctx, site, uploads, req.Complete, wait)
	if err != nil {
		return nil, err
	}
	res.OwnerToken = site.AnonymousOwner
	return res, nil
}

// Publish stores the files of an uploaded site and syncs them. Without
// Complete only the named files are touched.
func (d *Dispatcher) Publish(ctx context.Context, siteID uuid.UUID, req PublishRequest, wait bool) (*PublishResult, apperrors.Error) {
	if err := d.admit(siteID.String()); err != nil {
		return nil, err
	}
	uploads, err := d.prepare(req.Files)
	if err != nil {
		return nil, err
	}
	site, err := d.store.GetSite(ctx, siteID)
	if err != nil {
		if err.Is(dberror.ErrNotFound) {
			return nil, orchestrator.ErrSiteNotFound
		}
		return nil, ErrTrigger.Err(err)
	}
	if site.Source.Kind != types.SourceUploaded {
		return nil, ErrInvalidPublish.Msg("site syncs from " + string(site.Source.Kind) + " and does not accept uploads")
	}
	blobs, err := d.store.ListBlobs(ctx, siteID)
	if err != nil {
		return nil, ErrTrigger.Err(err)
	}
	if len(blobs) == 0 {
		if err := requireMarkdown(uploads); err != nil {
			return nil, err
		}
	}
	return d.publish(ctx, site, uploads, req.Complete, wait)
}

func (d *Dispatcher) publish(ctx context.Context, site *models.Site, uploads []upload, complete, wait bool) (*PublishResult, apperrors.Error) {
	// Objects are written under the run lock so a running sync never reads
	// content newer than the hash it records.
	run, err := d.orch.Begin(ctx, site.ID, orchestrator.PolicyQueue)
	if err != nil {
		return nil, err
	}
	site = run.Site()

	entries := make([]diff.Entry, 0, len(uploads))
	paths := make([]string, 0, len(uploads))
	for _, u := range uploads {
		if u.hasData {
			if err := d.objects.Put(ctx, objectstore.Key(site.ID, site.Branch(), u.path), u.data); err != nil {
				if rerr := run.Release(ctx); rerr != nil {
					log.Ctx(ctx).Error().Err(rerr).Msg("failed to release run lock")
				}
				return nil, ErrTrigger.MsgErr("unable to store "+u.path, err)
			}
		}
		entries = append(entries, diff.Entry{Path: u.path, ContentHash: u.hash, Size: u.size})
		paths = append(paths, u.path)
	}

	req := orchestrator.RunRequest{
		SiteID:    site.ID,
		Trigger:   types.TriggerPublish,
		Mode:      diff.Partial,
		Changeset: entries,
		Policy:    orchestrator.PolicyQueue,
	}
	if complete {
		req.Mode = diff.Full
	}
	acc, err := d.execute(ctx, run, req, wait)
	if err != nil {
		return nil, err
	}
	return &PublishResult{Accepted: *acc, Files: paths}, nil
}

// prepare validates and decodes the files of a publish request.
func (d *Dispatcher) prepare(files []PublishFile) ([]upload, apperrors.Error) {
	if len(files) == 0 {
		return nil, ErrInvalidPublish.Msg("at least one file is required")
	}
	if d.opts.MaxFiles > 0 && len(files) > d.opts.MaxFiles {
		return nil, ErrInvalidPublish.Msg("maximum " + strconv.Itoa(d.opts.MaxFiles) + " files allowed")
	}

	seen := make(map[string]bool, len(files))
	uploads := make([]upload, 0, len(files))
	var total int64
	for _, f := range files {
		p := diff.NormalizePath(f.Path)
		if p == "" {
			return nil, ErrInvalidPublish.Msg("path is required for each file")
		}
		if seen[p] {
			return nil, ErrInvalidPublish.Msg("duplicate file " + p)
		}
		seen[p] = true
		if !source.IsSupported(p) {
			return nil, ErrInvalidPublish.Msg("unsupported file type: " + p)
		}

		if f.Size < 0 {
			return nil, ErrInvalidPublish.Msg("size of " + p + " cannot be negative")
		}
		u := upload{path: p, hash: f.SHA, size: f.Size}
		if f.Content != "" {
			data, err := base64.StdEncoding.DecodeString(f.Content)
			if err != nil {
				return nil, ErrInvalidPublish.Msg("content of " + p + " is not valid base64")
			}
			if d.opts.MaxFileSize > 0 && int64(len(data)) > d.opts.MaxFileSize {
				return nil, ErrInvalidPublish.Msg("file too large: " + p)
			}
			total += int64(len(data))
			u.data, u.hasData = data, true
			u.hash = orchestrator.GitBlobHash(data)
			u.size = int64(len(data))
		}
		uploads = append(uploads, u)
	}
	if d.opts.MaxTotalSize > 0 && total > d.opts.MaxTotalSize {
		return nil, ErrInvalidPublish.Msg("total upload size exceeds " + strconv.FormatInt(d.opts.MaxTotalSize, 10) + " bytes")
	}
	return uploads, nil
}

func requireMarkdown(uploads []upload) apperrors.Error {
	for _, u := range uploads {
		if markdown.IsMarkdown(u.path) {
			return nil
		}
	}
	return ErrInvalidPublish.Msg("at least one markdown file (.md, .mdx) is required")
}
