package orchestrator

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"path"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/flowershow/contentsync/internal/common/apperrors"
	"github.com/flowershow/contentsync/internal/syncsrv/content/datapackage"
	"github.com/flowershow/contentsync/internal/syncsrv/content/imagesize"
	"github.com/flowershow/contentsync/internal/syncsrv/content/markdown"
	"github.com/flowershow/contentsync/internal/syncsrv/content/permalink"
	"github.com/flowershow/contentsync/internal/syncsrv/db/dberror"
	"github.com/flowershow/contentsync/internal/syncsrv/db/models"
	"github.com/flowershow/contentsync/internal/syncsrv/diff"
	"github.com/flowershow/contentsync/internal/syncsrv/objectstore"
	"github.com/flowershow/contentsync/internal/syncsrv/searchindex"
	"github.com/flowershow/contentsync/internal/syncsrv/source"
)

// processFile takes one PENDING blob to SUCCESS or ERROR, or removes it when
// its page is not published.
func (o *Orchestrator) processFile(ctx context.Context, site *models.Site, src source.Source, p *plan, e diff.Entry) (fileOutcome, string) {
	logger := log.Ctx(ctx).With().Str("path", e.Path).Logger()
	ctx = logger.WithContext(ctx)

	data, err := src.Fetch(ctx, site, e.Path)
	if err != nil {
		return o.failFile(ctx, site, e.Path, err)
	}

	hash := e.ContentHash
	if hash == "" {
		hash = GitBlobHash(data)
	}
	result := models.BlobResult{
		Path:        e.Path,
		ContentHash: hash,
		Size:        int64(len(data)),
	}

	var doc *searchindex.Document
	ext := markdown.Ext(e.Path)
	switch {
	case markdown.IsMarkdown(e.Path):
		parsed, perr := markdown.Parse(data, e.Path)
		if perr != nil {
			return o.failFile(ctx, site, e.Path, perr)
		}
		if datapackage.IsDatasetPage(e.Path) {
			if err := o.mergeDataPackage(ctx, site, src, p, e.Path, parsed); err != nil {
				return o.failFile(ctx, site, e.Path, err)
			}
		}
		if !parsed.ShouldPublish {
			logger.Debug().Msg("page is not published, removing")
			return o.deleteFile(ctx, site, e.Path)
		}
		appPath := permalink.AppPath(e.Path)
		if e.Path == p.rootPage {
			root := "/"
			appPath = &root
		}
		result.AppPath = appPath
		result.Permalink = parsed.Permalink
		result.Metadata = parsed.Metadata
		doc = searchDocument(e.Path, parsed)
		doc.URL = permalink.Resolve(e.Path, parsed.Permalink)
		if e.Path == p.rootPage && parsed.Permalink == nil {
			doc.URL = permalink.Root
		}
	case imagesize.IsSupported(ext):
		dims := imagesize.Probe(data, ext)
		if dims.Width == nil {
			logger.Warn().Msg("unable to read image dimensions")
		}
		result.Width, result.Height = dims.Width, dims.Height
	}

	if !source.IsObjectBacked(src) {
		if err := o.objects.Put(ctx, objectstore.Key(site.ID, site.Branch(), e.Path), data); err != nil {
			return o.failFile(ctx, site, e.Path, ErrPersistence.Err(err))
		}
	}
	if doc != nil {
		if err := o.search.Upsert(ctx, site.ID, e.Path, *doc); err != nil {
			return o.failFile(ctx, site, e.Path, ErrPersistence.Err(err))
		}
	}
	if err := o.store.CompleteBlob(ctx, site.ID, result); err != nil {
		return o.failFile(ctx, site, e.Path, ErrPersistence.Err(err))
	}
	return outcomeSucceeded, ""
}

func (o *Orchestrator) mergeDataPackage(ctx context.Context, site *models.Site, src source.Source, p *plan, pagePath string, page *markdown.Result) error {
	var pkg map[string]any
	for _, d := range datapackage.SiblingDescriptors(pagePath) {
		if _, ok := p.known[d]; !ok {
			continue
		}
		content, ferr := src.Fetch(ctx, site, d)
		if ferr != nil {
			return ferr
		}
		parsed, err := datapackage.Parse(content, markdown.Ext(d))
		if err != nil {
			return err
		}
		pkg = parsed
		break
	}
	if pkg == nil {
		if fm, ok := page.Metadata[datapackage.FieldDataPackage].(map[string]any); ok {
			pkg = fm
		}
	}
	dir := path.Dir(pagePath)
	if dir == "." {
		dir = ""
	}
	datapackage.Apply(page, pkg, p.sizes, dir)
	return nil
}

// deleteFile removes a file from the search index, the object store and the
// blob table. When a step fails the blob is kept and marked ERROR so the next
// full run retries the deletion.
func (o *Orchestrator) deleteFile(ctx context.Context, site *models.Site, filePath string) (fileOutcome, string) {
	if err := o.search.Delete(ctx, site.ID, filePath); err != nil {
		return o.failFile(ctx, site, filePath, ErrPersistence.MsgErr("unable to delete search document", err))
	}
	if err := o.objects.Delete(ctx, objectstore.Key(site.ID, site.Branch(), filePath)); err != nil {
		return o.failFile(ctx, site, filePath, ErrPersistence.MsgErr("unable to delete stored object", err))
	}
	if err := o.store.DeleteBlob(ctx, site.ID, filePath); err != nil && !err.Is(dberror.ErrNotFound) {
		return o.failFile(ctx, site, filePath, ErrPersistence.MsgErr("unable to delete file record", err))
	}
	return outcomeRemoved, ""
}

func (o *Orchestrator) failFile(ctx context.Context, site *models.Site, filePath string, cause error) (fileOutcome, string) {
	reason := cause.Error()
	if ae, ok := cause.(apperrors.Error); ok {
		reason = ae.ErrorAll()
	}
	log.Ctx(ctx).Warn().Err(cause).Msg("file sync failed")
	if err := o.store.FailBlob(ctx, site.ID, filePath, reason); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to record file error")
	}
	return outcomeFailed, reason
}

func searchDocument(filePath string, page *markdown.Result) *searchindex.Document {
	doc := &searchindex.Document{
		Path:        filePath,
		Title:       page.Title,
		Description: page.Metadata.Description(),
		Content:     page.Body,
		Authors:     page.Metadata.Authors(),
	}
	if d, ok := page.Metadata.Date(); ok {
		doc.Date = d.Format("2006-01-02")
	}
	return doc
}

// GitBlobHash returns the git object id of content, the hash GitHub listings
// carry, so uploaded and fetched files compare alike.
func GitBlobHash(content []byte) string {
	h := sha1.New()
	h.Write([]byte("blob " + strconv.Itoa(len(content)) + "\x00"))
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}
