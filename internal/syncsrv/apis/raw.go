package apis

import (
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/flowershow/contentsync/internal/common/httpx"
	"github.com/flowershow/contentsync/internal/syncsrv/db/dberror"
	"github.com/flowershow/contentsync/internal/syncsrv/diff"
	"github.com/flowershow/contentsync/internal/syncsrv/objectstore"
	"github.com/flowershow/contentsync/internal/syncsrv/orchestrator"
	"github.com/flowershow/contentsync/pkg/api"
)

// contentTypes overrides the system mime table. JSON carries a charset so the
// response is written as raw bytes rather than encoded.
var contentTypes = map[string]string{
	".json":    "application/json; charset=utf-8",
	".md":      "text/markdown; charset=utf-8",
	".mdx":     "text/markdown; charset=utf-8",
	".geojson": "application/geo+json",
	".base":    "text/plain; charset=utf-8",
	".yml":     "application/yaml",
	".yaml":    "application/yaml",
}

func contentType(key string) string {
	ext := strings.ToLower(path.Ext(key))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func (h *Handlers) getRawURL(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	siteID, err := getSiteID(r)
	if err != nil {
		return nil, err
	}
	filePath := diff.NormalizePath(r.URL.Query().Get("path"))
	if filePath == "" {
		return nil, httpx.ErrInvalidRequest("query parameter path is required")
	}

	site, aerr := h.store.GetSite(ctx, siteID)
	if aerr != nil {
		if aerr.Is(dberror.ErrNotFound) {
			return nil, orchestrator.ErrSiteNotFound
		}
		return nil, aerr
	}
	if _, aerr := h.store.GetBlob(ctx, siteID, filePath); aerr != nil {
		if aerr.Is(dberror.ErrNotFound) {
			return nil, objectstore.ErrObjectNotFound.Msg("file not found: " + filePath)
		}
		return nil, aerr
	}

	expires := h.now().Add(h.opts.PresignTTL)
	url, aerr := h.objects.PresignGet(ctx, objectstore.Key(site.ID, site.Branch(), filePath), h.opts.PresignTTL)
	if aerr != nil {
		return nil, aerr
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   api.RawURLResponse{URL: url, ExpiresAt: expires},
	}, nil
}

func (h *Handlers) getRaw(r *http.Request) (*httpx.Response, error) {
	key, data, err := h.objects.Open(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode:  http.StatusOK,
		ContentType: contentType(key),
		Response:    data,
	}, nil
}
