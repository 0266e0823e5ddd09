// Package apis holds the HTTP handlers of the sync service.
package apis

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/flowershow/contentsync/internal/common/httpx"
	"github.com/flowershow/contentsync/internal/syncsrv/db"
	"github.com/flowershow/contentsync/internal/syncsrv/objectstore"
	"github.com/flowershow/contentsync/internal/syncsrv/orchestrator"
	"github.com/flowershow/contentsync/internal/syncsrv/searchindex"
	"github.com/flowershow/contentsync/internal/syncsrv/trigger"
)

const (
	WebhookTokenHeader = "X-Flowershow-Webhook-Token"
	GitHubEventHeader  = "X-GitHub-Event"
)

type Options struct {
	// WebhookSecret, when set, must be sent in WebhookTokenHeader.
	WebhookSecret string
	PresignTTL    time.Duration
	MaxBodySize   int64
}

type Handlers struct {
	dispatcher *trigger.Dispatcher
	orch       *orchestrator.Orchestrator
	store      db.Store
	objects    objectstore.Store
	search     searchindex.Index
	opts       Options
	now        func() time.Time
}

func New(dispatcher *trigger.Dispatcher, orch *orchestrator.Orchestrator, store db.Store,
	objects objectstore.Store, search searchindex.Index, opts Options) *Handlers {
	if opts.PresignTTL <= 0 {
		opts.PresignTTL = time.Hour
	}
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = 32 << 20
	}
	return &Handlers{
		dispatcher: dispatcher,
		orch:       orch,
		store:      store,
		objects:    objects,
		search:     search,
		opts:       opts,
		now:        time.Now,
	}
}

func (h *Handlers) handlers() []httpx.ResponseHandlerParam {
	return []httpx.ResponseHandlerParam{
		{
			Method:  http.MethodPost,
			Path:    "/sites",
			Handler: h.createSite,
		},
		{
			Method:  http.MethodDelete,
			Path:    "/sites/{siteID}",
			Handler: h.deleteSite,
		},
		{
			Method:  http.MethodPost,
			Path:    "/sites/{siteID}/sync",
			Handler: h.syncSite,
		},
		{
			Method:  http.MethodPost,
			Path:    "/sites/{siteID}/files",
			Handler: h.publishFiles,
		},
		{
			Method:  http.MethodPost,
			Path:    "/publish",
			Handler: h.publishNew,
		},
		{
			Method:  http.MethodGet,
			Path:    "/sites/{siteID}/status",
			Handler: h.getStatus,
		},
		{
			Method:  http.MethodGet,
			Path:    "/sites/{siteID}/runs",
			Handler: h.listRuns,
		},
		{
			Method:  http.MethodGet,
			Path:    "/sites/{siteID}/search",
			Handler: h.searchSite,
		},
		{
			Method:  http.MethodGet,
			Path:    "/sites/{siteID}/raw-url",
			Handler: h.getRawURL,
		},
		{
			Method:  http.MethodGet,
			Path:    "/raw/{token}",
			Handler: h.getRaw,
		},
		{
			Method:  http.MethodPost,
			Path:    "/webhooks/github",
			Handler: h.githubWebhook,
		},
	}
}

// Router returns the API routes.
func (h *Handlers) Router() http.Handler {
	r := chi.NewRouter()
	for _, handler := range h.handlers() {
		r.Method(handler.Method, handler.Path, httpx.WrapHttpRsp(handler.Handler))
	}
	return r
}
