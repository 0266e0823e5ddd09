package apis

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/flowershow/contentsync/internal/common/httpx"
	"github.com/flowershow/contentsync/internal/syncsrv/db/dberror"
	"github.com/flowershow/contentsync/internal/syncsrv/orchestrator"
	"github.com/flowershow/contentsync/internal/syncsrv/trigger"
	"github.com/flowershow/contentsync/pkg/api"
)

func (h *Handlers) createSite(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	body, err := readBody(r, h.opts.MaxBodySize)
	if err != nil {
		return nil, err
	}
	var req api.CreateSiteRequest
	if err := validateRequest(createSiteSchema, body, &req); err != nil {
		return nil, err
	}
	site, aerr := h.dispatcher.CreateSite(ctx, trigger.CreateSiteRequest{
		UserID:         req.UserID,
		Kind:           req.Source.Kind,
		Repository:     req.Source.Repository,
		Branch:         req.Source.Branch,
		RootDir:        req.Source.RootDir,
		ContentInclude: req.ContentInclude,
		ContentExclude: req.ContentExclude,
		CustomDomain:   req.CustomDomain,
		PrivacyMode:    req.PrivacyMode,
		Password:       req.Password,
		Plan:           req.Plan,
	})
	if aerr != nil {
		return nil, aerr
	}
	return &httpx.Response{
		StatusCode: http.StatusCreated,
		Location:   "/sites/" + site.ID.String(),
		Response:   siteResponse(site),
	}, nil
}

func (h *Handlers) deleteSite(r *http.Request) (*httpx.Response, error) {
	siteID, err := getSiteID(r)
	if err != nil {
		return nil, err
	}
	if err := h.orch.DeleteSite(r.Context(), siteID); err != nil {
		return nil, err
	}
	return &httpx.Response{StatusCode: http.StatusNoContent}, nil
}

func (h *Handlers) getStatus(r *http.Request) (*httpx.Response, error) {
	siteID, err := getSiteID(r)
	if err != nil {
		return nil, err
	}
	state, aerr := h.orch.Status(r.Context(), siteID)
	if aerr != nil {
		return nil, aerr
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   statusResponse(state),
	}, nil
}

func (h *Handlers) listRuns(r *http.Request) (*httpx.Response, error) {
	siteID, err := getSiteID(r)
	if err != nil {
		return nil, err
	}
	runs, aerr := h.orch.Runs(r.Context(), siteID, queryInt(r, "limit", 20))
	if aerr != nil {
		return nil, aerr
	}
	rsp := make([]api.RunResponse, 0, len(runs))
	for _, run := range runs {
		rsp = append(rsp, runResponse(run))
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   rsp,
	}, nil
}

func (h *Handlers) searchSite(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	siteID, err := getSiteID(r)
	if err != nil {
		return nil, err
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		return nil, httpx.ErrInvalidRequest("query parameter q is required")
	}
	if _, err := h.store.GetSite(ctx, siteID); err != nil {
		if err.Is(dberror.ErrNotFound) {
			return nil, orchestrator.ErrSiteNotFound
		}
		return nil, err
	}
	docs, aerr := h.search.Search(ctx, siteID, q, queryInt(r, "limit", 20))
	if aerr != nil {
		log.Ctx(ctx).Error().Err(aerr).Msg("search failed")
		return nil, aerr
	}
	rsp := api.SearchResponse{Results: make([]api.SearchResult, 0, len(docs))}
	for _, d := range docs {
		rsp.Results = append(rsp.Results, api.SearchResult{
			Path:        d.Path,
			Title:       d.Title,
			Description: d.Description,
			Authors:     d.Authors,
			Date:        d.Date,
		})
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   rsp,
	}, nil
}
