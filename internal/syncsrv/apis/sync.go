package apis

import (
	"crypto/subtle"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/flowershow/contentsync/internal/common/httpx"
	"github.com/flowershow/contentsync/internal/syncsrv/trigger"
	"github.com/flowershow/contentsync/pkg/api"
)

func (h *Handlers) syncSite(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	siteID, err := getSiteID(r)
	if err != nil {
		return nil, err
	}
	body, err := readBody(r, h.opts.MaxBodySize)
	if err != nil {
		return nil, err
	}
	var req api.SyncRequest
	if len(body) > 0 {
		if err := validateRequest(syncSchema, body, &req); err != nil {
			return nil, err
		}
	}

	wait := queryBool(r, "wait")
	var acc *trigger.Accepted
	var aerr error
	if req.Force {
		acc, aerr = h.dispatcher.ForceSync(ctx, siteID, wait)
	} else {
		acc, aerr = h.dispatcher.Sync(ctx, siteID, wait)
	}
	if aerr != nil {
		return nil, aerr
	}
	return &httpx.Response{
		StatusCode: acceptedStatus(acc),
		Response:   syncResponse(acc),
	}, nil
}

func (h *Handlers) decodePublish(r *http.Request) (trigger.PublishRequest, error) {
	var req api.PublishRequest
	body, err := readBody(r, h.opts.MaxBodySize)
	if err != nil {
		return trigger.PublishRequest{}, err
	}
	if err := validateRequest(publishSchema, body, &req); err != nil {
		return trigger.PublishRequest{}, err
	}
	out := trigger.PublishRequest{Complete: req.Complete}
	for _, f := range req.Files {
		out.Files = append(out.Files, trigger.PublishFile{Path: f.Path, Content: f.Content, SHA: f.SHA, Size: f.Size})
	}
	return out, nil
}

func publishResponse(res *trigger.PublishResult) api.PublishResponse {
	return api.PublishResponse{
		SyncResponse: syncResponse(&res.Accepted),
		Files:        res.Files,
		OwnerToken:   res.OwnerToken,
	}
}

func (h *Handlers) publishFiles(r *http.Request) (*httpx.Response, error) {
	siteID, err := getSiteID(r)
	if err != nil {
		return nil, err
	}
	req, err := h.decodePublish(r)
	if err != nil {
		return nil, err
	}
	res, aerr := h.dispatcher.Publish(r.Context(), siteID, req, queryBool(r, "wait"))
	if aerr != nil {
		return nil, aerr
	}
	return &httpx.Response{
		StatusCode: acceptedStatus(&res.Accepted),
		Response:   publishResponse(res),
	}, nil
}

func (h *Handlers) publishNew(r *http.Request) (*httpx.Response, error) {
	req, err := h.decodePublish(r)
	if err != nil {
		return nil, err
	}
	res, aerr := h.dispatcher.PublishNew(r.Context(), clientKey(r), req, queryBool(r, "wait"))
	if aerr != nil {
		return nil, aerr
	}
	return &httpx.Response{
		StatusCode: http.StatusCreated,
		Location:   "/sites/" + res.SiteID.String(),
		Response:   publishResponse(res),
	}, nil
}

func (h *Handlers) githubWebhook(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	if h.opts.WebhookSecret != "" {
		token := r.Header.Get(WebhookTokenHeader)
		if subtle.ConstantTimeCompare([]byte(token), []byte(h.opts.WebhookSecret)) != 1 {
			return nil, httpx.ErrUnAuthorized("invalid webhook token")
		}
	}

	switch event := r.Header.Get(GitHubEventHeader); event {
	case "ping":
		return &httpx.Response{
			StatusCode: http.StatusOK,
			Response:   map[string]string{"message": "pong"},
		}, nil
	case "push", "":
	default:
		log.Ctx(ctx).Debug().Str("event", event).Msg("webhook event ignored")
		return &httpx.Response{StatusCode: http.StatusNoContent}, nil
	}

	body, err := readBody(r, h.opts.MaxBodySize)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(pushEventSchema, body, nil); err != nil {
		return nil, err
	}
	ev, aerr := trigger.ParsePushEvent(body)
	if aerr != nil {
		return nil, aerr
	}
	ids, aerr := h.dispatcher.Webhook(ctx, ev)
	if aerr != nil {
		return nil, aerr
	}
	rsp := api.WebhookResponse{Sites: make([]string, 0, len(ids))}
	for _, id := range ids {
		rsp.Sites = append(rsp.Sites, id.String())
	}
	return &httpx.Response{
		StatusCode: http.StatusAccepted,
		Response:   rsp,
	}, nil
}
