package apis

import (
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/flowershow/contentsync/internal/common/httpx"
	"github.com/flowershow/contentsync/internal/common/uuid"
	"github.com/flowershow/contentsync/internal/syncsrv/db/models"
	"github.com/flowershow/contentsync/internal/syncsrv/orchestrator"
	"github.com/flowershow/contentsync/internal/syncsrv/trigger"
	"github.com/flowershow/contentsync/pkg/api"
)

func getSiteID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "siteID"))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, httpx.ErrInvalidSiteId()
	}
	return id, nil
}

// readBody reads at most limit bytes of the request body. An empty body
// yields nil.
func readBody(r *http.Request, limit int64) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, httpx.ErrUnableToReadRequest()
	}
	if int64(len(body)) > limit {
		return nil, httpx.ErrPayloadTooLarge()
	}
	return body, nil
}

func queryBool(r *http.Request, name string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return b
}

func queryInt(r *http.Request, name string, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func syncResponse(acc *trigger.Accepted) api.SyncResponse {
	rsp := api.SyncResponse{
		SiteID: acc.SiteID.String(),
		Queued: acc.Outcome == nil,
	}
	if out := acc.Outcome; out != nil {
		rsp.RunID = out.RunID.String()
		rsp.Outcome = out.Outcome
		rsp.Counts = runCounts(out.Created, out.Updated, out.Deleted, out.Unchanged, out.Failed)
		for _, fe := range out.Errors {
			rsp.Errors = append(rsp.Errors, api.FileError{Path: fe.Path, Error: fe.Error})
		}
	}
	return rsp
}

func runCounts(created, updated, deleted, unchanged, failed int) *api.RunCounts {
	return &api.RunCounts{
		Created:   created,
		Updated:   updated,
		Deleted:   deleted,
		Unchanged: unchanged,
		Failed:    failed,
	}
}

// acceptedStatus is 200 for a finished run and 202 for a queued one.
func acceptedStatus(acc *trigger.Accepted) int {
	if acc.Outcome != nil {
		return http.StatusOK
	}
	return http.StatusAccepted
}

func siteResponse(site *models.Site) *api.SiteResponse {
	return &api.SiteResponse{
		ID:             site.ID.String(),
		UserID:         site.UserID,
		AnonymousOwner: site.AnonymousOwner,
		Source: api.SiteSource{
			Kind:       site.Source.Kind,
			Repository: site.Source.Repository,
			Branch:     site.Source.Branch,
			RootDir:    site.Source.RootDir,
		},
		ContentInclude: site.ContentInclude,
		ContentExclude: site.ContentExclude,
		CustomDomain:   site.CustomDomain,
		PrivacyMode:    site.PrivacyMode,
		Plan:           site.Plan,
		CreatedAt:      site.CreatedAt,
	}
}

func statusResponse(state *orchestrator.SiteState) *api.StatusResponse {
	rsp := &api.StatusResponse{
		SiteID:  state.SiteID.String(),
		Status:  state.Status,
		Syncing: state.Syncing,
		Files: api.FileCounts{
			Total:   state.Files.Total,
			Pending: state.Files.Pending,
			Success: state.Files.Success,
			Failed:  state.Files.Failed,
		},
		Blobs: make([]api.BlobStatus, 0, len(state.Blobs)),
	}
	for _, b := range state.Blobs {
		rsp.Blobs = append(rsp.Blobs, api.BlobStatus{
			ID:         b.ID.String(),
			Path:       b.Path,
			Extension:  b.Extension,
			SyncStatus: b.SyncStatus,
			SyncError:  b.SyncError,
		})
	}
	return rsp
}

func runResponse(run *models.SyncRun) api.RunResponse {
	return api.RunResponse{
		ID:          run.ID.String(),
		SiteID:      run.SiteID.String(),
		Trigger:     run.Trigger,
		Mode:        run.Mode,
		State:       run.State,
		Outcome:     run.Outcome,
		Error:       run.Error,
		Counts:      *runCounts(run.Created, run.Updated, run.Deleted, run.Unchanged, run.Failed),
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
	}
}
