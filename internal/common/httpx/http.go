package httpx

import (
	"context"
	"net/http"

	json "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"

	"github.com/flowershow/contentsync/internal/common/apperrors"
)

type Response struct {
	StatusCode  int
	Location    string // sent as the Location header
	Response    any
	ContentType string
}

type RequestHandler func(r *http.Request) (*Response, error)

func WrapHttpRsp(handler RequestHandler) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rsp, err := handler(r)
		if err != nil {
			if httperror, ok := err.(*Error); ok {
				httperror.Send(w)
			} else if appErr, ok := err.(apperrors.Error); ok {
				SendError(w, appErr)
			} else {
				ErrApplicationError(err.Error()).Send(w)
			}
			return
		}
		if rsp == nil {
			ErrApplicationError().Send(w)
			return
		}
		if rsp.ContentType == "" {
			rsp.ContentType = "application/json"
		}
		var location []string
		if rsp.Location != "" {
			location = append(location, rsp.Location)
		}
		if rsp.ContentType == "application/json" {
			SendJsonRsp(r.Context(), w, rsp.StatusCode, rsp.Response, location...)
			return
		}
		body, ok := rsp.Response.([]byte)
		if !ok {
			ErrApplicationError("unsupported response type").Send(w)
			return
		}
		w.Header().Set("Content-Type", rsp.ContentType)
		w.WriteHeader(rsp.StatusCode)
		w.Write(body)
	})
}

// SendJsonRsp encodes rsp as the JSON body of the response. A nil rsp sends
// only the status code.
func SendJsonRsp(ctx context.Context, w http.ResponseWriter, statusCode int, rsp any, location ...string) {
	if len(location) > 0 && location[0] != "" {
		w.Header().Set("Location", location[0])
	}
	if rsp == nil {
		w.WriteHeader(statusCode)
		return
	}
	b, err := json.Marshal(rsp)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("unable to encode response")
		ErrApplicationError("unable to encode response").Send(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(b)
}

type ResponseHandlerParam struct {
	Method  string
	Path    string
	Handler RequestHandler
}
