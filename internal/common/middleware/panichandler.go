package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog/log"

	"github.com/flowershow/contentsync/internal/common/httpx"
)

// PanicHandler turns a handler panic into a 500 response and logs the stack.
func PanicHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Ctx(r.Context()).Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Msg("recovered from handler panic")
				httpx.ErrApplicationError("unable to process request, please try again later").Send(w)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
