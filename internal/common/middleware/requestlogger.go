package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/flowershow/contentsync/internal/common/httpx"
	"github.com/flowershow/contentsync/internal/common/logtrace"
	"github.com/flowershow/contentsync/internal/common/uuid"
)

const RequestIdHeader = "X-Flowershow-Request-ID"

// RequestLogger adds a request id and a request scoped logger to the context
// and logs the request once the handler has returned.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get(RequestIdHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		ctx := logtrace.WithRequestId(r.Context(), requestID)
		ctx = log.With().Str("request_id", requestID).Logger().WithContext(ctx)
		w.Header().Set(RequestIdHeader, requestID)

		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		rw := httpx.NewResponseWriter(w)
		next.ServeHTTP(rw, r.WithContext(ctx))

		requestFields := map[string]interface{}{
			"requestURL":    fmt.Sprintf("%s://%s%s", scheme, r.Host, r.RequestURI),
			"requestMethod": r.Method,
			"requestPath":   r.URL.Path,
			"remoteIP":      r.RemoteAddr,
			"proto":         r.Proto,
			"status":        rw.Status(),
			"bytes":         rw.BytesWritten(),
			"latency_ms":    time.Since(start).Milliseconds(),
		}
		log.Ctx(ctx).Info().Fields(requestFields).Msg("")
	})
}
