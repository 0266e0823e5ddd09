package httpx

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flowershow/contentsync/internal/common/apperrors"
)

func TestWrapHttpRsp(t *testing.T) {
	ErrConflict := apperrors.New("site is already syncing").SetStatusCode(http.StatusConflict)

	tests := []struct {
		name       string
		handler    RequestHandler
		wantStatus int
		wantBody   string
		wantType   string
	}{
		{
			name: "json response",
			handler: func(r *http.Request) (*Response, error) {
				return &Response{StatusCode: http.StatusOK, Response: map[string]string{"status": "complete"}}, nil
			},
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"complete"}`,
			wantType:   "application/json",
		},
		{
			name: "app error carries status code",
			handler: func(r *http.Request) (*Response, error) {
				return nil, ErrConflict
			},
			wantStatus: http.StatusConflict,
			wantBody:   `{"result":0,"error":"site is already syncing"}`,
			wantType:   "application/json",
		},
		{
			name: "plain error is internal",
			handler: func(r *http.Request) (*Response, error) {
				return nil, errors.New("boom")
			},
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"result":0,"error":"boom"}`,
			wantType:   "application/json",
		},
		{
			name: "raw bytes",
			handler: func(r *http.Request) (*Response, error) {
				return &Response{StatusCode: http.StatusOK, Response: []byte("# hello"), ContentType: "text/markdown"}, nil
			},
			wantStatus: http.StatusOK,
			wantBody:   "# hello",
			wantType:   "text/markdown",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			WrapHttpRsp(tt.handler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantType, rr.Header().Get("Content-Type"))
			assert.Equal(t, tt.wantBody, rr.Body.String())
		})
	}
}

func TestResponseWriterStatus(t *testing.T) {
	rr := httptest.NewRecorder()
	rw := NewResponseWriter(rr)
	assert.Equal(t, http.StatusOK, rw.Status())
	rw.WriteHeader(http.StatusAccepted)
	rw.WriteHeader(http.StatusTeapot)
	rw.Write([]byte("ok"))
	assert.Equal(t, http.StatusAccepted, rw.Status())
	assert.Equal(t, 2, rw.BytesWritten())
}
