package httpx

import (
	"net/http"

	json "github.com/json-iterator/go"

	"github.com/flowershow/contentsync/internal/common/apperrors"
)

type Error struct {
	Description string `json:"description"`
	StatusCode  int    `json:"http_status_code"`
}

type errorRsp struct {
	Result int    `json:"result"`
	Error  string `json:"error"`
}

// Failure is the result code of every error body.
const Failure int = 0

// Send writes e as a JSON error body.
func (e *Error) Send(w http.ResponseWriter) {
	if w == nil {
		return
	}
	body, err := json.Marshal(&errorRsp{Result: Failure, Error: e.Description})
	if err != nil {
		http.Error(w, "unable to encode error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	w.Write(body)
}

func (e *Error) Error() string {
	return e.Description
}

func SendError(w http.ResponseWriter, err apperrors.Error) {
	if err == nil {
		return
	}
	statusCode := err.StatusCode()
	if statusCode == 0 {
		statusCode = http.StatusInternalServerError
	}
	httperror := &Error{
		StatusCode:  statusCode,
		Description: err.ErrorAll(),
	}
	httperror.Send(w)
}

// errorWith builds an *Error with msg[0] as its description, or def when no
// message is given.
func errorWith(status int, def string, msg []string) *Error {
	if len(msg) > 0 && msg[0] != "" {
		def = msg[0]
	}
	return &Error{Description: def, StatusCode: status}
}

func ErrUnableToParseReqData() *Error {
	return errorWith(http.StatusBadRequest, "unable to parse request", nil)
}

func ErrUnableToReadRequest() *Error {
	return errorWith(http.StatusBadRequest, "unable to read request", nil)
}

func ErrApplicationError(msg ...string) *Error {
	return errorWith(http.StatusInternalServerError, "unable to process request", msg)
}

func ErrInvalidRequest(msg ...string) *Error {
	return errorWith(http.StatusBadRequest, "empty request values or invalid request", msg)
}

func ErrInvalidSiteId() *Error {
	return errorWith(http.StatusBadRequest, "empty or invalid site id", nil)
}

func ErrUnAuthorized(msg ...string) *Error {
	return errorWith(http.StatusUnauthorized, "unable to authenticate request", msg)
}

func ErrPayloadTooLarge(msg ...string) *Error {
	return errorWith(http.StatusRequestEntityTooLarge, "request body too large", msg)
}
