package pipeline

import (
	"encoding/json"
	"net/http"
)

// Kind identifies a stable error category from the proxy's error-kind
// table. It never leaks to clients directly — only StatusCode and Msg
// do, via the JSON error envelope.
type Kind string

const (
	KindBadRequest Kind = "bad_request"
	KindNotFound   Kind = "not_found"
	KindBadGateway Kind = "bad_gateway"
	KindInternal   Kind = "internal"
)

// Error is the proxy's typed error: a stable kind, the HTTP status it
// maps to, and a client-safe message. It deliberately carries no stack
// trace — only the message string is ever surfaced.
type Error struct {
	Kind       Kind
	StatusCode int
	Msg        string
}

func (e *Error) Error() string { return e.Msg }

func newError(kind Kind, statusCode int, msg string) *Error {
	return &Error{Kind: kind, StatusCode: statusCode, Msg: msg}
}

// BadRequest builds a 400 error for malformed or missing input.
func BadRequest(msg string) *Error { return newError(KindBadRequest, http.StatusBadRequest, msg) }

// NotFound builds a 404 error for unrecognized routes.
func NotFound(msg string) *Error { return newError(KindNotFound, http.StatusNotFound, msg) }

// BadGateway builds a 502 error for origin transport failures.
func BadGateway(msg string) *Error { return newError(KindBadGateway, http.StatusBadGateway, msg) }

// Internal builds a 500 error for unexpected, programming-error-class
// failures.
func Internal(msg string) *Error { return newError(KindInternal, http.StatusInternalServerError, msg) }

type errorEnvelope struct {
	Error      string `json:"error"`
	Status     string `json:"status"`
	StatusCode int    `json:"statusCode"`
}

// WriteError writes the JSON error envelope the spec requires for every
// failure surfaced before the response body has been flushed.
func WriteError(w http.ResponseWriter, err *Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	_ = json.NewEncoder(w).Encode(errorEnvelope{
		Error:      err.Msg,
		Status:     "error",
		StatusCode: err.StatusCode,
	})
}
