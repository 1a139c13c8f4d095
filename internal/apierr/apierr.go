// Package apierr defines the error taxonomy: typed errors carrying an
// HTTP status and a machine-readable kind, analogous to the sentinel
// errors app.ErrNoUsableSources and synth.ErrNoSubstantiveBody, but
// generalized to an explicit status+kind pair since the HTTP shell must map
// many distinct failure kinds to status codes.
package apierr

import "net/http"

// Error is a typed, HTTP-status-bearing error returned by the pipeline and
// surfaced by the HTTP shell as {message, requestId}.
type Error struct {
	Status  int
	Kind    string
	Message string
}

func (e *Error) Error() string { return e.Message }

func newError(status int, kind, message string) *Error {
	return &Error{Status: status, Kind: kind, Message: message}
}

func Validation(message string) *Error {
	return newError(http.StatusBadRequest, "Validation", message)
}

func RateLimited(message string) *Error {
	return newError(http.StatusTooManyRequests, "RateLimited", message)
}

func UpstreamAuth(message string) *Error {
	return newError(http.StatusUnauthorized, "UpstreamAuth", message)
}

func UpstreamSearch(message string) *Error {
	return newError(http.StatusBadGateway, "UpstreamSearch", message)
}

func UpstreamLLM(message string) *Error {
	return newError(http.StatusBadGateway, "UpstreamLLM", message)
}

func UpstreamFetch(message string) *Error {
	return newError(http.StatusBadGateway, "UpstreamFetch", message)
}

func UnsupportedMediaType(message string) *Error {
	return newError(http.StatusUnsupportedMediaType, "UnsupportedMediaType", message)
}

func PayloadTooLarge(message string) *Error {
	return newError(http.StatusRequestEntityTooLarge, "PayloadTooLarge", message)
}

func InvalidURL(message string) *Error {
	return newError(http.StatusBadRequest, "InvalidUrl", message)
}

func Misconfigured(message string) *Error {
	return newError(http.StatusServiceUnavailable, "Misconfigured", message)
}

func NoModelAvailable(message string) *Error {
	return newError(http.StatusServiceUnavailable, "NoModelAvailable", message)
}

func Internal(message string) *Error {
	return newError(http.StatusInternalServerError, "Internal", message)
}
