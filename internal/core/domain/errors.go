package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Code is a symbolic failure code used when there is no HTTP status to report.
type Code string

const (
	CodeNetwork Code = "NETWORK_ERROR"
	CodeParse   Code = "PARSE_ERROR"
	CodeTimeout Code = "TIMEOUT_ERROR"
	CodeCached  Code = "CACHED_ERROR"
)

var (
	// ErrNoRefreshToken is returned when a 401 cannot be recovered because no refresh token is stored.
	ErrNoRefreshToken = errors.New("no refresh token")

	// ErrRefreshRejected is returned when the refresh endpoint did not issue a new token pair.
	ErrRefreshRejected = errors.New("token refresh rejected")

	// ErrSessionEnded is returned when the session a request belonged to was already logged out.
	ErrSessionEnded = errors.New("session already ended")
)

// DefaultCachedMessage is the payload of a cached failure whose original carried none.
const DefaultCachedMessage = "previous request failed"

// ClassifiedError is the uniform failure shape returned by the transport.
// Exactly one of Status (HTTP status >= 400) or Code is meaningful.
type ClassifiedError struct {
	Status  int
	Code    Code
	Payload json.RawMessage
	Err     error
}

// NewHTTPError classifies an HTTP response with status >= 400.
func NewHTTPError(status int, payload json.RawMessage) *ClassifiedError {
	return &ClassifiedError{
		Status:  status,
		Payload: payload,
		Err:     fmt.Errorf("http %d: %s", status, http.StatusText(status)),
	}
}

// NewSymbolicError classifies a failure that has no HTTP status.
func NewSymbolicError(code Code, err error) *ClassifiedError {
	return &ClassifiedError{Code: code, Err: err}
}

// NewCachedError wraps a previously observed failure into a synthetic CACHED_ERROR.
func NewCachedError(original *ClassifiedError) *ClassifiedError {
	payload := original.Payload
	if len(payload) == 0 {
		payload, _ = json.Marshal(map[string]string{"message": DefaultCachedMessage})
	}
	return &ClassifiedError{
		Code:    CodeCached,
		Payload: payload,
		Err:     fmt.Errorf("cached failure: %w", original),
	}
}

func (e *ClassifiedError) Error() string {
	if e.Code != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Code, e.Err)
		}
		return string(e.Code)
	}
	if len(e.Payload) > 0 {
		return fmt.Sprintf("http %d: %s", e.Status, e.Payload)
	}
	return fmt.Sprintf("http %d", e.Status)
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// IsHTTP reports whether the failure came from an HTTP response.
func (e *ClassifiedError) IsHTTP() bool {
	return e.Code == "" && e.Status >= 400
}

// Unauthorized reports whether the failure is an HTTP 401.
func (e *ClassifiedError) Unauthorized() bool {
	return e.IsHTTP() && e.Status == http.StatusUnauthorized
}

// Cacheable reports whether the failure may be stored in the error cache.
func (e *ClassifiedError) Cacheable() bool {
	if e.IsHTTP() {
		return true
	}
	switch e.Code {
	case CodeNetwork, CodeParse, CodeTimeout:
		return true
	}
	return false
}

// Label returns the status or code as a short string for logs and metric labels.
func (e *ClassifiedError) Label() string {
	if e.Code != "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%d", e.Status)
}

// AsClassified extracts a *ClassifiedError from err.
func AsClassified(err error) (*ClassifiedError, bool) {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
