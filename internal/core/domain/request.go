package domain

import (
	"encoding/json"
	"net/http"
	"strings"
)

// RequestDescriptor describes one call against the marketplace API.
// A descriptor with only Path set is a bare-path request (GET, no body).
type RequestDescriptor struct {
	Method string `json:"method,omitempty"`
	Path   string `json:"path"`
	Body   any    `json:"body,omitempty"`
}

// Get builds a bare-path descriptor.
func Get(path string) RequestDescriptor {
	return RequestDescriptor{Path: path}
}

// IsBarePath reports whether the descriptor carries neither a method nor a body.
func (d RequestDescriptor) IsBarePath() bool {
	return d.Method == "" && d.Body == nil
}

// HTTPMethod returns the upper-cased method, defaulting to GET.
func (d RequestDescriptor) HTTPMethod() string {
	if d.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(d.Method)
}

// Response is the success envelope returned to callers.
type Response struct {
	Status int             `json:"status"`
	Header http.Header     `json:"-"`
	Body   json.RawMessage `json:"body,omitempty"`
}

// Decode unmarshals the response body into v.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return nil
	}
	return json.Unmarshal(r.Body, v)
}
