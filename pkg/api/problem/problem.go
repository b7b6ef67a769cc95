// Package problem writes RFC 7807 error bodies for the admin API.
//
// Handlers and middleware use it alike, so that every non-2xx answer the
// admin API gives decodes into apiclient.APIError.
package problem

import (
	"encoding/json"
	"net/http"
)

// ContentType is the media type of a problem body.
const ContentType = "application/problem+json"

// Problem is an RFC 7807 problem details object.
type Problem struct {
	Type     string `json:"type,omitempty"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// New builds a problem whose title is the standard text of status.
func New(status int, detail string) Problem {
	return Problem{
		Type:   "about:blank",
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	}
}

// Write sends p. Instance is set to the request path when r is not nil.
func Write(w http.ResponseWriter, r *http.Request, p Problem) {
	if r != nil && p.Instance == "" {
		p.Instance = r.URL.Path
	}
	w.Header().Set("Content-Type", ContentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// BadRequest writes a 400.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string) {
	Write(w, r, New(http.StatusBadRequest, detail))
}

// Unauthorized writes a 401 with a Bearer challenge.
func Unauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="bankd"`)
	Write(w, r, New(http.StatusUnauthorized, detail))
}

// Forbidden writes a 403.
func Forbidden(w http.ResponseWriter, r *http.Request, detail string) {
	Write(w, r, New(http.StatusForbidden, detail))
}

// Internal writes a 500. detail must not leak the underlying error.
func Internal(w http.ResponseWriter, r *http.Request, detail string) {
	Write(w, r, New(http.StatusInternalServerError, detail))
}
