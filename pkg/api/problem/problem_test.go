package problem

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriters(t *testing.T) {
	tests := []struct {
		name   string
		write  func(http.ResponseWriter, *http.Request, string)
		status int
		title  string
	}{
		{"bad request", BadRequest, http.StatusBadRequest, "Bad Request"},
		{"unauthorized", Unauthorized, http.StatusUnauthorized, "Unauthorized"},
		{"forbidden", Forbidden, http.StatusForbidden, "Forbidden"},
		{"internal", Internal, http.StatusInternalServerError, "Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
			tt.write(rec, req, "details here")

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, ContentType, rec.Header().Get("Content-Type"))

			var p Problem
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
			assert.Equal(t, tt.title, p.Title)
			assert.Equal(t, tt.status, p.Status)
			assert.Equal(t, "details here", p.Detail)
			assert.Equal(t, "/api/v1/sessions", p.Instance)
		})
	}
}

func TestUnauthorizedChallenge(t *testing.T) {
	rec := httptest.NewRecorder()
	Unauthorized(rec, nil, "token required")

	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")

	var p Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Empty(t, p.Instance)
}
