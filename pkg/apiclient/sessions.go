package apiclient

import (
	"context"
	"time"
)

// Session is one logged-in user.
type Session struct {
	UserID     int32     `json:"user_id"`
	Role       string    `json:"role"`
	RemoteAddr string    `json:"remote_addr"`
	Since      time.Time `json:"since"`
}

// SessionList is the body of GET /api/v1/sessions.
type SessionList struct {
	Capacity int       `json:"capacity"`
	Active   int       `json:"active"`
	Sessions []Session `json:"sessions"`
}

// Sessions lists active sessions. Requires a manager or administrator token.
func (c *Client) Sessions(ctx context.Context) (*SessionList, error) {
	var list SessionList
	if err := c.get(ctx, "/api/v1/sessions", &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// TableHealth is the health of one table.
type TableHealth struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Records int64  `json:"records"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Tables reports the record count and read latency of every table.
func (c *Client) Tables(ctx context.Context) ([]TableHealth, error) {
	var resp struct {
		Status string        `json:"status"`
		Data   []TableHealth `json:"data"`
	}
	if err := c.get(ctx, "/health/tables", &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}
