// Package health holds the health response shapes the CLI decodes.
package health

// Response is the body of GET /health.
type Response struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Data      struct {
		Service   string `json:"service"`
		StartedAt string `json:"started_at"`
		Uptime    string `json:"uptime"`
		UptimeSec int64  `json:"uptime_sec"`
	} `json:"data"`
	Error string `json:"error,omitempty"`
}

// ReadyResponse is the body of GET /health/ready.
type ReadyResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
	Data   struct {
		Sessions        int    `json:"sessions"`
		SessionCapacity int    `json:"session_capacity"`
		DataDir         string `json:"data_dir"`
	} `json:"data"`
}

// Accepting reports whether the server would admit another login.
func (r ReadyResponse) Accepting() bool {
	return r.Status == "healthy"
}

// Full reports whether every session slot is taken.
func (r ReadyResponse) Full() bool {
	return r.Data.SessionCapacity > 0 && r.Data.Sessions >= r.Data.SessionCapacity
}
