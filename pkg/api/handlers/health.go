package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/marmos91/bankd/pkg/repository"
	"github.com/marmos91/bankd/pkg/session"
)

// HealthHandler handles health check endpoints.
//
// Health endpoints are unauthenticated and provide:
//   - Liveness probe: Is the server process running?
//   - Readiness probe: Are the tables open and sessions available?
//   - Table health: Record count and read latency of every table
type HealthHandler struct {
	store     *repository.Store
	sessions  *session.Registry
	startedAt time.Time
}

// NewHealthHandler creates a new health handler. Either argument may be
// nil, in which case readiness reports unhealthy.
func NewHealthHandler(store *repository.Store, sessions *session.Registry) *HealthHandler {
	return &HealthHandler{store: store, sessions: sessions, startedAt: time.Now()}
}

// Liveness handles GET /health.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startedAt).Truncate(time.Second)
	writeJSON(w, http.StatusOK, healthyResponse(map[string]interface{}{
		"service":    "bankd",
		"started_at": h.startedAt.UTC().Format(time.RFC3339),
		"uptime":     uptime.String(),
		"uptime_sec": int64(uptime.Seconds()),
	}))
}

// Readiness handles GET /health/ready.
//
// Returns 503 when the store is not open or every session slot is taken.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.store == nil || h.sessions == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("server not initialized"))
		return
	}

	active, capacity := h.sessions.Len(), h.sessions.Capacity()
	data := map[string]interface{}{
		"sessions":         active,
		"session_capacity": capacity,
		"data_dir":         h.store.Dir(),
	}
	if active >= capacity {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponseWithData(data))
		return
	}
	writeJSON(w, http.StatusOK, healthyResponse(data))
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

// Tables handles GET /health/tables.
//
// Every table is counted under its read lock. Returns 503 if any table
// cannot be read.
func (h *HealthHandler) Tables(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("store not initialized"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	tables := make([]TableHealth, 0, len(h.store.Tables()))
	allHealthy := true
	for _, t := range h.store.Tables() {
		start := time.Now()
		n, err := t.Len(ctx)
		health := TableHealth{
			Name:    t.Name(),
			Path:    t.Path(),
			Records: n,
			Latency: time.Since(start).String(),
			Status:  "healthy",
		}
		if err != nil {
			health.Status = "unhealthy"
			health.Error = err.Error()
			allHealthy = false
		}
		tables = append(tables, health)
	}

	if allHealthy {
		writeJSON(w, http.StatusOK, healthyResponse(tables))
	} else {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponseWithData(tables))
	}
}
