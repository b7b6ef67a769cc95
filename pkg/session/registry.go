// Package session tracks which users are currently logged in.
//
// A Registry enforces two rules: a user holds at most one session at a time,
// and the number of sessions never exceeds the registry's capacity. The
// registry lives in memory only; restarting the server clears it.
package session

import (
	"sort"
	"sync"
	"time"

	"github.com/marmos91/bankd/pkg/models"
)

// DefaultCapacity is the session limit used when none is configured.
const DefaultCapacity = 100

// Result is the outcome of TryAcquire.
type Result int

const (
	// Granted means the session was registered. The caller must Release it.
	Granted Result = iota

	// AlreadyActive means the user is logged in elsewhere.
	AlreadyActive

	// Full means the registry is at capacity.
	Full
)

// String returns the result name used in logs and metric labels.
func (r Result) String() string {
	switch r {
	case Granted:
		return "granted"
	case AlreadyActive:
		return "already_active"
	case Full:
		return "full"
	default:
		return "unknown"
	}
}

// Entry describes one active session.
type Entry struct {
	UserID     int32       `json:"user_id"`
	Role       models.Role `json:"-"`
	RoleName   string      `json:"role"`
	RemoteAddr string      `json:"remote_addr"`
	Since      time.Time   `json:"since"`
}

// Metrics observes registry activity. A nil Metrics disables collection.
type Metrics interface {
	RecordAcquire(result string)
	SetActiveSessions(count int)
}

// Registry is a bounded set of logged-in user ids.
//
// Thread safety:
// All methods are safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	capacity int
	sessions map[int32]Entry
	metrics  Metrics
	now      func() time.Time
}

// NewRegistry creates a registry holding at most capacity sessions.
// capacity <= 0 selects DefaultCapacity. metrics may be nil.
func NewRegistry(capacity int, metrics Metrics) *Registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Registry{
		capacity: capacity,
		sessions: make(map[int32]Entry, capacity),
		metrics:  metrics,
		now:      time.Now,
	}
}

// TryAcquire registers a session for userID.
//
// An existing session for the same user wins over the capacity check, so a
// user who is already logged in sees AlreadyActive even on a full server.
func (r *Registry) TryAcquire(userID int32, role models.Role, remoteAddr string) Result {
	r.mu.Lock()
	result := r.tryAcquireLocked(userID, role, remoteAddr)
	count := len(r.sessions)
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.RecordAcquire(result.String())
		if result == Granted {
			r.metrics.SetActiveSessions(count)
		}
	}
	return result
}

func (r *Registry) tryAcquireLocked(userID int32, role models.Role, remoteAddr string) Result {
	if _, ok := r.sessions[userID]; ok {
		return AlreadyActive
	}
	if len(r.sessions) >= r.capacity {
		return Full
	}
	r.sessions[userID] = Entry{
		UserID:     userID,
		Role:       role,
		RoleName:   role.String(),
		RemoteAddr: remoteAddr,
		Since:      r.now().UTC(),
	}
	return Granted
}

// Release removes userID's session. Releasing a user without a session is a
// no-op and returns false.
func (r *Registry) Release(userID int32) bool {
	r.mu.Lock()
	_, ok := r.sessions[userID]
	delete(r.sessions, userID)
	count := len(r.sessions)
	r.mu.Unlock()

	if ok && r.metrics != nil {
		r.metrics.SetActiveSessions(count)
	}
	return ok
}

// IsActive reports whether userID currently holds a session.
func (r *Registry) IsActive(userID int32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[userID]
	return ok
}

// Active returns a snapshot of all sessions ordered by login time.
func (r *Registry) Active() []Entry {
	r.mu.Lock()
	out := make([]Entry, 0, len(r.sessions))
	for _, e := range r.sessions {
		out = append(out, e)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Since.Equal(out[j].Since) {
			return out[i].UserID < out[j].UserID
		}
		return out[i].Since.Before(out[j].Since)
	})
	return out
}

// Len returns the number of active sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Capacity returns the configured session limit.
func (r *Registry) Capacity() int {
	return r.capacity
}
