package lock

import (
	"context"
	"sync"
	"time"

	"github.com/marmos91/bankd/internal/logger"
	"github.com/marmos91/bankd/pkg/store/errors"
)

// OSLocker mirrors granted locks onto the operating system so that other
// processes opening the same table files are constrained as well.
type OSLocker interface {
	// Lock blocks until the range is locked on h.
	Lock(h Handle, offset, length uint64, exclusive bool) error

	// Unlock releases the range on h.
	Unlock(h Handle, offset, length uint64) error
}

// Manager is a blocking byte-range lock manager for table files.
//
// Read locks are shared and Write locks are exclusive. A request that
// conflicts with a lock of another owner waits until that lock is released
// or the context is cancelled. Locks are keyed by the handle's file name, so
// two handles opened on the same path share the same lock table.
//
// Callers must never hold locks on two different files at the same time.
// The manager does not detect deadlocks.
type Manager struct {
	mu      sync.Mutex
	locks   map[string][]FileLock
	changed chan struct{} // closed and replaced on every release
	waiting int

	metrics *Metrics
	osLocks OSLocker
}

// Option configures a Manager.
type Option func(*Manager)

// WithMetrics attaches Prometheus metrics. A nil Metrics is allowed.
func WithMetrics(m *Metrics) Option {
	return func(lm *Manager) {
		lm.metrics = m
	}
}

// WithOSLocker mirrors every granted lock onto the operating system.
func WithOSLocker(l OSLocker) Option {
	return func(lm *Manager) {
		lm.osLocks = l
	}
}

// NewManager creates a new lock manager.
func NewManager(opts ...Option) *Manager {
	lm := &Manager{
		locks:   make(map[string][]FileLock),
		changed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(lm)
	}
	return lm
}

// LockWholeFile applies mode to the whole file behind h.
func (lm *Manager) LockWholeFile(ctx context.Context, h Handle, owner Owner, mode Mode) error {
	return lm.apply(ctx, h, owner, 0, 0, mode)
}

// LockRange applies mode to the record at index in a table of fixed recordSize.
func (lm *Manager) LockRange(ctx context.Context, h Handle, owner Owner, index, recordSize int64, mode Mode) error {
	if index < 0 || recordSize <= 0 {
		return errors.NewInvalidArgumentError("record index must be >= 0 and record size > 0")
	}
	offset, length := RecordRange(index, recordSize)
	return lm.apply(ctx, h, owner, offset, length, mode)
}

func (lm *Manager) apply(ctx context.Context, h Handle, owner Owner, offset, length uint64, mode Mode) error {
	switch mode {
	case Read, Write:
		return lm.Lock(ctx, h, FileLock{
			Owner:     owner,
			Offset:    offset,
			Length:    length,
			Exclusive: mode == Write,
		})
	case Unlock:
		return lm.Unlock(h, owner, offset, length)
	default:
		return errors.NewInvalidArgumentError("unknown lock mode " + mode.String())
	}
}

// Lock acquires lock on h, waiting while a conflicting lock is held.
//
// Returns nil once granted, or a Locked error wrapping ctx.Err() if the
// context ends first.
func (lm *Manager) Lock(ctx context.Context, h Handle, lock FileLock) error {
	key := h.Name()
	scope := lock.Scope()
	start := time.Now()
	blocked := false

	lm.mu.Lock()
	for {
		conflict := lm.findConflict(key, &lock)
		if conflict == nil {
			break
		}
		if !blocked {
			blocked = true
			lm.waiting++
			lm.metrics.SetBlockedLocks(lm.waiting)
			logger.Debug("Waiting for table lock",
				"path", key, "owner", lock.Owner, "held_by", conflict.Owner, "exclusive", lock.Exclusive)
		}
		ch := lm.changed
		lm.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			lm.mu.Lock()
			lm.waiting--
			lm.metrics.SetBlockedLocks(lm.waiting)
			lm.mu.Unlock()
			lm.metrics.ObserveLockAcquire(scope, lock.Exclusive, StatusAborted)
			return NewLockAbortedError(key, ctx.Err())
		}

		lm.mu.Lock()
	}
	if blocked {
		lm.waiting--
		lm.metrics.SetBlockedLocks(lm.waiting)
	}
	lock.AcquiredAt = time.Now()
	lm.grant(key, lock)
	lm.mu.Unlock()

	if blocked {
		lm.metrics.ObserveBlockingDuration(scope, time.Since(start))
	}

	if lm.osLocks != nil {
		if err := lm.osLocks.Lock(h, lock.Offset, lock.Length, lock.Exclusive); err != nil {
			lm.release(key, lock.Owner, lock.Offset, lock.Length)
			lm.metrics.ObserveLockAcquire(scope, lock.Exclusive, StatusDenied)
			return NewOSLockError(key, err)
		}
	}

	lm.metrics.ObserveLockAcquire(scope, lock.Exclusive, StatusGranted)
	return nil
}

// TryLock acquires lock on h without waiting.
//
// Returns nil on success, or ErrLocked if a conflict exists.
func (lm *Manager) TryLock(h Handle, lock FileLock) error {
	key := h.Name()

	lm.mu.Lock()
	if conflict := lm.findConflict(key, &lock); conflict != nil {
		lm.mu.Unlock()
		lm.metrics.ObserveLockAcquire(lock.Scope(), lock.Exclusive, StatusDenied)
		return NewLockedError(key, conflict)
	}
	lock.AcquiredAt = time.Now()
	lm.grant(key, lock)
	lm.mu.Unlock()

	lm.metrics.ObserveLockAcquire(lock.Scope(), lock.Exclusive, StatusGranted)
	return nil
}

// Unlock releases the owner's lock on exactly [offset, offset+length).
//
// Returns nil on success, or ErrLockNotFound if the lock wasn't found.
func (lm *Manager) Unlock(h Handle, owner Owner, offset, length uint64) error {
	key := h.Name()

	if lm.osLocks != nil {
		if err := lm.osLocks.Unlock(h, offset, length); err != nil {
			logger.Warn("OS unlock failed", "path", key, "owner", owner, "error", err)
		}
	}

	if !lm.release(key, owner, offset, length) {
		return NewLockNotFoundError(key)
	}
	return nil
}

// ListLocks returns a copy of the locks currently held on path.
func (lm *Manager) ListLocks(path string) []FileLock {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	existing := lm.locks[path]
	out := make([]FileLock, len(existing))
	copy(out, existing)
	return out
}

// Stats returns current lock manager statistics.
func (lm *Manager) Stats() ManagerStats {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	stats := ManagerStats{TotalFiles: len(lm.locks), Waiting: lm.waiting}
	for _, locks := range lm.locks {
		stats.TotalLocks += len(locks)
	}
	return stats
}

// findConflict returns the first granted lock that conflicts with lock.
// Caller must hold lm.mu.
func (lm *Manager) findConflict(key string, lock *FileLock) *FileLock {
	existing := lm.locks[key]
	for i := range existing {
		if IsLockConflicting(&existing[i], lock) {
			c := existing[i]
			return &c
		}
	}
	return nil
}

// grant records lock. A lock of the same owner on the same range is updated
// in place, which allows upgrading Read to Write. Caller must hold lm.mu.
func (lm *Manager) grant(key string, lock FileLock) {
	existing := lm.locks[key]
	for i := range existing {
		if existing[i].Owner == lock.Owner &&
			existing[i].Offset == lock.Offset &&
			existing[i].Length == lock.Length {
			existing[i].Exclusive = lock.Exclusive
			existing[i].AcquiredAt = lock.AcquiredAt
			return
		}
	}
	lm.locks[key] = append(existing, lock)
}

// release removes a lock and wakes every waiter.
func (lm *Manager) release(key string, owner Owner, offset, length uint64) bool {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	existing := lm.locks[key]
	for i := range existing {
		if existing[i].Owner == owner &&
			existing[i].Offset == offset &&
			existing[i].Length == length {
			released := existing[i]
			lm.locks[key] = append(existing[:i], existing[i+1:]...)

			// Clean up empty entries to prevent memory leak
			if len(lm.locks[key]) == 0 {
				delete(lm.locks, key)
			}

			close(lm.changed)
			lm.changed = make(chan struct{})

			lm.metrics.ObserveLockRelease(released.Scope(), released.Exclusive, time.Since(released.AcquiredAt))
			return true
		}
	}
	return false
}
