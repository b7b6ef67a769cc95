package lock

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/marmos91/bankd/pkg/store/errors"
)

type fakeHandle string

func (h fakeHandle) Name() string { return string(h) }
func (h fakeHandle) Fd() uintptr  { return 0 }

func TestRangesOverlap(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                   string
		off1, len1, off2, len2 uint64
		want                   bool
	}{
		{"disjoint", 0, 10, 10, 10, false},
		{"adjacent reversed", 10, 10, 0, 10, false},
		{"partial", 0, 10, 5, 10, true},
		{"contained", 0, 100, 10, 5, true},
		{"unbounded first", 50, 0, 0, 60, true},
		{"unbounded both", 0, 0, 1000, 0, true},
		{"unbounded after", 100, 0, 0, 100, false},
	}

	for _, tt := range tests {
		if got := RangesOverlap(tt.off1, tt.len1, tt.off2, tt.len2); got != tt.want {
			t.Errorf("%s: RangesOverlap() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestIsLockConflicting(t *testing.T) {
	t.Parallel()

	shared := FileLock{Owner: "a", Offset: 0, Length: 10}
	otherShared := FileLock{Owner: "b", Offset: 0, Length: 10}
	exclusive := FileLock{Owner: "b", Offset: 5, Length: 10, Exclusive: true}
	sameOwner := FileLock{Owner: "a", Offset: 0, Length: 10, Exclusive: true}

	if IsLockConflicting(&shared, &otherShared) {
		t.Error("shared locks must not conflict")
	}
	if !IsLockConflicting(&shared, &exclusive) {
		t.Error("exclusive lock over shared range must conflict")
	}
	if IsLockConflicting(&shared, &sameOwner) {
		t.Error("locks of the same owner must not conflict")
	}
}

func TestManager_Lock_SharedReaders(t *testing.T) {
	t.Parallel()
	lm := NewManager()
	h := fakeHandle("/tables/users.dat")
	ctx := context.Background()

	if err := lm.LockWholeFile(ctx, h, "r1", Read); err != nil {
		t.Fatalf("first read lock: %v", err)
	}
	if err := lm.LockWholeFile(ctx, h, "r2", Read); err != nil {
		t.Fatalf("second read lock: %v", err)
	}
	if got := len(lm.ListLocks(h.Name())); got != 2 {
		t.Fatalf("expected 2 locks, got %d", got)
	}
}

func TestManager_TryLock_Conflict(t *testing.T) {
	t.Parallel()
	lm := NewManager()
	h := fakeHandle("/tables/accounts.dat")

	if err := lm.TryLock(h, FileLock{Owner: "w", Exclusive: true}); err != nil {
		t.Fatalf("TryLock: %v", err)
	}

	err := lm.TryLock(h, FileLock{Owner: "r", Offset: 64, Length: 64})
	if !errors.IsLockConflictError(err) {
		t.Fatalf("expected Locked error, got %v", err)
	}
}

func TestManager_Lock_DisjointRecordsDoNotBlock(t *testing.T) {
	t.Parallel()
	lm := NewManager()
	h := fakeHandle("/tables/accounts.dat")
	ctx := context.Background()

	if err := lm.LockRange(ctx, h, "w1", 0, 64, Write); err != nil {
		t.Fatalf("lock record 0: %v", err)
	}
	if err := lm.LockRange(ctx, h, "w2", 1, 64, Write); err != nil {
		t.Fatalf("lock record 1: %v", err)
	}
}

func TestManager_Lock_WriterWaitsForReader(t *testing.T) {
	t.Parallel()
	lm := NewManager()
	h := fakeHandle("/tables/loans.dat")
	ctx := context.Background()

	if err := lm.LockRange(ctx, h, "reader", 3, 32, Read); err != nil {
		t.Fatalf("read lock: %v", err)
	}

	var granted atomic.Bool
	done := make(chan error, 1)
	go func() {
		err := lm.LockWholeFile(ctx, h, "writer", Write)
		granted.Store(true)
		done <- err
	}()

	waitFor(t, func() bool { return lm.Stats().Waiting == 1 })
	if granted.Load() {
		t.Fatal("writer acquired whole-file lock while a reader held a record")
	}

	if err := lm.LockRange(ctx, h, "reader", 3, 32, Unlock); err != nil {
		t.Fatalf("unlock: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("writer lock: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("writer was never woken")
	}
}

func TestManager_Lock_ContextCancelled(t *testing.T) {
	t.Parallel()
	lm := NewManager()
	h := fakeHandle("/tables/feedback.dat")

	if err := lm.LockWholeFile(context.Background(), h, "holder", Write); err != nil {
		t.Fatalf("lock: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := lm.LockWholeFile(ctx, h, "waiter", Read)
	if !errors.IsLockConflictError(err) {
		t.Fatalf("expected aborted lock error, got %v", err)
	}
	if lm.Stats().Waiting != 0 {
		t.Fatalf("waiter count not restored: %d", lm.Stats().Waiting)
	}
}

func TestManager_Unlock_NotFound(t *testing.T) {
	t.Parallel()
	lm := NewManager()

	err := lm.Unlock(fakeHandle("/x"), "nobody", 0, 0)
	if !errors.IsNotFoundError(err) {
		t.Fatalf("expected LockNotFound, got %v", err)
	}
}

func TestManager_Lock_UpgradeSameOwner(t *testing.T) {
	t.Parallel()
	lm := NewManager()
	h := fakeHandle("/tables/users.dat")
	ctx := context.Background()

	if err := lm.LockWholeFile(ctx, h, "o", Read); err != nil {
		t.Fatal(err)
	}
	if err := lm.LockWholeFile(ctx, h, "o", Write); err != nil {
		t.Fatal(err)
	}

	locks := lm.ListLocks(h.Name())
	if len(locks) != 1 || !locks[0].Exclusive {
		t.Fatalf("expected one upgraded exclusive lock, got %+v", locks)
	}
}

func TestManager_Lock_MutualExclusion(t *testing.T) {
	t.Parallel()
	lm := NewManager()
	h := fakeHandle("/tables/transactions.dat")
	ctx := context.Background()

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			owner := NewOwner()
			if err := lm.LockWholeFile(ctx, h, owner, Write); err != nil {
				t.Errorf("lock: %v", err)
				return
			}
			n := inside.Add(1)
			for {
				m := maxInside.Load()
				if n <= m || maxInside.CompareAndSwap(m, n) {
					break
				}
			}
			runtime.Gosched()
			inside.Add(-1)
			if err := lm.LockWholeFile(ctx, h, owner, Unlock); err != nil {
				t.Errorf("unlock: %v", err)
			}
		}()
	}
	wg.Wait()

	if maxInside.Load() != 1 {
		t.Fatalf("write lock admitted %d holders at once", maxInside.Load())
	}
	if lm.Stats().TotalLocks != 0 {
		t.Fatalf("locks leaked: %+v", lm.Stats())
	}
}

func TestManager_Metrics(t *testing.T) {
	t.Parallel()
	registry := prometheus.NewRegistry()
	lm := NewManager(WithMetrics(NewMetrics(registry)))
	h := fakeHandle("/tables/users.dat")
	ctx := context.Background()

	if err := lm.LockRange(ctx, h, "o", 0, 16, Write); err != nil {
		t.Fatal(err)
	}
	if err := lm.LockRange(ctx, h, "o", 0, 16, Unlock); err != nil {
		t.Fatal(err)
	}

	mfs, err := registry.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	want := map[string]bool{
		"bankd_locks_acquire_total":         false,
		"bankd_locks_release_total":         false,
		"bankd_locks_hold_duration_seconds": false,
	}
	for _, mf := range mfs {
		if _, ok := want[mf.GetName()]; ok {
			want[mf.GetName()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("Expected %s metric", name)
		}
	}
}

func TestManager_NilMetricsSafe(t *testing.T) {
	t.Parallel()
	var m *Metrics
	m.ObserveLockAcquire(ScopeFile, true, StatusGranted)
	m.ObserveLockRelease(ScopeFile, true, time.Second)
	m.SetBlockedLocks(3)
	m.ObserveBlockingDuration(ScopeFile, time.Second)
}

func TestManager_OSLocker(t *testing.T) {
	t.Parallel()
	locker := NewOFDLocker()
	if locker == nil {
		t.Skip("no OS lock layer on this platform")
	}

	f, err := os.Create(filepath.Join(t.TempDir(), "table.dat"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()

	lm := NewManager(WithOSLocker(locker))
	ctx := context.Background()

	if err := lm.LockRange(ctx, f, "o", 2, 128, Write); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if err := lm.LockRange(ctx, f, "o", 2, 128, Unlock); err != nil {
		t.Fatalf("unlock: %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached")
}
