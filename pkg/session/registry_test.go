package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/bankd/pkg/models"
)

type countingMetrics struct {
	mu       sync.Mutex
	acquires map[string]int
	active   int
}

func (m *countingMetrics) RecordAcquire(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.acquires == nil {
		m.acquires = make(map[string]int)
	}
	m.acquires[result]++
}

func (m *countingMetrics) SetActiveSessions(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = count
}

func TestRegistry_Exclusivity(t *testing.T) {
	t.Parallel()
	r := NewRegistry(10, nil)

	assert.Equal(t, Granted, r.TryAcquire(7, models.RoleCustomer, "10.0.0.1:5000"))
	assert.Equal(t, AlreadyActive, r.TryAcquire(7, models.RoleCustomer, "10.0.0.2:5000"))
	assert.Equal(t, 1, r.Len())

	assert.True(t, r.Release(7))
	assert.Equal(t, Granted, r.TryAcquire(7, models.RoleCustomer, "10.0.0.2:5000"))
}

func TestRegistry_ConcurrentSameUser(t *testing.T) {
	t.Parallel()
	r := NewRegistry(10, nil)

	const attempts = 16
	results := make(chan Result, attempts)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			results <- r.TryAcquire(42, models.RoleEmployee, "")
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	counts := map[Result]int{}
	for res := range results {
		counts[res]++
	}
	assert.Equal(t, 1, counts[Granted])
	assert.Equal(t, attempts-1, counts[AlreadyActive])
}

func TestRegistry_Capacity(t *testing.T) {
	t.Parallel()
	const capacity = 5
	r := NewRegistry(capacity, nil)

	for id := int32(1); id <= capacity; id++ {
		require.Equal(t, Granted, r.TryAcquire(id, models.RoleCustomer, ""))
	}
	assert.Equal(t, Full, r.TryAcquire(capacity+1, models.RoleCustomer, ""))

	// An already active user is told so even on a full registry.
	assert.Equal(t, AlreadyActive, r.TryAcquire(1, models.RoleCustomer, ""))

	r.Release(3)
	assert.Equal(t, Granted, r.TryAcquire(capacity+1, models.RoleCustomer, ""))
	assert.Equal(t, capacity, r.Len())
}

func TestRegistry_ConcurrentCapacity(t *testing.T) {
	t.Parallel()
	const capacity = 8
	r := NewRegistry(capacity, nil)

	var mu sync.Mutex
	granted := 0
	var wg sync.WaitGroup
	for id := int32(1); id <= 40; id++ {
		wg.Add(1)
		go func(id int32) {
			defer wg.Done()
			if r.TryAcquire(id, models.RoleCustomer, "") == Granted {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, capacity, granted)
	assert.Equal(t, capacity, r.Len())
}

func TestRegistry_ReleaseAbsentIsNoop(t *testing.T) {
	t.Parallel()
	r := NewRegistry(0, nil)

	assert.Equal(t, DefaultCapacity, r.Capacity())
	assert.False(t, r.Release(99))
	assert.Zero(t, r.Len())
}

func TestRegistry_ActiveSnapshot(t *testing.T) {
	t.Parallel()
	r := NewRegistry(10, nil)

	r.TryAcquire(2, models.RoleCustomer, "a")
	r.TryAcquire(1, models.RoleAdministrator, "b")

	active := r.Active()
	require.Len(t, active, 2)
	ids := []int32{active[0].UserID, active[1].UserID}
	assert.ElementsMatch(t, []int32{1, 2}, ids)
	for _, e := range active {
		assert.Equal(t, e.Role.String(), e.RoleName)
		assert.False(t, e.Since.IsZero())
	}
	assert.True(t, r.IsActive(1))
	assert.False(t, r.IsActive(3))
}

func TestRegistry_Metrics(t *testing.T) {
	t.Parallel()
	m := &countingMetrics{}
	r := NewRegistry(1, m)

	r.TryAcquire(1, models.RoleCustomer, "")
	r.TryAcquire(1, models.RoleCustomer, "")
	r.TryAcquire(2, models.RoleCustomer, "")
	assert.Equal(t, 1, m.active)

	r.Release(1)

	assert.Equal(t, 1, m.acquires["granted"])
	assert.Equal(t, 1, m.acquires["already_active"])
	assert.Equal(t, 1, m.acquires["full"])
	assert.Zero(t, m.active)
}
