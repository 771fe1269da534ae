package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/integrio/status-engine/internal/status"
)

func runningContainer(project, env, name string) status.ContainerStatus {
	return status.ContainerStatus{
		Name:        name,
		ProjectID:   project,
		Environment: env,
		Ready:       true,
		Phase:       status.PhaseRunning,
		Kind:        status.KindDevMode,
		ExposedPort: 32768,
	}
}

func TestCache_PutIsIdempotent(t *testing.T) {
	t.Parallel()

	once := NewCache[status.ContainerStatus]()
	twice := NewCache[status.ContainerStatus]()
	record := runningContainer("orders", "dev", "orders-devmode")

	once.Put(record.Key(), record)
	twice.Put(record.Key(), record)
	twice.Put(record.Key(), record)

	assert.Equal(t, once.ListByEnvironment("dev"), twice.ListByEnvironment("dev"))
	assert.Equal(t, 1, twice.Len())

	got, ok := twice.Get(record.Key())
	require.True(t, ok)
	assert.Equal(t, record, got)
}

func TestCache_GetMissing(t *testing.T) {
	t.Parallel()

	c := NewCache[status.ServiceStatus]()
	got, ok := c.Get(status.NewKey("p", "dev", "missing"))
	assert.False(t, ok)
	assert.Equal(t, status.ServiceStatus{}, got)
	assert.False(t, c.Delete(status.NewKey("p", "dev", "missing")))
}

func TestCache_ListFilters(t *testing.T) {
	t.Parallel()

	c := NewCache[status.ContainerStatus]()
	for _, r := range []status.ContainerStatus{
		runningContainer("orders", "dev", "b"),
		runningContainer("orders", "dev", "a"),
		runningContainer("billing", "dev", "c"),
		runningContainer("orders", "prod", "a"),
	} {
		c.Put(r.Key(), r)
	}

	tests := []struct {
		name     string
		list     func() []status.ContainerStatus
		expected []string
	}{
		{
			name:     "by environment",
			list:     func() []status.ContainerStatus { return c.ListByEnvironment("dev") },
			expected: []string{"c", "a", "b"},
		},
		{
			name:     "by project",
			list:     func() []status.ContainerStatus { return c.ListByProject("orders", "dev") },
			expected: []string{"a", "b"},
		},
		{
			name:     "unknown environment",
			list:     func() []status.ContainerStatus { return c.ListByEnvironment("qa") },
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			names := []string{}
			for _, r := range tt.list() {
				names = append(names, r.Name)
			}
			assert.Equal(t, tt.expected, names)
		})
	}
}

func TestCache_UpdateAndFindByName(t *testing.T) {
	t.Parallel()

	c := NewCache[status.ContainerStatus]()
	record := runningContainer("orders", "dev", "orders-devmode")
	c.Put(record.Key(), record)

	c.Update(record.Key(), func(current status.ContainerStatus, exists bool) (status.ContainerStatus, bool) {
		require.True(t, exists)
		current.CodeLoaded = true
		return current, true
	})

	key, found, ok := c.FindByName("dev", "orders-devmode")
	require.True(t, ok)
	assert.Equal(t, record.Key(), key)
	assert.True(t, found.CodeLoaded)

	c.Update(record.Key(), func(current status.ContainerStatus, _ bool) (status.ContainerStatus, bool) {
		return current, false
	})
	_, _, ok = c.FindByName("dev", "orders-devmode")
	assert.False(t, ok)
}

func TestCache_ConcurrentWriters(t *testing.T) {
	t.Parallel()

	c := NewCache[status.ContainerStatus]()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := runningContainer("orders", "dev", fmt.Sprintf("c-%d", i%5))
			c.Put(r.Key(), r)
			c.ListByEnvironment("dev")
		}(i)
	}
	wg.Wait()
	assert.Len(t, c.Keys("dev"), 5)
}

func TestPresenceTable_Sweep(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	table := NewPresenceTable()
	stale := status.Presence{Key: status.NewKey("orders", "dev", "orders"), User: "ana", LastSeen: now.Add(-3 * time.Minute)}
	fresh := status.Presence{Key: status.NewKey("orders", "dev", "orders"), User: "bo", LastSeen: now.Add(-1 * time.Minute)}
	table.Touch(stale)
	table.Touch(fresh)

	removed := table.Sweep(now.Add(-2 * time.Minute))

	assert.Equal(t, 1, removed)
	assert.Equal(t, []status.Presence{fresh}, table.List("dev"))
}

func TestSessionTable_SweepExpired(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	table := NewSessionTable()
	table.Put(status.Session{ID: "expired", ExpiresAt: now.Add(-time.Second)})
	table.Put(status.Session{ID: "boundary", ExpiresAt: now})
	table.Put(status.Session{ID: "live", ExpiresAt: now.Add(time.Hour)})

	assert.Equal(t, 2, table.SweepExpired(now))
	assert.Equal(t, 1, table.Len())
	_, ok := table.Get("live")
	assert.True(t, ok)
}
