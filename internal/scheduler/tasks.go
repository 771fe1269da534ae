package scheduler

import (
	"context"
	"time"

	"github.com/integrio/status-engine/internal/store"
)

// Task names
const (
	TaskContainerStats  = "container-stats"
	TaskCamelStatus     = "camel-status"
	TaskPresenceCleanup = "presence-cleanup"
	TaskSessionCleanup  = "session-cleanup"
	TaskKeepalive       = "keepalive"
)

// Default task cadence
const (
	DefaultStatsInterval    = 10 * time.Second
	DefaultCamelInterval    = 5 * time.Second
	DefaultPresenceInterval = 30 * time.Second
	DefaultPresenceMaxAge   = 2 * time.Minute
	DefaultSessionInterval  = 10 * time.Minute
	DefaultKeepalive        = 30 * time.Second
)

// StatsCollector refreshes resource usage of the stored containers
type StatsCollector interface {
	CollectStats(ctx context.Context) error
}

// CamelCollector refreshes the runtime self-status of integration containers
type CamelCollector interface {
	CollectCamelStatus(ctx context.Context) error
}

// Pinger pings push subscribers and drops the ones that stopped answering
type Pinger interface {
	Ping(ctx context.Context) int
}

// ContainerStats collects container resource usage
func ContainerStats(c StatsCollector, interval time.Duration) Task {
	return Task{Name: TaskContainerStats, Interval: interval, Run: c.CollectStats}
}

// CamelStatus collects runtime self-status snapshots
func CamelStatus(c CamelCollector, interval time.Duration) Task {
	return Task{Name: TaskCamelStatus, Interval: interval, Run: c.CollectCamelStatus}
}

// PresenceCleanup deletes presence records last seen more than maxAge ago
func PresenceCleanup(st *store.Store, interval, maxAge time.Duration, now func() time.Time) Task {
	return Task{
		Name:     TaskPresenceCleanup,
		Interval: interval,
		Run: func(context.Context) error {
			st.Presence.Sweep(now().Add(-maxAge))
			return nil
		},
	}
}

// SessionCleanup deletes expired sessions
func SessionCleanup(st *store.Store, interval time.Duration, now func() time.Time) Task {
	return Task{
		Name:     TaskSessionCleanup,
		Interval: interval,
		Run: func(context.Context) error {
			st.Sessions.SweepExpired(now())
			return nil
		},
	}
}

// Keepalive pings push subscribers
func Keepalive(p Pinger, interval time.Duration) Task {
	return Task{
		Name:     TaskKeepalive,
		Interval: interval,
		Run: func(ctx context.Context) error {
			p.Ping(ctx)
			return nil
		},
	}
}
