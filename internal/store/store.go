package store

import (
	"sync"
	"time"

	"github.com/integrio/status-engine/internal/status"
)

// Store groups the status tables of the engine. A single instance is built at
// startup and handed to every component that reads or writes status.
type Store struct {
	Containers  *Cache[status.ContainerStatus]
	Deployments *Cache[status.DeploymentStatus]
	Services    *Cache[status.ServiceStatus]
	Camel       *Cache[status.CamelStatus]
	Presence    *PresenceTable
	Sessions    *SessionTable
}

// New creates an empty store
func New() *Store {
	return &Store{
		Containers:  NewCache[status.ContainerStatus](),
		Deployments: NewCache[status.DeploymentStatus](),
		Services:    NewCache[status.ServiceStatus](),
		Camel:       NewCache[status.CamelStatus](),
		Presence:    NewPresenceTable(),
		Sessions:    NewSessionTable(),
	}
}

// PresenceTable holds the "working" heartbeats of users on a project
type PresenceTable struct {
	mu      sync.Mutex
	records map[presenceID]status.Presence
}

type presenceID struct {
	key  status.GroupedKey
	user string
}

// NewPresenceTable creates an empty presence table
func NewPresenceTable() *PresenceTable {
	return &PresenceTable{records: make(map[presenceID]status.Presence)}
}

// Touch records or refreshes a heartbeat
func (t *PresenceTable) Touch(p status.Presence) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records[presenceID{key: p.Key, user: p.User}] = p
}

// List returns every presence record of the environment
func (t *PresenceTable) List(env string) []status.Presence {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]status.Presence, 0, len(t.records))
	for _, p := range t.records {
		if p.Key.Environment == env {
			out = append(out, p)
		}
	}
	return out
}

// Sweep removes records last seen before the cutoff and returns how many were removed.
// A record seen exactly at the cutoff is kept.
func (t *PresenceTable) Sweep(cutoff time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for id, p := range t.records {
		if p.LastSeen.Before(cutoff) {
			delete(t.records, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of presence records
func (t *PresenceTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

// SessionTable holds expiring session records keyed by session id
type SessionTable struct {
	mu       sync.Mutex
	sessions map[string]status.Session
}

// NewSessionTable creates an empty session table
func NewSessionTable() *SessionTable {
	return &SessionTable{sessions: make(map[string]status.Session)}
}

// Put stores or replaces a session
func (t *SessionTable) Put(s status.Session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[s.ID] = s
}

// Get returns a session by id
func (t *SessionTable) Get(id string) (status.Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[id]
	return s, ok
}

// SweepExpired removes every session expired at now and returns how many were removed
func (t *SessionTable) SweepExpired(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for id, s := range t.sessions {
		if s.Expired(now) {
			delete(t.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of sessions
func (t *SessionTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}
