// Package runtimestatus implements the Runtime Status Cache (§4.3): a
// pure in-memory mapping from session_id to ephemeral runtime phase
// information, bounded and swept on a TTL, distinct from the persisted
// status in pkg/store/pkg/statemachine.
package runtimestatus

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Status is a transient runtime phase, distinct from the persistent
// session status (§3 "RuntimeStatus").
type Status string

const (
	StatusIdle       Status = "idle"
	StatusProcessing Status = "processing"
	StatusCompleting Status = "completing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

var validStatuses = map[Status]bool{
	StatusIdle:       true,
	StatusProcessing: true,
	StatusCompleting: true,
	StatusCompleted:  true,
	StatusError:      true,
}

// ErrCacheFull is returned when the cache is at capacity and a new key
// would need to be inserted (§4.3: "further writes return a
// 503-equivalent error").
var ErrCacheFull = errors.New("runtime status cache at capacity")

// ErrInvalidStatus is returned when Set is called with a value outside
// the runtime status enum.
var ErrInvalidStatus = errors.New("invalid runtime status")

const (
	// DefaultCapacity is the hard size cap on the cache (§4.3).
	DefaultCapacity = 5000
	// DefaultTTL is the idle duration after which an entry is evicted.
	DefaultTTL = 1 * time.Hour
	// DefaultSweepInterval is how often the eviction sweep runs.
	DefaultSweepInterval = 5 * time.Minute
)

type entry struct {
	status    Status
	updatedAt time.Time
}

// Cache is a bounded, TTL-evicted in-memory runtime status store.
type Cache struct {
	mu       sync.RWMutex
	entries  map[string]entry
	capacity int
	ttl      time.Duration

	log     *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
}

// New constructs a Cache with the given capacity and TTL. Zero values
// fall back to the spec's defaults.
func New(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		entries:  make(map[string]entry),
		capacity: capacity,
		ttl:      ttl,
		log:      slog.Default().With("component", "runtime_status_cache"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Set records the runtime status for sessionID, bumping its update
// time. Returns ErrCacheFull if inserting a new key would exceed
// capacity, or ErrInvalidStatus if status is not one of the enum
// values.
func (c *Cache) Set(sessionID string, status Status) error {
	if !validStatuses[status] {
		return ErrInvalidStatus
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[sessionID]; !exists && len(c.entries) >= c.capacity {
		return ErrCacheFull
	}
	c.entries[sessionID] = entry{status: status, updatedAt: time.Now()}
	return nil
}

// Get returns the current runtime status for sessionID and whether an
// entry exists.
func (c *Cache) Get(sessionID string) (Status, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[sessionID]
	if !ok {
		return "", false
	}
	return e.status, true
}

// Delete removes sessionID from the cache, used when a session reaches
// a terminal status (confirm, kill).
func (c *Cache) Delete(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, sessionID)
}

// Len reports the number of tracked entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// sweep evicts entries whose last update is older than the TTL.
func (c *Cache) sweep() {
	cutoff := time.Now().Add(-c.ttl)
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, e := range c.entries {
		if e.updatedAt.Before(cutoff) {
			delete(c.entries, id)
		}
	}
}

// StartSweeper launches the periodic eviction sweep (§4.3: "every 5
// minutes"). The sweep task is created at server startup and cancelled
// cooperatively at shutdown via Stop.
func (c *Cache) StartSweeper(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if c.started {
		return
	}
	c.started = true

	go func() {
		defer close(c.doneCh)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.sweep()
				c.log.Debug("runtime_status_swept", "entries", c.Len())
			case <-c.stopCh:
				return
			}
		}
	}()
}

// Stop cancels the sweep task cooperatively and waits for it to exit.
// Shutdown should call this before closing the session store.
func (c *Cache) Stop() {
	if !c.started {
		return
	}
	close(c.stopCh)
	<-c.doneCh
}
