package aggregator

import (
	"sync"
	"time"

	"alquilercito/models"
)

// Cutoff is the daily wall-clock time at which cached listings go stale.
type Cutoff struct {
	Hour   int
	Minute int
}

var DefaultCutoff = Cutoff{Hour: 16}

// NextCutoff returns the first occurrence of c strictly after now, in now's
// location. Once today's cutoff has passed it rolls to tomorrow.
func NextCutoff(now time.Time, c Cutoff) time.Time {
	y, m, d := now.Date()
	next := time.Date(y, m, d, c.Hour, c.Minute, 0, 0, now.Location())
	if !next.After(now) {
		next = time.Date(y, m, d+1, c.Hour, c.Minute, 0, 0, now.Location())
	}
	return next
}

// Snapshot is one complete refresh: the merged listings plus how each feed
// fared. It is never mutated after being cached.
type Snapshot struct {
	RunID     string                   `json:"run_id"`
	Listings  []models.PropertyListing `json:"-"`
	Feeds     []models.FeedStatus      `json:"feeds"`
	Forced    bool                     `json:"forced"`
	FetchedAt time.Time                `json:"fetched_at"`
	ExpiresAt time.Time                `json:"expires_at"`
}

// Fresh reports whether the snapshot may still be served at now.
func (s *Snapshot) Fresh(now time.Time) bool {
	return s != nil && now.Before(s.ExpiresAt)
}

// Cache holds a single snapshot, replaced wholesale on every refresh.
type Cache struct {
	mu    sync.RWMutex
	entry *Snapshot
}

// Get returns the cached snapshot while it is fresh at now.
func (c *Cache) Get(now time.Time) (*Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.entry.Fresh(now) {
		return nil, false
	}
	return c.entry, true
}

func (c *Cache) Set(s *Snapshot) {
	c.mu.Lock()
	c.entry = s
	c.mu.Unlock()
}

// Last returns the most recent snapshot regardless of freshness, or nil.
func (c *Cache) Last() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entry
}
