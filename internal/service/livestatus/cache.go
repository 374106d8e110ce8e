// Package livestatus holds the per-charge-point electrical/cost snapshot
// that the admin API and the dashboard websocket feed read from.
package livestatus

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/ocpp-cs/internal/ports"
)

// DefaultTTL is how long a snapshot is considered fresh. Past this, Get
// still returns the last known values but with Stale set.
const DefaultTTL = 15 * time.Second

type entry struct {
	snapshot  ports.LiveStatusSnapshot
	expiresAt time.Time
}

// Cache is the authoritative, in-process live status store. It owns
// staleness: a mirror (Redis) is best-effort and never consulted for the
// fresh/stale decision.
type Cache struct {
	ttl    time.Duration
	mu     sync.RWMutex
	data   map[string]entry
	mirror ports.Cache // optional, nil when Redis is not configured
	log    *zap.Logger
	stopCh chan struct{}
}

// New creates a live status cache with periodic cleanup of stale entries.
// mirror may be nil.
func New(ttl time.Duration, mirror ports.Cache, log *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		ttl:    ttl,
		data:   make(map[string]entry),
		mirror: mirror,
		log:    log,
		stopCh: make(chan struct{}),
	}
	go c.cleanupLoop(ttl)
	return c
}

func (c *Cache) Set(chargePointID string, snapshot ports.LiveStatusSnapshot) {
	c.mu.Lock()
	c.data[chargePointID] = entry{snapshot: snapshot, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()

	if c.mirror != nil {
		if data, err := json.Marshal(snapshot); err == nil {
			if err := c.mirror.Set(context.Background(), mirrorKey(chargePointID), data, c.ttl*4); err != nil {
				c.log.Debug("live status mirror write failed", zap.String("charge_point_id", chargePointID), zap.Error(err))
			}
		}
	}
}

func (c *Cache) Get(chargePointID string) (ports.LiveStatusSnapshot, bool) {
	c.mu.RLock()
	e, ok := c.data[chargePointID]
	c.mu.RUnlock()
	if !ok {
		return ports.LiveStatusSnapshot{}, false
	}
	snap := e.snapshot
	snap.Stale = time.Now().After(e.expiresAt)
	return snap, true
}

func (c *Cache) Clear(chargePointID string) {
	c.mu.Lock()
	delete(c.data, chargePointID)
	c.mu.Unlock()

	if c.mirror != nil {
		_ = c.mirror.Delete(context.Background(), mirrorKey(chargePointID))
	}
}

func (c *Cache) Close() {
	close(c.stopCh)
}

func (c *Cache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stopCh:
			return
		}
	}
}

func (c *Cache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for id, e := range c.data {
		// Entries older than 4x TTL with no refresh are dropped outright;
		// between TTL and 4x TTL they remain queryable but marked stale.
		if now.After(e.expiresAt.Add(3 * c.ttl)) {
			delete(c.data, id)
		}
	}
}

func mirrorKey(chargePointID string) string {
	return "livestatus:" + chargePointID
}

var _ ports.LiveStatusCache = (*Cache)(nil)
