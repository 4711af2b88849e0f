package nvr

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type Snapshot struct {
	Channel    int
	Image      []byte
	CapturedAt time.Time
}

// SnapshotCache keeps the latest image per channel for a limited time.
type SnapshotCache struct {
	cache *lru.Cache[int, Snapshot]
	ttl   time.Duration
}

func NewSnapshotCache(maxChannels int, ttl time.Duration) *SnapshotCache {
	if maxChannels <= 0 {
		maxChannels = 64
	}
	c, _ := lru.New[int, Snapshot](maxChannels)
	return &SnapshotCache{cache: c, ttl: ttl}
}

func (c *SnapshotCache) Put(channel int, image []byte) Snapshot {
	s := Snapshot{Channel: channel, Image: image, CapturedAt: time.Now()}
	c.cache.Add(channel, s)
	return s
}

// Get returns a snapshot that is still fresh. Expired entries are evicted.
func (c *SnapshotCache) Get(channel int) (Snapshot, bool) {
	s, ok := c.cache.Get(channel)
	if !ok {
		return Snapshot{}, false
	}
	if c.ttl > 0 && time.Since(s.CapturedAt) >= c.ttl {
		c.cache.Remove(channel)
		return Snapshot{}, false
	}
	return s, true
}

func (c *SnapshotCache) Len() int { return c.cache.Len() }
