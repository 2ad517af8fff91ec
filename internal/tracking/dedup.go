package tracking

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DedupCache is the Redis fast path in front of the storage dedup probe.
// A SET NX per first-seen key answers "is this the first qualifying hit"
// atomically across processes; when Redis is unavailable the recorder falls
// back to the count probe against PostgreSQL alone.
type DedupCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDedupCache creates a dedup cache. ttl bounds how long first-seen keys
// are retained; after expiry the PostgreSQL probe is the only guard.
func NewDedupCache(client *redis.Client, ttl time.Duration) *DedupCache {
	if ttl <= 0 {
		ttl = 90 * 24 * time.Hour
	}
	return &DedupCache{client: client, ttl: ttl}
}

// FirstSeen atomically marks key as seen and reports whether this call was
// the first to do so.
func (d *DedupCache) FirstSeen(ctx context.Context, key string) (bool, error) {
	return d.client.SetNX(ctx, key, 1, d.ttl).Result()
}

// OpenKey is the first-seen key for a non-prefetch open.
func OpenKey(campaignID, contactID uuid.UUID) string {
	return fmt.Sprintf("trk:open:%s:%s", campaignID, contactID)
}

// ClickKey is the first-seen key for a click on an exact URL. The URL is
// hashed so arbitrarily long links produce bounded keys.
func ClickKey(campaignID, contactID uuid.UUID, linkURL string) string {
	sum := sha256.Sum256([]byte(linkURL))
	return fmt.Sprintf("trk:click:%s:%s:%s", campaignID, contactID, hex.EncodeToString(sum[:8]))
}
