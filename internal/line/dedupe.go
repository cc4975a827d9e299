package line

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultDedupeTTL = 24 * time.Hour

// Deduper remembers webhook event ids so redelivered events are skipped.
type Deduper struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewDeduper builds a Redis-backed deduper. A nil client disables dedupe.
func NewDeduper(client *redis.Client, ttl time.Duration) *Deduper {
	if ttl <= 0 {
		ttl = defaultDedupeTTL
	}
	return &Deduper{client: client, ttl: ttl, prefix: "rehab:line:event:"}
}

// Claim returns true the first time eventID is seen. Empty ids always claim.
// Errors leave the caller to decide; link consumption stays atomic either way.
func (d *Deduper) Claim(ctx context.Context, eventID string) (bool, error) {
	if d == nil || d.client == nil || eventID == "" {
		return true, nil
	}
	ok, err := d.client.SetNX(ctx, d.prefix+eventID, 1, d.ttl).Result()
	if err != nil {
		return true, err
	}
	return ok, nil
}

// Release forgets eventID so a redelivery is processed again.
func (d *Deduper) Release(ctx context.Context, eventID string) error {
	if d == nil || d.client == nil || eventID == "" {
		return nil
	}
	return d.client.Del(ctx, d.prefix+eventID).Err()
}
