package analytics

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/refhound/refhound/internal/messaging"
)

// Tracker tallies ingest and expiry activity per brand.
type Tracker interface {
	RecordIngested(ctx context.Context, event *RecordIngestedEvent) error
	RecordExpired(ctx context.Context, event *RecordExpiredEvent) error
}

// IngestedHandler adapts a Tracker into a consumer handler for ingest events.
func IngestedHandler(tracker Tracker) messaging.Handler[RecordIngestedEvent] {
	return tracker.RecordIngested
}

// ExpiredHandler adapts a Tracker into a consumer handler for expiry events.
func ExpiredHandler(tracker Tracker) messaging.Handler[RecordExpiredEvent] {
	return tracker.RecordExpired
}

const (
	ingestedByBrandKey = "analytics:ingested_by_brand"
	expiredByBrandKey  = "analytics:expired_by_brand"
	ingestedTotalKey   = "analytics:ingested_total"
	expiredTotalKey    = "analytics:expired_total"
)

// RedisTracker keeps tallies in redis hashes so they survive restarts and
// can be read by external dashboards.
type RedisTracker struct {
	client *redis.Client
}

// NewRedisTracker creates a redis-backed tracker.
func NewRedisTracker(client *redis.Client) *RedisTracker {
	return &RedisTracker{client: client}
}

func (t *RedisTracker) RecordIngested(ctx context.Context, event *RecordIngestedEvent) error {
	pipe := t.client.Pipeline()
	pipe.HIncrBy(ctx, ingestedByBrandKey, event.Brand, 1)
	pipe.Incr(ctx, ingestedTotalKey)

	_, err := pipe.Exec(ctx)

	return err
}

func (t *RedisTracker) RecordExpired(ctx context.Context, event *RecordExpiredEvent) error {
	pipe := t.client.Pipeline()
	pipe.HIncrBy(ctx, expiredByBrandKey, event.Brand, 1)
	pipe.Incr(ctx, expiredTotalKey)

	_, err := pipe.Exec(ctx)

	return err
}

// MemoryTracker is an in-memory Tracker for tests and local runs.
type MemoryTracker struct {
	mu       sync.Mutex
	ingested map[string]int
	expired  map[string]int
}

// NewMemoryTracker creates an in-memory tracker.
func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{
		ingested: make(map[string]int),
		expired:  make(map[string]int),
	}
}

func (t *MemoryTracker) RecordIngested(_ context.Context, event *RecordIngestedEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ingested[event.Brand]++

	return nil
}

func (t *MemoryTracker) RecordExpired(_ context.Context, event *RecordExpiredEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.expired[event.Brand]++

	return nil
}

// IngestedCount returns the ingest tally for a brand.
func (t *MemoryTracker) IngestedCount(brand string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.ingested[brand]
}

// ExpiredCount returns the expiry tally for a brand.
func (t *MemoryTracker) ExpiredCount(brand string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.expired[brand]
}

var (
	_ Tracker = (*RedisTracker)(nil)
	_ Tracker = (*MemoryTracker)(nil)
)
