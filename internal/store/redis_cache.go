package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/refhound/refhound/internal/referral"
)

// RedisCacheRepository wraps a Repository with redis caching for by-ID reads.
// Writes go through to the store first; cache entries follow on success
// (write-through) and are dropped on update, delete and invalidate.
type RedisCacheRepository struct {
	store  referral.Repository
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCacheRepository creates a redis-cached repository decorator.
func NewRedisCacheRepository(
	store referral.Repository, client *redis.Client, ttl time.Duration,
) *RedisCacheRepository {
	return &RedisCacheRepository{
		store:  store,
		client: client,
		prefix: "record:",
		ttl:    ttl,
	}
}

func (r *RedisCacheRepository) Insert(ctx context.Context, record *referral.Record) error {
	if err := r.store.Insert(ctx, record); err != nil {
		return err
	}

	r.cacheRecord(ctx, record)

	return nil
}

// FindDuplicate is never cached: the dedup pre-check must see the store.
func (r *RedisCacheRepository) FindDuplicate(ctx context.Context, brand, code, link string) (*referral.Record, error) {
	return r.store.FindDuplicate(ctx, brand, code, link)
}

func (r *RedisCacheRepository) Get(ctx context.Context, id string) (*referral.Record, error) {
	if record, err := r.getFromCache(ctx, id); err == nil {
		return record, nil
	}

	record, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cacheRecord(ctx, record)

	return record, nil
}

func (r *RedisCacheRepository) List(ctx context.Context, filter referral.Filter) ([]*referral.Record, error) {
	return r.store.List(ctx, filter)
}

func (r *RedisCacheRepository) Update(ctx context.Context, record *referral.Record) error {
	if err := r.store.Update(ctx, record); err != nil {
		return err
	}

	r.dropCached(ctx, record.ID)

	return nil
}

func (r *RedisCacheRepository) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, id); err != nil {
		return err
	}

	r.dropCached(ctx, id)

	return nil
}

func (r *RedisCacheRepository) ListExpired(ctx context.Context, asOf time.Time) ([]*referral.Record, error) {
	return r.store.ListExpired(ctx, asOf)
}

func (r *RedisCacheRepository) Invalidate(ctx context.Context, id string, at time.Time) error {
	if err := r.store.Invalidate(ctx, id, at); err != nil {
		return err
	}

	r.dropCached(ctx, id)

	return nil
}

func (r *RedisCacheRepository) getFromCache(ctx context.Context, id string) (*referral.Record, error) {
	payload, err := r.client.Get(ctx, r.prefix+id).Bytes()
	if err != nil {
		return nil, err
	}

	var record referral.Record
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, err
	}

	return &record, nil
}

func (r *RedisCacheRepository) cacheRecord(ctx context.Context, record *referral.Record) {
	payload, err := json.Marshal(record)
	if err != nil {
		return
	}

	_ = r.client.Set(ctx, r.prefix+record.ID, payload, r.ttl).Err()
}

func (r *RedisCacheRepository) dropCached(ctx context.Context, id string) {
	_ = r.client.Del(ctx, r.prefix+id).Err()
}

// Compile-time check.
var _ referral.Repository = (*RedisCacheRepository)(nil)
