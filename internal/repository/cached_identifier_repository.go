package repository

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/rpattn/recordkeep/internal/domain"

	"github.com/redis/go-redis/v9"
)

const identifierCachePrefix = "recordkeep:identifier:"

// CachedIdentifierRepository serves identifier lookups from Redis before
// falling back to the wrapped repository. Cache failures degrade to the
// backing store and are only logged.
type CachedIdentifierRepository struct {
	base   IdentifierRepository
	client redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedIdentifierRepository wraps base with a Redis read-through cache.
func NewCachedIdentifierRepository(base IdentifierRepository, client redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *CachedIdentifierRepository {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedIdentifierRepository{
		base:   base,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func (r *CachedIdentifierRepository) Create(ctx context.Context, identifier domain.Identifier) (domain.Identifier, error) {
	created, err := r.base.Create(ctx, identifier)
	if err != nil {
		return domain.Identifier{}, err
	}
	r.store(ctx, created)
	return created, nil
}

func (r *CachedIdentifierRepository) GetByKey(ctx context.Context, key string) (domain.Identifier, error) {
	if cached, ok := r.load(ctx, key); ok {
		return cached, nil
	}

	identifier, err := r.base.GetByKey(ctx, key)
	if err != nil {
		return domain.Identifier{}, err
	}
	r.store(ctx, identifier)
	return identifier, nil
}

func (r *CachedIdentifierRepository) GetByKeys(ctx context.Context, keys []string) ([]domain.Identifier, error) {
	if len(keys) == 0 {
		return []domain.Identifier{}, nil
	}

	found := make([]domain.Identifier, 0, len(keys))
	var misses []string
	for _, key := range keys {
		if cached, ok := r.load(ctx, key); ok {
			found = append(found, cached)
			continue
		}
		misses = append(misses, key)
	}
	if len(misses) == 0 {
		return found, nil
	}

	loaded, err := r.base.GetByKeys(ctx, misses)
	if err != nil {
		return nil, err
	}
	for _, identifier := range loaded {
		r.store(ctx, identifier)
	}
	return append(found, loaded...), nil
}

func (r *CachedIdentifierRepository) List(ctx context.Context, limit int, offset int) ([]domain.Identifier, error) {
	return r.base.List(ctx, limit, offset)
}

func (r *CachedIdentifierRepository) Delete(ctx context.Context, key string) error {
	if err := r.base.Delete(ctx, key); err != nil {
		return err
	}
	if err := r.client.Del(ctx, identifierCachePrefix+key).Err(); err != nil {
		r.logger.Warn("failed to evict cached identifier", "key", key, "error", err)
	}
	return nil
}

func (r *CachedIdentifierRepository) load(ctx context.Context, key string) (domain.Identifier, bool) {
	payload, err := r.client.Get(ctx, identifierCachePrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("identifier cache read failed", "key", key, "error", err)
		}
		return domain.Identifier{}, false
	}

	var identifier domain.Identifier
	if err := json.Unmarshal(payload, &identifier); err != nil {
		r.logger.Warn("identifier cache entry corrupt", "key", key, "error", err)
		return domain.Identifier{}, false
	}
	return identifier, true
}

func (r *CachedIdentifierRepository) store(ctx context.Context, identifier domain.Identifier) {
	payload, err := json.Marshal(identifier)
	if err != nil {
		r.logger.Warn("failed to encode identifier for cache", "key", identifier.Key, "error", err)
		return
	}
	if err := r.client.Set(ctx, identifierCachePrefix+identifier.Key, payload, r.ttl).Err(); err != nil {
		r.logger.Warn("identifier cache write failed", "key", identifier.Key, "error", err)
	}
}

var _ IdentifierRepository = (*CachedIdentifierRepository)(nil)
