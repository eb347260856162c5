package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rpattn/recordkeep/internal/domain"

	"github.com/redis/go-redis/v9"
)

// unreachableRedis points at a port nothing listens on, so every command fails fast.
func unreachableRedis(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestCachedIdentifierRepositoryFallsBackWhenRedisIsDown(t *testing.T) {
	base := &memoryIdentifierRepo{byKey: map[string]domain.Identifier{}}
	cached := NewCachedIdentifierRepository(base, unreachableRedis(t), time.Minute, nil)
	ctx := context.Background()

	created, err := cached.Create(ctx, domain.NewIdentifier("batch"))
	if err != nil {
		t.Fatalf("create should ignore cache failures: %v", err)
	}

	got, err := cached.GetByKey(ctx, "batch")
	if err != nil {
		t.Fatalf("get should fall back to base: %v", err)
	}
	if got.ID != created.ID {
		t.Fatalf("expected %s, got %s", created.ID, got.ID)
	}

	found, err := cached.GetByKeys(ctx, []string{"batch", "other"})
	if err != nil {
		t.Fatalf("batch get should fall back to base: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("expected 1 identifier, got %d", len(found))
	}

	if err := cached.Delete(ctx, "batch"); err != nil {
		t.Fatalf("delete should ignore eviction failures: %v", err)
	}
	if _, err := cached.GetByKey(ctx, "batch"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestCachedIdentifierRepositoryPropagatesBaseErrors(t *testing.T) {
	base := &memoryIdentifierRepo{byKey: map[string]domain.Identifier{}, err: errors.New("db down")}
	cached := NewCachedIdentifierRepository(base, unreachableRedis(t), 0, nil)

	if _, err := cached.GetByKeys(context.Background(), []string{"a"}); err == nil {
		t.Fatalf("expected base error")
	}
	if cached.ttl != 10*time.Minute {
		t.Fatalf("expected default ttl, got %s", cached.ttl)
	}
}

func TestNormalizePage(t *testing.T) {
	limit, offset := normalizePage(0, -5)
	if limit != defaultListLimit || offset != 0 {
		t.Fatalf("unexpected page %d/%d", limit, offset)
	}
	limit, offset = normalizePage(10, 20)
	if limit != 10 || offset != 20 {
		t.Fatalf("unexpected page %d/%d", limit, offset)
	}
}

type memoryIdentifierRepo struct {
	byKey map[string]domain.Identifier
	err   error
}

func (m *memoryIdentifierRepo) Create(ctx context.Context, identifier domain.Identifier) (domain.Identifier, error) {
	if _, ok := m.byKey[identifier.Key]; ok {
		return domain.Identifier{}, ErrConflict
	}
	m.byKey[identifier.Key] = identifier
	return identifier, nil
}

func (m *memoryIdentifierRepo) GetByKey(ctx context.Context, key string) (domain.Identifier, error) {
	identifier, ok := m.byKey[key]
	if !ok {
		return domain.Identifier{}, ErrNotFound
	}
	return identifier, nil
}

func (m *memoryIdentifierRepo) GetByKeys(ctx context.Context, keys []string) ([]domain.Identifier, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.Identifier
	for _, key := range keys {
		if identifier, ok := m.byKey[key]; ok {
			out = append(out, identifier)
		}
	}
	return out, nil
}

func (m *memoryIdentifierRepo) List(ctx context.Context, limit int, offset int) ([]domain.Identifier, error) {
	return nil, errors.New("not implemented")
}

func (m *memoryIdentifierRepo) Delete(ctx context.Context, key string) error {
	if _, ok := m.byKey[key]; !ok {
		return ErrNotFound
	}
	delete(m.byKey, key)
	return nil
}

var _ IdentifierRepository = (*memoryIdentifierRepo)(nil)
