package dedupe

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Store keeps the durable set of listing slugs that have already been
// classified. Entries never expire: once marked, a slug is never classified
// again, trading storage growth for correctness in a low-volume domain.
type Store struct {
	client *redis.Client
	key    string
}

// New connects to Redis and binds the store to the given set key.
func New(addr, key string) *Store {
	client := redis.NewClient(&redis.Options{Addr: addr})
	return &Store{client: client, key: key}
}

// NewWithClient binds the store to an existing client, mainly for tests.
func NewWithClient(client *redis.Client, key string) *Store {
	return &Store{client: client, key: key}
}

// IsProcessed reports whether the slug has already been classified.
func (s *Store) IsProcessed(ctx context.Context, slug string) (bool, error) {
	member, err := s.client.SIsMember(ctx, s.key, slug).Result()
	if err != nil {
		return false, fmt.Errorf("check processed set: %w", err)
	}
	return member, nil
}

// MarkProcessed records that the slug has been classified, regardless of the
// verdict. Marking an already-marked slug is a no-op.
func (s *Store) MarkProcessed(ctx context.Context, slug string) error {
	if err := s.client.SAdd(ctx, s.key, slug).Err(); err != nil {
		return fmt.Errorf("add to processed set: %w", err)
	}
	return nil
}

// Ping verifies Redis connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}
