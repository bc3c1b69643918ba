package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MemoryRevoker keeps revoked token ids in process memory until they expire.
type MemoryRevoker struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

// RedisRevoker stores revoked token ids in Redis with the remaining token lifetime as TTL, so every server
// instance sharing the Redis sees the sign out.
type RedisRevoker struct {
	client *redis.Client
	prefix string
}

// NewMemoryRevoker creates an empty MemoryRevoker.
func NewMemoryRevoker() *MemoryRevoker {
	return &MemoryRevoker{
		revoked: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Revoke marks tokenID as revoked for ttl.
func (m *MemoryRevoker) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for id, until := range m.revoked {
		if !until.After(now) {
			delete(m.revoked, id)
		}
	}
	if ttl > 0 {
		m.revoked[tokenID] = now.Add(ttl)
	}
	return nil
}

// Revoked reports whether tokenID was revoked and has not expired yet.
func (m *MemoryRevoker) Revoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	until, ok := m.revoked[tokenID]
	return ok && until.After(m.now()), nil
}

// NewRedisRevoker connects to the Redis server at addr and checks the connection.
func NewRedisRevoker(ctx context.Context, addr, password string, db int) (RedisRevoker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return RedisRevoker{}, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return RedisRevoker{client: client, prefix: "supportchat:revoked:"}, nil
}

// Revoke marks tokenID as revoked for ttl.
func (r RedisRevoker) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, r.prefix+tokenID, 1, ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// Revoked reports whether tokenID was revoked and has not expired yet.
func (r RedisRevoker) Revoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, r.prefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token: %w", err)
	}
	return n > 0, nil
}

// Close closes the Redis client.
func (r RedisRevoker) Close() error {
	return r.client.Close()
}
