package redis

// Package redis provides Redis-based adapters for console-auth.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domainauth "github.com/target/console-auth/internal/domain/auth"
	"github.com/target/console-auth/internal/ports"
)

// ProfileCache is a Redis-backed profile cache keyed by subject id.
// Only the profile (roles and recent organization) is stored, never tokens.
type ProfileCache struct {
	client redis.UniversalClient
	prefix string
}

var _ ports.ProfileCache = (*ProfileCache)(nil)

// DefaultProfilePrefix namespaces profile keys.
const DefaultProfilePrefix = "console-auth:profile:"

// NewProfileCache creates a new Redis-based profile cache.
func NewProfileCache(client redis.UniversalClient) *ProfileCache {
	return NewProfileCacheWithPrefix(client, DefaultProfilePrefix)
}

// NewProfileCacheWithPrefix creates a Redis profile cache with a custom key prefix.
func NewProfileCacheWithPrefix(client redis.UniversalClient, prefix string) *ProfileCache {
	return &ProfileCache{
		client: client,
		prefix: prefix,
	}
}

func (c *ProfileCache) Set(ctx context.Context, subjectID string, p domainauth.Profile, ttl time.Duration) error {
	if subjectID == "" {
		return errors.New("subject id cannot be empty")
	}
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	return c.client.Set(ctx, c.prefix+subjectID, data, ttl).Err()
}

func (c *ProfileCache) Get(ctx context.Context, subjectID string) (domainauth.Profile, error) {
	if subjectID == "" {
		return domainauth.Profile{}, ErrNotFound
	}

	data, err := c.client.Get(ctx, c.prefix+subjectID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domainauth.Profile{}, ErrNotFound
		}
		return domainauth.Profile{}, fmt.Errorf("redis get: %w", err)
	}

	var p domainauth.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		// Corrupt entry; drop it so the next load refetches.
		if delErr := c.Delete(ctx, subjectID); delErr != nil {
			return domainauth.Profile{}, fmt.Errorf("cleanup corrupt profile: %w", delErr)
		}
		return domainauth.Profile{}, ErrNotFound
	}
	return p, nil
}

func (c *ProfileCache) Delete(ctx context.Context, subjectID string) error {
	if subjectID == "" {
		return nil
	}
	return c.client.Del(ctx, c.prefix+subjectID).Err()
}

// Purge removes every cached profile under the prefix and returns the count removed.
func (c *ProfileCache) Purge(ctx context.Context) (int, error) {
	var removed int
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return removed, fmt.Errorf("redis del: %w", err)
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("redis scan: %w", err)
	}
	return removed, nil
}

// ErrNotFound is returned when no profile is cached.
type notFoundError struct{}

func (notFoundError) Error() string { return "profile not cached" }

var ErrNotFound error = notFoundError{}
