package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fortuna/gridiron/internal/pbp"
)

const (
	documentPrefix  = "pfr:doc:"
	teamNamesPrefix = "pfr:teams:"
)

// RedisCache holds fetched pages and season team directories
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new Redis cache connection
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisCache{
		client: client,
	}, nil
}

// Close closes the Redis connection
func (rc *RedisCache) Close() error {
	return rc.client.Close()
}

// Client returns the underlying Redis client
func (rc *RedisCache) Client() *redis.Client {
	return rc.client
}

// HealthCheck pings Redis to verify connection
func (rc *RedisCache) HealthCheck(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

// GetDocument returns a cached page. A miss is not an error.
func (rc *RedisCache) GetDocument(ctx context.Context, key string) (string, bool, error) {
	body, err := rc.client.Get(ctx, documentPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return body, true, nil
}

// SetDocument stores a page with TTL
func (rc *RedisCache) SetDocument(ctx context.Context, key, body string, ttl time.Duration) error {
	return rc.client.Set(ctx, documentPrefix+key, body, ttl).Err()
}

// LoadTeamNames reads a persisted season directory.
func (rc *RedisCache) LoadTeamNames(ctx context.Context, season int) (pbp.TeamDirectory, bool, error) {
	raw, err := rc.client.Get(ctx, teamNamesKey(season)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var directory pbp.TeamDirectory
	if err := json.Unmarshal(raw, &directory); err != nil {
		return nil, false, fmt.Errorf("failed to decode team names for %d: %w", season, err)
	}
	return directory, true, nil
}

// StoreTeamNames persists a season directory. Past seasons do not change, so
// there is no expiry.
func (rc *RedisCache) StoreTeamNames(ctx context.Context, season int, directory pbp.TeamDirectory) error {
	raw, err := json.Marshal(directory)
	if err != nil {
		return err
	}
	return rc.client.Set(ctx, teamNamesKey(season), raw, 0).Err()
}

// Delete removes cached pages
func (rc *RedisCache) Delete(ctx context.Context, keys ...string) error {
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = documentPrefix + k
	}
	return rc.client.Del(ctx, prefixed...).Err()
}

func teamNamesKey(season int) string {
	return teamNamesPrefix + strconv.Itoa(season)
}
