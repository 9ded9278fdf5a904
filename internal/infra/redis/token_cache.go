package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andrzw/marketsync/internal/core/domain"
)

const tokenKey = "marketsync:marketplace_token"

// TokenCache shares the marketplace token between the service and the CLI so
// a restart does not burn a fresh auth round trip.
type TokenCache struct {
	rdb *redis.Client
}

// NewTokenCache creates a Redis-backed token cache.
func NewTokenCache(client *Client) *TokenCache {
	return &TokenCache{rdb: client.rdb}
}

// Load returns the cached token, if any.
func (c *TokenCache) Load(ctx context.Context) (domain.TokenRecord, bool, error) {
	data, err := c.rdb.Get(ctx, tokenKey).Bytes()
	if err == redis.Nil {
		return domain.TokenRecord{}, false, nil
	}
	if err != nil {
		return domain.TokenRecord{}, false, fmt.Errorf("failed to load token: %w", err)
	}

	var tok domain.TokenRecord
	if err := json.Unmarshal(data, &tok); err != nil {
		return domain.TokenRecord{}, false, fmt.Errorf("failed to decode cached token: %w", err)
	}
	return tok, true, nil
}

// Store caches a token until its expiry.
func (c *TokenCache) Store(ctx context.Context, tok domain.TokenRecord) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	ttl := time.Until(tok.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	return c.rdb.Set(ctx, tokenKey, data, ttl).Err()
}
