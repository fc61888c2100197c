package caching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"tenantcrm/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "tenantcrm"

// GrantTTL bounds how stale a cached role grant set can be if an
// invalidation is lost.
const GrantTTL = 5 * time.Minute

// NewRedisClient accepts either host:port or a redis:// URL.
func NewRedisClient(addr, password string, db int) *redis.Client {
	parsedAddr := addr
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		parsedAddr = strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://")
	}
	return redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})
}

// GrantCache caches role grant rows. Entitlement is never cached.
type GrantCache interface {
	Get(ctx context.Context, tenantID, roleID uuid.UUID) ([]models.RoleGrant, bool, error)
	Set(ctx context.Context, tenantID, roleID uuid.UUID, grants []models.RoleGrant) error
	Invalidate(ctx context.Context, tenantID, roleID uuid.UUID) error
}

func GrantKey(tenantID, roleID uuid.UUID) string {
	return fmt.Sprintf("%s:grants:%s:%s", keyPrefix, tenantID, roleID)
}

type redisGrantCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisGrantCache(client redis.Cmdable) GrantCache {
	return &redisGrantCache{client: client, ttl: GrantTTL}
}

func (c *redisGrantCache) Get(ctx context.Context, tenantID, roleID uuid.UUID) ([]models.RoleGrant, bool, error) {
	data, err := c.client.Get(ctx, GrantKey(tenantID, roleID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var grants []models.RoleGrant
	if err := json.Unmarshal(data, &grants); err != nil {
		return nil, false, err
	}
	return grants, true, nil
}

func (c *redisGrantCache) Set(ctx context.Context, tenantID, roleID uuid.UUID, grants []models.RoleGrant) error {
	if grants == nil {
		grants = []models.RoleGrant{}
	}
	data, err := json.Marshal(grants)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, GrantKey(tenantID, roleID), data, c.ttl).Err()
}

func (c *redisGrantCache) Invalidate(ctx context.Context, tenantID, roleID uuid.UUID) error {
	return c.client.Del(ctx, GrantKey(tenantID, roleID)).Err()
}

// NoopGrantCache always misses.
type NoopGrantCache struct{}

func (NoopGrantCache) Get(context.Context, uuid.UUID, uuid.UUID) ([]models.RoleGrant, bool, error) {
	return nil, false, nil
}
func (NoopGrantCache) Set(context.Context, uuid.UUID, uuid.UUID, []models.RoleGrant) error { return nil }
func (NoopGrantCache) Invalidate(context.Context, uuid.UUID, uuid.UUID) error             { return nil }
