package user

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fleet-workflow/internal/common/logger"
	"fleet-workflow/internal/common/metrics"
	"fleet-workflow/internal/permission"

	"github.com/redis/go-redis/v9"
)

// cachedUser is the Redis representation. The password hash never leaves the store.
type cachedUser struct {
	ID          int64  `json:"id"`
	Login       string `json:"login"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Role        string `json:"role"`
	AccessRight int64  `json:"accessRight"`
}

// CachedDirectory reads users through a Redis cache. Cache failures fall back to the store.
type CachedDirectory struct {
	store  Directory
	redis  *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedDirectory(store Directory, rdb *redis.Client, ttl time.Duration, log logger.Logger) *CachedDirectory {
	return &CachedDirectory{
		store:  store,
		redis:  rdb,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "user-directory"}),
	}
}

func cacheKey(id int64) string {
	return fmt.Sprintf("user:%d", id)
}

func (d *CachedDirectory) GetByID(ctx context.Context, id int64) (*User, error) {
	if d.redis != nil {
		if u, ok := d.fromCache(ctx, id); ok {
			metrics.UserCacheLookups.WithLabelValues("hit").Inc()
			return u, nil
		}
		metrics.UserCacheLookups.WithLabelValues("miss").Inc()
	}

	u, err := d.store.GetByID(ctx, id)
	if err != nil || u == nil {
		return u, err
	}

	if d.redis != nil {
		d.toCache(ctx, u)
	}
	return u, nil
}

// Invalidate drops the cached copy of a user after a write.
func (d *CachedDirectory) Invalidate(ctx context.Context, id int64) error {
	if d.redis == nil {
		return nil
	}
	return d.redis.Del(ctx, cacheKey(id)).Err()
}

func (d *CachedDirectory) fromCache(ctx context.Context, id int64) (*User, bool) {
	val, err := d.redis.Get(ctx, cacheKey(id)).Result()
	if err != nil {
		if err != redis.Nil {
			d.logger.Warn("user cache read failed", map[string]interface{}{"userId": id, "error": err.Error()})
		}
		return nil, false
	}

	var c cachedUser
	if err := json.Unmarshal([]byte(val), &c); err != nil {
		d.logger.Warn("discarding malformed cache entry", map[string]interface{}{"userId": id, "error": err.Error()})
		return nil, false
	}
	return &User{
		ID:        c.ID,
		Login:     c.Login,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Role:      permission.Role(c.Role),
		Rights:    permission.Decode(c.AccessRight),
	}, true
}

func (d *CachedDirectory) toCache(ctx context.Context, u *User) {
	data, err := json.Marshal(cachedUser{
		ID:          u.ID,
		Login:       u.Login,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Role:        string(u.Role),
		AccessRight: permission.Encode(u.Rights),
	})
	if err != nil {
		return
	}
	if err := d.redis.Set(ctx, cacheKey(u.ID), data, d.ttl).Err(); err != nil {
		d.logger.Warn("user cache write failed", map[string]interface{}{"userId": u.ID, "error": err.Error()})
	}
}
