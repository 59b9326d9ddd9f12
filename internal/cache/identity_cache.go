package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/CryptoCapi/Mexora-sub001/internal/models"
)

const IdentityTTL = 2 * time.Minute

// UserSource is where identities come from on a cache miss.
type UserSource interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// IdentityResolver is a read-through identity cache. It satisfies the roster
// synchronizer's resolver contract.
type IdentityResolver struct {
	redis  *RedisCache
	source UserSource
}

func NewIdentityResolver(redis *RedisCache, source UserSource) *IdentityResolver {
	return &IdentityResolver{redis: redis, source: source}
}

func identityKey(userID string) string {
	return fmt.Sprintf("identity:%s", userID)
}

// Resolve returns the cached identity when present, otherwise falls through
// to the source and caches the result. Cache failures are treated as misses.
func (r *IdentityResolver) Resolve(ctx context.Context, userID string) (*models.User, error) {
	if r.redis != nil {
		if data, err := r.redis.Get(identityKey(userID)); err == nil && data != nil {
			var u models.User
			if err := msgpack.Unmarshal(data, &u); err == nil {
				return &u, nil
			}
		}
	}

	u, err := r.source.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if r.redis != nil {
		if data, err := msgpack.Marshal(u); err == nil {
			_ = r.redis.Set(identityKey(userID), data, IdentityTTL)
		}
	}
	return u, nil
}

// Invalidate drops a cached identity, e.g. after a profile update.
func (r *IdentityResolver) Invalidate(userID string) {
	if r.redis == nil {
		return
	}
	_ = r.redis.Delete(identityKey(userID))
}
