package cache

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoInviteBackend is returned when invites are used without Redis.
var ErrNoInviteBackend = errors.New("invite links require redis")

// InviteCache maps invite tokens to their group chat for the token's
// lifetime. Unlike the other caches this one is authoritative while the
// token lives, so a missing Redis disables the feature instead of degrading.
type InviteCache struct {
	redis *RedisCache
}

func NewInviteCache(redis *RedisCache) *InviteCache {
	return &InviteCache{redis: redis}
}

func inviteKey(token string) string {
	return fmt.Sprintf("invite:%s", token)
}

// Put registers a token for chatID until ttl elapses.
func (ic *InviteCache) Put(token, chatID string, ttl time.Duration) error {
	if ic == nil || ic.redis == nil {
		return ErrNoInviteBackend
	}
	return ic.redis.Set(inviteKey(token), []byte(chatID), ttl)
}

// Lookup resolves a token to its chat. A miss returns ok=false.
func (ic *InviteCache) Lookup(token string) (string, bool, error) {
	if ic == nil || ic.redis == nil {
		return "", false, ErrNoInviteBackend
	}
	data, err := ic.redis.Get(inviteKey(token))
	if err != nil {
		return "", false, err
	}
	if data == nil {
		return "", false, nil
	}
	return string(data), true, nil
}

// Revoke drops a token before its natural expiry.
func (ic *InviteCache) Revoke(token string) error {
	if ic == nil || ic.redis == nil {
		return ErrNoInviteBackend
	}
	return ic.redis.Delete(inviteKey(token))
}
