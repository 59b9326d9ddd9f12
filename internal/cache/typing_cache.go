package cache

import (
	"fmt"
	"strings"
	"time"
)

// TypingCache mirrors live typing state to Redis with a TTL, so instances
// other than the one holding the debounce timer can read it. The mirror is
// advisory: writes are best-effort and readers tolerate staleness up to the
// TTL.
type TypingCache struct {
	redis *RedisCache
}

func NewTypingCache(redis *RedisCache) *TypingCache {
	return &TypingCache{redis: redis}
}

func typingKey(chatID, userID string) string {
	return fmt.Sprintf("typing:%s:%s", chatID, userID)
}

// SetTyping marks the user as typing for ttl.
func (tc *TypingCache) SetTyping(chatID, userID string, ttl time.Duration) error {
	if tc == nil || tc.redis == nil {
		return nil
	}
	return tc.redis.Set(typingKey(chatID, userID), []byte("1"), ttl)
}

// ClearTyping drops the typing mark immediately, e.g. on send.
func (tc *TypingCache) ClearTyping(chatID, userID string) error {
	if tc == nil || tc.redis == nil {
		return nil
	}
	return tc.redis.Delete(typingKey(chatID, userID))
}

// TypingUsers lists users currently marked typing in a chat.
func (tc *TypingCache) TypingUsers(chatID string) ([]string, error) {
	if tc == nil || tc.redis == nil {
		return nil, nil
	}
	keys, err := tc.redis.Keys(fmt.Sprintf("typing:%s:*", chatID))
	if err != nil {
		return nil, err
	}
	prefix := fmt.Sprintf("typing:%s:", chatID)
	users := make([]string, 0, len(keys))
	for _, k := range keys {
		users = append(users, strings.TrimPrefix(k, prefix))
	}
	return users, nil
}
