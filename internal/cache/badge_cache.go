package cache

import (
	"fmt"
	"strconv"
	"time"
)

const UnreadBadgeTTL = 1 * time.Minute

// BadgeCache caches per-viewer unread counts so the roster endpoint does not
// hit the store for every poll.
type BadgeCache struct {
	redis *RedisCache
}

func NewBadgeCache(redis *RedisCache) *BadgeCache {
	return &BadgeCache{redis: redis}
}

func badgeKey(chatID, userID string) string {
	return fmt.Sprintf("unread:%s:%s", chatID, userID)
}

// Get returns the cached badge and whether it was present.
func (bc *BadgeCache) Get(chatID, userID string) (int, bool) {
	if bc == nil || bc.redis == nil {
		return 0, false
	}
	data, err := bc.redis.Get(badgeKey(chatID, userID))
	if err != nil || data == nil {
		return 0, false
	}
	n, err := strconv.Atoi(string(data))
	if err != nil {
		return 0, false
	}
	return n, true
}

// Set stores the badge with a short TTL.
func (bc *BadgeCache) Set(chatID, userID string, count int) error {
	if bc == nil || bc.redis == nil {
		return nil
	}
	return bc.redis.Set(badgeKey(chatID, userID), []byte(strconv.Itoa(count)), UnreadBadgeTTL)
}

// InvalidateChat drops every viewer's badge for a chat, e.g. after a new
// message commits.
func (bc *BadgeCache) InvalidateChat(chatID string) error {
	if bc == nil || bc.redis == nil {
		return nil
	}
	return bc.redis.DeletePattern(fmt.Sprintf("unread:%s:*", chatID))
}
