package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"ambient-quiz-service/internal/domain"
)

// AvatarCache keeps fetched avatars in process memory until they expire.
type AvatarCache struct {
	clock func() time.Time

	mu      sync.Mutex
	entries map[string]cachedAvatar
}

type cachedAvatar struct {
	avatar    domain.Avatar
	expiresAt time.Time
}

func NewAvatarCache() *AvatarCache {
	return &AvatarCache{clock: time.Now, entries: make(map[string]cachedAvatar)}
}

func (c *AvatarCache) GetAvatar(_ context.Context, username string) (domain.Avatar, bool, error) {
	key := strings.ToLower(username)

	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return domain.Avatar{}, false, nil
	}
	if !entry.expiresAt.After(c.clock()) {
		delete(c.entries, key)
		return domain.Avatar{}, false, nil
	}
	return entry.avatar, true, nil
}

func (c *AvatarCache) SetAvatar(_ context.Context, username string, avatar domain.Avatar, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[strings.ToLower(username)] = cachedAvatar{avatar: avatar, expiresAt: c.clock().Add(ttl)}
	return nil
}
