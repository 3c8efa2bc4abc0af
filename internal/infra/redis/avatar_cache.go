package redis

import (
	"context"
	"strings"
	"time"

	"ambient-quiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// AvatarCache stores fetched avatars as HSET avatar:{username} data {bytes} content_type {type}.
type AvatarCache struct {
	client *redis.Client
}

func NewAvatarCache(client *redis.Client) *AvatarCache {
	return &AvatarCache{client: client}
}

func (c *AvatarCache) GetAvatar(ctx context.Context, username string) (domain.Avatar, bool, error) {
	fields, err := c.client.HGetAll(ctx, c.key(username)).Result()
	if err != nil {
		return domain.Avatar{}, false, err
	}
	data, ok := fields["data"]
	if !ok || data == "" {
		return domain.Avatar{}, false, nil
	}
	return domain.Avatar{Data: []byte(data), ContentType: fields["content_type"]}, true, nil
}

func (c *AvatarCache) SetAvatar(ctx context.Context, username string, avatar domain.Avatar, ttl time.Duration) error {
	key := c.key(username)
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key, "data", avatar.Data, "content_type", avatar.ContentType)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (c *AvatarCache) key(username string) string {
	return "avatar:" + strings.ToLower(username)
}
