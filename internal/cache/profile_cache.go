package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"careerhub/internal/model"
)

type ProfileCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewProfileCache(client *redisv9.Client, ttl time.Duration) *ProfileCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ProfileCache{
		client: client,
		ttl:    ttl,
	}
}

// Get returns the cached profile and whether it was present.
func (c *ProfileCache) Get(ctx context.Context, userID uint) (*model.User, bool, error) {
	raw, err := c.client.Get(ctx, c.key(userID)).Bytes()
	if err == redisv9.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get profile failed: %w", err)
	}

	var user model.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached profile failed: %w", err)
	}
	return &user, true, nil
}

func (c *ProfileCache) Set(ctx context.Context, user *model.User) error {
	payload, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal profile cache failed: %w", err)
	}
	if err := c.client.Set(ctx, c.key(user.ID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set profile failed: %w", err)
	}
	return nil
}

func (c *ProfileCache) Delete(ctx context.Context, userID uint) error {
	if err := c.client.Del(ctx, c.key(userID)).Err(); err != nil {
		return fmt.Errorf("redis delete profile failed: %w", err)
	}
	return nil
}

func (c *ProfileCache) key(userID uint) string {
	return fmt.Sprintf("user:profile:%d", userID)
}
