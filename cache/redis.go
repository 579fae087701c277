package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"memories/models"

	"github.com/redis/go-redis/v9"
)

// RedisStore caches posts as JSON under post:<id>.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, err
	}

	log.Println("Redis connected successfully")
	return client, nil
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// tombstone marks an id deleted until its key expires.
const tombstone = "deleted"

func postKey(id string) string {
	return fmt.Sprintf("post:%s", id)
}

func (s *RedisStore) Get(ctx context.Context, id string) (*models.Post, bool, error) {
	result, err := s.client.Get(ctx, postKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if result == tombstone {
		return nil, false, nil
	}

	var post models.Post
	if err := json.Unmarshal([]byte(result), &post); err != nil {
		return nil, false, err
	}
	post.Normalize()
	return &post, true, nil
}

func (s *RedisStore) Set(ctx context.Context, post *models.Post) error {
	postJSON, err := json.Marshal(post)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, postKey(post.ID.Hex()), postJSON, s.ttl).Err()
}

func (s *RedisStore) Fill(ctx context.Context, post *models.Post) error {
	postJSON, err := json.Marshal(post)
	if err != nil {
		return err
	}
	return s.client.SetNX(ctx, postKey(post.ID.Hex()), postJSON, s.ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Set(ctx, postKey(id), tombstone, s.ttl).Err()
}
