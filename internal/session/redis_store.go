package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps pager sessions in Redis with a TTL, one JSON value per
// pager message.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, ttl), nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client.
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &RedisStore{
		client: client,
		prefix: "notepager:",
		ttl:    ttl,
	}
}

func (s *RedisStore) key(messageID int64) string {
	return s.prefix + strconv.FormatInt(messageID, 10)
}

func (s *RedisStore) Save(ctx context.Context, messageID int64, state PagerState) error {
	jsonData, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal pager state: %w", err)
	}
	if err := s.client.Set(ctx, s.key(messageID), jsonData, s.ttl).Err(); err != nil {
		return fmt.Errorf("save pager session: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, messageID int64) (PagerState, error) {
	jsonData, err := s.client.Get(ctx, s.key(messageID)).Result()
	if err == redis.Nil {
		return PagerState{}, ErrNotFound
	}
	if err != nil {
		return PagerState{}, fmt.Errorf("load pager session: %w", err)
	}

	var state PagerState
	if err := json.Unmarshal([]byte(jsonData), &state); err != nil {
		return PagerState{}, fmt.Errorf("unmarshal pager state: %w", err)
	}
	return state, nil
}

func (s *RedisStore) Delete(ctx context.Context, messageID int64) error {
	if err := s.client.Del(ctx, s.key(messageID)).Err(); err != nil {
		return fmt.Errorf("delete pager session: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
