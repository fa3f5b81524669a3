package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix  = "jobcoach:session:"
	defaultRedisTTL = 7 * 24 * time.Hour
)

// RedisStorage shares sessions across server replicas. Entries expire after
// TTL so abandoned tabs do not accumulate.
type RedisStorage struct {
	Client redis.UniversalClient
	TTL    time.Duration
}

// NewRedisStorage connects using a redis:// URL.
func NewRedisStorage(ctx context.Context, rawURL string) (*RedisStorage, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStorage{Client: client, TTL: defaultRedisTTL}, nil
}

func (r *RedisStorage) Load(ctx context.Context, key string) (Session, bool, error) {
	raw, err := r.Client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, fmt.Errorf("redis get session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return Session{}, false, fmt.Errorf("decode session: %w", err)
	}
	return sess, true, nil
}

func (r *RedisStorage) Save(ctx context.Context, key string, sess Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	ttl := r.TTL
	if ttl <= 0 {
		ttl = defaultRedisTTL
	}
	if err := r.Client.Set(ctx, redisKeyPrefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

func (r *RedisStorage) Delete(ctx context.Context, key string) error {
	if err := r.Client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del session: %w", err)
	}
	return nil
}

func (r *RedisStorage) Close() error { return r.Client.Close() }
