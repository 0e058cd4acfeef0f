package presence

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dkeye/peercall/internal/domain"
	"github.com/redis/go-redis/v9"
)

const onlineKey = "presence:online"

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisStore mirrors the online set into a Redis set so other services can
// read it. The key expires after TTL unless refreshed by the next write.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects and pings the server.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisStore{client: client, ttl: cfg.TTL}, nil
}

func (s *RedisStore) Replace(ctx context.Context, online []domain.LogicalUserID) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, onlineKey)
		if len(online) == 0 {
			return nil
		}
		members := make([]any, len(online))
		for i, u := range online {
			members[i] = string(u)
		}
		pipe.SAdd(ctx, onlineKey, members...)
		if s.ttl > 0 {
			pipe.Expire(ctx, onlineKey, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis presence replace: %w", err)
	}
	return nil
}

func (s *RedisStore) Online(ctx context.Context) ([]domain.LogicalUserID, error) {
	members, err := s.client.SMembers(ctx, onlineKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis presence read: %w", err)
	}
	sort.Strings(members)
	out := make([]domain.LogicalUserID, len(members))
	for i, m := range members {
		out[i] = domain.LogicalUserID(m)
	}
	return out, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
