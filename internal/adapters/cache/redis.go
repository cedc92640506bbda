package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/weni-ai/catalog-sync/internal/utils"
	"github.com/weni-ai/catalog-sync/pkg/interfaces"
)

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(ctx context.Context, host string, port int, password string, db int) (interfaces.CachePort, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Password:     password,
		DB:           db,
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, utils.ErrCacheMiss
		}
		return nil, err
	}
	return val, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	return r.client.Set(ctx, key, value, expiration).Err()
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisCache) SetAdd(ctx context.Context, key string, members ...string) (int64, error) {
	args := make([]interface{}, 0, len(members))
	for _, m := range members {
		args = append(args, m)
	}
	added, err := r.client.SAdd(ctx, key, args...).Result()
	if err != nil {
		return 0, fmt.Errorf("ошибка добавления в множество %s: %w", key, err)
	}
	return added, nil
}

func (r *RedisCache) SetMembers(ctx context.Context, key string) ([]string, error) {
	members, err := r.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения множества %s: %w", key, err)
	}
	return members, nil
}

func (r *RedisCache) SetRemove(ctx context.Context, key string, members ...string) error {
	args := make([]interface{}, 0, len(members))
	for _, m := range members {
		args = append(args, m)
	}
	if err := r.client.SRem(ctx, key, args...).Err(); err != nil {
		return fmt.Errorf("ошибка удаления из множества %s: %w", key, err)
	}
	return nil
}

func (r *RedisCache) SetCard(ctx context.Context, key string) (int64, error) {
	return r.client.SCard(ctx, key).Result()
}

func (r *RedisCache) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return r.client.Expire(ctx, key, expiration).Err()
}

func (r *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Lock захватывает блокировку через SETNX: значение не важно, важен факт
// существования ключа с TTL.
func (r *RedisCache) Lock(ctx context.Context, key string, expiration time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, "1", expiration).Result()
	if err != nil {
		return false, fmt.Errorf("ошибка захвата блокировки %s: %w", key, err)
	}
	return ok, nil
}

// ExtendLock продлевает TTL удерживаемой блокировки.
func (r *RedisCache) ExtendLock(ctx context.Context, key string, expiration time.Duration) error {
	ok, err := r.client.Expire(ctx, key, expiration).Result()
	if err != nil {
		return fmt.Errorf("ошибка продления блокировки %s: %w", key, err)
	}
	if !ok {
		return fmt.Errorf("блокировка %s не существует", key)
	}
	return nil
}

func (r *RedisCache) Unlock(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
