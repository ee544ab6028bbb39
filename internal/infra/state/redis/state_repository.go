package redisstate

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// joinCodeReservationTTL 是加入码预留的有效期，房间创建成功后改为永久绑定
const joinCodeReservationTTL = time.Minute

// RedisStateRepository 是 StateRepository 接口的 Redis 实现
type RedisStateRepository struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStateRepository 创建 RedisStateRepository 实例
func NewRedisStateRepository(client *redis.Client, keyPrefix string) *RedisStateRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisStateRepository")
	}
	if keyPrefix == "" {
		keyPrefix = "td:"
	}
	return &RedisStateRepository{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (r *RedisStateRepository) joinCodeKey(code string) string {
	return fmt.Sprintf("%sjoincode:%s", r.keyPrefix, code)
}

func (r *RedisStateRepository) rateLimitKey(key string) string {
	return fmt.Sprintf("%sratelimit:%s", r.keyPrefix, key)
}

// ReserveJoinCode 用 SETNX 占用加入码，返回是否占用成功
func (r *RedisStateRepository) ReserveJoinCode(ctx context.Context, code, roomID string) (bool, error) {
	key := r.joinCodeKey(code)
	ok, err := r.client.SetNX(ctx, key, roomID, joinCodeReservationTTL).Result()
	if err != nil {
		return false, fmt.Errorf("redis: failed to reserve join code on key %s: %w", key, err)
	}
	return ok, nil
}

// BindJoinCode 把加入码永久指向房间
func (r *RedisStateRepository) BindJoinCode(ctx context.Context, code, roomID string) error {
	key := r.joinCodeKey(code)
	if err := r.client.Set(ctx, key, roomID, 0).Err(); err != nil {
		return fmt.Errorf("redis: failed to bind join code on key %s: %w", key, err)
	}
	return nil
}

// ReleaseJoinCode 释放加入码，key 不存在时不报错
func (r *RedisStateRepository) ReleaseJoinCode(ctx context.Context, code string) error {
	key := r.joinCodeKey(code)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis: failed to release join code on key %s: %w", key, err)
	}
	return nil
}

// CheckRateLimit 检查给定 key 的请求频率是否超限，并递增计数。
func (r *RedisStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	fullKey := r.rateLimitKey(key)
	pipe := r.client.Pipeline()
	incrCmd := pipe.Incr(ctx, fullKey)
	pipe.Expire(ctx, fullKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis: pipeline failed for rate limit check on key %s: %w", fullKey, err)
	}
	count, err := incrCmd.Result()
	if err != nil {
		return false, fmt.Errorf("redis: failed to get incr result for rate limit on key %s: %w", fullKey, err)
	}
	return count > int64(limit), nil
}
