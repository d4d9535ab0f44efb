// Package redisstate 用 Redis 维护房间的实时在线状态。
package redisstate

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"collaborative-canvas/internal/repository"
)

// RedisPresenceRepository 是 PresenceRepository 接口的 Redis 实现。
// 每个房间一个计数 key；计数只在 Hub 的 join/leave 路径上变化，
// 清理任务读取它来确认宽限期结束时房间是否仍然为空。
type RedisPresenceRepository struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisPresenceRepository 创建 RedisPresenceRepository 实例
func NewRedisPresenceRepository(client *redis.Client, keyPrefix string) *RedisPresenceRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisPresenceRepository")
	}
	if keyPrefix == "" {
		keyPrefix = "cc:" // 默认前缀 "cc:" (collaborative canvas)
	}
	return &RedisPresenceRepository{client: client, keyPrefix: keyPrefix}
}

func (r *RedisPresenceRepository) presenceKey(roomID uint) string {
	return fmt.Sprintf("%sroom:%d:presence", r.keyPrefix, roomID)
}

func (r *RedisPresenceRepository) Incr(ctx context.Context, roomID uint) (int64, error) {
	n, err := r.client.Incr(ctx, r.presenceKey(roomID)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: incr presence for room %d: %w", roomID, err)
	}
	return n, nil
}

func (r *RedisPresenceRepository) Decr(ctx context.Context, roomID uint) (int64, error) {
	key := r.presenceKey(roomID)
	n, err := r.client.Decr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: decr presence for room %d: %w", roomID, err)
	}
	if n < 0 {
		// 计数不应为负；出现说明 join/leave 不配对，归零自保
		if err := r.client.Set(ctx, key, 0, 0).Err(); err != nil {
			return 0, fmt.Errorf("redis: reset negative presence for room %d: %w", roomID, err)
		}
		return 0, nil
	}
	return n, nil
}

func (r *RedisPresenceRepository) Count(ctx context.Context, roomID uint) (int64, error) {
	n, err := r.client.Get(ctx, r.presenceKey(roomID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis: get presence for room %d: %w", roomID, err)
	}
	return n, nil
}

func (r *RedisPresenceRepository) Clear(ctx context.Context, roomID uint) error {
	if err := r.client.Del(ctx, r.presenceKey(roomID)).Err(); err != nil {
		return fmt.Errorf("redis: clear presence for room %d: %w", roomID, err)
	}
	return nil
}

var _ repository.PresenceRepository = (*RedisPresenceRepository)(nil)
