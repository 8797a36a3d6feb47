package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/titan/hive-person-service/internal/domain"
)

// PersonHashKey 人员实体缓存的 hash 键（field = person id, value = msgpack 快照）
const PersonHashKey = "person-entities"

// ErrCacheMiss 表示缓存不存在
var ErrCacheMiss = errors.New("cache miss")

// PersonCache Redis 人员缓存（读优化，非数据源）
// 快照为整行替换，不做字段级合并，并发写遵循 last-writer-wins
type PersonCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewPersonCache 创建人员缓存
func NewPersonCache(client *redis.Client, logger *zap.Logger) *PersonCache {
	return &PersonCache{client: client, logger: logger}
}

// Get 按 pid 读取人员快照
func (c *PersonCache) Get(ctx context.Context, pid string) (*domain.Person, error) {
	raw, err := c.client.HGet(ctx, PersonHashKey, pid).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to read person cache: %w", err)
	}

	var p domain.Person
	if err := msgpack.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("failed to decode person snapshot: %w", err)
	}
	return &p, nil
}

// PutAll 批量写入快照，单次 pipeline 提交
// pipeline 只为效率，不构成原子边界：每个 field 写入独立幂等
func (c *PersonCache) PutAll(ctx context.Context, persons []*domain.Person) error {
	if len(persons) == 0 {
		return nil
	}

	pipe := c.client.Pipeline()
	for _, p := range persons {
		raw, err := msgpack.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to encode person snapshot: %w", err)
		}
		pipe.HSet(ctx, PersonHashKey, p.ID, raw)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write person cache: %w", err)
	}

	c.logger.Debug("Updated person cache", zap.Int("count", len(persons)))
	return nil
}

// ReplaceAll 全量重建：删除整个 hash 后重写，已删除人员随之出缓存
func (c *PersonCache) ReplaceAll(ctx context.Context, persons []*domain.Person) error {
	pipe := c.client.Pipeline()
	pipe.Del(ctx, PersonHashKey)
	for _, p := range persons {
		raw, err := msgpack.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to encode person snapshot: %w", err)
		}
		pipe.HSet(ctx, PersonHashKey, p.ID, raw)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to rebuild person cache: %w", err)
	}

	c.logger.Info("Rebuilt person cache", zap.Int("count", len(persons)))
	return nil
}

// Snapshot 读取全部缓存快照（导出用）
func (c *PersonCache) Snapshot(ctx context.Context) ([]*domain.Person, error) {
	raw, err := c.client.HGetAll(ctx, PersonHashKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read person cache: %w", err)
	}

	persons := make([]*domain.Person, 0, len(raw))
	for _, v := range raw {
		var p domain.Person
		if err := msgpack.Unmarshal([]byte(v), &p); err != nil {
			return nil, fmt.Errorf("failed to decode person snapshot: %w", err)
		}
		persons = append(persons, &p)
	}
	return persons, nil
}
