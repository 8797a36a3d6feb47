package cache

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/titan/hive-person-service/internal/domain"
	"github.com/titan/hive-person-service/internal/repository"
)

// Synchronizer 缓存同步器：把数据库当前行物化到读缓存
// 在每次提交后对受影响 id 调用，或经 refresh 操作按需调用
type Synchronizer struct {
	repo   repository.PersonsRepository
	cache  *PersonCache
	logger *zap.Logger
}

// NewSynchronizer 创建缓存同步器
func NewSynchronizer(repo repository.PersonsRepository, cache *PersonCache, logger *zap.Logger) *Synchronizer {
	return &Synchronizer{repo: repo, cache: cache, logger: logger}
}

// RefreshPersons 刷新指定 id 的缓存快照
// 已删除/不存在的 id 直接跳过（不写入，不报错）
func (s *Synchronizer) RefreshPersons(ctx context.Context, pids []string) error {
	var persons []*domain.Person
	for _, pid := range pids {
		p, err := s.repo.GetActivePerson(ctx, pid)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				s.logger.Warn("Skipping cache refresh for missing person", zap.String("pid", pid))
				continue
			}
			return fmt.Errorf("failed to load person for refresh: %w", err)
		}
		persons = append(persons, p)
	}
	return s.cache.PutAll(ctx, persons)
}

// RefreshAll 全量重建缓存（冷启动或管理端 refresh）
func (s *Synchronizer) RefreshAll(ctx context.Context) error {
	persons, err := s.repo.ListActivePersons(ctx)
	if err != nil {
		return fmt.Errorf("failed to list persons for resync: %w", err)
	}
	return s.cache.ReplaceAll(ctx, persons)
}
