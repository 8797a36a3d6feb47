package repository

import (
	"context"

	"github.com/titan/hive-person-service/internal/domain"
)

// PersonsRepository 人员Repository接口
// 使用强类型领域模型；事务边界由实现持有
type PersonsRepository interface {
	// 查询接口（均排除 deleted 记录）
	GetActivePerson(ctx context.Context, pid string) (*domain.Person, error)
	ListActivePersons(ctx context.Context) ([]*domain.Person, error)

	// ReconcileBatch createPerson 的核心：单事务内逐条 create-or-merge
	// 返回与输入同序的摘要，以及需要刷新缓存的 id 列表
	// （新建与合并的记录进入刷新列表，verified 记录不进入）
	// 任一条失败时整批回滚；identity_no 唯一索引冲突映射为 domain.ErrConflict
	ReconcileBatch(ctx context.Context, inputs []domain.PersonInput) ([]domain.PersonSummary, []string, error)

	// UpdateViews 单条证件照更新（独立事务），缺省字段保留现值
	// 记录不存在或已删除时返回 domain.ErrNotFound
	UpdateViews(ctx context.Context, upd domain.ViewUpdate) error

	// SetVerified 按 identity_no 设置认证标志，返回受影响的 pid
	SetVerified(ctx context.Context, identityNo string, flag bool) (string, error)
}
