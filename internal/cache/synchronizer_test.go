package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/titan/hive-person-service/internal/domain"
)

// fakePersonsRepo 仅用于单元测试（内存数据源）
type fakePersonsRepo struct {
	persons map[string]*domain.Person
}

func newFakePersonsRepo(persons ...*domain.Person) *fakePersonsRepo {
	m := make(map[string]*domain.Person)
	for _, p := range persons {
		m[p.ID] = p
	}
	return &fakePersonsRepo{persons: m}
}

func (f *fakePersonsRepo) GetActivePerson(_ context.Context, pid string) (*domain.Person, error) {
	p, ok := f.persons[pid]
	if !ok || p.Deleted {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (f *fakePersonsRepo) ListActivePersons(_ context.Context) ([]*domain.Person, error) {
	var out []*domain.Person
	for _, p := range f.persons {
		if !p.Deleted {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePersonsRepo) ReconcileBatch(context.Context, []domain.PersonInput) ([]domain.PersonSummary, []string, error) {
	panic("not used")
}

func (f *fakePersonsRepo) UpdateViews(context.Context, domain.ViewUpdate) error {
	panic("not used")
}

func (f *fakePersonsRepo) SetVerified(context.Context, string, bool) (string, error) {
	panic("not used")
}

func TestSynchronizer_RefreshPersons(t *testing.T) {
	_, c := setupTestCache(t)
	repo := newFakePersonsRepo(
		&domain.Person{ID: "pid-1", IdentityNo: "X1", Name: "A"},
		&domain.Person{ID: "pid-2", IdentityNo: "X2", Name: "B"},
	)
	sync := NewSynchronizer(repo, c, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, sync.RefreshPersons(ctx, []string{"pid-1"}))

	got, err := c.Get(ctx, "pid-1")
	require.NoError(t, err)
	assert.Equal(t, "A", got.Name)

	// 未刷新的 id 不应出现
	_, err = c.Get(ctx, "pid-2")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestSynchronizer_RefreshPersons_SkipsMissing(t *testing.T) {
	_, c := setupTestCache(t)
	repo := newFakePersonsRepo(
		&domain.Person{ID: "pid-1", IdentityNo: "X1", Name: "A"},
	)
	sync := NewSynchronizer(repo, c, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, sync.RefreshPersons(ctx, []string{"pid-1", "gone"}))

	_, err := c.Get(ctx, "pid-1")
	require.NoError(t, err)
	_, err = c.Get(ctx, "gone")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestSynchronizer_RefreshAll_DropsDeleted(t *testing.T) {
	_, c := setupTestCache(t)
	ctx := context.Background()

	// 缓存里残留一个后来被删除的人员
	require.NoError(t, c.PutAll(ctx, []*domain.Person{
		{ID: "pid-1", IdentityNo: "X1", Name: "A"},
		{ID: "pid-2", IdentityNo: "X2", Name: "B"},
	}))

	repo := newFakePersonsRepo(
		&domain.Person{ID: "pid-1", IdentityNo: "X1", Name: "A"},
		&domain.Person{ID: "pid-2", IdentityNo: "X2", Name: "B", Deleted: true},
	)
	sync := NewSynchronizer(repo, c, zap.NewNop())

	require.NoError(t, sync.RefreshAll(ctx))

	_, err := c.Get(ctx, "pid-2")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = c.Get(ctx, "pid-1")
	require.NoError(t, err)
}
