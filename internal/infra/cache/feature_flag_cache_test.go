package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/adapter/repository"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
	domainrepo "github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/repository"
)

var scope = model.Scope{Environment: "prod", Application: "api"}

// countingFlagRepo は GetByName の呼び出し回数を数える。
type countingFlagRepo struct {
	*repository.InMemoryFeatureFlagRepository
	gets int
}

func (r *countingFlagRepo) GetByName(ctx context.Context, s model.Scope, name string) (*model.FeatureFlag, error) {
	r.gets++
	return r.InMemoryFeatureFlagRepository.GetByName(ctx, s, name)
}

func setup(t *testing.T) (*CachedFeatureFlagRepository, *countingFlagRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	inner := &countingFlagRepo{InMemoryFeatureFlagRepository: repository.NewInMemoryFeatureFlagRepository()}
	return NewCachedFeatureFlagRepository(inner, client, WithTTL(time.Minute)), inner, mr
}

func newFlag(id string, enabled bool) *model.FeatureFlag {
	return &model.FeatureFlag{
		ID: id, Name: "new-checkout", Environment: scope.Environment, Application: scope.Application,
		IsEnabled: enabled, Rules: []model.FeatureFlagRule{}, Metadata: map[string]string{},
	}
}

func TestCachedFeatureFlagRepository_FlagKey(t *testing.T) {
	c := NewCachedFeatureFlagRepository(nil, nil)
	assert.Equal(t, "configdeploy:flag:prod/api:beta", c.flagKey(scope, "beta"))

	c = NewCachedFeatureFlagRepository(nil, nil, WithKeyPrefix("x:"))
	assert.Equal(t, "x:flag:prod/api/t1:beta", c.flagKey(model.Scope{Environment: "prod", Application: "api", TenantID: "t1"}, "beta"))
}

func TestCachedFeatureFlagRepository_FlagKey_SeparatorsDoNotCollide(t *testing.T) {
	c := NewCachedFeatureFlagRepository(nil, nil)

	slashApp := c.flagKey(model.Scope{Environment: "prod", Application: "web/t1"}, "beta")
	tenant := c.flagKey(model.Scope{Environment: "prod", Application: "web", TenantID: "t1"}, "beta")
	assert.NotEqual(t, slashApp, tenant)

	colonName := c.flagKey(model.Scope{Environment: "prod", Application: "api"}, "a:b")
	colonApp := c.flagKey(model.Scope{Environment: "prod", Application: "api:a"}, "b")
	assert.NotEqual(t, colonName, colonApp)
}

func TestCachedFeatureFlagRepository_GetByName_DoesNotCrossTenants(t *testing.T) {
	c, _, _ := setup(t)
	ctx := context.Background()
	global := &model.FeatureFlag{
		ID: "f-global", Name: "beta", Environment: "prod", Application: "web/t1",
		IsEnabled: true, Rules: []model.FeatureFlagRule{}, Metadata: map[string]string{},
	}
	require.NoError(t, c.Create(ctx, global))
	_, err := c.GetByName(ctx, global.Scope(), "beta")
	require.NoError(t, err)

	_, err = c.GetByName(ctx, model.Scope{Environment: "prod", Application: "web", TenantID: "t1"}, "beta")

	assert.ErrorIs(t, err, domainrepo.ErrNotFound)
}

func TestCachedFeatureFlagRepository_GetByName_CachesHit(t *testing.T) {
	c, inner, mr := setup(t)
	ctx := context.Background()
	require.NoError(t, c.Create(ctx, newFlag("f-1", true)))

	for i := 0; i < 3; i++ {
		flag, err := c.GetByName(ctx, scope, "new-checkout")
		require.NoError(t, err)
		assert.True(t, flag.IsEnabled)
	}

	assert.Equal(t, 1, inner.gets)
	assert.True(t, mr.Exists("configdeploy:flag:prod/api:new-checkout"))
	assert.Equal(t, time.Minute, mr.TTL("configdeploy:flag:prod/api:new-checkout"))
}

func TestCachedFeatureFlagRepository_UpdateInvalidates(t *testing.T) {
	c, inner, _ := setup(t)
	ctx := context.Background()
	require.NoError(t, c.Create(ctx, newFlag("f-1", true)))
	_, err := c.GetByName(ctx, scope, "new-checkout")
	require.NoError(t, err)

	require.NoError(t, c.Update(ctx, newFlag("f-1", false)))
	flag, err := c.GetByName(ctx, scope, "new-checkout")

	require.NoError(t, err)
	assert.False(t, flag.IsEnabled)
	assert.Equal(t, 2, inner.gets)
}

func TestCachedFeatureFlagRepository_DeleteInvalidates(t *testing.T) {
	c, _, mr := setup(t)
	ctx := context.Background()
	require.NoError(t, c.Create(ctx, newFlag("f-1", true)))
	_, _ = c.GetByName(ctx, scope, "new-checkout")

	require.NoError(t, c.Delete(ctx, "f-1"))

	assert.False(t, mr.Exists("configdeploy:flag:prod/api:new-checkout"))
	_, err := c.GetByName(ctx, scope, "new-checkout")
	assert.ErrorIs(t, err, domainrepo.ErrNotFound)
}

func TestCachedFeatureFlagRepository_MissIsNotCached(t *testing.T) {
	c, inner, mr := setup(t)
	ctx := context.Background()

	_, err := c.GetByName(ctx, scope, "missing")
	assert.ErrorIs(t, err, domainrepo.ErrNotFound)
	assert.False(t, mr.Exists("configdeploy:flag:prod/api:missing"))

	_, _ = c.GetByName(ctx, scope, "missing")
	assert.Equal(t, 2, inner.gets)
}

func TestCachedFeatureFlagRepository_CorruptEntryFallsThrough(t *testing.T) {
	c, inner, mr := setup(t)
	ctx := context.Background()
	require.NoError(t, c.Create(ctx, newFlag("f-1", true)))
	require.NoError(t, mr.Set("configdeploy:flag:prod/api:new-checkout", "{not json"))

	flag, err := c.GetByName(ctx, scope, "new-checkout")

	require.NoError(t, err)
	assert.True(t, flag.IsEnabled)
	assert.Equal(t, 1, inner.gets)
}

func TestCachedFeatureFlagRepository_RedisDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer client.Close()
	inner := &countingFlagRepo{InMemoryFeatureFlagRepository: repository.NewInMemoryFeatureFlagRepository()}
	c := NewCachedFeatureFlagRepository(inner, client)
	ctx := context.Background()

	require.NoError(t, c.Create(ctx, newFlag("f-1", true)))
	flag, err := c.GetByName(ctx, scope, "new-checkout")

	require.NoError(t, err)
	assert.True(t, flag.IsEnabled)
}
