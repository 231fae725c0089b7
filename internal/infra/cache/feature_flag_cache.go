// Package cache はフィーチャーフラグ定義の Redis キャッシュを提供する。
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/repository"
)

// CachedFeatureFlagRepository は FeatureFlagRepository の GetByName 結果を Redis にキャッシュする。
// 書き込み時は該当キーを削除する。Redis の障害時は下位リポジトリへそのまま委譲する。
type CachedFeatureFlagRepository struct {
	inner     repository.FeatureFlagRepository
	client    redis.Cmdable
	keyPrefix string
	ttl       time.Duration
	logger    *slog.Logger
}

// Option は CachedFeatureFlagRepository の設定オプション。
type Option func(*CachedFeatureFlagRepository)

// WithKeyPrefix はキーのプレフィックスを設定する。
func WithKeyPrefix(prefix string) Option {
	return func(c *CachedFeatureFlagRepository) {
		c.keyPrefix = prefix
	}
}

// WithTTL はキャッシュの有効期限を設定する。
func WithTTL(ttl time.Duration) Option {
	return func(c *CachedFeatureFlagRepository) {
		c.ttl = ttl
	}
}

// WithLogger はロガーを設定する。
func WithLogger(logger *slog.Logger) Option {
	return func(c *CachedFeatureFlagRepository) {
		c.logger = logger
	}
}

// NewCachedFeatureFlagRepository は新しい CachedFeatureFlagRepository を生成する。
func NewCachedFeatureFlagRepository(inner repository.FeatureFlagRepository, client redis.Cmdable, opts ...Option) *CachedFeatureFlagRepository {
	c := &CachedFeatureFlagRepository{
		inner:     inner,
		client:    client,
		keyPrefix: "configdeploy:",
		ttl:       30 * time.Second,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CachedFeatureFlagRepository) flagKey(scope model.Scope, name string) string {
	return c.keyPrefix + "flag:" + scope.Key() + ":" + url.QueryEscape(name)
}

func (c *CachedFeatureFlagRepository) GetByID(ctx context.Context, id string) (*model.FeatureFlag, error) {
	return c.inner.GetByID(ctx, id)
}

// GetByName はキャッシュを優先してフラグを取得する。存在しないフラグはキャッシュしない。
func (c *CachedFeatureFlagRepository) GetByName(ctx context.Context, scope model.Scope, name string) (*model.FeatureFlag, error) {
	key := c.flagKey(scope, name)
	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var flag model.FeatureFlag
		if err := json.Unmarshal(data, &flag); err == nil {
			return &flag, nil
		}
		c.logger.Warn("discarding corrupt flag cache entry", slog.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("flag cache read failed", slog.String("key", key), slog.String("error", err.Error()))
	}

	flag, err := c.inner.GetByName(ctx, scope, name)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(flag); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("flag cache write failed", slog.String("key", key), slog.String("error", err.Error()))
		}
	}
	return flag, nil
}

func (c *CachedFeatureFlagRepository) List(ctx context.Context, scope model.Scope) ([]*model.FeatureFlag, error) {
	return c.inner.List(ctx, scope)
}

func (c *CachedFeatureFlagRepository) Create(ctx context.Context, flag *model.FeatureFlag) error {
	if err := c.inner.Create(ctx, flag); err != nil {
		return err
	}
	c.invalidate(ctx, flag.Scope(), flag.Name)
	return nil
}

func (c *CachedFeatureFlagRepository) Update(ctx context.Context, flag *model.FeatureFlag) error {
	if err := c.inner.Update(ctx, flag); err != nil {
		return err
	}
	c.invalidate(ctx, flag.Scope(), flag.Name)
	return nil
}

func (c *CachedFeatureFlagRepository) Delete(ctx context.Context, id string) error {
	existing, err := c.inner.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := c.inner.Delete(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx, existing.Scope(), existing.Name)
	return nil
}

func (c *CachedFeatureFlagRepository) invalidate(ctx context.Context, scope model.Scope, name string) {
	key := c.flagKey(scope, name)
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Warn("flag cache invalidation failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}
