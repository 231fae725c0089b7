package repository

import (
	"context"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
)

// FeatureFlagRepository はフィーチャーフラグの永続化インターフェース。
type FeatureFlagRepository interface {
	// GetByID は ID でフラグを取得する。
	GetByID(ctx context.Context, id string) (*model.FeatureFlag, error)

	// GetByName はスコープと名前でフラグを取得する。
	GetByName(ctx context.Context, scope model.Scope, name string) (*model.FeatureFlag, error)

	// List はスコープ内のフラグを名前の昇順で一覧取得する。
	List(ctx context.Context, scope model.Scope) ([]*model.FeatureFlag, error)

	// Create はフラグを作成する。
	Create(ctx context.Context, flag *model.FeatureFlag) error

	// Update はフラグを更新する。
	Update(ctx context.Context, flag *model.FeatureFlag) error

	// Delete はフラグを削除する。
	Delete(ctx context.Context, id string) error
}
