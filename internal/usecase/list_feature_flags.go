package usecase

import (
	"context"
	"fmt"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/repository"
)

// ListFeatureFlagsUseCase はフィーチャーフラグ一覧取得ユースケース。
type ListFeatureFlagsUseCase struct {
	flagRepo repository.FeatureFlagRepository
}

// NewListFeatureFlagsUseCase は新しい ListFeatureFlagsUseCase を作成する。
func NewListFeatureFlagsUseCase(flagRepo repository.FeatureFlagRepository) *ListFeatureFlagsUseCase {
	return &ListFeatureFlagsUseCase{
		flagRepo: flagRepo,
	}
}

// Execute はスコープ内のフィーチャーフラグを一覧取得する。
func (uc *ListFeatureFlagsUseCase) Execute(ctx context.Context, scope model.Scope) ([]*model.FeatureFlag, error) {
	if scope.Environment == "" || scope.Application == "" {
		return nil, newValidationError("environment and application are required")
	}
	flags, err := uc.flagRepo.List(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to list feature flags: %w", err)
	}
	return flags, nil
}
