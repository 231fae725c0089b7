package usecase

import (
	"context"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/repository"
)

// GetFeatureFlagUseCase はフィーチャーフラグ取得ユースケース。
type GetFeatureFlagUseCase struct {
	flagRepo repository.FeatureFlagRepository
}

// NewGetFeatureFlagUseCase は新しい GetFeatureFlagUseCase を作成する。
func NewGetFeatureFlagUseCase(flagRepo repository.FeatureFlagRepository) *GetFeatureFlagUseCase {
	return &GetFeatureFlagUseCase{
		flagRepo: flagRepo,
	}
}

// Execute は ID でフィーチャーフラグを取得する。
func (uc *GetFeatureFlagUseCase) Execute(ctx context.Context, id string) (*model.FeatureFlag, error) {
	flag, err := uc.flagRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "feature flag", id, "get feature flag")
	}
	return flag, nil
}
