package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/repository"
)

// GetDeploymentUseCase はデプロイメント取得ユースケース。
type GetDeploymentUseCase struct {
	deployRepo repository.DeploymentRepository
}

// NewGetDeploymentUseCase は新しい GetDeploymentUseCase を作成する。
func NewGetDeploymentUseCase(deployRepo repository.DeploymentRepository) *GetDeploymentUseCase {
	return &GetDeploymentUseCase{
		deployRepo: deployRepo,
	}
}

// Execute はデプロイメントを項目付きで取得する。
func (uc *GetDeploymentUseCase) Execute(ctx context.Context, id string) (*model.Deployment, error) {
	d, err := uc.deployRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "deployment", id, "get deployment")
	}
	return d, nil
}

// Status はデプロイメントのステータスを返す。存在しない場合はエラーにせず PENDING を返す。
func (uc *GetDeploymentUseCase) Status(ctx context.Context, id string) (model.DeploymentStatus, error) {
	d, err := uc.deployRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.DeploymentStatusPending, nil
		}
		return "", fmt.Errorf("failed to get deployment: %w", err)
	}
	return d.Status, nil
}
