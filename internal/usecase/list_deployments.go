package usecase

import (
	"context"
	"fmt"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/repository"
)

// ListDeploymentsUseCase はデプロイメント一覧取得ユースケース。
type ListDeploymentsUseCase struct {
	deployRepo repository.DeploymentRepository
}

// NewListDeploymentsUseCase は新しい ListDeploymentsUseCase を作成する。
func NewListDeploymentsUseCase(deployRepo repository.DeploymentRepository) *ListDeploymentsUseCase {
	return &ListDeploymentsUseCase{
		deployRepo: deployRepo,
	}
}

// ListDeploymentsInput はデプロイメント一覧取得の入力パラメータ。
type ListDeploymentsInput struct {
	Environment string
	Application string
	Status      model.DeploymentStatus
	Page        int
	PageSize    int
}

// ListDeploymentsOutput はデプロイメント一覧取得の出力。
type ListDeploymentsOutput struct {
	Deployments []*model.Deployment
	TotalCount  int
	Page        int
	PageSize    int
	HasNext     bool
}

// Execute はデプロイメントを作成日時の降順で一覧取得する。
func (uc *ListDeploymentsUseCase) Execute(ctx context.Context, input ListDeploymentsInput) (*ListDeploymentsOutput, error) {
	if input.Status != "" && !input.Status.IsValid() {
		return nil, newValidationError("unknown deployment status %q", input.Status)
	}
	if input.Page <= 0 {
		input.Page = 1
	}
	if input.PageSize <= 0 {
		input.PageSize = 20
	}
	if input.PageSize > 100 {
		input.PageSize = 100
	}

	deployments, totalCount, err := uc.deployRepo.List(ctx, repository.DeploymentListParams{
		Environment: input.Environment,
		Application: input.Application,
		Status:      input.Status,
		Page:        input.Page,
		PageSize:    input.PageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}

	return &ListDeploymentsOutput{
		Deployments: deployments,
		TotalCount:  totalCount,
		Page:        input.Page,
		PageSize:    input.PageSize,
		HasNext:     input.Page*input.PageSize < totalCount,
	}, nil
}
