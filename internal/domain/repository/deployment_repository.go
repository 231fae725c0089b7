package repository

import (
	"context"
	"errors"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
)

// ErrStatusConflict はデプロイメントのステータスが想定と異なる場合のエラー。
var ErrStatusConflict = errors.New("deployment status conflict")

// DeploymentRepository はデプロイメントの永続化インターフェース。
type DeploymentRepository interface {
	// GetByID はデプロイメントを項目付きで取得する。
	GetByID(ctx context.Context, id string) (*model.Deployment, error)

	// List はデプロイメントを作成日時の降順で一覧取得する。
	List(ctx context.Context, params DeploymentListParams) ([]*model.Deployment, int, error)

	// Create はデプロイメントと項目を保存する。
	Create(ctx context.Context, deployment *model.Deployment) error

	// Update はデプロイメントと項目を保存する。
	// 保存済みのステータスが expectedStatus と異なる場合は ErrStatusConflict を返す。
	Update(ctx context.Context, deployment *model.Deployment, expectedStatus model.DeploymentStatus) error
}

// DeploymentListParams はデプロイメント一覧取得のパラメータ。
type DeploymentListParams struct {
	Environment string
	Application string
	Status      model.DeploymentStatus
	Page        int
	PageSize    int
}
