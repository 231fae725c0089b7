package usecase

import (
	"context"
	"fmt"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/repository"
)

// GetSnapshotUseCase はスナップショット取得ユースケース。
type GetSnapshotUseCase struct {
	snapshotRepo repository.SnapshotRepository
}

// NewGetSnapshotUseCase は新しい GetSnapshotUseCase を作成する。
func NewGetSnapshotUseCase(snapshotRepo repository.SnapshotRepository) *GetSnapshotUseCase {
	return &GetSnapshotUseCase{
		snapshotRepo: snapshotRepo,
	}
}

// Execute は ID でスナップショットを取得する。
func (uc *GetSnapshotUseCase) Execute(ctx context.Context, id string) (*model.ConfigurationSnapshot, error) {
	s, err := uc.snapshotRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "snapshot", id, "get snapshot")
	}
	return s, nil
}

// List はスコープ内のスナップショットを作成日時の降順で返す。
func (uc *GetSnapshotUseCase) List(ctx context.Context, scope model.Scope) ([]*model.ConfigurationSnapshot, error) {
	if scope.Environment == "" || scope.Application == "" {
		return nil, newValidationError("environment and application are required")
	}
	snapshots, err := uc.snapshotRepo.List(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	return snapshots, nil
}
