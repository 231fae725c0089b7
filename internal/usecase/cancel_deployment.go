package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/repository"
)

const cancelMaxAttempts = 3

// CancelDeploymentUseCase はデプロイメント取り消しユースケース。
// 処理済みの項目は元に戻さない。
type CancelDeploymentUseCase struct {
	deployRepo repository.DeploymentRepository
	audit      AuditRecorder
	metrics    DeploymentMetrics
	logger     *slog.Logger
}

// NewCancelDeploymentUseCase は新しい CancelDeploymentUseCase を作成する。
func NewCancelDeploymentUseCase(
	deployRepo repository.DeploymentRepository,
	audit AuditRecorder,
	metrics DeploymentMetrics,
	logger *slog.Logger,
) *CancelDeploymentUseCase {
	return &CancelDeploymentUseCase{
		deployRepo: deployRepo,
		audit:      audit,
		metrics:    metrics,
		logger:     loggerOrDefault(logger),
	}
}

// Execute は PENDING または IN_PROGRESS のデプロイメントを CANCELLED にする。
func (uc *CancelDeploymentUseCase) Execute(ctx context.Context, id, cancelledBy string) (*model.Deployment, error) {
	for attempt := 0; attempt < cancelMaxAttempts; attempt++ {
		d, err := uc.deployRepo.GetByID(ctx, id)
		if err != nil {
			return nil, notFoundOr(err, "deployment", id, "get deployment")
		}
		if !d.Status.CanTransitionTo(model.DeploymentStatusCancelled) {
			return nil, &IllegalStateTransitionError{DeploymentID: d.ID, From: d.Status, To: model.DeploymentStatusCancelled}
		}

		prev := d.Status
		now := time.Now().UTC()
		d.Status = model.DeploymentStatusCancelled
		d.CompletedAt = &now
		err = uc.deployRepo.Update(ctx, d, prev)
		if errors.Is(err, repository.ErrStatusConflict) {
			// 実行開始と競合したので読み直して再判定する
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to cancel deployment: %w", err)
		}

		recordAudit(ctx, uc.audit, uc.logger, RecordAuditLogInput{
			EntityType: model.EntityTypeDeployment,
			EntityID:   d.ID,
			Action:     model.AuditActionCancel,
			OldValue:   strPtr(string(prev)),
			NewValue:   strPtr(string(model.DeploymentStatusCancelled)),
			UserID:     cancelledBy,
		})
		if uc.metrics != nil {
			uc.metrics.RecordDeployment(model.DeploymentStatusCancelled)
		}
		return d, nil
	}
	return nil, fmt.Errorf("failed to cancel deployment %s: %w", id, repository.ErrStatusConflict)
}
