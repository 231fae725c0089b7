package usecase

import (
	"context"
	"log/slog"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/repository"
)

// DeleteFeatureFlagUseCase はフィーチャーフラグ削除ユースケース。
type DeleteFeatureFlagUseCase struct {
	flagRepo repository.FeatureFlagRepository
	audit    AuditRecorder
	logger   *slog.Logger
}

// NewDeleteFeatureFlagUseCase は新しい DeleteFeatureFlagUseCase を作成する。
func NewDeleteFeatureFlagUseCase(
	flagRepo repository.FeatureFlagRepository,
	audit AuditRecorder,
	logger *slog.Logger,
) *DeleteFeatureFlagUseCase {
	return &DeleteFeatureFlagUseCase{
		flagRepo: flagRepo,
		audit:    audit,
		logger:   loggerOrDefault(logger),
	}
}

// Execute はフィーチャーフラグを削除する。
func (uc *DeleteFeatureFlagUseCase) Execute(ctx context.Context, id, deletedBy string) error {
	existing, err := uc.flagRepo.GetByID(ctx, id)
	if err != nil {
		return notFoundOr(err, "feature flag", id, "get feature flag")
	}
	if err := uc.flagRepo.Delete(ctx, id); err != nil {
		return notFoundOr(err, "feature flag", id, "delete feature flag")
	}

	recordAudit(ctx, uc.audit, uc.logger, RecordAuditLogInput{
		EntityType: model.EntityTypeFeatureFlag,
		EntityID:   id,
		Action:     model.AuditActionDelete,
		OldValue:   flagAuditValue(existing),
		UserID:     deletedBy,
	})
	return nil
}
