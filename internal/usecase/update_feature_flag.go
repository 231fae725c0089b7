package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/repository"
)

// UpdateFeatureFlagUseCase はフィーチャーフラグ更新ユースケース。
type UpdateFeatureFlagUseCase struct {
	flagRepo repository.FeatureFlagRepository
	audit    AuditRecorder
	logger   *slog.Logger
}

// NewUpdateFeatureFlagUseCase は新しい UpdateFeatureFlagUseCase を作成する。
func NewUpdateFeatureFlagUseCase(
	flagRepo repository.FeatureFlagRepository,
	audit AuditRecorder,
	logger *slog.Logger,
) *UpdateFeatureFlagUseCase {
	return &UpdateFeatureFlagUseCase{
		flagRepo: flagRepo,
		audit:    audit,
		logger:   loggerOrDefault(logger),
	}
}

// UpdateFeatureFlagInput はフィーチャーフラグ更新の入力パラメータ。nil のフィールドは変更しない。
type UpdateFeatureFlagInput struct {
	ID            string                     `json:"-"`
	Description   *string                    `json:"description"`
	IsEnabled     *bool                      `json:"is_enabled"`
	Rules         *[]model.FeatureFlagRule   `json:"rules"`
	Schedule      *model.FeatureFlagSchedule `json:"schedule"`
	ClearSchedule bool                       `json:"clear_schedule"`
	Metadata      *map[string]string         `json:"metadata"`
	UpdatedBy     string                     `json:"-"`
	Action        string                     `json:"-"`
}

// Execute はフィーチャーフラグを部分更新する。
func (uc *UpdateFeatureFlagUseCase) Execute(ctx context.Context, input UpdateFeatureFlagInput) (*model.FeatureFlag, error) {
	existing, err := uc.flagRepo.GetByID(ctx, input.ID)
	if err != nil {
		return nil, notFoundOr(err, "feature flag", input.ID, "get feature flag")
	}
	oldValue := flagAuditValue(existing)

	updated := existing.Clone()
	if input.Description != nil {
		updated.Description = *input.Description
	}
	if input.IsEnabled != nil {
		updated.IsEnabled = *input.IsEnabled
	}
	if input.Rules != nil {
		updated.Rules = normalizeRules(*input.Rules)
	}
	if input.ClearSchedule {
		updated.Schedule = nil
	} else if input.Schedule != nil {
		s := *input.Schedule
		updated.Schedule = &s
	}
	if input.Metadata != nil {
		updated.Metadata = make(map[string]string, len(*input.Metadata))
		for k, v := range *input.Metadata {
			updated.Metadata[k] = v
		}
	}

	if errs := validateFlag(updated); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	updated.UpdatedBy = input.UpdatedBy
	updated.UpdatedAt = time.Now().UTC()
	if err := uc.flagRepo.Update(ctx, updated); err != nil {
		return nil, notFoundOr(err, "feature flag", input.ID, "update feature flag")
	}

	recordAudit(ctx, uc.audit, uc.logger, RecordAuditLogInput{
		EntityType: model.EntityTypeFeatureFlag,
		EntityID:   updated.ID,
		Action:     orDefault(input.Action, model.AuditActionUpdate),
		OldValue:   oldValue,
		NewValue:   flagAuditValue(updated),
		UserID:     input.UpdatedBy,
	})

	return updated, nil
}
