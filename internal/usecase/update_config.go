package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/repository"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/service"
)

// UpdateConfigUseCase は設定エントリ更新ユースケース。
type UpdateConfigUseCase struct {
	configRepo repository.ConfigRepository
	validator  *service.ConfigValidator
	audit      AuditRecorder
	cipher     ValueCipher
	locker     KeyLocker
	logger     *slog.Logger
}

// NewUpdateConfigUseCase は新しい UpdateConfigUseCase を作成する。
func NewUpdateConfigUseCase(
	configRepo repository.ConfigRepository,
	validator *service.ConfigValidator,
	audit AuditRecorder,
	cipher ValueCipher,
	locker KeyLocker,
	logger *slog.Logger,
) *UpdateConfigUseCase {
	return &UpdateConfigUseCase{
		configRepo: configRepo,
		validator:  validator,
		audit:      audit,
		cipher:     cipher,
		locker:     locker,
		logger:     loggerOrDefault(logger),
	}
}

// UpdateConfigInput は設定エントリ更新の入力パラメータ。nil のフィールドは変更しない。
type UpdateConfigInput struct {
	ID             string                `json:"-"`
	Value          *string               `json:"value"`
	IsActive       *bool                 `json:"is_active"`
	ValidationRule *model.ValidationRule `json:"validation_rule"`
	Tags           *[]string             `json:"tags"`
	Description    *string               `json:"description"`
	UpdatedBy      string                `json:"-"`
	Action         string                `json:"-"`
	Metadata       map[string]string     `json:"-"`

	// ExpectedVersion を指定した場合、現在のバージョンと一致しなければ ErrVersionConflict を返す。
	ExpectedVersion *int `json:"expected_version"`
}

// UpdateConfigOutput は設定エントリ更新の出力。
type UpdateConfigOutput struct {
	Entry    *model.ConfigEntry
	OldValue string
	Warnings []string
}

// Execute は設定エントリを部分更新する。検証に失敗した場合は何も書き込まない。
func (uc *UpdateConfigUseCase) Execute(ctx context.Context, input UpdateConfigInput) (*UpdateConfigOutput, error) {
	current, err := uc.configRepo.GetByID(ctx, input.ID)
	if err != nil {
		return nil, notFoundOr(err, "configuration", input.ID, "get config entry")
	}

	unlock, err := lockKey(ctx, uc.locker, current.UniqueKey())
	if err != nil {
		return nil, err
	}
	defer unlock()

	// ロック取得後に最新の状態を読み直す
	current, err = uc.configRepo.GetByID(ctx, input.ID)
	if err != nil {
		return nil, notFoundOr(err, "configuration", input.ID, "get config entry")
	}
	if input.ExpectedVersion != nil && *input.ExpectedVersion != current.Version {
		return nil, ErrVersionConflict
	}

	existing, err := decryptEntry(uc.cipher, current)
	if err != nil {
		return nil, err
	}
	oldValue := existing.Value
	readVersion := existing.Version

	updated := existing.Clone()
	if input.Value != nil {
		updated.Value = *input.Value
	}
	if input.IsActive != nil {
		updated.IsActive = *input.IsActive
	}
	if input.ValidationRule != nil {
		rule := *input.ValidationRule
		updated.ValidationRule = &rule
	}
	if input.Tags != nil {
		updated.Tags = append([]string{}, (*input.Tags)...)
	}
	if input.Description != nil {
		updated.Description = *input.Description
	}

	result := uc.validator.Validate(updated)
	if !result.IsValid {
		return nil, &ValidationError{Errors: result.Errors, Warnings: result.Warnings}
	}

	updated.Version = readVersion + 1
	updated.UpdatedBy = input.UpdatedBy
	updated.UpdatedAt = time.Now().UTC()

	stored, err := encryptEntry(uc.cipher, updated)
	if err != nil {
		return nil, err
	}
	if err := uc.configRepo.Update(ctx, stored, readVersion); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, ErrVersionConflict
		}
		return nil, notFoundOr(err, "configuration", input.ID, "update config entry")
	}

	recordAudit(ctx, uc.audit, uc.logger, RecordAuditLogInput{
		EntityType: model.EntityTypeConfiguration,
		EntityID:   updated.ID,
		Action:     orDefault(input.Action, model.AuditActionUpdate),
		OldValue:   auditValue(updated, oldValue),
		NewValue:   auditValue(updated, updated.Value),
		UserID:     input.UpdatedBy,
		Metadata:   withVersionMetadata(input.Metadata, readVersion, updated.Version),
	})

	return &UpdateConfigOutput{Entry: updated, OldValue: oldValue, Warnings: result.Warnings}, nil
}

func withVersionMetadata(base map[string]string, oldVersion, newVersion int) map[string]string {
	md := make(map[string]string, len(base)+2)
	for k, v := range base {
		md[k] = v
	}
	md["old_version"] = fmt.Sprint(oldVersion)
	md["new_version"] = fmt.Sprint(newVersion)
	return md
}
