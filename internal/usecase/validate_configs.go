package usecase

import (
	"context"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/service"
)

// ValidateConfigsUseCase は設定エントリの一括検証ユースケース。何も保存しない。
type ValidateConfigsUseCase struct {
	validator *service.ConfigValidator
}

// NewValidateConfigsUseCase は新しい ValidateConfigsUseCase を作成する。
func NewValidateConfigsUseCase(validator *service.ConfigValidator) *ValidateConfigsUseCase {
	return &ValidateConfigsUseCase{validator: validator}
}

// ValidateConfigItem は検証対象の 1 件。
type ValidateConfigItem struct {
	Key            string                `json:"key"`
	Value          string                `json:"value"`
	Environment    string                `json:"environment"`
	Application    string                `json:"application"`
	TenantID       string                `json:"tenant_id"`
	ValidationRule *model.ValidationRule `json:"validation_rule"`
}

// ValidateConfigsOutput は一括検証の結果。Results は入力と同じ順序。
type ValidateConfigsOutput struct {
	Results  []model.ValidationResult `json:"results"`
	AllValid bool                     `json:"all_valid"`
}

// Execute は items を検証する。同じバッチ内の一意キー重複もエラーにする。
func (uc *ValidateConfigsUseCase) Execute(_ context.Context, items []ValidateConfigItem) (*ValidateConfigsOutput, error) {
	if len(items) == 0 {
		return nil, newValidationError("at least one configuration is required")
	}

	entries := make([]*model.ConfigEntry, len(items))
	for i, item := range items {
		entries[i] = &model.ConfigEntry{
			Key:            item.Key,
			Value:          item.Value,
			Environment:    item.Environment,
			Application:    item.Application,
			TenantID:       item.TenantID,
			ValidationRule: item.ValidationRule,
		}
	}

	results := uc.validator.ValidateBatch(entries)
	out := &ValidateConfigsOutput{Results: results, AllValid: true}
	for _, r := range results {
		if !r.IsValid {
			out.AllValid = false
		}
	}
	return out, nil
}
