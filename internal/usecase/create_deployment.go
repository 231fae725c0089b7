package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/repository"
)

// DeploymentMetrics はデプロイメント結果の計測インターフェース。
type DeploymentMetrics interface {
	RecordDeployment(status model.DeploymentStatus)
	RecordDeploymentItem(action model.DeploymentAction, status model.ItemStatus)
}

// CreateDeploymentUseCase はデプロイメント作成ユースケース。設定値には一切触れない。
// 暗号化エントリへの UPDATE 項目は new_value を暗号文で保存する。
type CreateDeploymentUseCase struct {
	deployRepo repository.DeploymentRepository
	configRepo repository.ConfigRepository
	cipher     ValueCipher
	audit      AuditRecorder
	logger     *slog.Logger
}

// NewCreateDeploymentUseCase は新しい CreateDeploymentUseCase を作成する。
func NewCreateDeploymentUseCase(
	deployRepo repository.DeploymentRepository,
	configRepo repository.ConfigRepository,
	cipher ValueCipher,
	audit AuditRecorder,
	logger *slog.Logger,
) *CreateDeploymentUseCase {
	return &CreateDeploymentUseCase{
		deployRepo: deployRepo,
		configRepo: configRepo,
		cipher:     cipher,
		audit:      audit,
		logger:     loggerOrDefault(logger),
	}
}

// CreateDeploymentItemInput はデプロイメント項目の入力。
type CreateDeploymentItemInput struct {
	ConfigurationID string                 `json:"configuration_id"`
	Action          model.DeploymentAction `json:"action"`
	NewValue        *string                `json:"new_value"`
}

// CreateDeploymentInput はデプロイメント作成の入力パラメータ。
type CreateDeploymentInput struct {
	Name        string                      `json:"name"`
	Description string                      `json:"description"`
	Environment string                      `json:"environment"`
	Application string                      `json:"application"`
	TenantID    string                      `json:"tenant_id"`
	Items       []CreateDeploymentItemInput `json:"items"`
	CreatedBy   string                      `json:"-"`
}

// Execute はデプロイメントを PENDING で作成する。
func (uc *CreateDeploymentUseCase) Execute(ctx context.Context, input CreateDeploymentInput) (*model.Deployment, error) {
	if errs := validateDeploymentInput(input); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	now := time.Now().UTC()
	d := &model.Deployment{
		ID:          uuid.New().String(),
		Name:        input.Name,
		Description: input.Description,
		Environment: input.Environment,
		Application: input.Application,
		TenantID:    input.TenantID,
		Status:      model.DeploymentStatusPending,
		Items:       make([]model.DeploymentItem, 0, len(input.Items)),
		CreatedBy:   input.CreatedBy,
		CreatedAt:   now,
	}
	for _, in := range input.Items {
		item := model.DeploymentItem{
			ID:              uuid.New().String(),
			ConfigurationID: in.ConfigurationID,
			Action:          in.Action,
			Status:          model.ItemStatusPending,
		}
		if in.NewValue != nil {
			item.NewValue = strPtr(*in.NewValue)
			if err := uc.sealNewValue(ctx, &item); err != nil {
				return nil, err
			}
		}
		d.Items = append(d.Items, item)
	}

	if err := uc.deployRepo.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to create deployment: %w", err)
	}

	recordAudit(ctx, uc.audit, uc.logger, RecordAuditLogInput{
		EntityType: model.EntityTypeDeployment,
		EntityID:   d.ID,
		Action:     model.AuditActionCreate,
		NewValue:   strPtr(string(d.Status)),
		UserID:     input.CreatedBy,
		Metadata: map[string]string{
			"name":       d.Name,
			"item_count": fmt.Sprint(len(d.Items)),
		},
	})

	return d, nil
}

// sealNewValue は対象が暗号化エントリの場合に new_value を暗号文にする。
// 対象が存在しない項目は実行時に失敗するため、ここではそのまま保存する。
func (uc *CreateDeploymentUseCase) sealNewValue(ctx context.Context, item *model.DeploymentItem) error {
	if uc.configRepo == nil {
		return nil
	}
	target, err := uc.configRepo.GetByID(ctx, item.ConfigurationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to get config entry: %w", err)
	}
	if !target.IsEncrypted {
		return nil
	}
	sealed, err := sealValue(uc.cipher, *item.NewValue)
	if err != nil {
		return err
	}
	item.NewValue = &sealed
	item.Encrypted = true
	return nil
}

func validateDeploymentInput(input CreateDeploymentInput) []string {
	var errs []string
	if strings.TrimSpace(input.Name) == "" {
		errs = append(errs, "name is required")
	}
	if strings.TrimSpace(input.Environment) == "" {
		errs = append(errs, "environment is required")
	}
	if strings.TrimSpace(input.Application) == "" {
		errs = append(errs, "application is required")
	}
	if len(input.Items) == 0 {
		errs = append(errs, "at least one item is required")
	}
	for i, item := range input.Items {
		if item.ConfigurationID == "" {
			errs = append(errs, fmt.Sprintf("items[%d]: configuration_id is required", i))
		}
		switch item.Action {
		case model.DeploymentActionUpdate:
			if item.NewValue == nil {
				errs = append(errs, fmt.Sprintf("items[%d]: new_value is required for UPDATE", i))
			}
		case model.DeploymentActionDelete:
		default:
			errs = append(errs, fmt.Sprintf("items[%d]: unknown action %q", i, item.Action))
		}
	}
	return errs
}
