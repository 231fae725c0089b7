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

// RollbackDeploymentUseCase はデプロイメントのロールバックユースケース。
type RollbackDeploymentUseCase struct {
	deployRepo   repository.DeploymentRepository
	createConfig *CreateConfigUseCase
	updateConfig *UpdateConfigUseCase
	cipher       ValueCipher
	audit        AuditRecorder
	metrics      DeploymentMetrics
	logger       *slog.Logger
	allowFailed  bool
}

// RollbackOption は RollbackDeploymentUseCase のオプション。
type RollbackOption func(*RollbackDeploymentUseCase)

// WithFailedDeploymentRollback は FAILED のデプロイメントのロールバックを許可する。
// 完了済みの項目だけが戻され、失敗した項目には触れない。
func WithFailedDeploymentRollback(allow bool) RollbackOption {
	return func(uc *RollbackDeploymentUseCase) {
		uc.allowFailed = allow
	}
}

// NewRollbackDeploymentUseCase は新しい RollbackDeploymentUseCase を作成する。
func NewRollbackDeploymentUseCase(
	deployRepo repository.DeploymentRepository,
	createConfig *CreateConfigUseCase,
	updateConfig *UpdateConfigUseCase,
	cipher ValueCipher,
	audit AuditRecorder,
	metrics DeploymentMetrics,
	logger *slog.Logger,
	opts ...RollbackOption,
) *RollbackDeploymentUseCase {
	uc := &RollbackDeploymentUseCase{
		deployRepo:   deployRepo,
		createConfig: createConfig,
		updateConfig: updateConfig,
		cipher:       cipher,
		audit:        audit,
		metrics:      metrics,
		logger:       loggerOrDefault(logger),
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// RollbackDeploymentInput はロールバックの入力パラメータ。
type RollbackDeploymentInput struct {
	ID           string
	Reason       string
	RolledBackBy string
}

// Execute は COMPLETED のデプロイメントを ROLLED_BACK にし、完了済みの項目を実行前の値に戻す。
// WithFailedDeploymentRollback を指定した場合は FAILED からも実行できる。
// 項目は逆順に戻すため、同じ設定を複数回変更していても実行前の値になる。
func (uc *RollbackDeploymentUseCase) Execute(ctx context.Context, input RollbackDeploymentInput) (*model.Deployment, error) {
	d, err := uc.deployRepo.GetByID(ctx, input.ID)
	if err != nil {
		return nil, notFoundOr(err, "deployment", input.ID, "get deployment")
	}
	if !uc.canRollback(d.Status) {
		return nil, &IllegalStateTransitionError{DeploymentID: d.ID, From: d.Status, To: model.DeploymentStatusRolledBack}
	}

	prev := d.Status
	d.Status = model.DeploymentStatusRolledBack
	d.RollbackReason = input.Reason
	if err := uc.deployRepo.Update(ctx, d, prev); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			current, getErr := uc.deployRepo.GetByID(ctx, d.ID)
			if getErr != nil {
				return nil, notFoundOr(getErr, "deployment", d.ID, "get deployment")
			}
			return nil, &IllegalStateTransitionError{DeploymentID: d.ID, From: current.Status, To: model.DeploymentStatusRolledBack}
		}
		return nil, fmt.Errorf("failed to roll back deployment: %w", err)
	}

	metadata := map[string]string{"deployment_id": d.ID, "reason": input.Reason}
	for i := len(d.Items) - 1; i >= 0; i-- {
		item := &d.Items[i]
		if item.Status != model.ItemStatusCompleted {
			continue
		}
		if err := uc.revertItem(ctx, item, input.RolledBackBy, metadata); err != nil {
			item.ErrorMessage = fmt.Sprintf("rollback failed: %v", err)
			recordAudit(ctx, uc.audit, uc.logger, RecordAuditLogInput{
				EntityType: model.EntityTypeConfiguration,
				EntityID:   item.ConfigurationID,
				Action:     model.AuditActionRollback,
				OldValue:   itemAuditValue(item, item.NewValue),
				NewValue:   itemAuditValue(item, item.OldValue),
				UserID:     input.RolledBackBy,
				Metadata: map[string]string{
					"deployment_id": d.ID,
					"item_id":       item.ID,
					"error":         err.Error(),
				},
			})
			uc.logger.Warn("failed to revert deployment item",
				slog.String("deployment_id", d.ID),
				slog.String("item_id", item.ID),
				slog.Any("error", err),
			)
		}
	}

	if err := uc.deployRepo.Update(ctx, d, model.DeploymentStatusRolledBack); err != nil {
		return nil, fmt.Errorf("failed to save rolled back deployment: %w", err)
	}

	recordAudit(ctx, uc.audit, uc.logger, RecordAuditLogInput{
		EntityType: model.EntityTypeDeployment,
		EntityID:   d.ID,
		Action:     model.AuditActionRollback,
		OldValue:   strPtr(string(prev)),
		NewValue:   strPtr(string(model.DeploymentStatusRolledBack)),
		UserID:     input.RolledBackBy,
		Metadata:   map[string]string{"reason": input.Reason, "rolled_back_at": time.Now().UTC().Format(time.RFC3339)},
	})
	if uc.metrics != nil {
		uc.metrics.RecordDeployment(model.DeploymentStatusRolledBack)
	}

	return d, nil
}

func (uc *RollbackDeploymentUseCase) canRollback(status model.DeploymentStatus) bool {
	if status.CanTransitionTo(model.DeploymentStatusRolledBack) {
		return true
	}
	return uc.allowFailed && status == model.DeploymentStatusFailed
}

func (uc *RollbackDeploymentUseCase) revertItem(ctx context.Context, item *model.DeploymentItem, actor string, metadata map[string]string) error {
	md := map[string]string{"item_id": item.ID}
	for k, v := range metadata {
		md[k] = v
	}

	switch item.Action {
	case model.DeploymentActionUpdate:
		if item.OldValue == nil {
			return errors.New("old value was not captured")
		}
		old, err := uc.plain(item, *item.OldValue)
		if err != nil {
			return err
		}
		_, err = uc.updateConfig.Execute(ctx, UpdateConfigInput{
			ID:        item.ConfigurationID,
			Value:     &old,
			UpdatedBy: actor,
			Action:    model.AuditActionRollback,
			Metadata:  md,
		})
		return err
	case model.DeploymentActionDelete:
		e := item.DeletedEntry
		if e == nil {
			return errors.New("deleted entry was not captured")
		}
		value, err := uc.plain(item, e.Value)
		if err != nil {
			return err
		}
		// 同じ ID で再作成するため、削除前より大きいバージョンから始める
		_, err = uc.createConfig.Execute(ctx, CreateConfigInput{
			ID:             e.ID,
			Version:        e.Version + 1,
			Key:            e.Key,
			Value:          value,
			Environment:    e.Environment,
			Application:    e.Application,
			TenantID:       e.TenantID,
			IsEncrypted:    e.IsEncrypted,
			ValidationRule: e.ValidationRule,
			Tags:           e.Tags,
			Description:    e.Description,
			CreatedBy:      actor,
			Action:         model.AuditActionRollback,
			Metadata:       md,
		})
		return err
	}
	return fmt.Errorf("unknown action %q", item.Action)
}

// plain は項目に保持した値を平文にする。
func (uc *RollbackDeploymentUseCase) plain(item *model.DeploymentItem, value string) (string, error) {
	if !item.Encrypted {
		return value, nil
	}
	return openValue(uc.cipher, value)
}
