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

// ExecuteDeploymentUseCase はデプロイメント実行ユースケース。
// 項目は定義順に処理し、1 件の失敗で後続の処理を止めない。
type ExecuteDeploymentUseCase struct {
	deployRepo   repository.DeploymentRepository
	getConfig    *GetConfigUseCase
	updateConfig *UpdateConfigUseCase
	deleteConfig *DeleteConfigUseCase
	cipher       ValueCipher
	audit        AuditRecorder
	metrics      DeploymentMetrics
	logger       *slog.Logger
}

// NewExecuteDeploymentUseCase は新しい ExecuteDeploymentUseCase を作成する。
func NewExecuteDeploymentUseCase(
	deployRepo repository.DeploymentRepository,
	getConfig *GetConfigUseCase,
	updateConfig *UpdateConfigUseCase,
	deleteConfig *DeleteConfigUseCase,
	cipher ValueCipher,
	audit AuditRecorder,
	metrics DeploymentMetrics,
	logger *slog.Logger,
) *ExecuteDeploymentUseCase {
	return &ExecuteDeploymentUseCase{
		deployRepo:   deployRepo,
		getConfig:    getConfig,
		updateConfig: updateConfig,
		deleteConfig: deleteConfig,
		cipher:       cipher,
		audit:        audit,
		metrics:      metrics,
		logger:       loggerOrDefault(logger),
	}
}

// ExecuteDeploymentInput はデプロイメント実行の入力パラメータ。
type ExecuteDeploymentInput struct {
	ID         string
	DeployedBy string
}

// Execute はデプロイメントを実行する。PENDING 以外からは IllegalStateTransitionError を返す。
// 一部の項目が失敗しても error は返さず、FAILED のデプロイメントを返す。
func (uc *ExecuteDeploymentUseCase) Execute(ctx context.Context, input ExecuteDeploymentInput) (*model.Deployment, error) {
	d, err := uc.deployRepo.GetByID(ctx, input.ID)
	if err != nil {
		return nil, notFoundOr(err, "deployment", input.ID, "get deployment")
	}
	if d.Status != model.DeploymentStatusPending || !d.Status.CanTransitionTo(model.DeploymentStatusInProgress) {
		return nil, &IllegalStateTransitionError{DeploymentID: d.ID, From: d.Status, To: model.DeploymentStatusInProgress}
	}

	now := time.Now().UTC()
	d.Status = model.DeploymentStatusInProgress
	d.DeployedBy = input.DeployedBy
	d.DeployedAt = &now
	if err := uc.deployRepo.Update(ctx, d, model.DeploymentStatusPending); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, uc.conflictError(ctx, d.ID, model.DeploymentStatusInProgress)
		}
		return nil, fmt.Errorf("failed to start deployment: %w", err)
	}

	recordAudit(ctx, uc.audit, uc.logger, RecordAuditLogInput{
		EntityType: model.EntityTypeDeployment,
		EntityID:   d.ID,
		Action:     model.AuditActionExecute,
		OldValue:   strPtr(string(model.DeploymentStatusPending)),
		NewValue:   strPtr(string(model.DeploymentStatusInProgress)),
		UserID:     input.DeployedBy,
	})
	uc.logger.Info("deployment started",
		slog.String("deployment_id", d.ID),
		slog.Int("items", len(d.Items)),
	)

	for i := range d.Items {
		if uc.cancelled(ctx, d) {
			uc.logger.Info("deployment cancelled during execution",
				slog.String("deployment_id", d.ID),
				slog.Int("processed", i),
			)
			return d, nil
		}

		item := &d.Items[i]
		item.Status = model.ItemStatusProcessing
		uc.processItem(ctx, d, item, input.DeployedBy)
		if uc.metrics != nil {
			uc.metrics.RecordDeploymentItem(item.Action, item.Status)
		}

		if err := uc.saveProgress(ctx, d); err != nil {
			return nil, err
		}
	}

	if d.Status == model.DeploymentStatusCancelled {
		return d, nil
	}

	final := model.DeploymentStatusCompleted
	action := model.AuditActionComplete
	if d.HasFailedItems() {
		final = model.DeploymentStatusFailed
		action = model.AuditActionFail
	}
	completedAt := time.Now().UTC()
	d.Status = final
	d.CompletedAt = &completedAt
	if err := uc.deployRepo.Update(ctx, d, model.DeploymentStatusInProgress); err != nil {
		if !errors.Is(err, repository.ErrStatusConflict) {
			return nil, fmt.Errorf("failed to finish deployment: %w", err)
		}
		// 完了直前に取り消された場合は CANCELLED を優先する
		d.Status = model.DeploymentStatusInProgress
		d.CompletedAt = nil
		if err := uc.saveProgress(ctx, d); err != nil {
			return nil, err
		}
		return d, nil
	}

	recordAudit(ctx, uc.audit, uc.logger, RecordAuditLogInput{
		EntityType: model.EntityTypeDeployment,
		EntityID:   d.ID,
		Action:     action,
		OldValue:   strPtr(string(model.DeploymentStatusInProgress)),
		NewValue:   strPtr(string(final)),
		UserID:     input.DeployedBy,
	})
	if uc.metrics != nil {
		uc.metrics.RecordDeployment(final)
	}
	uc.logger.Info("deployment finished",
		slog.String("deployment_id", d.ID),
		slog.String("status", string(final)),
	)

	return d, nil
}

// processItem は 1 件の項目を適用し、結果を項目に記録する。
func (uc *ExecuteDeploymentUseCase) processItem(ctx context.Context, d *model.Deployment, item *model.DeploymentItem, actor string) {
	metadata := map[string]string{
		"deployment_id": d.ID,
		"item_id":       item.ID,
	}
	fail := func(err error) {
		processedAt := time.Now().UTC()
		item.Status = model.ItemStatusFailed
		item.ErrorMessage = err.Error()
		item.ProcessedAt = &processedAt

		md := make(map[string]string, len(metadata)+2)
		for k, v := range metadata {
			md[k] = v
		}
		md["status"] = string(model.ItemStatusFailed)
		md["error"] = item.ErrorMessage
		recordAudit(ctx, uc.audit, uc.logger, RecordAuditLogInput{
			EntityType: model.EntityTypeConfiguration,
			EntityID:   item.ConfigurationID,
			Action:     model.DeploymentAuditAction(item.Action),
			OldValue:   itemAuditValue(item, item.OldValue),
			NewValue:   itemAuditValue(item, item.NewValue),
			UserID:     actor,
			Metadata:   md,
		})
		uc.logger.Warn("deployment item failed",
			slog.String("deployment_id", d.ID),
			slog.String("item_id", item.ID),
			slog.String("configuration_id", item.ConfigurationID),
			slog.Any("error", err),
		)
	}

	current, err := uc.getConfig.Execute(ctx, GetConfigInput{ID: item.ConfigurationID})
	if err != nil {
		fail(err)
		return
	}
	if current.Scope() != d.Scope() {
		fail(fmt.Errorf("configuration %s belongs to %s, not %s", current.ID, current.Scope(), d.Scope()))
		return
	}
	newValue, err := uc.plainNewValue(item)
	if err != nil {
		fail(err)
		return
	}
	if err := uc.captureValues(item, current, newValue); err != nil {
		fail(err)
		return
	}

	switch item.Action {
	case model.DeploymentActionUpdate:
		if newValue == nil {
			fail(errors.New("new_value is required for UPDATE"))
			return
		}
		_, err = uc.updateConfig.Execute(ctx, UpdateConfigInput{
			ID:        item.ConfigurationID,
			Value:     newValue,
			UpdatedBy: actor,
			Action:    model.DeploymentAuditAction(item.Action),
			Metadata:  metadata,
		})
	case model.DeploymentActionDelete:
		var out *DeleteConfigOutput
		out, err = uc.deleteConfig.Execute(ctx, DeleteConfigInput{
			ID:        item.ConfigurationID,
			DeletedBy: actor,
			Action:    model.DeploymentAuditAction(item.Action),
			Metadata:  metadata,
		})
		if err == nil {
			item.DeletedEntry, err = uc.sealDeleted(item, out.Deleted)
		}
	default:
		err = fmt.Errorf("unknown action %q", item.Action)
	}
	if err != nil {
		fail(err)
		return
	}

	processedAt := time.Now().UTC()
	item.Status = model.ItemStatusCompleted
	item.ErrorMessage = ""
	item.ProcessedAt = &processedAt
}

// plainNewValue は項目の new_value を平文で返す。
func (uc *ExecuteDeploymentUseCase) plainNewValue(item *model.DeploymentItem) (*string, error) {
	if item.NewValue == nil || !item.Encrypted {
		return item.NewValue, nil
	}
	plain, err := openValue(uc.cipher, *item.NewValue)
	if err != nil {
		return nil, err
	}
	return &plain, nil
}

// captureValues は実行前の値と new_value を項目に記録する。
// 対象が暗号化エントリの場合は暗号文で保持する。
func (uc *ExecuteDeploymentUseCase) captureValues(item *model.DeploymentItem, current *model.ConfigEntry, newValue *string) error {
	if !current.IsEncrypted {
		item.OldValue = strPtr(current.Value)
		item.NewValue = newValue
		item.Encrypted = false
		return nil
	}
	old, err := sealValue(uc.cipher, current.Value)
	if err != nil {
		return err
	}
	item.OldValue = &old
	if newValue != nil {
		sealed, err := sealValue(uc.cipher, *newValue)
		if err != nil {
			return err
		}
		item.NewValue = &sealed
	}
	item.Encrypted = true
	return nil
}

// sealDeleted は削除したエントリを項目に保持する形式にする。
func (uc *ExecuteDeploymentUseCase) sealDeleted(item *model.DeploymentItem, deleted *model.ConfigEntry) (*model.ConfigEntry, error) {
	if deleted == nil || !item.Encrypted {
		return deleted, nil
	}
	entry := deleted.Clone()
	sealed, err := sealValue(uc.cipher, entry.Value)
	if err != nil {
		return nil, err
	}
	entry.Value = sealed
	return entry, nil
}

// cancelled は保存済みのステータスを読み直し、取り消されていれば d に反映して true を返す。
func (uc *ExecuteDeploymentUseCase) cancelled(ctx context.Context, d *model.Deployment) bool {
	if d.Status == model.DeploymentStatusCancelled {
		return true
	}
	current, err := uc.deployRepo.GetByID(ctx, d.ID)
	if err != nil {
		return false
	}
	if current.Status == model.DeploymentStatusCancelled {
		d.Status = model.DeploymentStatusCancelled
		return true
	}
	return false
}

// saveProgress は項目の進捗を保存する。途中で取り消されていた場合は CANCELLED のまま項目だけを反映する。
func (uc *ExecuteDeploymentUseCase) saveProgress(ctx context.Context, d *model.Deployment) error {
	err := uc.deployRepo.Update(ctx, d, d.Status)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrStatusConflict) {
		return fmt.Errorf("failed to save deployment progress: %w", err)
	}

	current, err := uc.deployRepo.GetByID(ctx, d.ID)
	if err != nil {
		return fmt.Errorf("failed to reload deployment: %w", err)
	}
	current.Items = d.Items
	if err := uc.deployRepo.Update(ctx, current, current.Status); err != nil {
		return fmt.Errorf("failed to save deployment progress: %w", err)
	}
	d.Status = current.Status
	return nil
}

func (uc *ExecuteDeploymentUseCase) conflictError(ctx context.Context, id string, to model.DeploymentStatus) error {
	current, err := uc.deployRepo.GetByID(ctx, id)
	if err != nil {
		return notFoundOr(err, "deployment", id, "get deployment")
	}
	return &IllegalStateTransitionError{DeploymentID: id, From: current.Status, To: to}
}
