package usecase

import (
	"context"
	"log/slog"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/repository"
)

// DeleteConfigUseCase は設定エントリ削除ユースケース。
type DeleteConfigUseCase struct {
	configRepo repository.ConfigRepository
	audit      AuditRecorder
	cipher     ValueCipher
	locker     KeyLocker
	logger     *slog.Logger
}

// NewDeleteConfigUseCase は新しい DeleteConfigUseCase を作成する。
func NewDeleteConfigUseCase(
	configRepo repository.ConfigRepository,
	audit AuditRecorder,
	cipher ValueCipher,
	locker KeyLocker,
	logger *slog.Logger,
) *DeleteConfigUseCase {
	return &DeleteConfigUseCase{
		configRepo: configRepo,
		audit:      audit,
		cipher:     cipher,
		locker:     locker,
		logger:     loggerOrDefault(logger),
	}
}

// DeleteConfigInput は設定エントリ削除の入力パラメータ。
type DeleteConfigInput struct {
	ID        string
	DeletedBy string
	Action    string
	Metadata  map[string]string
}

// DeleteConfigOutput は設定エントリ削除の出力。Deleted は削除前のエントリ（平文）。
type DeleteConfigOutput struct {
	Deleted *model.ConfigEntry
}

// Execute は設定エントリを物理削除する。以前の値は監査ログにのみ残る。
func (uc *DeleteConfigUseCase) Execute(ctx context.Context, input DeleteConfigInput) (*DeleteConfigOutput, error) {
	current, err := uc.configRepo.GetByID(ctx, input.ID)
	if err != nil {
		return nil, notFoundOr(err, "configuration", input.ID, "get config entry")
	}

	unlock, err := lockKey(ctx, uc.locker, current.UniqueKey())
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err = uc.configRepo.GetByID(ctx, input.ID)
	if err != nil {
		return nil, notFoundOr(err, "configuration", input.ID, "get config entry")
	}
	existing, err := decryptEntry(uc.cipher, current)
	if err != nil {
		return nil, err
	}

	if err := uc.configRepo.Delete(ctx, input.ID); err != nil {
		return nil, notFoundOr(err, "configuration", input.ID, "delete config entry")
	}

	recordAudit(ctx, uc.audit, uc.logger, RecordAuditLogInput{
		EntityType: model.EntityTypeConfiguration,
		EntityID:   existing.ID,
		Action:     orDefault(input.Action, model.AuditActionDelete),
		OldValue:   auditValue(existing, existing.Value),
		UserID:     input.DeletedBy,
		Metadata:   input.Metadata,
	})

	return &DeleteConfigOutput{Deleted: existing}, nil
}
