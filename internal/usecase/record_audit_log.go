package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/repository"
)

// AuditEventPublisher は監査イベントの非同期配信インターフェース。
type AuditEventPublisher interface {
	Publish(ctx context.Context, entry *model.AuditLogEntry) error
}

// AuditRecorder は監査ログの記録インターフェース。RecordAuditLogUseCase が実装する。
type AuditRecorder interface {
	Execute(ctx context.Context, input RecordAuditLogInput) (*RecordAuditLogOutput, error)
}

// RecordAuditLogUseCase は監査ログ記録ユースケース。
type RecordAuditLogUseCase struct {
	auditRepo repository.AuditLogRepository
	publisher AuditEventPublisher
	logger    *slog.Logger
}

// NewRecordAuditLogUseCase は新しい RecordAuditLogUseCase を作成する。
func NewRecordAuditLogUseCase(
	auditRepo repository.AuditLogRepository,
	publisher AuditEventPublisher,
	logger *slog.Logger,
) *RecordAuditLogUseCase {
	return &RecordAuditLogUseCase{
		auditRepo: auditRepo,
		publisher: publisher,
		logger:    loggerOrDefault(logger),
	}
}

// RecordAuditLogInput は監査ログ記録の入力パラメータ。
type RecordAuditLogInput struct {
	EntityType model.EntityType  `json:"entity_type" validate:"required"`
	EntityID   string            `json:"entity_id" validate:"required"`
	Action     string            `json:"action" validate:"required"`
	OldValue   *string           `json:"old_value"`
	NewValue   *string           `json:"new_value"`
	UserID     string            `json:"user_id" validate:"required"`
	Metadata   map[string]string `json:"metadata"`
}

// RecordAuditLogOutput は監査ログ記録の出力。
type RecordAuditLogOutput struct {
	ID         string    `json:"id"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Execute は監査ログエントリを記録する。
func (uc *RecordAuditLogUseCase) Execute(ctx context.Context, input RecordAuditLogInput) (*RecordAuditLogOutput, error) {
	now := time.Now().UTC()
	entry := &model.AuditLogEntry{
		ID:         uuid.New().String(),
		EntityType: input.EntityType,
		EntityID:   input.EntityID,
		Action:     input.Action,
		OldValue:   input.OldValue,
		NewValue:   input.NewValue,
		UserID:     input.UserID,
		Metadata:   input.Metadata,
		Timestamp:  now,
	}

	// DB に保存
	if err := uc.auditRepo.Create(ctx, entry); err != nil {
		return nil, err
	}

	// イベントバスに配信（失敗しても記録は成功とする）
	if uc.publisher != nil {
		if err := uc.publisher.Publish(ctx, entry); err != nil {
			uc.logger.Warn("failed to publish audit event",
				slog.String("audit_id", entry.ID),
				slog.String("entity_type", string(entry.EntityType)),
				slog.String("entity_id", entry.EntityID),
				slog.Any("error", err),
			)
		}
	}

	return &RecordAuditLogOutput{
		ID:         entry.ID,
		RecordedAt: now,
	}, nil
}

// recordAudit は監査ログを記録する。失敗しても呼び出し元の変更は取り消さず、警告ログのみ出力する。
func recordAudit(ctx context.Context, recorder AuditRecorder, logger *slog.Logger, input RecordAuditLogInput) {
	if recorder == nil {
		return
	}
	if _, err := recorder.Execute(ctx, input); err != nil {
		logger.Warn("failed to record audit log",
			slog.String("entity_type", string(input.EntityType)),
			slog.String("entity_id", input.EntityID),
			slog.String("action", input.Action),
			slog.Any("error", err),
		)
	}
}

// strPtr は文字列のポインタを返す。
func strPtr(s string) *string {
	return &s
}
