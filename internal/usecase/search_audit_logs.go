package usecase

import (
	"context"
	"time"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/repository"
)

// SearchAuditLogsUseCase は監査ログ検索ユースケース。
type SearchAuditLogsUseCase struct {
	auditRepo repository.AuditLogRepository
}

// NewSearchAuditLogsUseCase は新しい SearchAuditLogsUseCase を作成する。
func NewSearchAuditLogsUseCase(auditRepo repository.AuditLogRepository) *SearchAuditLogsUseCase {
	return &SearchAuditLogsUseCase{
		auditRepo: auditRepo,
	}
}

// SearchAuditLogsInput は監査ログ検索の入力パラメータ。
type SearchAuditLogsInput struct {
	Page       int
	PageSize   int
	EntityType model.EntityType
	EntityID   string
	Action     string
	UserID     string
	From       *time.Time
	To         *time.Time
}

// SearchAuditLogsOutput は監査ログ検索の出力。
type SearchAuditLogsOutput struct {
	Logs       []*model.AuditLogEntry
	TotalCount int
	Page       int
	PageSize   int
	HasNext    bool
}

// Execute は監査ログを検索する。
func (uc *SearchAuditLogsUseCase) Execute(ctx context.Context, input SearchAuditLogsInput) (*SearchAuditLogsOutput, error) {
	// デフォルト値の設定
	if input.Page <= 0 {
		input.Page = 1
	}
	if input.PageSize <= 0 {
		input.PageSize = 50
	}
	if input.PageSize > 200 {
		input.PageSize = 200
	}
	if input.From != nil && input.To != nil && input.From.After(*input.To) {
		return nil, newValidationError("from must not be after to")
	}

	params := repository.AuditLogSearchParams{
		EntityType: input.EntityType,
		EntityID:   input.EntityID,
		Action:     input.Action,
		UserID:     input.UserID,
		From:       input.From,
		To:         input.To,
		Page:       input.Page,
		PageSize:   input.PageSize,
	}

	logs, totalCount, err := uc.auditRepo.Search(ctx, params)
	if err != nil {
		return nil, err
	}

	return &SearchAuditLogsOutput{
		Logs:       logs,
		TotalCount: totalCount,
		Page:       input.Page,
		PageSize:   input.PageSize,
		HasNext:    input.Page*input.PageSize < totalCount,
	}, nil
}
