package repository

import (
	"context"
	"time"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
)

// AuditLogRepository は監査ログの永続化インターフェース。追記と検索のみを提供する。
type AuditLogRepository interface {
	// Create は監査ログエントリを追記する。
	Create(ctx context.Context, entry *model.AuditLogEntry) error

	// Search は監査ログをタイムスタンプの降順で検索する。
	Search(ctx context.Context, params AuditLogSearchParams) ([]*model.AuditLogEntry, int, error)
}

// AuditLogSearchParams は監査ログ検索パラメータ。
type AuditLogSearchParams struct {
	EntityType model.EntityType
	EntityID   string
	Action     string
	UserID     string
	From       *time.Time
	To         *time.Time
	Page       int
	PageSize   int
}
