package model

import "time"

// EntityType は監査対象エンティティの種別。
type EntityType string

const (
	EntityTypeConfiguration EntityType = "Configuration"
	EntityTypeFeatureFlag   EntityType = "FeatureFlag"
	EntityTypeDeployment    EntityType = "Deployment"
	EntityTypeSnapshot      EntityType = "Snapshot"
)

// 監査アクション。
const (
	AuditActionCreate   = "CREATE"
	AuditActionUpdate   = "UPDATE"
	AuditActionDelete   = "DELETE"
	AuditActionRestore  = "RESTORE"
	AuditActionRollback = "ROLLBACK"
	AuditActionExecute  = "EXECUTE"
	AuditActionComplete = "COMPLETE"
	AuditActionFail     = "FAIL"
	AuditActionCancel   = "CANCEL"
)

// DeploymentAuditAction はデプロイメント項目の監査アクション名 (DEPLOYMENT_<ACTION>) を返す。
func DeploymentAuditAction(action DeploymentAction) string {
	return "DEPLOYMENT_" + string(action)
}

// AuditLogEntry は監査ログエントリ。追記のみで更新・削除はしない。
type AuditLogEntry struct {
	ID         string            `json:"id" db:"id"`
	EntityType EntityType        `json:"entity_type" db:"entity_type"`
	EntityID   string            `json:"entity_id" db:"entity_id"`
	Action     string            `json:"action" db:"action"`
	OldValue   *string           `json:"old_value,omitempty" db:"old_value"`
	NewValue   *string           `json:"new_value,omitempty" db:"new_value"`
	UserID     string            `json:"user_id" db:"user_id"`
	Metadata   map[string]string `json:"metadata,omitempty" db:"-"`
	Timestamp  time.Time         `json:"timestamp" db:"timestamp"`
}
