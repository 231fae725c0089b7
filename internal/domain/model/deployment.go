package model

import (
	"time"
)

// DeploymentStatus はデプロイメントのステータス。
type DeploymentStatus string

const (
	DeploymentStatusPending    DeploymentStatus = "PENDING"
	DeploymentStatusInProgress DeploymentStatus = "IN_PROGRESS"
	DeploymentStatusCompleted  DeploymentStatus = "COMPLETED"
	DeploymentStatusFailed     DeploymentStatus = "FAILED"
	DeploymentStatusRolledBack DeploymentStatus = "ROLLED_BACK"
	DeploymentStatusCancelled  DeploymentStatus = "CANCELLED"
)

// CanTransitionTo は現在のステータスから目的のステータスへ遷移可能かを返す。
// Failed / RolledBack / Cancelled は終端状態。
func (s DeploymentStatus) CanTransitionTo(next DeploymentStatus) bool {
	switch s {
	case DeploymentStatusPending:
		return next == DeploymentStatusInProgress || next == DeploymentStatusCancelled
	case DeploymentStatusInProgress:
		return next == DeploymentStatusCompleted || next == DeploymentStatusFailed ||
			next == DeploymentStatusCancelled
	case DeploymentStatusCompleted:
		return next == DeploymentStatusRolledBack
	}
	return false
}

// IsValid はステータスが定義済みの値かどうかを返す。
func (s DeploymentStatus) IsValid() bool {
	switch s {
	case DeploymentStatusPending, DeploymentStatusInProgress, DeploymentStatusCompleted,
		DeploymentStatusFailed, DeploymentStatusRolledBack, DeploymentStatusCancelled:
		return true
	}
	return false
}

// DeploymentAction はデプロイメント項目の操作種別。
type DeploymentAction string

const (
	DeploymentActionUpdate DeploymentAction = "UPDATE"
	DeploymentActionDelete DeploymentAction = "DELETE"
)

// ItemStatus はデプロイメント項目のステータス。
type ItemStatus string

const (
	ItemStatusPending    ItemStatus = "PENDING"
	ItemStatusProcessing ItemStatus = "PROCESSING"
	ItemStatusCompleted  ItemStatus = "COMPLETED"
	ItemStatusFailed     ItemStatus = "FAILED"
)

// Deployment は順序付きの設定変更バッチ。
type Deployment struct {
	ID             string           `json:"id" db:"id"`
	Name           string           `json:"name" db:"name"`
	Description    string           `json:"description" db:"description"`
	Environment    string           `json:"environment" db:"environment"`
	Application    string           `json:"application" db:"application"`
	TenantID       string           `json:"tenant_id,omitempty" db:"tenant_id"`
	Status         DeploymentStatus `json:"status" db:"status"`
	Items          []DeploymentItem `json:"items" db:"-"`
	CreatedBy      string           `json:"created_by" db:"created_by"`
	DeployedBy     string           `json:"deployed_by,omitempty" db:"deployed_by"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
	DeployedAt     *time.Time       `json:"deployed_at,omitempty" db:"deployed_at"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty" db:"completed_at"`
	RollbackReason string           `json:"rollback_reason,omitempty" db:"rollback_reason"`
}

// Clone はデプロイメントのディープコピーを返す。
func (d *Deployment) Clone() *Deployment {
	if d == nil {
		return nil
	}
	c := *d
	c.Items = make([]DeploymentItem, len(d.Items))
	for i, item := range d.Items {
		c.Items[i] = item.clone()
	}
	return &c
}

// Scope はデプロイメントが対象とするスコープを返す。
func (d *Deployment) Scope() Scope {
	return Scope{
		Environment: d.Environment,
		Application: d.Application,
		TenantID:    d.TenantID,
	}
}

// HasFailedItems はいずれかの項目が失敗しているかを返す。
func (d *Deployment) HasFailedItems() bool {
	for _, item := range d.Items {
		if item.Status == ItemStatusFailed {
			return true
		}
	}
	return false
}

// DeploymentItem はデプロイメント内の 1 件の設定変更。
// OldValue は実行時に取得し、ロールバックに使う。
// Encrypted の場合、項目が持つ値はすべて暗号文で保持する。
type DeploymentItem struct {
	ID              string           `json:"id" db:"id"`
	ConfigurationID string           `json:"configuration_id" db:"configuration_id"`
	Action          DeploymentAction `json:"action" db:"action"`
	OldValue        *string          `json:"old_value,omitempty" db:"old_value"`
	NewValue        *string          `json:"new_value,omitempty" db:"new_value"`
	Encrypted       bool             `json:"encrypted" db:"encrypted"`
	Status          ItemStatus       `json:"status" db:"status"`
	ErrorMessage    string           `json:"error_message,omitempty" db:"error_message"`
	ProcessedAt     *time.Time       `json:"processed_at,omitempty" db:"processed_at"`
	// DeletedEntry は DELETE 項目で削除したエントリの定義。ロールバック時の再作成に使う。
	DeletedEntry *ConfigEntry `json:"deleted_entry,omitempty" db:"-"`
}

func (i DeploymentItem) clone() DeploymentItem {
	c := i
	if i.OldValue != nil {
		v := *i.OldValue
		c.OldValue = &v
	}
	if i.NewValue != nil {
		v := *i.NewValue
		c.NewValue = &v
	}
	if i.ProcessedAt != nil {
		t := *i.ProcessedAt
		c.ProcessedAt = &t
	}
	c.DeletedEntry = i.DeletedEntry.Clone()
	return c
}
