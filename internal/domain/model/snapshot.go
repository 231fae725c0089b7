package model

import "time"

// ConfigurationSnapshot はスコープ単位の設定値・フラグ状態の時点コピー。作成後は変更しない。
// EncryptedKeys に含まれる key の値は暗号文のまま保持する。
type ConfigurationSnapshot struct {
	ID                string            `json:"id" db:"id"`
	Name              string            `json:"name" db:"name"`
	Environment       string            `json:"environment" db:"environment"`
	Application       string            `json:"application" db:"application"`
	TenantID          string            `json:"tenant_id,omitempty" db:"tenant_id"`
	CreatedBy         string            `json:"created_by" db:"created_by"`
	CreatedAt         time.Time         `json:"created_at" db:"created_at"`
	ConfigurationData map[string]string `json:"configuration_data" db:"-"`
	FeatureFlagData   map[string]bool   `json:"feature_flag_data" db:"-"`
	EncryptedKeys     []string          `json:"encrypted_keys,omitempty" db:"-"`
}

// Scope はスナップショットのスコープを返す。
func (s *ConfigurationSnapshot) Scope() Scope {
	return Scope{
		Environment: s.Environment,
		Application: s.Application,
		TenantID:    s.TenantID,
	}
}

// IsEncrypted は key の値が暗号文で保持されているかを返す。
func (s *ConfigurationSnapshot) IsEncrypted(key string) bool {
	for _, k := range s.EncryptedKeys {
		if k == key {
			return true
		}
	}
	return false
}
