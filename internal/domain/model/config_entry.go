package model

import (
	"net/url"
	"time"
)

// Scope は設定とフラグの名前空間を分離する (environment, application, tenant) の組。
// TenantID が空文字列の場合はテナントに属さないグローバルスコープを表す。
type Scope struct {
	Environment string `json:"environment" db:"environment"`
	Application string `json:"application" db:"application"`
	TenantID    string `json:"tenant_id,omitempty" db:"tenant_id"`
}

// String はスコープをログ・キャッシュキー向けの文字列にする。
func (s Scope) String() string {
	if s.TenantID == "" {
		return s.Environment + "/" + s.Application
	}
	return s.Environment + "/" + s.Application + "/" + s.TenantID
}

// Key はキャッシュ・ロック・一意性判定に使うキーを返す。
// 各要素をエスケープするので、値に区切り文字を含んでも別スコープと衝突しない。
func (s Scope) Key() string {
	key := url.QueryEscape(s.Environment) + "/" + url.QueryEscape(s.Application)
	if s.TenantID == "" {
		return key
	}
	return key + "/" + url.QueryEscape(s.TenantID)
}

// ConfigEntry は設定エントリを表す。
type ConfigEntry struct {
	ID             string          `json:"id" db:"id"`
	Key            string          `json:"key" db:"key"`
	Value          string          `json:"value" db:"value"`
	Environment    string          `json:"environment" db:"environment"`
	Application    string          `json:"application" db:"application"`
	TenantID       string          `json:"tenant_id,omitempty" db:"tenant_id"`
	IsActive       bool            `json:"is_active" db:"is_active"`
	IsEncrypted    bool            `json:"is_encrypted" db:"is_encrypted"`
	Version        int             `json:"version" db:"version"`
	ValidationRule *ValidationRule `json:"validation_rule,omitempty" db:"-"`
	Tags           []string        `json:"tags" db:"-"`
	Description    string          `json:"description" db:"description"`
	CreatedBy      string          `json:"created_by" db:"created_by"`
	UpdatedBy      string          `json:"updated_by" db:"updated_by"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// Scope はエントリが属するスコープを返す。
func (e *ConfigEntry) Scope() Scope {
	return Scope{
		Environment: e.Environment,
		Application: e.Application,
		TenantID:    e.TenantID,
	}
}

// UniqueKey は (key, environment, application, tenant) の一意キーを返す。
func (e *ConfigEntry) UniqueKey() string {
	return e.Scope().Key() + "#" + url.QueryEscape(e.Key)
}

// Clone はエントリのディープコピーを返す。
func (e *ConfigEntry) Clone() *ConfigEntry {
	if e == nil {
		return nil
	}
	c := *e
	if e.Tags != nil {
		c.Tags = append([]string(nil), e.Tags...)
	}
	if e.ValidationRule != nil {
		rule := *e.ValidationRule
		if rule.AllowedValues != nil {
			rule.AllowedValues = append([]string(nil), rule.AllowedValues...)
		}
		c.ValidationRule = &rule
	}
	return &c
}
