package model

import (
	"time"
)

// Operator はフラグルールの比較演算子。
type Operator string

const (
	OperatorEquals      Operator = "equals"
	OperatorNotEquals   Operator = "not_equals"
	OperatorContains    Operator = "contains"
	OperatorStartsWith  Operator = "starts_with"
	OperatorEndsWith    Operator = "ends_with"
	OperatorGreaterThan Operator = "greater_than"
	OperatorLessThan    Operator = "less_than"
	OperatorPercentage  Operator = "percentage"
)

// KnownOperators はサポートする演算子の一覧。
var KnownOperators = []Operator{
	OperatorEquals, OperatorNotEquals, OperatorContains, OperatorStartsWith,
	OperatorEndsWith, OperatorGreaterThan, OperatorLessThan, OperatorPercentage,
}

// IsKnown は演算子がサポート対象かどうかを返す。
func (o Operator) IsKnown() bool {
	for _, k := range KnownOperators {
		if o == k {
			return true
		}
	}
	return false
}

// FeatureFlag はフィーチャーフラグ。
// IsEnabled が false の場合、ルールやスケジュールに関わらず無効。
type FeatureFlag struct {
	ID          string               `json:"id" db:"id"`
	Name        string               `json:"name" db:"name"`
	Description string               `json:"description" db:"description"`
	Environment string               `json:"environment" db:"environment"`
	Application string               `json:"application" db:"application"`
	TenantID    string               `json:"tenant_id,omitempty" db:"tenant_id"`
	IsEnabled   bool                 `json:"is_enabled" db:"is_enabled"`
	Rules       []FeatureFlagRule    `json:"rules" db:"-"`
	Schedule    *FeatureFlagSchedule `json:"schedule,omitempty" db:"-"`
	Metadata    map[string]string    `json:"metadata" db:"-"`
	CreatedBy   string               `json:"created_by" db:"created_by"`
	UpdatedBy   string               `json:"updated_by" db:"updated_by"`
	CreatedAt   time.Time            `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at" db:"updated_at"`
}

// Scope はフラグが属するスコープを返す。
func (f *FeatureFlag) Scope() Scope {
	return Scope{
		Environment: f.Environment,
		Application: f.Application,
		TenantID:    f.TenantID,
	}
}

// Clone はフラグのディープコピーを返す。
func (f *FeatureFlag) Clone() *FeatureFlag {
	if f == nil {
		return nil
	}
	c := *f
	if f.Rules != nil {
		c.Rules = append([]FeatureFlagRule(nil), f.Rules...)
	}
	if f.Schedule != nil {
		s := *f.Schedule
		c.Schedule = &s
	}
	if f.Metadata != nil {
		c.Metadata = make(map[string]string, len(f.Metadata))
		for k, v := range f.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// FeatureFlagRule はフラグの評価ルール。Priority の昇順で評価する。
type FeatureFlagRule struct {
	ID        string   `json:"id"`
	Attribute string   `json:"attribute"`
	Operator  Operator `json:"operator"`
	Value     string   `json:"value"`
	Priority  int      `json:"priority"`
	IsActive  bool     `json:"is_active"`
}

// FeatureFlagSchedule はフラグの有効期間。
// CronExpression は繰り返しウィンドウ用に予約されており、評価には StartDate / EndDate のみを使う。
type FeatureFlagSchedule struct {
	StartDate      *time.Time `json:"start_date,omitempty"`
	EndDate        *time.Time `json:"end_date,omitempty"`
	CronExpression string     `json:"cron_expression,omitempty"`
	IsActive       bool       `json:"is_active"`
}

// EvaluationContext はフラグ評価のコンテキスト。
type EvaluationContext struct {
	Attributes map[string]string
}

// NewEvaluationContext は新しい EvaluationContext を作成する。
func NewEvaluationContext() *EvaluationContext {
	return &EvaluationContext{
		Attributes: make(map[string]string),
	}
}

// WithAttribute は属性を追加する。
func (c *EvaluationContext) WithAttribute(key, value string) *EvaluationContext {
	c.Attributes[key] = value
	return c
}

// Lookup は属性値を返す。
func (c *EvaluationContext) Lookup(key string) (string, bool) {
	if c == nil || c.Attributes == nil {
		return "", false
	}
	v, ok := c.Attributes[key]
	return v, ok
}

// 評価理由。
const (
	ReasonFlagNotFound       = "FLAG_NOT_FOUND"
	ReasonFlagDisabled       = "FLAG_DISABLED"
	ReasonScheduleInactive   = "SCHEDULE_INACTIVE"
	ReasonScheduleNotStarted = "SCHEDULE_NOT_STARTED"
	ReasonScheduleEnded      = "SCHEDULE_ENDED"
	ReasonRuleMatch          = "RULE_MATCH"
	ReasonNoRuleMatch        = "NO_RULE_MATCH"
	ReasonFlagEnabled        = "FLAG_ENABLED"
	ReasonEvaluationError    = "EVALUATION_ERROR"
)

// EvaluationResult はフラグ評価の結果。
type EvaluationResult struct {
	FlagName      string `json:"flag_name"`
	Enabled       bool   `json:"enabled"`
	Reason        string `json:"reason"`
	MatchedRuleID string `json:"matched_rule_id,omitempty"`
}

// RuleEvaluationOutcome は単一ルールの評価結果。
type RuleEvaluationOutcome struct {
	Matched bool
	Reason  string
}
