package model

// RuleType は設定値の検証ルール種別。
type RuleType string

const (
	RuleTypeString        RuleType = "string"
	RuleTypeNumber        RuleType = "number"
	RuleTypeBoolean       RuleType = "boolean"
	RuleTypeEmail         RuleType = "email"
	RuleTypeURL           RuleType = "url"
	RuleTypeJSON          RuleType = "json"
	RuleTypeRegex         RuleType = "regex"
	RuleTypeAllowedValues RuleType = "allowed_values"
)

// ValidationRule は設定エントリに紐づく検証ルール。
// MinValue / MaxValue は RuleType に応じて整数または浮動小数として解釈する。
type ValidationRule struct {
	RuleType      RuleType `json:"rule_type"`
	IsRequired    bool     `json:"is_required"`
	MinValue      string   `json:"min_value,omitempty"`
	MaxValue      string   `json:"max_value,omitempty"`
	AllowedValues []string `json:"allowed_values,omitempty"`
	RegexPattern  string   `json:"regex_pattern,omitempty"`
	ErrorMessage  string   `json:"error_message,omitempty"`
	// Schema は json ルールで追加検証する JSON Schema（任意）。
	Schema string `json:"schema,omitempty"`
}

// ValidationResult は検証結果。
type ValidationResult struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}
