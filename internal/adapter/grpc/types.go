package grpc

// proto 生成コードが未生成のため、feature_flag_service.proto に対応する Go 構造体を手動定義する。
// buf generate 後にこのファイルは生成コードに置き換える。

// IsEnabledRequest はフラグ有効判定リクエスト。
type IsEnabledRequest struct {
	FlagName    string            `json:"flag_name"`
	Environment string            `json:"environment"`
	Application string            `json:"application"`
	TenantID    string            `json:"tenant_id,omitempty"`
	Context     map[string]string `json:"context,omitempty"`
}

// IsEnabledResponse はフラグ有効判定レスポンス。
type IsEnabledResponse struct {
	Enabled bool `json:"enabled"`
}

// EvaluateFlagRequest はフラグ評価リクエスト。
type EvaluateFlagRequest struct {
	FlagName    string            `json:"flag_name"`
	Environment string            `json:"environment"`
	Application string            `json:"application"`
	TenantID    string            `json:"tenant_id,omitempty"`
	Context     map[string]string `json:"context,omitempty"`
}

// EvaluateFlagResponse はフラグ評価レスポンス。
type EvaluateFlagResponse struct {
	FlagName      string `json:"flag_name"`
	Enabled       bool   `json:"enabled"`
	Reason        string `json:"reason"`
	MatchedRuleID string `json:"matched_rule_id,omitempty"`
}
