package service

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
)

const (
	// MaxKeyLength は設定キーの最大文字数。
	MaxKeyLength = 200
	// LargeValueThreshold を超える値は警告の対象になる。
	LargeValueThreshold = 10000
)

// ConfigValidator は設定エントリを保存前に検証するドメインサービス。
// 入力エントリとルールのみに依存する純粋関数として振る舞う。
type ConfigValidator struct {
	logger *slog.Logger
	fields *validator.Validate
}

// NewConfigValidator は新しい ConfigValidator を作成する。
func NewConfigValidator(logger *slog.Logger) *ConfigValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConfigValidator{
		logger: logger,
		fields: validator.New(),
	}
}

// Validate は単一エントリを検証する。
func (v *ConfigValidator) Validate(entry *model.ConfigEntry) model.ValidationResult {
	result := model.ValidationResult{Errors: []string{}, Warnings: []string{}}

	if strings.TrimSpace(entry.Key) == "" {
		result.Errors = append(result.Errors, "key is required")
	} else if utf8.RuneCountInString(entry.Key) > MaxKeyLength {
		result.Errors = append(result.Errors, fmt.Sprintf("key must be at most %d characters", MaxKeyLength))
	}

	valuePresent := strings.TrimSpace(entry.Value) != ""
	if !valuePresent {
		result.Errors = append(result.Errors, "value is required")
	}
	if strings.TrimSpace(entry.Environment) == "" {
		result.Errors = append(result.Errors, "environment is required")
	}
	if strings.TrimSpace(entry.Application) == "" {
		result.Errors = append(result.Errors, "application is required")
	}

	if utf8.RuneCountInString(entry.Value) > LargeValueThreshold {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("value is longer than %d characters", LargeValueThreshold))
	}

	if entry.ValidationRule != nil && valuePresent {
		errs, warns := v.applyRule(entry.Key, entry.Value, entry.ValidationRule)
		result.Errors = append(result.Errors, errs...)
		result.Warnings = append(result.Warnings, warns...)
	}

	result.IsValid = len(result.Errors) == 0
	return result
}

// ValidateBatch は複数エントリを検証する。
// バッチ内で (key, environment, application, tenant) が重複するエントリはすべてエラーになる。
func (v *ConfigValidator) ValidateBatch(entries []*model.ConfigEntry) []model.ValidationResult {
	counts := make(map[string]int, len(entries))
	for _, e := range entries {
		counts[e.UniqueKey()]++
	}

	results := make([]model.ValidationResult, len(entries))
	for i, e := range entries {
		r := v.Validate(e)
		if counts[e.UniqueKey()] > 1 {
			r.Errors = append(r.Errors, fmt.Sprintf("duplicate configuration %q in %s within batch", e.Key, e.Scope()))
			r.IsValid = false
		}
		results[i] = r
	}
	return results
}

func (v *ConfigValidator) applyRule(key, value string, rule *model.ValidationRule) (errs []string, warns []string) {
	fail := func(msg string) {
		if rule.ErrorMessage != "" {
			msg = rule.ErrorMessage
		}
		errs = append(errs, msg)
	}

	switch rule.RuleType {
	case model.RuleTypeString:
		length := utf8.RuneCountInString(value)
		if min, ok, w := parseIntBound("min_value", rule.MinValue); w != "" {
			warns = append(warns, w)
		} else if ok && length < min {
			fail(fmt.Sprintf("value must be at least %d characters", min))
		}
		if max, ok, w := parseIntBound("max_value", rule.MaxValue); w != "" {
			warns = append(warns, w)
		} else if ok && length > max {
			fail(fmt.Sprintf("value must be at most %d characters", max))
		}

	case model.RuleTypeNumber:
		n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			fail("value must be a number")
			return errs, warns
		}
		if min, ok, w := parseFloatBound("min_value", rule.MinValue); w != "" {
			warns = append(warns, w)
		} else if ok && n < min {
			fail(fmt.Sprintf("value must be greater than or equal to %s", rule.MinValue))
		}
		if max, ok, w := parseFloatBound("max_value", rule.MaxValue); w != "" {
			warns = append(warns, w)
		} else if ok && n > max {
			fail(fmt.Sprintf("value must be less than or equal to %s", rule.MaxValue))
		}

	case model.RuleTypeBoolean:
		if !strings.EqualFold(value, "true") && !strings.EqualFold(value, "false") {
			fail("value must be true or false")
		}

	case model.RuleTypeEmail:
		if strings.TrimSpace(value) != value || v.fields.Var(value, "required,email") != nil {
			fail("value must be a valid email address")
		}

	case model.RuleTypeURL:
		u, err := url.Parse(value)
		if err != nil || !u.IsAbs() || (u.Host == "" && u.Opaque == "") || strings.ContainsAny(value, " \t\n") {
			fail("value must be an absolute URL")
		}

	case model.RuleTypeJSON:
		if !json.Valid([]byte(value)) {
			fail("value must be valid JSON")
			return errs, warns
		}
		if rule.Schema != "" {
			if msg := validateJSONSchema(value, rule.Schema); msg != "" {
				fail(msg)
			}
		}

	case model.RuleTypeRegex:
		if rule.RegexPattern == "" {
			warns = append(warns, "regex rule has no pattern")
			return errs, warns
		}
		re, err := regexp.Compile(rule.RegexPattern)
		if err != nil {
			fail("value does not match the configured pattern")
			warns = append(warns, fmt.Sprintf("regex pattern is invalid: %v", err))
			return errs, warns
		}
		if !re.MatchString(value) {
			fail("value does not match the configured pattern")
		}

	case model.RuleTypeAllowedValues:
		allowed := false
		for _, a := range rule.AllowedValues {
			if strings.EqualFold(a, value) {
				allowed = true
				break
			}
		}
		if !allowed {
			fail(fmt.Sprintf("value must be one of [%s]", strings.Join(rule.AllowedValues, ", ")))
		}

	default:
		v.logger.Warn("unknown validation rule type, skipping",
			slog.String("key", key),
			slog.String("rule_type", string(rule.RuleType)),
		)
		warns = append(warns, fmt.Sprintf("unknown rule type %q was not applied", rule.RuleType))
	}

	return errs, warns
}

func validateJSONSchema(value, schema string) string {
	compiled, err := jsonschema.CompileString("validation_rule.json", schema)
	if err != nil {
		return fmt.Sprintf("json schema is invalid: %v", err)
	}
	var doc interface{}
	if err := json.Unmarshal([]byte(value), &doc); err != nil {
		return "value must be valid JSON"
	}
	if err := compiled.Validate(doc); err != nil {
		return fmt.Sprintf("value does not satisfy the json schema: %v", err)
	}
	return ""
}

// parseIntBound は境界値を整数として解釈する。空文字列は境界なし。
func parseIntBound(name, raw string) (int, bool, string) {
	if strings.TrimSpace(raw) == "" {
		return 0, false, ""
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false, fmt.Sprintf("%s %q is not an integer and was ignored", name, raw)
	}
	return n, true, ""
}

func parseFloatBound(name, raw string) (float64, bool, string) {
	if strings.TrimSpace(raw) == "" {
		return 0, false, ""
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, false, fmt.Sprintf("%s %q is not a number and was ignored", name, raw)
	}
	return n, true, ""
}
