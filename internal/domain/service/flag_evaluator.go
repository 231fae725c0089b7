package service

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
)

// BucketCount はパーセンテージロールアウトのバケット数。
const BucketCount = 100

// ルール評価の不一致理由。
const (
	RuleReasonMatched           = "matched"
	RuleReasonNotMatched        = "not matched"
	RuleReasonAttributeNotFound = "attribute not found"
	RuleReasonNotNumeric        = "operand is not numeric"
	RuleReasonInvalidPercentage = "invalid percentage"
	RuleReasonUnknownOperator   = "unknown operator"
)

// FlagEvaluator はフィーチャーフラグを評価する純粋なドメインサービス。
type FlagEvaluator struct {
	logger *slog.Logger
}

// NewFlagEvaluator は新しい FlagEvaluator を作成する。
func NewFlagEvaluator(logger *slog.Logger) *FlagEvaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FlagEvaluator{logger: logger}
}

// PercentageBucket は属性値を [0, 100) のバケットに割り当てる。同じ値は常に同じバケットになる。
func PercentageBucket(value string) uint64 {
	return xxhash.Sum64String(value) % BucketCount
}

// Evaluate はフラグを評価する。flag が nil の場合は FLAG_NOT_FOUND で無効を返す。
// evalCtx が nil の場合はルールを評価しない。
func (e *FlagEvaluator) Evaluate(flag *model.FeatureFlag, evalCtx *model.EvaluationContext, now time.Time) model.EvaluationResult {
	if flag == nil {
		return model.EvaluationResult{Enabled: false, Reason: model.ReasonFlagNotFound}
	}
	result := model.EvaluationResult{FlagName: flag.Name}

	if !flag.IsEnabled {
		result.Reason = model.ReasonFlagDisabled
		return result
	}

	if reason, active := scheduleActive(flag.Schedule, now); !active {
		result.Reason = reason
		return result
	}

	rules := activeRules(flag.Rules)
	if len(rules) > 0 && evalCtx != nil {
		matched := false
		for _, rule := range rules {
			outcome := e.EvaluateRule(rule, evalCtx)
			if outcome.Matched && !matched {
				matched = true
				result.MatchedRuleID = rule.ID
			}
		}
		if matched {
			result.Enabled = true
			result.Reason = model.ReasonRuleMatch
		} else {
			result.Reason = model.ReasonNoRuleMatch
		}
		return result
	}

	result.Enabled = true
	result.Reason = model.ReasonFlagEnabled
	return result
}

// EvaluateRule は単一ルールを評価する。演算子の評価中に panic しても不一致として扱う。
func (e *FlagEvaluator) EvaluateRule(rule model.FeatureFlagRule, evalCtx *model.EvaluationContext) (outcome model.RuleEvaluationOutcome) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("flag rule evaluation panicked",
				slog.String("rule_id", rule.ID),
				slog.String("operator", string(rule.Operator)),
				slog.Any("panic", r),
			)
			outcome = model.RuleEvaluationOutcome{Matched: false, Reason: fmt.Sprintf("evaluation error: %v", r)}
		}
	}()

	actual, ok := evalCtx.Lookup(rule.Attribute)
	if !ok {
		e.logger.Debug("attribute not found",
			slog.String("rule_id", rule.ID),
			slog.String("attribute", rule.Attribute),
		)
		return model.RuleEvaluationOutcome{Reason: RuleReasonAttributeNotFound}
	}

	switch rule.Operator {
	case model.OperatorEquals:
		return matchIf(actual == rule.Value)
	case model.OperatorNotEquals:
		return matchIf(actual != rule.Value)
	case model.OperatorContains:
		return matchIf(strings.Contains(actual, rule.Value))
	case model.OperatorStartsWith:
		return matchIf(strings.HasPrefix(actual, rule.Value))
	case model.OperatorEndsWith:
		return matchIf(strings.HasSuffix(actual, rule.Value))
	case model.OperatorGreaterThan, model.OperatorLessThan:
		a, errA := strconv.ParseFloat(strings.TrimSpace(actual), 64)
		b, errB := strconv.ParseFloat(strings.TrimSpace(rule.Value), 64)
		if errA != nil || errB != nil {
			return model.RuleEvaluationOutcome{Reason: RuleReasonNotNumeric}
		}
		if rule.Operator == model.OperatorGreaterThan {
			return matchIf(a > b)
		}
		return matchIf(a < b)
	case model.OperatorPercentage:
		threshold, err := strconv.ParseFloat(strings.TrimSpace(rule.Value), 64)
		if err != nil {
			return model.RuleEvaluationOutcome{Reason: RuleReasonInvalidPercentage}
		}
		return matchIf(float64(PercentageBucket(actual)) < threshold)
	}
	return model.RuleEvaluationOutcome{Reason: RuleReasonUnknownOperator}
}

// ValidatePercentage はパーセンテージルールの値が 0 から 100 の数値かを検証する。
func ValidatePercentage(value string) error {
	n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fmt.Errorf("percentage %q is not a number", value)
	}
	if n < 0 || n > 100 {
		return fmt.Errorf("percentage %q must be between 0 and 100", value)
	}
	return nil
}

func matchIf(cond bool) model.RuleEvaluationOutcome {
	if cond {
		return model.RuleEvaluationOutcome{Matched: true, Reason: RuleReasonMatched}
	}
	return model.RuleEvaluationOutcome{Reason: RuleReasonNotMatched}
}

func scheduleActive(s *model.FeatureFlagSchedule, now time.Time) (string, bool) {
	if s == nil {
		return "", true
	}
	if !s.IsActive {
		return model.ReasonScheduleInactive, false
	}
	if s.StartDate != nil && now.Before(*s.StartDate) {
		return model.ReasonScheduleNotStarted, false
	}
	if s.EndDate != nil && now.After(*s.EndDate) {
		return model.ReasonScheduleEnded, false
	}
	return "", true
}

// activeRules は有効なルールを優先度の昇順で返す。同じ優先度は定義順を保つ。
func activeRules(rules []model.FeatureFlagRule) []model.FeatureFlagRule {
	out := make([]model.FeatureFlagRule, 0, len(rules))
	for _, r := range rules {
		if r.IsActive {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}
