package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/repository"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/service"
)

// FlagEvaluationMetrics はフラグ評価結果の計測インターフェース。
type FlagEvaluationMetrics interface {
	RecordFlagEvaluation(enabled bool, reason string)
}

// EvaluateFeatureFlagUseCase はフィーチャーフラグ評価ユースケース。
// 評価は常に fail-closed で、エラーを呼び出し元に返さない。
type EvaluateFeatureFlagUseCase struct {
	flagRepo  repository.FeatureFlagRepository
	evaluator *service.FlagEvaluator
	metrics   FlagEvaluationMetrics
	logger    *slog.Logger
	now       func() time.Time
}

// NewEvaluateFeatureFlagUseCase は新しい EvaluateFeatureFlagUseCase を作成する。
func NewEvaluateFeatureFlagUseCase(
	flagRepo repository.FeatureFlagRepository,
	evaluator *service.FlagEvaluator,
	metrics FlagEvaluationMetrics,
	logger *slog.Logger,
) *EvaluateFeatureFlagUseCase {
	return &EvaluateFeatureFlagUseCase{
		flagRepo:  flagRepo,
		evaluator: evaluator,
		metrics:   metrics,
		logger:    loggerOrDefault(logger),
		now:       time.Now,
	}
}

// EvaluateFeatureFlagInput はフィーチャーフラグ評価の入力パラメータ。
// Context が nil の場合はルールを評価しない。
type EvaluateFeatureFlagInput struct {
	FlagName    string
	Environment string
	Application string
	TenantID    string
	Context     map[string]string
}

// Execute はフラグを評価する。
func (uc *EvaluateFeatureFlagUseCase) Execute(ctx context.Context, input EvaluateFeatureFlagInput) model.EvaluationResult {
	result := uc.evaluate(ctx, input)
	if uc.metrics != nil {
		uc.metrics.RecordFlagEvaluation(result.Enabled, result.Reason)
	}
	return result
}

// IsEnabled はフラグが有効かどうかだけを返す。
func (uc *EvaluateFeatureFlagUseCase) IsEnabled(
	ctx context.Context,
	flagName, environment, application string,
	attributes map[string]string,
	tenantID string,
) bool {
	return uc.Execute(ctx, EvaluateFeatureFlagInput{
		FlagName:    flagName,
		Environment: environment,
		Application: application,
		TenantID:    tenantID,
		Context:     attributes,
	}).Enabled
}

func (uc *EvaluateFeatureFlagUseCase) evaluate(ctx context.Context, input EvaluateFeatureFlagInput) model.EvaluationResult {
	scope := model.Scope{
		Environment: input.Environment,
		Application: input.Application,
		TenantID:    input.TenantID,
	}
	flag, err := uc.flagRepo.GetByName(ctx, scope, input.FlagName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.EvaluationResult{FlagName: input.FlagName, Reason: model.ReasonFlagNotFound}
		}
		uc.logger.Warn("failed to load feature flag for evaluation",
			slog.String("flag", input.FlagName),
			slog.String("scope", scope.String()),
			slog.Any("error", err),
		)
		return model.EvaluationResult{FlagName: input.FlagName, Reason: model.ReasonEvaluationError}
	}

	var evalCtx *model.EvaluationContext
	if input.Context != nil {
		evalCtx = model.NewEvaluationContext()
		for k, v := range input.Context {
			evalCtx.WithAttribute(k, v)
		}
	}

	result := uc.evaluator.Evaluate(flag, evalCtx, uc.now().UTC())
	result.FlagName = input.FlagName
	return result
}
