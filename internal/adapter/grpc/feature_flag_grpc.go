package grpc

import (
	"context"
	"path"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/usecase"
)

// FlagEvaluateExecutor は EvaluateFeatureFlagUseCase の実行インターフェース。
type FlagEvaluateExecutor interface {
	Execute(ctx context.Context, input usecase.EvaluateFeatureFlagInput) model.EvaluationResult
}

// FeatureFlagGRPCService は gRPC FeatureFlagService の実装。
type FeatureFlagGRPCService struct {
	evaluateUC FlagEvaluateExecutor
}

// NewFeatureFlagGRPCService は FeatureFlagGRPCService のコンストラクタ。
func NewFeatureFlagGRPCService(evaluateUC FlagEvaluateExecutor) *FeatureFlagGRPCService {
	return &FeatureFlagGRPCService{evaluateUC: evaluateUC}
}

// IsEnabled はフラグが有効かどうかを返す。
func (s *FeatureFlagGRPCService) IsEnabled(ctx context.Context, req *IsEnabledRequest) (*IsEnabledResponse, error) {
	if err := requireFlagTarget(req.FlagName, req.Environment, req.Application); err != nil {
		return nil, err
	}
	result := s.evaluateUC.Execute(ctx, usecase.EvaluateFeatureFlagInput{
		FlagName:    req.FlagName,
		Environment: req.Environment,
		Application: req.Application,
		TenantID:    req.TenantID,
		Context:     req.Context,
	})
	return &IsEnabledResponse{Enabled: result.Enabled}, nil
}

// EvaluateFlag はフラグを評価し、理由と一致したルールを返す。
func (s *FeatureFlagGRPCService) EvaluateFlag(ctx context.Context, req *EvaluateFlagRequest) (*EvaluateFlagResponse, error) {
	if err := requireFlagTarget(req.FlagName, req.Environment, req.Application); err != nil {
		return nil, err
	}
	result := s.evaluateUC.Execute(ctx, usecase.EvaluateFeatureFlagInput{
		FlagName:    req.FlagName,
		Environment: req.Environment,
		Application: req.Application,
		TenantID:    req.TenantID,
		Context:     req.Context,
	})
	return &EvaluateFlagResponse{
		FlagName:      req.FlagName,
		Enabled:       result.Enabled,
		Reason:        result.Reason,
		MatchedRuleID: result.MatchedRuleID,
	}, nil
}

func requireFlagTarget(flagName, environment, application string) error {
	var missing []string
	if flagName == "" {
		missing = append(missing, "flag_name")
	}
	if environment == "" {
		missing = append(missing, "environment")
	}
	if application == "" {
		missing = append(missing, "application")
	}
	if len(missing) > 0 {
		return status.Errorf(codes.InvalidArgument, "%s required", strings.Join(missing, ", "))
	}
	return nil
}

// CallRecorder は gRPC 呼び出し結果の記録先。
type CallRecorder interface {
	RecordGRPC(method, code string)
}

// MetricsInterceptor は呼び出しごとにメソッド名とステータスコードを記録する。
func MetricsInterceptor(recorder CallRecorder) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		if recorder != nil {
			recorder.RecordGRPC(path.Base(info.FullMethod), status.Code(err).String())
		}
		return resp, err
	}
}
