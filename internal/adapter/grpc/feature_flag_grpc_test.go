package grpc

import (
	"context"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/usecase"
)

// --- Mock: FlagEvaluateExecutor ---

type MockEvaluateUC struct {
	mock.Mock
}

func (m *MockEvaluateUC) Execute(ctx context.Context, input usecase.EvaluateFeatureFlagInput) model.EvaluationResult {
	args := m.Called(ctx, input)
	return args.Get(0).(model.EvaluationResult)
}

type recordedCall struct {
	method string
	code   string
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (r *fakeRecorder) RecordGRPC(method, code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recordedCall{method: method, code: code})
}

func TestIsEnabled(t *testing.T) {
	uc := new(MockEvaluateUC)
	svc := NewFeatureFlagGRPCService(uc)
	uc.On("Execute", mock.Anything, usecase.EvaluateFeatureFlagInput{
		FlagName:    "new_checkout",
		Environment: "prod",
		Application: "billing",
		Context:     map[string]string{"user_id": "u-1"},
	}).Return(model.EvaluationResult{FlagName: "new_checkout", Enabled: true, Reason: model.ReasonFlagEnabled})

	resp, err := svc.IsEnabled(context.Background(), &IsEnabledRequest{
		FlagName:    "new_checkout",
		Environment: "prod",
		Application: "billing",
		Context:     map[string]string{"user_id": "u-1"},
	})

	require.NoError(t, err)
	assert.True(t, resp.Enabled)
	uc.AssertExpectations(t)
}

func TestEvaluateFlag(t *testing.T) {
	uc := new(MockEvaluateUC)
	svc := NewFeatureFlagGRPCService(uc)
	uc.On("Execute", mock.Anything, mock.MatchedBy(func(in usecase.EvaluateFeatureFlagInput) bool {
		return in.TenantID == "acme"
	})).Return(model.EvaluationResult{Enabled: true, Reason: model.ReasonRuleMatch, MatchedRuleID: "r-jp"})

	resp, err := svc.EvaluateFlag(context.Background(), &EvaluateFlagRequest{
		FlagName:    "jp_only",
		Environment: "prod",
		Application: "billing",
		TenantID:    "acme",
	})

	require.NoError(t, err)
	assert.Equal(t, "jp_only", resp.FlagName)
	assert.Equal(t, model.ReasonRuleMatch, resp.Reason)
	assert.Equal(t, "r-jp", resp.MatchedRuleID)
}

func TestEvaluateFlag_InvalidArgument(t *testing.T) {
	tests := []struct {
		name string
		req  *EvaluateFlagRequest
		want string
	}{
		{"missing name", &EvaluateFlagRequest{Environment: "prod", Application: "billing"}, "flag_name"},
		{"missing scope", &EvaluateFlagRequest{FlagName: "x"}, "environment, application"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := new(MockEvaluateUC)
			svc := NewFeatureFlagGRPCService(uc)

			_, err := svc.EvaluateFlag(context.Background(), tt.req)

			assert.Equal(t, codes.InvalidArgument, status.Code(err))
			assert.Contains(t, status.Convert(err).Message(), tt.want)
			uc.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
		})
	}
}

func TestFeatureFlagService_OverBufconn(t *testing.T) {
	uc := new(MockEvaluateUC)
	uc.On("Execute", mock.Anything, mock.Anything).
		Return(model.EvaluationResult{Enabled: false, Reason: model.ReasonFlagNotFound})
	recorder := &fakeRecorder{}

	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer(grpc.UnaryInterceptor(MetricsInterceptor(recorder)))
	RegisterFeatureFlagServiceServer(server, NewFeatureFlagGRPCService(uc))
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(JSONCodec{}.Name())),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	var resp EvaluateFlagResponse
	err = conn.Invoke(context.Background(), "/"+ServiceName+"/EvaluateFlag",
		&EvaluateFlagRequest{FlagName: "ghost", Environment: "prod", Application: "billing"}, &resp)
	require.NoError(t, err)
	assert.False(t, resp.Enabled)
	assert.Equal(t, model.ReasonFlagNotFound, resp.Reason)

	var enabled IsEnabledResponse
	err = conn.Invoke(context.Background(), "/"+ServiceName+"/IsEnabled", &IsEnabledRequest{FlagName: "ghost"}, &enabled)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	assert.Equal(t, []recordedCall{
		{method: "EvaluateFlag", code: "OK"},
		{method: "IsEnabled", code: "InvalidArgument"},
	}, recorder.calls)
}
