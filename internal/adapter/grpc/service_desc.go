package grpc

// proto 生成コードが未生成のため、gRPC サービス記述子を手動定義する。
// buf generate 後にこのファイルは生成コードの RegisterFeatureFlagServiceServer に置き換える。

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

func init() {
	encoding.RegisterCodec(JSONCodec{})
}

// JSONCodec は JSON ベースの gRPC コーデック。
type JSONCodec struct{}

func (JSONCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (JSONCodec) Name() string { return "json" }

// ServiceName は FeatureFlagService の完全修飾名。
const ServiceName = "k1s0.system.configdeploy.v1.FeatureFlagService"

// FeatureFlagServiceServer は gRPC FeatureFlagService のサーバーインターフェース。
type FeatureFlagServiceServer interface {
	IsEnabled(ctx context.Context, req *IsEnabledRequest) (*IsEnabledResponse, error)
	EvaluateFlag(ctx context.Context, req *EvaluateFlagRequest) (*EvaluateFlagResponse, error)
}

// RegisterFeatureFlagServiceServer は FeatureFlagServiceServer を gRPC サーバーに登録する。
func RegisterFeatureFlagServiceServer(s grpc.ServiceRegistrar, svc FeatureFlagServiceServer) {
	s.RegisterService(&_FeatureFlagService_serviceDesc, svc)
}

var _FeatureFlagService_serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FeatureFlagServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "IsEnabled",
			Handler:    _FeatureFlagService_IsEnabled_Handler,
		},
		{
			MethodName: "EvaluateFlag",
			Handler:    _FeatureFlagService_EvaluateFlag_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "v1/feature_flag_service.proto",
}

func _FeatureFlagService_IsEnabled_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(IsEnabledRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FeatureFlagServiceServer).IsEnabled(ctx, req)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + ServiceName + "/IsEnabled",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FeatureFlagServiceServer).IsEnabled(ctx, req.(*IsEnabledRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func _FeatureFlagService_EvaluateFlag_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(EvaluateFlagRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FeatureFlagServiceServer).EvaluateFlag(ctx, req)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + ServiceName + "/EvaluateFlag",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FeatureFlagServiceServer).EvaluateFlag(ctx, req.(*EvaluateFlagRequest))
	}
	return interceptor(ctx, req, info, handler)
}
