package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the registered gRPC service. Messages are free-form
// structpb.Struct values; field names are listed on each handler.
const ServiceName = "promisance.v1.Game"

// Method names.
const (
	MethodLogin           = "Login"
	MethodLogout          = "Logout"
	MethodSignup          = "Signup"
	MethodStatus          = "Status"
	MethodGetEmpire       = "GetEmpire"
	MethodUseTurns        = "UseTurns"
	MethodValidate        = "Validate"
	MethodRequestVacation = "RequestVacation"
	MethodEndVacation     = "EndVacation"
	MethodDeleteEmpire    = "DeleteEmpire"
	MethodClaimBonus      = "ClaimBonus"
)

func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// publicMethods can be called without a session.
var publicMethods = map[string]bool{
	FullMethod(MethodLogin):  true,
	FullMethod(MethodSignup): true,
	FullMethod(MethodStatus): true,
}

// GameServer is the server API of ServiceDesc.
type GameServer interface {
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Logout(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	Signup(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Status(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetEmpire(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UseTurns(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Validate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RequestVacation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EndVacation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteEmpire(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ClaimBonus(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type method func(s GameServer, ctx context.Context, in *structpb.Struct) (any, error)

func unary(name string, m method) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return m(srv.(GameServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return m(srv.(GameServer), ctx, req.(*structpb.Struct))
			})
		},
	}
}

// ServiceDesc describes the game service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*GameServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodLogin, func(s GameServer, ctx context.Context, in *structpb.Struct) (any, error) {
			return s.Login(ctx, in)
		}),
		unary(MethodLogout, func(s GameServer, ctx context.Context, in *structpb.Struct) (any, error) {
			return s.Logout(ctx, in)
		}),
		unary(MethodSignup, func(s GameServer, ctx context.Context, in *structpb.Struct) (any, error) {
			return s.Signup(ctx, in)
		}),
		unary(MethodStatus, func(s GameServer, ctx context.Context, in *structpb.Struct) (any, error) {
			return s.Status(ctx, in)
		}),
		unary(MethodGetEmpire, func(s GameServer, ctx context.Context, in *structpb.Struct) (any, error) {
			return s.GetEmpire(ctx, in)
		}),
		unary(MethodUseTurns, func(s GameServer, ctx context.Context, in *structpb.Struct) (any, error) {
			return s.UseTurns(ctx, in)
		}),
		unary(MethodValidate, func(s GameServer, ctx context.Context, in *structpb.Struct) (any, error) {
			return s.Validate(ctx, in)
		}),
		unary(MethodRequestVacation, func(s GameServer, ctx context.Context, in *structpb.Struct) (any, error) {
			return s.RequestVacation(ctx, in)
		}),
		unary(MethodEndVacation, func(s GameServer, ctx context.Context, in *structpb.Struct) (any, error) {
			return s.EndVacation(ctx, in)
		}),
		unary(MethodDeleteEmpire, func(s GameServer, ctx context.Context, in *structpb.Struct) (any, error) {
			return s.DeleteEmpire(ctx, in)
		}),
		unary(MethodClaimBonus, func(s GameServer, ctx context.Context, in *structpb.Struct) (any, error) {
			return s.ClaimBonus(ctx, in)
		}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "promisance/v1/game",
}
