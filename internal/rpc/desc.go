// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "holoauth.v1.Auth"

// Method names of the Auth service.
const (
	MethodSetVerbose   = "SetVerbose"
	MethodAuthenticate = "Authenticate"
	MethodValidate     = "Validate"
	MethodSetPassword  = "SetPassword"
	MethodSetRole      = "SetRole"
	MethodIsAdmin      = "IsAdmin"
	MethodJoin         = "Join"
)

// AuthServer is the server side of the Auth service.
type AuthServer interface {
	SetVerbose(context.Context, *SetVerboseRequest) (*SetVerboseResponse, error)
	Authenticate(context.Context, *AuthenticateRequest) (*AuthenticateResponse, error)
	Validate(context.Context, *ValidateRequest) (*ValidateResponse, error)
	SetPassword(context.Context, *SetPasswordRequest) (*SetPasswordResponse, error)
	SetRole(context.Context, *SetRoleRequest) (*SetRoleResponse, error)
	IsAdmin(context.Context, *IsAdminRequest) (*IsAdminResponse, error)
	Join(context.Context, *JoinRequest) (*JoinResponse, error)
}

// ServiceDesc describes the Auth service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodSetVerbose, AuthServer.SetVerbose),
		unary(MethodAuthenticate, AuthServer.Authenticate),
		unary(MethodValidate, AuthServer.Validate),
		unary(MethodSetPassword, AuthServer.SetPassword),
		unary(MethodSetRole, AuthServer.SetRole),
		unary(MethodIsAdmin, AuthServer.IsAdmin),
		unary(MethodJoin, AuthServer.Join),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "holoauth/v1/auth.json",
}

// RegisterAuthServer registers srv with s.
func RegisterAuthServer(s grpc.ServiceRegistrar, srv AuthServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// unary builds the method handler for one request/response pair.
func unary[Req, Resp any](method string, call func(AuthServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AuthServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(AuthServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
