// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package rpc exposes the auth service over gRPC.
//
// Messages are plain Go structs carried with a JSON codec, so the service
// needs no generated code. Every expected negative outcome (bad password,
// unknown identity, denied role change) is an ordinary response; only a
// call missing a required argument fails, with codes.InvalidArgument.
package rpc

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"

	"github.com/samber/oops"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/holomush/holoauth/internal/auth"
)

// AuthService is the part of auth.Service the server calls.
type AuthService interface {
	SetVerbose(ctx context.Context, enabled bool)
	Authenticate(ctx context.Context, identity, password string) auth.Result
	Validate(ctx context.Context, token string) bool
	SetPassword(ctx context.Context, identity, newPassword, oldPassword string) bool
	SetRole(ctx context.Context, callerToken, targetIdentity, role string) (bool, error)
	IsAdmin(ctx context.Context, identity string) (bool, error)
}

// Joiner records identities joining the host.
type Joiner interface {
	Join(ctx context.Context, ref string) (created bool, err error)
}

// Server implements AuthServer on top of an AuthService.
type Server struct {
	svc    AuthService
	joiner Joiner

	mu         sync.Mutex
	grpcServer *grpc.Server
}

// NewServer creates a server. joiner may be nil, in which case Join
// returns codes.Unimplemented.
func NewServer(svc AuthService, joiner Joiner) (*Server, error) {
	if svc == nil {
		return nil, oops.Code("RPC_INVALID_SERVER").Errorf("auth service is required")
	}
	return &Server{svc: svc, joiner: joiner}, nil
}

// Start listens on addr and serves in the background. The returned channel
// receives exactly one value when serving stops.
func (s *Server) Start(addr string) (<-chan error, net.Addr, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, oops.Code("RPC_LISTEN_FAILED").With("addr", addr).Wrap(err)
	}
	errCh, err := s.Serve(lis)
	if err != nil {
		_ = lis.Close()
		return nil, nil, err
	}
	return errCh, lis.Addr(), nil
}

// Serve serves on lis in the background.
func (s *Server) Serve(lis net.Listener) (<-chan error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.grpcServer != nil {
		return nil, oops.Code("RPC_ALREADY_RUNNING").Errorf("server is already running")
	}

	s.grpcServer = grpc.NewServer(grpc.UnaryInterceptor(observe))
	RegisterAuthServer(s.grpcServer, s)

	gs := s.grpcServer
	errCh := make(chan error, 1)
	go func() {
		err := gs.Serve(lis)
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			slog.Error("rpc server error", "addr", lis.Addr().String(), "error", err)
		}
		errCh <- err
	}()

	slog.Info("rpc server listening", "addr", lis.Addr().String())
	return errCh, nil
}

// Stop gracefully stops serving. It gives up waiting for in-flight calls
// when ctx ends.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	gs := s.grpcServer
	s.mu.Unlock()
	if gs == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		gs.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		gs.Stop()
		<-done
		return oops.Code("RPC_STOP_TIMEOUT").Wrap(ctx.Err())
	}
}

// SetVerbose implements AuthServer.
func (s *Server) SetVerbose(ctx context.Context, req *SetVerboseRequest) (*SetVerboseResponse, error) {
	s.svc.SetVerbose(ctx, req.Enabled)
	return &SetVerboseResponse{Enabled: req.Enabled}, nil
}

// Authenticate implements AuthServer.
func (s *Server) Authenticate(ctx context.Context, req *AuthenticateRequest) (*AuthenticateResponse, error) {
	res := s.svc.Authenticate(ctx, req.Identity, req.Password)
	return &AuthenticateResponse{
		OK:           res.OK(),
		Token:        res.Token,
		NoCredential: res.Outcome == auth.OutcomeNoCredentialSet,
		Wire:         res.Wire(),
	}, nil
}

// Validate implements AuthServer.
func (s *Server) Validate(ctx context.Context, req *ValidateRequest) (*ValidateResponse, error) {
	return &ValidateResponse{Valid: s.svc.Validate(ctx, req.Token)}, nil
}

// SetPassword implements AuthServer.
func (s *Server) SetPassword(ctx context.Context, req *SetPasswordRequest) (*SetPasswordResponse, error) {
	return &SetPasswordResponse{OK: s.svc.SetPassword(ctx, req.Identity, req.NewPassword, req.OldPassword)}, nil
}

// SetRole implements AuthServer.
func (s *Server) SetRole(ctx context.Context, req *SetRoleRequest) (*SetRoleResponse, error) {
	ok, err := s.svc.SetRole(ctx, req.CallerToken, req.Identity, req.Role)
	if err != nil {
		return nil, toStatus(err)
	}
	return &SetRoleResponse{OK: ok}, nil
}

// IsAdmin implements AuthServer.
func (s *Server) IsAdmin(ctx context.Context, req *IsAdminRequest) (*IsAdminResponse, error) {
	admin, err := s.svc.IsAdmin(ctx, req.Identity)
	if err != nil {
		return nil, toStatus(err)
	}
	return &IsAdminResponse{Admin: admin}, nil
}

// Join implements AuthServer.
func (s *Server) Join(ctx context.Context, req *JoinRequest) (*JoinResponse, error) {
	if s.joiner == nil {
		return nil, status.Error(codes.Unimplemented, "join is not enabled on this server")
	}
	if req.Identity == "" {
		return nil, status.Error(codes.InvalidArgument, "join requires identity")
	}
	created, err := s.joiner.Join(ctx, req.Identity)
	if err != nil {
		return nil, toStatus(err)
	}
	return &JoinResponse{Created: created}, nil
}

// toStatus maps service errors to gRPC status errors.
func toStatus(err error) error {
	if errors.Is(err, auth.ErrContractViolation) {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	slog.Error("rpc call failed", "error", err)
	return status.Error(codes.Internal, "internal error")
}
