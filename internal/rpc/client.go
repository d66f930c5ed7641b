// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package rpc

import (
	"context"
	"time"

	"github.com/samber/oops"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"

	"github.com/holomush/holoauth/internal/auth"
)

// ClientConfig holds configuration for Dial.
type ClientConfig struct {
	// Address is the server address, e.g. "localhost:4210".
	Address string

	// KeepaliveTime is how often to ping the server (default: 10s).
	KeepaliveTime time.Duration

	// KeepaliveTimeout is how long to wait for a ping response (default: 5s).
	KeepaliveTimeout time.Duration
}

// Client calls the Auth service.
type Client struct {
	cc   grpc.ClientConnInterface
	conn *grpc.ClientConn
}

// Dial creates a client with its own connection.
func Dial(cfg ClientConfig) (*Client, error) {
	if cfg.Address == "" {
		return nil, oops.Code("RPC_INVALID_CLIENT").Errorf("address is required")
	}
	if cfg.KeepaliveTime == 0 {
		cfg.KeepaliveTime = 10 * time.Second
	}
	if cfg.KeepaliveTimeout == 0 {
		cfg.KeepaliveTimeout = 5 * time.Second
	}

	conn, err := grpc.NewClient(cfg.Address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                cfg.KeepaliveTime,
			Timeout:             cfg.KeepaliveTimeout,
			PermitWithoutStream: true,
		}),
	)
	if err != nil {
		return nil, oops.Code("RPC_DIAL_FAILED").With("address", cfg.Address).Wrap(err)
	}
	return &Client{cc: conn, conn: conn}, nil
}

// NewClient wraps an existing connection. Close does not close cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Close closes the connection created by Dial.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	if err := c.conn.Close(); err != nil {
		return oops.Code("RPC_CLOSE_FAILED").Wrap(err)
	}
	return nil
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	err := c.cc.Invoke(ctx, fullMethod(method), req, resp, grpc.CallContentSubtype(codecName))
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	if st.Code() == codes.InvalidArgument {
		return oops.Code("AUTH_CONTRACT_VIOLATION").
			With("method", method).
			Wrapf(auth.ErrContractViolation, "%s", st.Message())
	}
	return oops.Code("RPC_CALL_FAILED").
		With("method", method).
		With("grpc_code", st.Code().String()).
		Wrap(err)
}

// SetVerbose toggles verbose mode.
func (c *Client) SetVerbose(ctx context.Context, enabled bool) error {
	return c.invoke(ctx, MethodSetVerbose, &SetVerboseRequest{Enabled: enabled}, &SetVerboseResponse{})
}

// Authenticate checks a password.
func (c *Client) Authenticate(ctx context.Context, identity, password string) (*AuthenticateResponse, error) {
	resp := &AuthenticateResponse{}
	if err := c.invoke(ctx, MethodAuthenticate, &AuthenticateRequest{Identity: identity, Password: password}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Validate reports whether token is live.
func (c *Client) Validate(ctx context.Context, token string) (bool, error) {
	resp := &ValidateResponse{}
	if err := c.invoke(ctx, MethodValidate, &ValidateRequest{Token: token}, resp); err != nil {
		return false, err
	}
	return resp.Valid, nil
}

// SetPassword replaces a credential.
func (c *Client) SetPassword(ctx context.Context, identity, newPassword, oldPassword string) (bool, error) {
	resp := &SetPasswordResponse{}
	req := &SetPasswordRequest{Identity: identity, NewPassword: newPassword, OldPassword: oldPassword}
	if err := c.invoke(ctx, MethodSetPassword, req, resp); err != nil {
		return false, err
	}
	return resp.OK, nil
}

// SetRole assigns a role on behalf of callerToken.
func (c *Client) SetRole(ctx context.Context, callerToken, identity, role string) (bool, error) {
	resp := &SetRoleResponse{}
	req := &SetRoleRequest{CallerToken: callerToken, Identity: identity, Role: role}
	if err := c.invoke(ctx, MethodSetRole, req, resp); err != nil {
		return false, err
	}
	return resp.OK, nil
}

// IsAdmin reports whether identity is an administrator.
func (c *Client) IsAdmin(ctx context.Context, identity string) (bool, error) {
	resp := &IsAdminResponse{}
	if err := c.invoke(ctx, MethodIsAdmin, &IsAdminRequest{Identity: identity}, resp); err != nil {
		return false, err
	}
	return resp.Admin, nil
}

// Join reports identity joining the host.
func (c *Client) Join(ctx context.Context, identity string) (bool, error) {
	resp := &JoinResponse{}
	if err := c.invoke(ctx, MethodJoin, &JoinRequest{Identity: identity}, resp); err != nil {
		return false, err
	}
	return resp.Created, nil
}
