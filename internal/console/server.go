// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package console provides a line-oriented TCP operator console for the
// auth service. While verbose mode is on, every console also receives the
// service log as it is written.
package console

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"

	"github.com/samber/oops"

	"github.com/holomush/holoauth/internal/auth"
)

// AuthService is the part of auth.Service the console drives.
type AuthService interface {
	SetVerbose(ctx context.Context, enabled bool)
	Verbose() bool
	Authenticate(ctx context.Context, identity, password string) auth.Result
	Validate(ctx context.Context, token string) bool
	SetPassword(ctx context.Context, identity, newPassword, oldPassword string) bool
	SetRole(ctx context.Context, callerToken, targetIdentity, role string) (bool, error)
	IsAdmin(ctx context.Context, identity string) (bool, error)
	Accounts() []auth.AccountSummary
}

// Joiner records identities joining the host.
type Joiner interface {
	Join(ctx context.Context, ref string) (created bool, err error)
}

// LineSource fans out mirrored log lines.
type LineSource interface {
	Subscribe() (<-chan string, func())
}

// Server accepts console connections.
type Server struct {
	addr   string
	svc    AuthService
	joiner Joiner
	lines  LineSource

	mu       sync.RWMutex
	listener net.Listener
	ready    chan struct{}
	handlers sync.WaitGroup
}

// NewServer creates a console server. lines may be nil to disable log mirroring.
func NewServer(addr string, svc AuthService, joiner Joiner, lines LineSource) (*Server, error) {
	if svc == nil {
		return nil, oops.Code("CONSOLE_INVALID_SERVER").Errorf("auth service is required")
	}
	if joiner == nil {
		return nil, oops.Code("CONSOLE_INVALID_SERVER").Errorf("joiner is required")
	}
	return &Server{
		addr:   addr,
		svc:    svc,
		joiner: joiner,
		lines:  lines,
		ready:  make(chan struct{}),
	}, nil
}

// Addr returns the listen address, or "" before Run has bound it.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Run listens and serves until ctx is cancelled, then waits for open
// connections to finish.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return oops.Code("CONSOLE_LISTEN_FAILED").With("addr", s.addr).Wrap(err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	close(s.ready)

	slog.Info("console server started", "addr", listener.Addr().String())

	stop := context.AfterFunc(ctx, func() {
		if err := listener.Close(); err != nil {
			slog.Debug("error closing console listener", "error", err)
		}
	})
	defer stop()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.handlers.Wait()
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				s.handlers.Wait()
				return oops.Code("CONSOLE_ACCEPT_FAILED").Wrap(err)
			}
			slog.Error("console accept failed", "error", err)
			continue
		}
		handler := NewConnectionHandler(conn, s.svc, s.joiner, s.lines)
		s.handlers.Add(1)
		go func() {
			defer s.handlers.Done()
			handler.Handle(ctx)
		}()
	}
}
