// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package console

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/holomush/holoauth/internal/auth"
	"github.com/holomush/holoauth/internal/host"
	"github.com/holomush/holoauth/pkg/errutil"
)

func TestNewServer_Validation(t *testing.T) {
	dir := host.NewDirectory()
	svc, err := auth.NewService(auth.NewState(), dir, host.NewManualClock(0))
	require.NoError(t, err)
	intake, err := host.NewIntake(dir, svc)
	require.NoError(t, err)

	_, err = NewServer(":0", nil, intake, nil)
	errutil.AssertErrorCode(t, err, "CONSOLE_INVALID_SERVER")

	_, err = NewServer(":0", svc, nil, nil)
	errutil.AssertErrorCode(t, err, "CONSOLE_INVALID_SERVER")

	srv, err := NewServer(":0", svc, intake, nil)
	require.NoError(t, err)
	assert.Empty(t, srv.Addr())
}

func TestServer_ListenFailure(t *testing.T) {
	dir := host.NewDirectory()
	svc, err := auth.NewService(auth.NewState(), dir, host.NewManualClock(0))
	require.NoError(t, err)
	intake, err := host.NewIntake(dir, svc)
	require.NoError(t, err)

	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	srv, err := NewServer(taken.Addr().String(), svc, intake, nil)
	require.NoError(t, err)

	err = srv.Run(context.Background())
	errutil.AssertErrorCode(t, err, "CONSOLE_LISTEN_FAILED")
}

func TestServer_ServesAndShutsDown(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := host.NewDirectory()
	svc, err := auth.NewService(auth.NewState(), dir, host.NewManualClock(0))
	require.NoError(t, err)
	intake, err := host.NewIntake(dir, svc)
	require.NoError(t, err)

	srv, err := NewServer("127.0.0.1:0", svc, intake, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- srv.Run(ctx) }()

	select {
	case <-srv.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("server did not become ready")
	}
	require.NotEmpty(t, srv.Addr())

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer conn.Close()
	reader := bufio.NewReader(conn)

	readLine := func() string {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		return strings.TrimSpace(line)
	}

	assert.True(t, strings.HasPrefix(readLine(), "holoauth console "))
	assert.Equal(t, "Type 'help' for commands.", readLine())

	_, err = conn.Write([]byte("join alice\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "Account created for alice.", readLine())

	admin, err := svc.IsAdmin(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, admin)

	cancel()
	assert.Equal(t, "Server shutting down.", readLine())

	select {
	case err := <-runErr:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
