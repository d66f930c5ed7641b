// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package console

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/holoauth/internal/auth"
	"github.com/holomush/holoauth/internal/host"
	"github.com/holomush/holoauth/internal/logging"
)

// testConn wraps net.Pipe for testing.
type testConn struct {
	client net.Conn
	server net.Conn
	reader *bufio.Reader
	t      *testing.T
}

func newTestConn(t *testing.T) *testConn {
	t.Helper()
	client, server := net.Pipe()
	return &testConn{
		client: client,
		server: server,
		reader: bufio.NewReader(client),
		t:      t,
	}
}

func (tc *testConn) writeLine(s string) {
	tc.t.Helper()
	require.NoError(tc.t, tc.client.SetWriteDeadline(time.Now().Add(time.Second)))
	_, err := tc.client.Write([]byte(s + "\n"))
	require.NoError(tc.t, err)
}

func (tc *testConn) readLine() string {
	tc.t.Helper()
	require.NoError(tc.t, tc.client.SetReadDeadline(time.Now().Add(time.Second)))
	line, err := tc.reader.ReadString('\n')
	require.NoError(tc.t, err)
	return strings.TrimSpace(line)
}

func (tc *testConn) readLines(n int) []string {
	tc.t.Helper()
	lines := make([]string, n)
	for i := range n {
		lines[i] = tc.readLine()
	}
	return lines
}

// command writes line and returns the first reply line.
func (tc *testConn) command(line string) string {
	tc.t.Helper()
	tc.writeLine(line)
	return tc.readLine()
}

type consoleFixture struct {
	tc     *testConn
	svc    *auth.Service
	mirror *logging.Mirror
	done   chan struct{}
	cancel context.CancelFunc
}

func startConsole(t *testing.T) *consoleFixture {
	t.Helper()

	mirror := logging.NewMirror(slog.NewTextHandler(io.Discard, nil))
	dir := host.NewDirectory()
	svc, err := auth.NewService(auth.NewState(), dir, host.NewManualClock(1),
		auth.WithLogger(slog.New(mirror)),
		auth.WithVerboseListener(mirror.SetEnabled),
	)
	require.NoError(t, err)
	intake, err := host.NewIntake(dir, svc)
	require.NoError(t, err)

	tc := newTestConn(t)
	ctx, cancel := context.WithCancel(context.Background())
	f := &consoleFixture{tc: tc, svc: svc, mirror: mirror, done: make(chan struct{}), cancel: cancel}

	handler := NewConnectionHandler(tc.server, svc, intake, mirror)
	go func() {
		defer close(f.done)
		handler.Handle(ctx)
	}()

	lines := tc.readLines(2)
	require.True(t, strings.HasPrefix(lines[0], "holoauth console "))

	t.Cleanup(func() {
		cancel()
		_ = tc.client.Close()
		select {
		case <-f.done:
		case <-time.After(2 * time.Second):
			t.Error("handler did not exit")
		}
	})
	return f
}

func TestConnectionHandler_Lifecycle(t *testing.T) {
	f := startConsole(t)
	tc := f.tc

	assert.Equal(t, "Account created for alice.", tc.command("join alice"))
	assert.Equal(t, "alice is already known.", tc.command("join alice"))
	assert.Equal(t, "DEADBEEF: no password set; use passwd.", tc.command("auth alice pw"))
	assert.Equal(t, "Password changed.", tc.command("passwd alice secret"))
	assert.Equal(t, "Authentication failed.", tc.command("auth alice wrong"))

	reply := tc.command("auth alice secret")
	require.True(t, strings.HasPrefix(reply, "Token: "), reply)
	token := strings.TrimPrefix(reply, "Token: ")

	assert.Equal(t, "Token is valid.", tc.command("validate "+token))
	assert.Equal(t, "Token is not valid.", tc.command("validate nope"))
	assert.Equal(t, "alice is an admin.", tc.command("isadmin alice"))

	assert.Equal(t, "Role not set.", tc.command("setrole "+token+" bob admin"))
	assert.Equal(t, "Account created for bob.", tc.command("join bob"))
	assert.Equal(t, "bob is not an admin.", tc.command("isadmin bob"))
	assert.Equal(t, "Role set.", tc.command("setrole "+token+" bob admin"))
	assert.Equal(t, "bob is an admin.", tc.command("isadmin bob"))

	tc.writeLine("who")
	who := tc.readLines(2)
	assert.True(t, strings.HasPrefix(who[0], "alice"), who[0])
	assert.Contains(t, who[0], "token")
	assert.Contains(t, who[1], "no-password")

	assert.Equal(t, "Goodbye!", tc.command("quit"))
	select {
	case <-f.done:
	case <-time.After(time.Second):
		t.Fatal("handler did not exit after quit")
	}
}

func TestConnectionHandler_VerboseMirrorsLogs(t *testing.T) {
	f := startConsole(t)
	tc := f.tc

	assert.Equal(t, "Verbose is off.", tc.command("verbose"))
	assert.Equal(t, "Verbose is on.", tc.command("verbose on"))
	assert.True(t, f.mirror.IsEnabled())

	logLine := tc.readLine()
	assert.True(t, strings.HasPrefix(logLine, "[log] "), logLine)
	assert.Contains(t, logLine, "verbose mode changed")

	assert.Equal(t, "Verbose is off.", tc.command("verbose off"))
	assert.False(t, f.mirror.IsEnabled())
	assert.Equal(t, "Usage: verbose on|off", tc.command("verbose maybe"))
}

func TestConnectionHandler_Usage(t *testing.T) {
	f := startConsole(t)
	tc := f.tc

	tests := []struct {
		line string
		want string
	}{
		{"join", "Usage: join <identity>"},
		{"auth", "Usage: auth <identity> <password>"},
		{"validate", "Usage: validate <token>"},
		{"passwd alice", "Usage: passwd <identity> <new> [old]"},
		{"setrole tok", "Usage: setrole <token> <identity> [role]"},
		{"isadmin", "Usage: isadmin <identity>"},
		{"who", "No accounts."},
		{"dance", "Unknown command: dance"},
		{"HELP", "Commands:"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, tc.command(tt.line))
		})
	}
}

func TestConnectionHandler_ShutdownNotice(t *testing.T) {
	f := startConsole(t)
	f.cancel()
	assert.Equal(t, "Server shutting down.", f.tc.readLine())
}

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want []string
	}{
		{"", 2, nil},
		{"alice", 2, []string{"alice"}},
		{"alice secret", 2, []string{"alice", "secret"}},
		{"alice  two words", 2, []string{"alice", "two words"}},
		{"alice new old", 3, []string{"alice", "new", "old"}},
		{"alice new old extra", 3, []string{"alice", "new", "old extra"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, splitArgs(tt.in, tt.n))
		})
	}
}

func TestParseCommand(t *testing.T) {
	cmd, arg := parseCommand("  SetRole  tok bob admin ")
	assert.Equal(t, "setrole", cmd)
	assert.Equal(t, "tok bob admin", arg)

	cmd, arg = parseCommand("   ")
	assert.Empty(t, cmd)
	assert.Empty(t, arg)
}
