// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/holomush/holoauth/internal/auth"
	"github.com/holomush/holoauth/internal/host"
)

// writeTimeout bounds each write so a stalled client cannot pin its handler.
const writeTimeout = 5 * time.Second

// ConnectionHandler serves one console connection.
type ConnectionHandler struct {
	conn     net.Conn
	reader   *bufio.Reader
	svc      AuthService
	joiner   Joiner
	source   LineSource
	connID   ulid.ULID
	quitting bool
}

// NewConnectionHandler creates a handler for conn. source may be nil.
func NewConnectionHandler(conn net.Conn, svc AuthService, joiner Joiner, source LineSource) *ConnectionHandler {
	return &ConnectionHandler{
		conn:   conn,
		reader: bufio.NewReader(conn),
		svc:    svc,
		joiner: joiner,
		source: source,
		connID: host.NewULID(),
	}
}

// Handle processes the connection until it closes, the client quits, or
// ctx is cancelled.
func (h *ConnectionHandler) Handle(ctx context.Context) {
	done := make(chan struct{})
	var mirrored <-chan string
	if h.source != nil {
		lines, cancel := h.source.Subscribe()
		defer cancel()
		mirrored = lines
	}
	defer func() {
		close(done)
		if err := h.conn.Close(); err != nil {
			slog.Debug("error closing console connection", "conn_id", h.connID.String(), "error", err)
		}
	}()

	slog.DebugContext(ctx, "console connected",
		"conn_id", h.connID.String(),
		"remote", h.conn.RemoteAddr().String(),
	)
	h.send("holoauth console " + h.connID.String())
	h.send("Type 'help' for commands.")

	lineCh := make(chan string)
	errCh := make(chan error, 1)
	go func() {
		for {
			line, err := h.reader.ReadString('\n')
			if err != nil {
				errCh <- err
				return
			}
			select {
			case lineCh <- strings.TrimSpace(line):
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			h.send("Server shutting down.")
			return

		case err := <-errCh:
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				slog.Debug("console read error", "conn_id", h.connID.String(), "error", err)
			}
			return

		case line := <-lineCh:
			h.processLine(ctx, line)
			if h.quitting {
				return
			}

		case line, ok := <-mirrored:
			if !ok {
				mirrored = nil
				continue
			}
			h.send("[log] " + line)
		}
	}
}

func (h *ConnectionHandler) processLine(ctx context.Context, line string) {
	cmd, arg := parseCommand(line)

	switch cmd {
	case "":
	case "join":
		h.handleJoin(ctx, arg)
	case "auth":
		h.handleAuth(ctx, arg)
	case "validate":
		h.handleValidate(ctx, arg)
	case "passwd":
		h.handlePasswd(ctx, arg)
	case "setrole":
		h.handleSetRole(ctx, arg)
	case "isadmin":
		h.handleIsAdmin(ctx, arg)
	case "verbose":
		h.handleVerbose(ctx, arg)
	case "who":
		h.handleWho()
	case "help":
		h.send(helpText)
	case "quit":
		h.send("Goodbye!")
		h.quitting = true
	default:
		h.send("Unknown command: " + cmd)
	}
}

func (h *ConnectionHandler) handleJoin(ctx context.Context, arg string) {
	if arg == "" {
		h.send("Usage: join <identity>")
		return
	}
	created, err := h.joiner.Join(ctx, arg)
	switch {
	case err != nil:
		h.sendError(ctx, "join", err)
	case created:
		h.send("Account created for " + arg + ".")
	default:
		h.send(arg + " is already known.")
	}
}

func (h *ConnectionHandler) handleAuth(ctx context.Context, arg string) {
	args := splitArgs(arg, 2)
	if len(args) == 0 {
		h.send("Usage: auth <identity> <password>")
		return
	}
	password := ""
	if len(args) == 2 {
		password = args[1]
	}

	res := h.svc.Authenticate(ctx, args[0], password)
	switch res.Outcome {
	case auth.OutcomeToken:
		h.send("Token: " + res.Token)
	case auth.OutcomeNoCredentialSet:
		h.send(auth.NoCredentialSentinel + ": no password set; use passwd.")
	default:
		h.send("Authentication failed.")
	}
}

func (h *ConnectionHandler) handleValidate(ctx context.Context, arg string) {
	if arg == "" {
		h.send("Usage: validate <token>")
		return
	}
	if h.svc.Validate(ctx, arg) {
		h.send("Token is valid.")
	} else {
		h.send("Token is not valid.")
	}
}

func (h *ConnectionHandler) handlePasswd(ctx context.Context, arg string) {
	args := splitArgs(arg, 3)
	if len(args) < 2 {
		h.send("Usage: passwd <identity> <new> [old]")
		return
	}
	old := ""
	if len(args) == 3 {
		old = args[2]
	}
	if h.svc.SetPassword(ctx, args[0], args[1], old) {
		h.send("Password changed.")
	} else {
		h.send("Password not changed.")
	}
}

func (h *ConnectionHandler) handleSetRole(ctx context.Context, arg string) {
	args := strings.Fields(arg)
	if len(args) < 2 || len(args) > 3 {
		h.send("Usage: setrole <token> <identity> [role]")
		return
	}
	role := ""
	if len(args) == 3 {
		role = args[2]
	}
	ok, err := h.svc.SetRole(ctx, args[0], args[1], role)
	switch {
	case err != nil:
		h.sendError(ctx, "setrole", err)
	case ok:
		h.send("Role set.")
	default:
		h.send("Role not set.")
	}
}

func (h *ConnectionHandler) handleIsAdmin(ctx context.Context, arg string) {
	if arg == "" {
		h.send("Usage: isadmin <identity>")
		return
	}
	admin, err := h.svc.IsAdmin(ctx, arg)
	switch {
	case err != nil:
		h.sendError(ctx, "isadmin", err)
	case admin:
		h.send(arg + " is an admin.")
	default:
		h.send(arg + " is not an admin.")
	}
}

func (h *ConnectionHandler) handleVerbose(ctx context.Context, arg string) {
	switch strings.ToLower(arg) {
	case "on":
		h.svc.SetVerbose(ctx, true)
	case "off":
		h.svc.SetVerbose(ctx, false)
	case "":
	default:
		h.send("Usage: verbose on|off")
		return
	}
	if h.svc.Verbose() {
		h.send("Verbose is on.")
	} else {
		h.send("Verbose is off.")
	}
}

func (h *ConnectionHandler) handleWho() {
	accounts := h.svc.Accounts()
	if len(accounts) == 0 {
		h.send("No accounts.")
		return
	}
	for _, a := range accounts {
		flags := make([]string, 0, 2)
		if !a.HasCredential {
			flags = append(flags, "no-password")
		}
		if a.HasToken {
			flags = append(flags, "token")
		}
		h.send(fmt.Sprintf("%-20s %-10s %s", a.Identity, a.Role, strings.Join(flags, ",")))
	}
}

func (h *ConnectionHandler) sendError(ctx context.Context, cmd string, err error) {
	if errors.Is(err, auth.ErrContractViolation) {
		h.send("Error: " + err.Error())
		return
	}
	slog.ErrorContext(ctx, "console command failed",
		"conn_id", h.connID.String(),
		"command", cmd,
		"error", err,
	)
	h.send("Error: internal error.")
}

func (h *ConnectionHandler) send(msg string) {
	if err := h.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		slog.Debug("console set deadline failed", "conn_id", h.connID.String(), "error", err)
	}
	for _, line := range strings.Split(msg, "\n") {
		if _, err := fmt.Fprintf(h.conn, "%s\r\n", line); err != nil {
			slog.Debug("console write failed", "conn_id", h.connID.String(), "error", err)
			return
		}
	}
}
