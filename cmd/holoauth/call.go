// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/holoauth/internal/auth"
	"github.com/holomush/holoauth/internal/rpc"
)

type callConfig struct {
	addr    string
	timeout time.Duration
}

const defaultCallAddr = "127.0.0.1:4210"

// NewCallCmd creates the call subcommand, a gRPC client for every operation.
func NewCallCmd() *cobra.Command {
	cfg := &callConfig{}

	cmd := &cobra.Command{
		Use:   "call",
		Short: "Call a running auth service",
		Long:  `Invoke one auth operation on a running holoauth server over gRPC.`,
	}
	cmd.PersistentFlags().StringVar(&cfg.addr, "addr", defaultCallAddr, "server gRPC address")
	cmd.PersistentFlags().DurationVar(&cfg.timeout, "timeout", 5*time.Second, "call timeout")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "authenticate <identity> <password>",
			Short: "Authenticate and print the token, DEADBEEF or false",
			Args:  cobra.ExactArgs(2),
			RunE: withClient(cfg, func(ctx context.Context, cmd *cobra.Command, c *rpc.Client, args []string) error {
				resp, err := c.Authenticate(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				cmd.Println(resp.Wire)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "validate <token>",
			Short: "Report whether a token is live",
			Args:  cobra.ExactArgs(1),
			RunE: withClient(cfg, func(ctx context.Context, cmd *cobra.Command, c *rpc.Client, args []string) error {
				valid, err := c.Validate(ctx, args[0])
				if err != nil {
					return err
				}
				cmd.Println(valid)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "passwd <identity> <new> [old]",
			Short: "Set or change a password",
			Args:  cobra.RangeArgs(2, 3),
			RunE: withClient(cfg, func(ctx context.Context, cmd *cobra.Command, c *rpc.Client, args []string) error {
				old := ""
				if len(args) == 3 {
					old = args[2]
				}
				ok, err := c.SetPassword(ctx, args[0], args[1], old)
				if err != nil {
					return err
				}
				cmd.Println(ok)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "setrole <caller-token> <identity> [role]",
			Short: "Assign a role; the caller token must belong to an admin",
			Args:  cobra.RangeArgs(2, 3),
			RunE: withClient(cfg, func(ctx context.Context, cmd *cobra.Command, c *rpc.Client, args []string) error {
				role := auth.RolePlayer
				if len(args) == 3 {
					role = args[2]
				}
				ok, err := c.SetRole(ctx, args[0], args[1], role)
				if err != nil {
					return err
				}
				cmd.Println(ok)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "isadmin <identity>",
			Short: "Report whether an identity is an admin",
			Args:  cobra.ExactArgs(1),
			RunE: withClient(cfg, func(ctx context.Context, cmd *cobra.Command, c *rpc.Client, args []string) error {
				admin, err := c.IsAdmin(ctx, args[0])
				if err != nil {
					return err
				}
				cmd.Println(admin)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "verbose on|off",
			Short: "Toggle verbose log mirroring",
			Args:  cobra.ExactArgs(1),
			RunE: withClient(cfg, func(ctx context.Context, cmd *cobra.Command, c *rpc.Client, args []string) error {
				var enabled bool
				switch args[0] {
				case "on":
					enabled = true
				case "off":
				default:
					return oops.Code("CALL_INVALID_ARGUMENT").With("argument", args[0]).Errorf("verbose takes on or off")
				}
				if err := c.SetVerbose(ctx, enabled); err != nil {
					return err
				}
				cmd.Println("verbose " + args[0])
				return nil
			}),
		},
		&cobra.Command{
			Use:   "join <identity>",
			Short: "Report an identity joining the host",
			Args:  cobra.ExactArgs(1),
			RunE: withClient(cfg, func(ctx context.Context, cmd *cobra.Command, c *rpc.Client, args []string) error {
				created, err := c.Join(ctx, args[0])
				if err != nil {
					return err
				}
				if created {
					cmd.Println("account created")
				} else {
					cmd.Println("already known")
				}
				return nil
			}),
		},
	)

	return cmd
}

type callFunc func(ctx context.Context, cmd *cobra.Command, c *rpc.Client, args []string) error

func withClient(cfg *callConfig, fn callFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		client, err := rpc.Dial(rpc.ClientConfig{Address: cfg.addr})
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
		defer cancel()
		return fn(ctx, cmd, client, args)
	}
}
