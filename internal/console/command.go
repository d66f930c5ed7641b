// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package console

import "strings"

// parseCommand splits input into a lower-cased command and its argument text.
func parseCommand(input string) (cmd, arg string) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", ""
	}

	parts := strings.SplitN(input, " ", 2)
	cmd = strings.ToLower(parts[0])
	if len(parts) > 1 {
		arg = strings.TrimSpace(parts[1])
	}
	return cmd, arg
}

// splitArgs splits arg into at most n whitespace-separated fields; the last
// field keeps any remaining text, spaces included.
func splitArgs(arg string, n int) []string {
	var out []string
	rest := strings.TrimSpace(arg)
	for rest != "" && len(out) < n-1 {
		field, tail, found := strings.Cut(rest, " ")
		out = append(out, field)
		if !found {
			return out
		}
		rest = strings.TrimLeft(tail, " ")
	}
	if rest != "" {
		out = append(out, rest)
	}
	return out
}

const helpText = `Commands:
  join <identity>                      register an identity with the host
  auth <identity> <password>           authenticate and receive a token
  validate <token>                     check whether a token is live
  passwd <identity> <new> [old]        set or change a password
  setrole <token> <identity> [role]    assign a role (admin token required)
  isadmin <identity>                   report whether an identity is admin
  verbose on|off                       mirror service logs to consoles
  who                                  list accounts
  quit                                 close the console`
